package logschema

import (
	"sort"

	"go.uber.org/zap"
)

// Emit 校验字段后以结构化日志输出事件；缺字段时附加 _schema_error 而不丢弃事件。
func Emit(l *zap.Logger, event string, fields map[string]interface{}) {
	if l == nil {
		return
	}
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err := Validate(event, fields); err != nil {
		fields["_schema_error"] = err.Error()
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	zapFields := make([]zap.Field, 0, len(fields)+1)
	zapFields = append(zapFields, zap.String("event", event))
	for _, k := range keys {
		zapFields = append(zapFields, zap.Any(k, fields[k]))
	}
	if event == "feed_error" {
		l.Warn(event, zapFields...)
		return
	}
	l.Info(event, zapFields...)
}

// Package feed 从文本脚本读取订单并录入 Book。
//
// 每行一笔订单：
//
//	<bid|ask> <instrument> <price> <user>
//
// 空行与 # 开头的注释行被忽略。
package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"switch-pricer/monitor/logschema"
	"switch-pricer/quote"
)

var ErrSyntax = errors.New("syntax error")

// Order 解析后的一行订单。
type Order struct {
	Side       quote.Side
	Instrument string
	Price      decimal.Decimal
	User       string
}

// Submitter 由 book.Book 实现。
type Submitter interface {
	SubmitOrder(instrument string, side quote.Side, price decimal.Decimal, user string) (quote.Real, error)
}

// Parse 解析一行；空行或注释返回 ok=false。
func Parse(line string) (Order, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Order{}, false, nil
	}
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return Order{}, false, fmt.Errorf("%w: want 4 fields, got %d", ErrSyntax, len(fields))
	}
	side, err := quote.ParseSide(fields[0])
	if err != nil {
		return Order{}, false, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	price, err := decimal.NewFromString(fields[2])
	if err != nil {
		return Order{}, false, fmt.Errorf("%w: price %q", ErrSyntax, fields[2])
	}
	return Order{Side: side, Instrument: fields[1], Price: price, User: fields[3]}, true, nil
}

// Replay 依次录入 r 中的订单，遇到第一处错误即停止并返回行号。返回成功录入的笔数。
func Replay(ctx context.Context, r io.Reader, sub Submitter, log *zap.Logger) (int, error) {
	sc := bufio.NewScanner(r)
	n, lineNo := 0, 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := apply(sub, log, lineNo, sc.Text())
		if err != nil {
			return n, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if ok {
			n++
		}
	}
	return n, sc.Err()
}

func apply(sub Submitter, log *zap.Logger, lineNo int, line string) (bool, error) {
	o, ok, err := Parse(line)
	if err != nil || !ok {
		return false, err
	}
	if _, err := sub.SubmitOrder(o.Instrument, o.Side, o.Price, o.User); err != nil {
		return false, err
	}
	logschema.Emit(log, "feed_order", map[string]interface{}{
		"line":       lineNo,
		"instrument": o.Instrument,
		"side":       string(o.Side),
		"price":      o.Price.String(),
	})
	return true, nil
}

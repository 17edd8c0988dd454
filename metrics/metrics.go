// Package metrics provides Prometheus metrics for the pricer
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config 指标命名空间
type Config struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
	Addr      string `yaml:"addr"` // 为空则不启动 /metrics
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "pricer",
		Subsystem: "book",
	}
}

// Collector 订单录入、缓存与交叉状态的指标集合。nil Collector 的方法均为空操作。
type Collector struct {
	registry *prometheus.Registry

	ordersSubmitted *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	generation      prometheus.Gauge
	crossed         *prometheus.GaugeVec
}

// New 在独立的 registry 上创建指标
func New(cfg Config) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		ordersSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_submitted_total",
			Help:      "录入的实盘订单数",
		}, []string{"side"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cache_lookups_total",
			Help:      "备忘缓存查询次数（result=hit|miss）",
		}, []string{"metric", "result"}),
		generation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cache_generation",
			Help:      "当前缓存代数，每次录入订单 +1",
		}),
		crossed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "crossed",
			Help:      "合约是否交叉(1=crossed)",
		}, []string{"instrument"}),
	}
}

// Registry 返回底层 registry，供 /metrics 与测试使用
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) OrderSubmitted(side string) {
	if c == nil {
		return
	}
	c.ordersSubmitted.WithLabelValues(side).Inc()
}

// CacheLookup 实现 pricing.CacheObserver
func (c *Collector) CacheLookup(metric string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(metric, result).Inc()
}

func (c *Collector) SetGeneration(gen uint64) {
	if c == nil {
		return
	}
	c.generation.Set(float64(gen))
}

func (c *Collector) SetCrossed(instrument string, crossed bool) {
	if c == nil {
		return
	}
	v := 0.0
	if crossed {
		v = 1
	}
	c.crossed.WithLabelValues(instrument).Set(v)
}

// Handler 暴露该 registry 的 /metrics handler
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Mux 挂载 /metrics 的路由，供 HTTP 服务组件使用
func (c *Collector) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	if c != nil {
		mux.Handle("/metrics", c.Handler())
	}
	return mux
}

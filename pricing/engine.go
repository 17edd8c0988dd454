// Package pricing 递归求解每个合约的最优实盘/合成买卖价。
//
// 直接价差合约 (self = rhs - lhs) 由两条腿的对手方最优价相减得到合成价；
// outright 合约通过其参与的 switch 推导：作为 lhs 腿时 rhs - switch，作为 rhs 腿时 lhs + switch。
// 递归时携带已访问集合，重复进入的合约不再计算合成价，保证在有环的拓扑上终止。
package pricing

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"switch-pricer/graph"
	"switch-pricer/quote"
)

// Metric 备忘缓存的四个键。
type Metric string

const (
	MetricBestBid    Metric = "best_bid"
	MetricBestAsk    Metric = "best_ask"
	MetricBestSynBid Metric = "best_syn_bid"
	MetricBestSynAsk Metric = "best_syn_ask"
)

func bestMetric(side quote.Side) Metric {
	if side == quote.SideBid {
		return MetricBestBid
	}
	return MetricBestAsk
}

func synMetric(side quote.Side) Metric {
	if side == quote.SideBid {
		return MetricBestSynBid
	}
	return MetricBestSynAsk
}

// CacheMode 备忘缓存的键策略。
type CacheMode string

const (
	// CacheByPath 按 (合约, 指标, 访问集合) 缓存，结果与不缓存时一致。默认模式。
	CacheByPath CacheMode = "path"
	// CacheByMetric 只按 (合约, 指标) 缓存，不区分产生该值时的访问路径。
	// 递归中在某合约已被访问时算出的"仅实盘"结果会被之后的顶层查询读到，
	// 例如先查 3x5 合成卖价后再查 3x5 最优卖价会得到空。仅在需要复现旧行为时使用。
	CacheByMetric CacheMode = "metric"
	// CacheOff 每次都重新递归计算。
	CacheOff CacheMode = "off"
)

// ParseCacheMode 解析配置中的缓存模式，空串为 path。
func ParseCacheMode(s string) (CacheMode, error) {
	switch CacheMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", CacheByPath:
		return CacheByPath, nil
	case CacheByMetric:
		return CacheByMetric, nil
	case CacheOff:
		return CacheOff, nil
	}
	return "", fmt.Errorf("unknown cache mode %q", s)
}

// CacheObserver 接收缓存命中情况，通常由 metrics 实现。
type CacheObserver interface {
	CacheLookup(metric string, hit bool)
}

// Engine 合成定价引擎。不做并发保护，调用方需要串行化对同一 Graph 的访问。
type Engine struct {
	g       *graph.Graph
	mode    CacheMode
	stamper quote.Stamper
	log     *zap.Logger
	obs     CacheObserver
}

type Option func(*Engine)

func WithCacheMode(m CacheMode) Option { return func(e *Engine) { e.mode = m } }

func WithStamper(s quote.Stamper) Option { return func(e *Engine) { e.stamper = s } }

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

func WithObserver(o CacheObserver) Option { return func(e *Engine) { e.obs = o } }

func NewEngine(g *graph.Graph, opts ...Option) *Engine {
	e := &Engine{
		g:       g,
		mode:    CacheByPath,
		stamper: quote.UUIDStamper{},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.stamper == nil {
		e.stamper = quote.UUIDStamper{}
	}
	return e
}

func (e *Engine) Mode() CacheMode { return e.mode }

// BestBid 最优买价：实盘与合成择优，同价实盘优先。nil 表示无报价。
func (e *Engine) BestBid(id string) (quote.Quote, error) {
	return e.best(id, quote.SideBid, visited{}, 0)
}

// BestAsk 最优卖价。
func (e *Engine) BestAsk(id string) (quote.Quote, error) {
	return e.best(id, quote.SideAsk, visited{}, 0)
}

// BestSynBid 不考虑本合约挂单的最优合成买价。
func (e *Engine) BestSynBid(id string) (quote.Quote, error) {
	return e.bestSynByID(id, quote.SideBid)
}

// BestSynAsk 不考虑本合约挂单的最优合成卖价。
func (e *Engine) BestSynAsk(id string) (quote.Quote, error) {
	return e.bestSynByID(id, quote.SideAsk)
}

// Best 按方向查询最优价。
func (e *Engine) Best(id string, side quote.Side) (quote.Quote, error) {
	return e.best(id, side, visited{}, 0)
}

func (e *Engine) bestSynByID(id string, side quote.Side) (quote.Quote, error) {
	in, err := e.g.Get(id)
	if err != nil {
		return nil, err
	}
	return e.bestSyn(in, side, visited{}, 0)
}

func (e *Engine) best(id string, side quote.Side, v visited, depth int) (quote.Quote, error) {
	in, err := e.g.Get(id)
	if err != nil {
		return nil, err
	}
	metric := bestMetric(side)
	if q, ok := e.recall(in, metric, v); ok {
		return q, nil
	}
	e.trace(depth, in.ID(), metric, v)

	resting := in.BestResting(side)
	var syn quote.Quote
	if !v.has(in.ID()) {
		if syn, err = e.bestSyn(in, side, v, depth+1); err != nil {
			return nil, err
		}
	}
	return e.remember(in, metric, v, quote.Best(side, resting, syn)), nil
}

func (e *Engine) bestSyn(in *graph.Instrument, side quote.Side, v visited, depth int) (quote.Quote, error) {
	metric := synMetric(side)
	if q, ok := e.recall(in, metric, v); ok {
		return q, nil
	}
	e.trace(depth, in.ID(), metric, v)

	next := v.with(in.ID())
	var (
		res quote.Quote
		err error
	)
	// 同时带腿与 switch 的合约优先按直接价差计算。
	if lhs, rhs, ok := in.Legs(); ok {
		res, err = e.fromLegs(in.ID(), lhs, rhs, side, next, depth+1)
	} else {
		res, err = e.fromSwitches(in, side, next, depth+1)
	}
	if err != nil {
		return nil, err
	}
	return e.remember(in, metric, v, res), nil
}

// fromLegs self = rhs - lhs。买价用 rhs 买价减 lhs 卖价，卖价用 rhs 卖价减 lhs 买价。
func (e *Engine) fromLegs(id, lhs, rhs string, side quote.Side, next visited, depth int) (quote.Quote, error) {
	lq, err := e.best(lhs, side.Opposite(), next, depth)
	if err != nil {
		return nil, err
	}
	rq, err := e.best(rhs, side, next, depth)
	if err != nil {
		return nil, err
	}
	if lq == nil || rq == nil {
		return nil, nil
	}
	return e.mint(id, side, quote.OpSub, leg(rhs, rq), leg(lhs, lq)), nil
}

// fromSwitches 枚举两类候选并择优：
//   - 作为 lhs 腿的 switch s：self = s.rhs - s，取 s 的对手方与 s.rhs 的同方向；
//   - 作为 rhs 腿的 switch s：self = s.lhs + s，两者都取同方向。
//
// 只有严格更优的候选才替换当前最优，同价保留先找到的。
func (e *Engine) fromSwitches(in *graph.Instrument, side quote.Side, next visited, depth int) (quote.Quote, error) {
	var best quote.Quote
	consider := func(c quote.Quote) {
		if best == nil || quote.Better(side, c, best) {
			best = c
		}
	}

	for _, sid := range in.LHSSwitches() {
		s, err := e.g.Get(sid)
		if err != nil {
			return nil, err
		}
		_, other, _ := s.Legs()
		sq, err := e.best(sid, side.Opposite(), next, depth)
		if err != nil {
			return nil, err
		}
		oq, err := e.best(other, side, next, depth)
		if err != nil {
			return nil, err
		}
		if sq != nil && oq != nil {
			consider(e.mint(in.ID(), side, quote.OpSub, leg(other, oq), leg(sid, sq)))
		}
	}

	for _, sid := range in.RHSSwitches() {
		s, err := e.g.Get(sid)
		if err != nil {
			return nil, err
		}
		other, _, _ := s.Legs()
		sq, err := e.best(sid, side, next, depth)
		if err != nil {
			return nil, err
		}
		oq, err := e.best(other, side, next, depth)
		if err != nil {
			return nil, err
		}
		if sq != nil && oq != nil {
			consider(e.mint(in.ID(), side, quote.OpAdd, leg(other, oq), leg(sid, sq)))
		}
	}
	return best, nil
}

func leg(id string, q quote.Quote) quote.Leg {
	return quote.Leg{Instrument: id, Price: q.Head().Price}
}

func (e *Engine) mint(id string, side quote.Side, op quote.Operator, left, right quote.Leg) quote.Synthetic {
	price := left.Price.Add(right.Price)
	if op == quote.OpSub {
		price = left.Price.Sub(right.Price)
	}
	qid, at := e.stamper.Stamp()
	return quote.Synthetic{
		Header: quote.Header{ID: qid, Time: at, Instrument: id, Side: side, Price: price},
		Op:     op,
		Left:   left,
		Right:  right,
	}
}

func (e *Engine) cacheKey(metric Metric, v visited) string {
	if e.mode == CacheByPath {
		return string(metric) + "@" + v.key()
	}
	return string(metric)
}

func (e *Engine) recall(in *graph.Instrument, metric Metric, v visited) (quote.Quote, bool) {
	if e.mode == CacheOff {
		return nil, false
	}
	q, ok := in.Recall(e.cacheKey(metric, v), e.g.Generation())
	if e.obs != nil {
		e.obs.CacheLookup(string(metric), ok)
	}
	return q, ok
}

func (e *Engine) remember(in *graph.Instrument, metric Metric, v visited, q quote.Quote) quote.Quote {
	if e.mode == CacheOff {
		return q
	}
	return in.Remember(e.cacheKey(metric, v), e.g.Generation(), q)
}

func (e *Engine) trace(depth int, id string, metric Metric, v visited) {
	if ce := e.log.Check(zap.DebugLevel, "resolve"); ce != nil {
		ce.Write(
			zap.Int("depth", depth),
			zap.String("instrument", id),
			zap.String("metric", string(metric)),
			zap.Strings("visited", v.sorted()),
		)
	}
}

// Package book 负责订单录入与全局缓存失效，并在此之上提供最优价查询。
package book

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"switch-pricer/graph"
	"switch-pricer/metrics"
	"switch-pricer/monitor/logschema"
	"switch-pricer/pricing"
	"switch-pricer/quote"
	"switch-pricer/report"
)

var ErrInvalidOrder = errors.New("invalid order")

// Reporter 每次录入订单后收到完整的状态快照。
type Reporter func(books []report.Instrument)

// Book 持有合约图与定价引擎。所有录入与查询共用一把互斥锁：
// 查询会写入备忘缓存，录入会使全部缓存失效。
type Book struct {
	mu       sync.Mutex
	g        *graph.Graph
	engine   *pricing.Engine
	stamper  quote.Stamper
	log      *zap.Logger
	metrics  *metrics.Collector
	reporter Reporter
}

type options struct {
	stamper  quote.Stamper
	log      *zap.Logger
	metrics  *metrics.Collector
	reporter Reporter
	mode     pricing.CacheMode
}

type Option func(*options)

func WithStamper(s quote.Stamper) Option { return func(o *options) { o.stamper = s } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

func WithMetrics(m *metrics.Collector) Option { return func(o *options) { o.metrics = m } }

func WithReporter(r Reporter) Option { return func(o *options) { o.reporter = r } }

func WithCacheMode(m pricing.CacheMode) Option { return func(o *options) { o.mode = m } }

// New 基于已校验的合约图创建 Book。
func New(g *graph.Graph, opts ...Option) *Book {
	o := options{
		stamper: quote.UUIDStamper{},
		log:     zap.NewNop(),
		mode:    pricing.CacheByPath,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	engineOpts := []pricing.Option{
		pricing.WithCacheMode(o.mode),
		pricing.WithStamper(o.stamper),
		pricing.WithLogger(o.log.Named("pricing")),
	}
	if o.metrics != nil {
		engineOpts = append(engineOpts, pricing.WithObserver(o.metrics))
	}
	b := &Book{
		g:        g,
		engine:   pricing.NewEngine(g, engineOpts...),
		stamper:  o.stamper,
		log:      o.log,
		metrics:  o.metrics,
		reporter: o.reporter,
	}
	b.metrics.SetGeneration(g.Generation())
	return b
}

// IDs 按注册顺序返回合约 ID。
func (b *Book) IDs() []string { return b.g.IDs() }

// SubmitOrder 录入一笔实盘订单：生成 ID/时间戳，使全部合约的缓存失效，
// 再追加到对应一侧并保持排序。未注册的合约返回 graph.ErrNotFound。
func (b *Book) SubmitOrder(instrument string, side quote.Side, price decimal.Decimal, user string) (quote.Real, error) {
	b.mu.Lock()
	in, err := b.g.Get(instrument)
	if err != nil {
		b.mu.Unlock()
		return quote.Real{}, err
	}
	if side != quote.SideBid && side != quote.SideAsk {
		b.mu.Unlock()
		return quote.Real{}, fmt.Errorf("%w: side %q", ErrInvalidOrder, side)
	}
	if user == "" {
		b.mu.Unlock()
		return quote.Real{}, fmt.Errorf("%w: user is required", ErrInvalidOrder)
	}

	id, at := b.stamper.Stamp()
	q := quote.Real{
		Header: quote.Header{ID: id, Time: at, Instrument: instrument, Side: side, Price: price},
		User:   user,
	}
	gen := b.g.Invalidate()
	in.AddResting(q)

	var (
		snap    []report.Instrument
		snapErr error
	)
	if b.reporter != nil {
		snap, snapErr = b.snapshotLocked()
	}
	b.mu.Unlock()

	b.metrics.OrderSubmitted(string(side))
	b.metrics.SetGeneration(gen)
	logschema.Emit(b.log, "cache_invalidated", map[string]interface{}{
		"generation":  gen,
		"instruments": b.g.Len(),
	})
	logschema.Emit(b.log, "order_submitted", map[string]interface{}{
		"instrument": instrument,
		"side":       string(side),
		"price":      price.String(),
		"user":       user,
		"order_id":   id,
		"generation": gen,
	})

	if b.reporter != nil {
		if snapErr != nil {
			b.log.Error("snapshot failed", zap.Error(snapErr))
		} else {
			b.reporter(snap)
		}
	}
	return q, nil
}

// BestBid 最优买价（实盘或合成），nil 表示该合约当前无买价。
func (b *Book) BestBid(id string) (quote.Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.BestBid(id)
}

// BestAsk 最优卖价（实盘或合成）。
func (b *Book) BestAsk(id string) (quote.Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.BestAsk(id)
}

// BestSynBid 最优合成买价，不含本合约挂单。
func (b *Book) BestSynBid(id string) (quote.Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.BestSynBid(id)
}

// BestSynAsk 最优合成卖价，不含本合约挂单。
func (b *Book) BestSynAsk(id string) (quote.Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.BestSynAsk(id)
}

// IsCrossed 两侧都有报价且买价 >= 卖价。
func (b *Book) IsCrossed(id string) (bool, error) {
	b.mu.Lock()
	bid, err := b.engine.BestBid(id)
	if err != nil {
		b.mu.Unlock()
		return false, err
	}
	ask, err := b.engine.BestAsk(id)
	b.mu.Unlock()
	if err != nil {
		return false, err
	}

	crossed := quote.Crossed(bid, ask)
	b.metrics.SetCrossed(id, crossed)
	if crossed {
		logschema.Emit(b.log, "crossed_market", map[string]interface{}{
			"instrument": id,
			"bid":        bid.Head().Price.String(),
			"ask":        ask.Head().Price.String(),
		})
	}
	return crossed, nil
}

// Resting 某合约某一侧的实盘挂单（最优在前）。
func (b *Book) Resting(id string, side quote.Side) ([]quote.Real, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	in, err := b.g.Get(id)
	if err != nil {
		return nil, err
	}
	return in.Resting(side), nil
}

// Snapshot 每个合约的全部实盘挂单加上最优合成价，两侧均最优在前。
func (b *Book) Snapshot() ([]report.Instrument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Book) snapshotLocked() ([]report.Instrument, error) {
	ids := b.g.IDs()
	out := make([]report.Instrument, 0, len(ids))
	for _, id := range ids {
		in, err := b.g.Get(id)
		if err != nil {
			return nil, err
		}
		synBid, err := b.engine.BestSynBid(id)
		if err != nil {
			return nil, err
		}
		synAsk, err := b.engine.BestSynAsk(id)
		if err != nil {
			return nil, err
		}
		out = append(out, report.Instrument{
			ID:   id,
			Bids: merge(quote.SideBid, in.Resting(quote.SideBid), synBid),
			Asks: merge(quote.SideAsk, in.Resting(quote.SideAsk), synAsk),
		})
	}
	return out, nil
}

// merge 把合成价插入已排序的挂单列表，同价排在实盘之后。
func merge(side quote.Side, resting []quote.Real, syn quote.Quote) []quote.Quote {
	all := make([]quote.Quote, 0, len(resting)+1)
	for _, q := range resting {
		all = append(all, q)
	}
	if syn != nil {
		all = append(all, syn)
	}
	slices.SortStableFunc(all, func(a, b quote.Quote) int {
		c := a.Head().Price.Cmp(b.Head().Price)
		if side == quote.SideBid {
			return -c
		}
		return c
	})
	return all
}

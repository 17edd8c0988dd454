package book

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"switch-pricer/config"
	"switch-pricer/graph"
	"switch-pricer/metrics"
	"switch-pricer/pricing"
	"switch-pricer/quote"
	"switch-pricer/report"
)

func seqStamper() quote.Stamper {
	var mu sync.Mutex
	n := 0
	return quote.StamperFunc(func() (string, time.Time) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%06d", n), time.Unix(int64(n), 0).UTC()
	})
}

func newBook(t *testing.T, opts ...Option) *Book {
	t.Helper()
	g, err := graph.Build(graph.Reference())
	require.NoError(t, err)
	return New(g, append([]Option{WithStamper(seqStamper())}, opts...)...)
}

func submit(t *testing.T, b *Book, id string, side quote.Side, price int64, user string) quote.Real {
	t.Helper()
	q, err := b.SubmitOrder(id, side, decimal.NewFromInt(price), user)
	require.NoError(t, err)
	return q
}

func TestSubmitOrderStampsRealQuote(t *testing.T) {
	b := newBook(t)
	q := submit(t, b, "3YR", quote.SideBid, 99, "A")
	assert.Equal(t, "id-000001", q.ID)
	assert.Equal(t, "3YR", q.Instrument)
	assert.Equal(t, "A", q.User)
	assert.False(t, q.IsSynthetic())

	resting, err := b.Resting("3YR", quote.SideBid)
	require.NoError(t, err)
	require.Len(t, resting, 1)
	assert.Equal(t, q, resting[0])
}

func TestSubmitOrderErrors(t *testing.T) {
	b := newBook(t)
	_, err := b.SubmitOrder("10YR", quote.SideBid, decimal.NewFromInt(1), "A")
	assert.ErrorIs(t, err, graph.ErrNotFound)
	_, err = b.SubmitOrder("3YR", quote.SideBid, decimal.NewFromInt(1), "")
	assert.ErrorIs(t, err, ErrInvalidOrder)
	_, err = b.SubmitOrder("3YR", quote.Side("buy"), decimal.NewFromInt(1), "A")
	assert.ErrorIs(t, err, ErrInvalidOrder)

	for _, fn := range []func(string) (quote.Quote, error){b.BestBid, b.BestAsk, b.BestSynBid, b.BestSynAsk} {
		_, err := fn("10YR")
		assert.ErrorIs(t, err, graph.ErrNotFound)
	}
	_, err = b.IsCrossed("10YR")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestNegativePricesAllowed(t *testing.T) {
	b := newBook(t)
	submit(t, b, "3x5", quote.SideBid, -2, "A")
	q, err := b.BestBid("3x5")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "-2", q.Head().Price.String())
}

func TestEndToEnd(t *testing.T) {
	b := newBook(t)
	submit(t, b, "3YR", quote.SideBid, 99, "A")
	submit(t, b, "5YR", quote.SideAsk, 101, "B")

	syn, err := b.BestSynAsk("3x5")
	require.NoError(t, err)
	require.NotNil(t, syn)
	assert.Equal(t, "2", syn.Head().Price.String())

	ask, err := b.BestAsk("3x5")
	require.NoError(t, err)
	require.NotNil(t, ask)
	assert.Equal(t, "2", ask.Head().Price.String())
	assert.True(t, ask.IsSynthetic())

	crossed, err := b.IsCrossed("3x5")
	require.NoError(t, err)
	assert.False(t, crossed, "只有一侧报价不算交叉")
}

func TestIsCrossed(t *testing.T) {
	b := newBook(t)
	submit(t, b, "7YR", quote.SideBid, 104, "A")
	crossed, err := b.IsCrossed("7YR")
	require.NoError(t, err)
	assert.False(t, crossed)

	submit(t, b, "7YR", quote.SideAsk, 104, "B")
	crossed, err = b.IsCrossed("7YR")
	require.NoError(t, err)
	assert.True(t, crossed, "买价等于卖价也算交叉")
}

func TestCrossedViaSynthetic(t *testing.T) {
	b := newBook(t)
	submit(t, b, "3YR", quote.SideBid, 99, "A")
	submit(t, b, "5YR", quote.SideAsk, 101, "B")
	submit(t, b, "3x5", quote.SideBid, 3, "C")

	crossed, err := b.IsCrossed("3x5")
	require.NoError(t, err)
	assert.True(t, crossed)
}

func TestInvalidationOnEverySubmit(t *testing.T) {
	b := newBook(t)
	for _, id := range b.IDs() {
		_, err := b.BestBid(id)
		require.NoError(t, err)
		_, err = b.BestAsk(id)
		require.NoError(t, err)
	}
	submit(t, b, "7YR", quote.SideAsk, 108, "A")

	q, err := b.BestAsk("7YR")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "108", q.Head().Price.String())
}

func TestReporterAndSnapshot(t *testing.T) {
	var reports [][]report.Instrument
	b := newBook(t, WithReporter(func(books []report.Instrument) { reports = append(reports, books) }))

	submit(t, b, "3YR", quote.SideBid, 99, "A")
	submit(t, b, "3YR", quote.SideBid, 100, "A")
	submit(t, b, "5YR", quote.SideAsk, 101, "B")
	submit(t, b, "3x5", quote.SideAsk, 1, "C")
	submit(t, b, "3x5", quote.SideAsk, 2, "C")
	require.Len(t, reports, 5)

	last := reports[4]
	require.Len(t, last, 6)
	assert.Equal(t, "3YR", last[0].ID)
	prices := func(qs []quote.Quote) []string {
		var out []string
		for _, q := range qs {
			out = append(out, q.Head().Price.String())
		}
		return out
	}
	assert.Equal(t, []string{"100", "99"}, prices(last[0].Bids))

	// 3x5 合成卖价 = 101 - 100 = 1，与实盘 1 同价排在实盘之后
	var spread report.Instrument
	for _, in := range last {
		if in.ID == "3x5" {
			spread = in
		}
	}
	assert.Equal(t, []string{"1", "1", "2"}, prices(spread.Asks))
	assert.False(t, spread.Asks[0].IsSynthetic())
	assert.True(t, spread.Asks[1].IsSynthetic())

	snap, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, len(last), len(snap))
}

func TestLogsAndMetrics(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := metrics.New(metrics.DefaultConfig())
	b := newBook(t, WithLogger(zap.New(core)), WithMetrics(m))

	submit(t, b, "7YR", quote.SideBid, 104, "A")
	submit(t, b, "7YR", quote.SideAsk, 103, "B")
	crossed, err := b.IsCrossed("7YR")
	require.NoError(t, err)
	require.True(t, crossed)

	events := map[string]int{}
	for _, e := range logs.All() {
		events[e.Message]++
		assert.NotContains(t, e.ContextMap(), "_schema_error", e.Message)
	}
	assert.Equal(t, 2, events["order_submitted"])
	assert.Equal(t, 2, events["cache_invalidated"])
	assert.Equal(t, 1, events["crossed_market"])

	expected := `
# HELP pricer_book_cache_generation 当前缓存代数，每次录入订单 +1
# TYPE pricer_book_cache_generation gauge
pricer_book_cache_generation 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "pricer_book_cache_generation"))
	n, err := testutil.GatherAndCount(m.Registry(), "pricer_book_cache_lookups_total")
	require.NoError(t, err)
	assert.Positive(t, n)
}

// 默认配置下的完整流程：先查合成卖价再查最优卖价与交叉。
func TestDefaultConfigEndToEnd(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, config.Validate(cfg))
	for name, opts := range map[string][]Option{
		"配置模式": {WithCacheMode(cfg.CacheMode())},
		"零值选项": nil,
	} {
		t.Run(name, func(t *testing.T) {
			g, err := cfg.BuildGraph()
			require.NoError(t, err)
			b := New(g, opts...)

			_, err = b.SubmitOrder("3YR", quote.SideBid, decimal.NewFromInt(99), "A")
			require.NoError(t, err)
			_, err = b.SubmitOrder("5YR", quote.SideAsk, decimal.NewFromInt(101), "B")
			require.NoError(t, err)

			syn, err := b.BestSynAsk("3x5")
			require.NoError(t, err)
			require.NotNil(t, syn)
			assert.Equal(t, "2", syn.Head().Price.String())

			ask, err := b.BestAsk("3x5")
			require.NoError(t, err)
			require.NotNil(t, ask)
			assert.Equal(t, "2", ask.Head().Price.String())

			crossed, err := b.IsCrossed("3x5")
			require.NoError(t, err)
			assert.False(t, crossed)

			_, err = b.SubmitOrder("3x5", quote.SideBid, decimal.NewFromInt(3), "C")
			require.NoError(t, err)
			crossed, err = b.IsCrossed("3x5")
			require.NoError(t, err)
			assert.True(t, crossed)
		})
	}
}

func TestCacheModes(t *testing.T) {
	for _, mode := range []pricing.CacheMode{pricing.CacheByMetric, pricing.CacheByPath, pricing.CacheOff} {
		t.Run(string(mode), func(t *testing.T) {
			b := newBook(t, WithCacheMode(mode))
			submit(t, b, "3YR", quote.SideBid, 99, "A")
			submit(t, b, "5YR", quote.SideAsk, 101, "B")
			q, err := b.BestAsk("3x5")
			require.NoError(t, err)
			require.NotNil(t, q)
			assert.Equal(t, "2", q.Head().Price.String())
		})
	}
}

func TestConcurrentSubmitAndQuery(t *testing.T) {
	b := newBook(t)
	ids := b.IDs()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				id := ids[(w+i)%len(ids)]
				side := quote.SideBid
				if i%2 == 1 {
					side = quote.SideAsk
				}
				_, err := b.SubmitOrder(id, side, decimal.NewFromInt(int64(90+i)), fmt.Sprintf("u%d", w))
				assert.NoError(t, err)
				_, err = b.BestBid(ids[i%len(ids)])
				assert.NoError(t, err)
				_, err = b.IsCrossed(ids[(i+1)%len(ids)])
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, id := range ids {
		bids, _ := b.Resting(id, quote.SideBid)
		asks, _ := b.Resting(id, quote.SideAsk)
		total += len(bids) + len(asks)
	}
	assert.Equal(t, 100, total)
}

package graph

import (
	"slices"

	"switch-pricer/quote"
)

// Instrument 图中的一个节点：挂单列表 + 固定的价差/switch 关系 + 备忘缓存。
// 关系只保存 ID，由 Graph 统一持有所有节点。
type Instrument struct {
	id          string
	lhs         string
	rhs         string
	lhsSwitches []string
	rhsSwitches []string

	bids []quote.Real // 价格降序，最优在前
	asks []quote.Real // 价格升序，最优在前

	memoGen uint64
	memo    map[string]memoCell
}

type memoCell struct {
	gen uint64
	q   quote.Quote
}

func (in *Instrument) ID() string { return in.id }

// Legs 返回直接价差的两条腿；outright 合约 ok=false。
func (in *Instrument) Legs() (lhs, rhs string, ok bool) {
	return in.lhs, in.rhs, in.lhs != "" && in.rhs != ""
}

// IsDirectSpread 是否为 rhs - lhs 形式的价差合约。
func (in *Instrument) IsDirectSpread() bool {
	_, _, ok := in.Legs()
	return ok
}

// LHSSwitches 本合约作为 lhs 腿参与的 switch。
func (in *Instrument) LHSSwitches() []string { return slices.Clone(in.lhsSwitches) }

// RHSSwitches 本合约作为 rhs 腿参与的 switch。
func (in *Instrument) RHSSwitches() []string { return slices.Clone(in.rhsSwitches) }

// AddResting 追加实盘挂单并保持排序，同价按插入顺序。
func (in *Instrument) AddResting(q quote.Real) {
	if q.Side == quote.SideBid {
		in.bids = append(in.bids, q)
		slices.SortStableFunc(in.bids, func(a, b quote.Real) int { return b.Price.Cmp(a.Price) })
		return
	}
	in.asks = append(in.asks, q)
	slices.SortStableFunc(in.asks, func(a, b quote.Real) int { return a.Price.Cmp(b.Price) })
}

// Resting 返回某一侧挂单的拷贝（最优在前）。
func (in *Instrument) Resting(side quote.Side) []quote.Real {
	if side == quote.SideBid {
		return slices.Clone(in.bids)
	}
	return slices.Clone(in.asks)
}

// BestResting 返回某一侧最优实盘挂单，无挂单时为 nil。
func (in *Instrument) BestResting(side quote.Side) quote.Quote {
	list := in.asks
	if side == quote.SideBid {
		list = in.bids
	}
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// Recall 读取备忘值；代数不一致视为未命中。命中时 q 可能为 nil（缓存的"无报价"）。
func (in *Instrument) Recall(key string, gen uint64) (quote.Quote, bool) {
	if in.memoGen != gen {
		return nil, false
	}
	c, ok := in.memo[key]
	if !ok || c.gen != gen {
		return nil, false
	}
	return c.q, true
}

// Remember 写入备忘值，发现代数变化时先丢弃旧缓存。
func (in *Instrument) Remember(key string, gen uint64, q quote.Quote) quote.Quote {
	if in.memo == nil || in.memoGen != gen {
		in.memo = make(map[string]memoCell)
		in.memoGen = gen
	}
	in.memo[key] = memoCell{gen: gen, q: q}
	return q
}

// MemoSize 当前代有效的缓存条目数。
func (in *Instrument) MemoSize(gen uint64) int {
	if in.memoGen != gen {
		return 0
	}
	return len(in.memo)
}

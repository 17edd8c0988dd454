package quote

// Better 判断 a 在 side 方向上是否严格优于 b：买价高者优，卖价低者优。
// 任一方为 nil 时，非 nil 的一方更优。
func Better(side Side, a, b Quote) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	c := a.Head().Price.Cmp(b.Head().Price)
	if side == SideBid {
		return c > 0
	}
	return c < 0
}

// Best 在实盘与合成报价中择优；价格相同时实盘优先。
func Best(side Side, resting, syn Quote) Quote {
	if syn == nil {
		return resting
	}
	if resting == nil {
		return syn
	}
	if Better(side, syn, resting) {
		return syn
	}
	return resting
}

// Crossed 买价不低于卖价即为交叉。
func Crossed(bid, ask Quote) bool {
	if bid == nil || ask == nil {
		return false
	}
	return bid.Head().Price.Cmp(ask.Head().Price) >= 0
}

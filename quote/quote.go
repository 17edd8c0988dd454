// Package quote 定义实盘挂单与合成报价两种报价形态。
package quote

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side 买卖方向。
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// ParseSide 解析 bid/ask（大小写不敏感）。
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bid":
		return SideBid, nil
	case "ask":
		return SideAsk, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Opposite 返回对手方向。
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// Operator 合成报价的组合方式。
type Operator string

const (
	OpAdd Operator = "+"
	OpSub Operator = "-"
)

// Leg 合成报价的一条来源腿：参与组合的合约及其价格。
type Leg struct {
	Instrument string
	Price      decimal.Decimal
}

func (l Leg) String() string {
	return fmt.Sprintf("(%s, %s)", l.Instrument, l.Price.String())
}

// Header 是两种报价共享的字段。
type Header struct {
	ID         string
	Time       time.Time
	Instrument string
	Side       Side
	Price      decimal.Decimal
}

// Head 返回公共字段，Real/Synthetic 通过嵌入获得该方法。
func (h Header) Head() Header { return h }

// ShortID 取 ID 前 8 位，用于展示。
func (h Header) ShortID() string {
	if len(h.ID) <= 8 {
		return h.ID
	}
	return h.ID[:8]
}

// Quote 只有 Real 与 Synthetic 两种实现；nil 表示该侧无报价。
type Quote interface {
	Head() Header
	IsSynthetic() bool
	String() string
	isQuote()
}

// Real 用户挂出的实盘订单。
type Real struct {
	Header
	User string
}

func (Real) IsSynthetic() bool { return false }
func (Real) isQuote()          {}

func (r Real) String() string {
	return fmt.Sprintf("(%s,%s,%s,%s,%s,%s,real)",
		r.ShortID(), r.Instrument, r.Side, r.Price.String(), r.User, r.Time.Format(time.RFC3339Nano))
}

// Synthetic 由相关合约最优价组合得到的派生报价，不进入订单簿。
type Synthetic struct {
	Header
	Op    Operator
	Left  Leg
	Right Leg
}

func (Synthetic) IsSynthetic() bool { return true }
func (Synthetic) isQuote()          {}

func (s Synthetic) String() string {
	return fmt.Sprintf("(%s,%s,%s,%s,,%s,syn(%s %s %s))",
		s.ShortID(), s.Instrument, s.Side, s.Price.String(), s.Time.Format(time.RFC3339Nano),
		s.Left, s.Op, s.Right)
}

// Stamper 为新报价分配唯一 ID 与创建时间。
type Stamper interface {
	Stamp() (id string, at time.Time)
}

// UUIDStamper 默认实现：随机 UUID + 当前时间。
type UUIDStamper struct{}

func (UUIDStamper) Stamp() (string, time.Time) {
	return uuid.NewString(), time.Now()
}

// StamperFunc 便于测试注入确定性的 ID。
type StamperFunc func() (string, time.Time)

func (f StamperFunc) Stamp() (string, time.Time) { return f() }

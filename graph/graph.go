// Package graph 保存合约拓扑：直接价差腿与 switch 关系在启动时注册，之后只追加挂单。
package graph

import (
	"fmt"
	"sync/atomic"
)

// Spec 描述一个合约的注册信息。LHS/RHS 要么都填（直接价差），要么都空（outright）。
type Spec struct {
	ID          string   `yaml:"id"`
	LHS         string   `yaml:"lhs,omitempty"`
	RHS         string   `yaml:"rhs,omitempty"`
	LHSSwitches []string `yaml:"lhsSwitches,omitempty"`
	RHSSwitches []string `yaml:"rhsSwitches,omitempty"`
}

// Graph 合约 ID -> Instrument 的注册表，是所有节点的唯一持有者。
// Graph 本身不加锁，并发访问由上层（book）串行化；generation 为原子变量。
type Graph struct {
	order       []string
	instruments map[string]*Instrument
	generation  atomic.Uint64
}

func New() *Graph {
	return &Graph{instruments: make(map[string]*Instrument)}
}

// Register 注册一个合约，每个 ID 只能注册一次。
// 引用的合约可以稍后注册，完整性由 Validate 检查。
func (g *Graph) Register(s Spec) error {
	if s.ID == "" {
		return ErrEmptyID
	}
	if _, ok := g.instruments[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, s.ID)
	}
	if (s.LHS == "") != (s.RHS == "") {
		return fmt.Errorf("%w: %s", ErrInvalidLegs, s.ID)
	}
	if s.LHS == s.ID || s.RHS == s.ID {
		return fmt.Errorf("%w: %s", ErrSelfReferent, s.ID)
	}
	g.instruments[s.ID] = &Instrument{
		id:          s.ID,
		lhs:         s.LHS,
		rhs:         s.RHS,
		lhsSwitches: append([]string(nil), s.LHSSwitches...),
		rhsSwitches: append([]string(nil), s.RHSSwitches...),
	}
	g.order = append(g.order, s.ID)
	return nil
}

// Get 按 ID 查找合约，未注册返回 ErrNotFound。
func (g *Graph) Get(id string) (*Instrument, error) {
	in, ok := g.instruments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return in, nil
}

// IDs 按注册顺序返回全部合约 ID。
func (g *Graph) IDs() []string {
	return append([]string(nil), g.order...)
}

func (g *Graph) Len() int { return len(g.order) }

// Validate 检查所有引用都已注册，且 switch 列表中的合约确实以本合约为对应腿。
// 关系图中的环是允许的。
func (g *Graph) Validate() error {
	for _, id := range g.order {
		in := g.instruments[id]
		if lhs, rhs, ok := in.Legs(); ok {
			if _, err := g.Get(lhs); err != nil {
				return fmt.Errorf("%s.lhs: %w", id, err)
			}
			if _, err := g.Get(rhs); err != nil {
				return fmt.Errorf("%s.rhs: %w", id, err)
			}
		}
		for _, sid := range in.lhsSwitches {
			s, err := g.Get(sid)
			if err != nil {
				return fmt.Errorf("%s.lhsSwitches: %w", id, err)
			}
			if s.lhs != id || s.rhs == "" {
				return fmt.Errorf("%w: %s is not a spread with lhs=%s", ErrBadSwitch, sid, id)
			}
		}
		for _, sid := range in.rhsSwitches {
			s, err := g.Get(sid)
			if err != nil {
				return fmt.Errorf("%s.rhsSwitches: %w", id, err)
			}
			if s.rhs != id || s.lhs == "" {
				return fmt.Errorf("%w: %s is not a spread with rhs=%s", ErrBadSwitch, sid, id)
			}
		}
	}
	return nil
}

// Generation 当前缓存代数。
func (g *Graph) Generation() uint64 { return g.generation.Load() }

// Invalidate 使全部合约的备忘缓存失效（全局，不区分受影响的合约），返回新代数。
func (g *Graph) Invalidate() uint64 { return g.generation.Add(1) }

// Reference 返回 3YR/5YR/7YR 及其三个价差的参考拓扑。
func Reference() []Spec {
	return []Spec{
		{ID: "3YR", LHSSwitches: []string{"3x5", "3x7"}},
		{ID: "5YR", LHSSwitches: []string{"5x7"}, RHSSwitches: []string{"3x5"}},
		{ID: "7YR", RHSSwitches: []string{"3x7", "5x7"}},
		{ID: "3x5", LHS: "3YR", RHS: "5YR"},
		{ID: "3x7", LHS: "3YR", RHS: "7YR"},
		{ID: "5x7", LHS: "5YR", RHS: "7YR"},
	}
}

// Build 依次注册并校验。
func Build(specs []Spec) (*Graph, error) {
	g := New()
	for _, s := range specs {
		if err := g.Register(s); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

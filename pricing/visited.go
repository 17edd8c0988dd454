package pricing

import (
	"slices"
	"strings"
)

// visited 当前递归路径上已进入的合约集合。按值语义使用：with 返回新集合，不修改原集合，
// 因此兄弟分支之间互不影响。
type visited map[string]struct{}

func (v visited) has(id string) bool {
	_, ok := v[id]
	return ok
}

func (v visited) with(id string) visited {
	next := make(visited, len(v)+1)
	for k := range v {
		next[k] = struct{}{}
	}
	next[id] = struct{}{}
	return next
}

func (v visited) sorted() []string {
	ids := make([]string, 0, len(v))
	for k := range v {
		ids = append(ids, k)
	}
	slices.Sort(ids)
	return ids
}

// key 集合的规范化表示，用于按路径缓存。
func (v visited) key() string {
	return strings.Join(v.sorted(), ",")
}

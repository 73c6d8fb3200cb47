// Package match 按 (规范值, 类型) 对记录分组，保留跨越两个及以上 Block 的组。
package match

import (
	"fmt"
	"sort"

	"telematch/internal/confidence"
	"telematch/pkg/contract"
)

type key struct {
	value string
	ft    contract.FieldType
}

type group struct {
	key    key
	tier   contract.Tier
	blocks []contract.BlockID
	count  int
	comp   map[string][]string
	seen   map[string]map[string]struct{}
}

func (g *group) addBlock(b contract.BlockID) {
	for _, x := range g.blocks {
		if x == b {
			return
		}
	}
	g.blocks = append(g.blocks, b)
}

func (g *group) addComplementary(fields []string, rec contract.Record) {
	for _, f := range fields {
		v, ok := rec.Complementary[f]
		if !ok || v == "" {
			continue
		}
		if g.seen == nil {
			g.seen = make(map[string]map[string]struct{}, len(fields))
			g.comp = make(map[string][]string, len(fields))
		}
		s := g.seen[f]
		if s == nil {
			s = map[string]struct{}{}
			g.seen[f] = s
		}
		if _, dup := s[v]; dup {
			continue
		}
		s[v] = struct{}{}
		g.comp[f] = append(g.comp[f], v)
	}
}

// Cross 产出交叉结果。
//   - 仅等级在 policy.Enabled 内的记录参与分组；
//   - 只跨越一个 Block 的组被整体丢弃；
//   - Tier 依 policy.Resolution 决定（默认取组内首条记录的等级）；
//   - Occurrences 为组内记录数（行 × 列），非去重行数；
//   - Blocks 与补充值均为首见顺序；补充值去重且非空；
//   - 输出按 (Value, Type) 排序。
func Cross(records []contract.Record, policy confidence.Policy, complementary []string) []contract.CrossMatch {
	idx := make(map[key]*group)
	var order []*group
	for _, rec := range records {
		if !policy.Allows(rec.Tier) {
			continue
		}
		k := key{value: rec.Value, ft: rec.Type}
		g, ok := idx[k]
		if !ok {
			g = &group{key: k}
			idx[k] = g
			order = append(order, g)
		}
		g.tier = policy.Resolve(g.tier, rec.Tier)
		g.count++
		g.addBlock(rec.Block)
		g.addComplementary(complementary, rec)
	}

	var out []contract.CrossMatch
	for _, g := range order {
		if len(g.blocks) < 2 {
			continue
		}
		out = append(out, contract.CrossMatch{
			Value:         g.key.value,
			Type:          g.key.ft,
			Tier:          g.tier,
			Blocks:        g.blocks,
			Occurrences:   g.count,
			Complementary: g.comp,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value < out[j].Value
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Verify 检查交叉结果的结构不变量：每项至少两个 Block 且 (Value, Type) 唯一。
func Verify(matches []contract.CrossMatch) error {
	seen := make(map[key]struct{}, len(matches))
	for _, m := range matches {
		if len(m.Blocks) < 2 {
			return fmt.Errorf("%w: match %q/%s spans %d block(s)", contract.ErrInvariantViolation, m.Value, m.Type, len(m.Blocks))
		}
		k := key{value: m.Value, ft: m.Type}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: duplicate match %q/%s", contract.ErrInvariantViolation, m.Value, m.Type)
		}
		seen[k] = struct{}{}
	}
	return nil
}

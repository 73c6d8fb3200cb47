package contract

import (
	"fmt"
	"strings"
)

// Tier: 置信度等级。仅用于过滤/展示的比较，不做数值运算。
// 零值表示“无”（归一化拒绝）。
type Tier uint8

const (
	TierNone Tier = iota
	Low
	Medium
	High
)

func (t Tier) String() string {
	switch t {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "none"
	}
}

// Label 返回导出表格使用的葡语标签。
func (t Tier) Label() string {
	switch t {
	case Low:
		return "baixa"
	case Medium:
		return "média"
	case High:
		return "alta"
	default:
		return ""
	}
}

// ParseTier 接受英文名与葡语标签（含无重音写法）。
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "baixa":
		return Low, nil
	case "medium", "média", "media":
		return Medium, nil
	case "high", "alta":
		return High, nil
	}
	return TierNone, fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, s)
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TierSet: 等级集合（位图）。
type TierSet uint8

// AllTiers 为默认启用集合。
const AllTiers = TierSet(1<<Low | 1<<Medium | 1<<High)

// NewTierSet 由若干等级构造集合。
func NewTierSet(tiers ...Tier) TierSet {
	var s TierSet
	for _, t := range tiers {
		if t == TierNone {
			continue
		}
		s |= 1 << t
	}
	return s
}

// Has 判断集合是否包含 t。
func (s TierSet) Has(t Tier) bool { return t != TierNone && s&(1<<t) != 0 }

// Tiers 以升序返回集合内的等级。
func (s TierSet) Tiers() []Tier {
	var out []Tier
	for _, t := range []Tier{Low, Medium, High} {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

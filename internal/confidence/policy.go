// Package confidence 定义共享的置信度策略：严格/宽松开关、启用等级与组内等级取舍。
package confidence

import (
	"fmt"
	"strings"

	"telematch/pkg/contract"
)

// Resolution: 同一交叉组内等级不一致时的取舍方式。
type Resolution string

const (
	// First: 采用组内首个记录的等级（与原工具一致，默认）。
	First Resolution = "first"
	// Highest: 采用组内最高等级。
	Highest Resolution = "highest"
)

// ParseResolution 解析取舍方式；空串返回默认 First。
func ParseResolution(s string) (Resolution, error) {
	switch Resolution(strings.ToLower(strings.TrimSpace(s))) {
	case "", First:
		return First, nil
	case Highest:
		return Highest, nil
	}
	return "", fmt.Errorf("%w: unknown tier resolution %q", contract.ErrInvalidInput, s)
}

// Policy: 一次运行内只读的置信度策略。
type Policy struct {
	Strict     bool
	Enabled    contract.TierSet
	Resolution Resolution
}

// Default 返回宽松模式、全部等级、首见取舍。
func Default() Policy {
	return Policy{Strict: false, Enabled: contract.AllTiers, Resolution: First}
}

// Allows 判断记录等级是否参与交叉。
func (p Policy) Allows(t contract.Tier) bool { return p.Enabled.Has(t) }

// Resolve 在已有等级 cur 基础上纳入组内下一条记录的等级 next。
func (p Policy) Resolve(cur, next contract.Tier) contract.Tier {
	if cur == contract.TierNone {
		return next
	}
	if p.Resolution == Highest && next > cur {
		return next
	}
	return cur
}

// ParseTiers 解析等级名列表；空列表表示全部等级。
func ParseTiers(names []string) (contract.TierSet, error) {
	if len(names) == 0 {
		return contract.AllTiers, nil
	}
	var set contract.TierSet
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		t, err := contract.ParseTier(n)
		if err != nil {
			return 0, err
		}
		set |= contract.NewTierSet(t)
	}
	if set == 0 {
		return contract.AllTiers, nil
	}
	return set, nil
}

// Package normalize 提供按数据类型的纯函数归一化器。
//
// 所有归一化器共享同一契约：确定性、无副作用、对任意字符串输入都有定义（不 panic）；
// 唯一的行为开关是 strict。拒绝以 ok=false 表达，而不是错误。
// strict 只会移除最低等级（baixa），不会解锁宽松模式下不存在的等级。
package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"telematch/pkg/contract"
)

// Func: 归一化函数签名。ok=false 表示拒绝，此时 value/tier 为零值。
type Func func(raw string, strict bool) (value string, tier contract.Tier, ok bool)

var funcs = map[contract.FieldType]Func{
	contract.Phone:      Phone,
	contract.IMEI:       IMEI,
	contract.Email:      Email,
	contract.Hash:       Hash,
	contract.LocationID: LocationID,
}

// For 返回类型对应的归一化器；未知类型返回 nil。
func For(ft contract.FieldType) Func { return funcs[ft] }

func reject() (string, contract.Tier, bool) { return "", contract.TierNone, false }

func accept(v string, t contract.Tier) (string, contract.Tier, bool) { return v, t, true }

// digitsOnly 仅保留 ASCII 数字。
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Phone 归一化电话号码（巴西格式，+55）。规则按固定优先级依次判定。
func Phone(raw string, strict bool) (string, contract.Tier, bool) {
	d := digitsOnly(raw)
	n := len(d)
	if n < 8 {
		return reject()
	}
	switch {
	case strings.HasPrefix(d, "55") && (n == 12 || n == 13):
		return accept("+"+d, contract.High)
	case strings.HasPrefix(d, "0") && n >= 11:
		return accept("+55"+d[1:], contract.High)
	case n >= 10 && n <= 11:
		return accept("+55"+d, contract.High)
	case n < 10:
		return accept("+55"+d, contract.Medium)
	case n <= 15 && !strict:
		return accept(d, contract.Low)
	}
	return reject()
}

// IMEI 归一化设备标识。
func IMEI(raw string, strict bool) (string, contract.Tier, bool) {
	d := digitsOnly(raw)
	n := len(d)
	switch {
	case n == 15:
		return accept(d, contract.High)
	case n >= 14 && n <= 16:
		if n > 15 {
			d = d[:15]
		}
		return accept(d, contract.Medium)
	case n >= 8 && !strict:
		return accept(d, contract.Low)
	}
	return reject()
}

// Email 归一化邮箱；高置信度时去掉本地部分的 "+标签"。
func Email(raw string, strict bool) (string, contract.Tier, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return reject()
	}
	if local, domain, found := strings.Cut(s, "@"); found {
		if strings.Contains(domain, ".") {
			local, _, _ = strings.Cut(local, "+")
			return accept(local+"@"+domain, contract.High)
		}
		return accept(s, contract.Medium)
	}
	if !strict && (strings.Contains(s, ".") || utf8.RuneCountInString(s) >= 5) {
		return accept(s, contract.Low)
	}
	return reject()
}

var (
	hashStrong = regexp.MustCompile(`^[0-9a-f]{32,128}$`)
	hashLoose  = regexp.MustCompile(`^[0-9a-f]{16,}$`)
	hashRun    = regexp.MustCompile(`[0-9a-f]{8,}`)
)

// Hash 归一化十六进制摘要（大小写不敏感）。
// baixa 等级的规范值是整段字符串，而不是命中的子串。
func Hash(raw string, strict bool) (string, contract.Tier, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return reject()
	case hashStrong.MatchString(s):
		return accept(s, contract.High)
	case hashLoose.MatchString(s):
		return accept(s, contract.Medium)
	case !strict && hashRun.MatchString(s):
		return accept(s, contract.Low)
	}
	return reject()
}

// LocationID 归一化位置标识（大写、去首尾空白）。
func LocationID(raw string, strict bool) (string, contract.Tier, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	n := utf8.RuneCountInString(s)
	switch {
	case n >= 4:
		return accept(s, contract.High)
	case n > 0 && !strict:
		return accept(s, contract.Low)
	}
	return reject()
}

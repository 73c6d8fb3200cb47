// Package extract 遍历各 Block 的表格，对命中列逐格归一化并产出记录。
package extract

import (
	"telematch/internal/heuristics"
	"telematch/internal/normalize"
	"telematch/pkg/contract"
)

// Settings: 一次抽取的只读参数。
type Settings struct {
	Kind contract.AnalysisKind
	// Complementary: 已解析的补充字段名（见 heuristics.ParseComplementary）。
	Complementary []string
	Strict        bool
}

type primary struct {
	ft   contract.FieldType
	fn   normalize.Func
	cols []string
}

// Run 依 Block → Table → 行 → 类型 → 命中列 的顺序产出记录。
// 同一行可产出多条记录（多类型、同类型多列）：列名歧义以过量抽取处理。
func Run(blocks []contract.Block, set Settings) []contract.Record {
	var out []contract.Record
	for _, b := range blocks {
		for _, t := range b.Tables {
			out = appendTable(out, t, set)
		}
	}
	return out
}

// Table 抽取单个表格。
func Table(t contract.Table, set Settings) []contract.Record {
	return appendTable(nil, t, set)
}

func appendTable(out []contract.Record, t contract.Table, set Settings) []contract.Record {
	var prims []primary
	for _, ft := range set.Kind.Fields() {
		cols := heuristics.MatchColumns(t.Columns, heuristics.PrimaryKeywords(ft))
		if len(cols) == 0 {
			continue
		}
		prims = append(prims, primary{ft: ft, fn: normalize.For(ft), cols: cols})
	}
	if len(prims) == 0 {
		return out
	}
	// 补充字段：最左命中列；无命中则不出现该键
	comp := make(map[string]string, len(set.Complementary))
	for _, f := range set.Complementary {
		if col, ok := heuristics.FirstColumn(t.Columns, heuristics.ComplementaryKeywords(f)); ok {
			comp[f] = col
		}
	}
	for _, row := range t.Rows {
		// 同一行产出的记录共享同一只读映射
		var extra map[string]string
		for _, p := range prims {
			for _, col := range p.cols {
				raw := row.Get(col)
				v, tier, ok := p.fn(raw, set.Strict)
				if !ok {
					continue
				}
				if extra == nil && len(comp) > 0 {
					extra = complementary(row, comp)
				}
				out = append(out, contract.Record{
					Value:         v,
					Type:          p.ft,
					Tier:          tier,
					Block:         t.Block,
					File:          t.File,
					Raw:           raw,
					Complementary: extra,
				})
			}
		}
	}
	return out
}

func complementary(row contract.Row, cols map[string]string) map[string]string {
	m := make(map[string]string, len(cols))
	for f, col := range cols {
		m[f] = row.Get(col)
	}
	return m
}

// Package tabular 把结果展开为二维表（表头 + 文本行），供表格类导出器共用。
// 列名沿用调查人员熟悉的葡语表头；置信度列使用 alta/média/baixa 标签。
package tabular

import (
	"strconv"
	"strings"

	"telematch/pkg/contract"
)

const (
	// MatchesName / RecordsName: 交叉结果与全部记录两份工件的基名。
	MatchesName = "cruzamentos_telematicos"
	RecordsName = "todos_registros_extraidos"
	// MatchesSheet / RecordsSheet: 工作表名。
	MatchesSheet = "Cruzamentos"
	RecordsSheet = "Todos os Registros"
	// ListSep: 单元格内多值分隔符（blocos、补充字段集合）。
	ListSep = "; "
	// TierColumn: 置信度列在两张表中的下标。
	TierColumn = 2
)

// MatchHeader 返回交叉结果表头。
func MatchHeader(comp []string) []string {
	return append([]string{"valor", "tipo", "confianca", "blocos", "ocorrencias"}, comp...)
}

// MatchRow 展开一条交叉结果。
func MatchRow(m contract.CrossMatch, comp []string) []string {
	blocks := make([]string, len(m.Blocks))
	for i, b := range m.Blocks {
		blocks[i] = string(b)
	}
	row := []string{m.Value, string(m.Type), m.Tier.Label(), strings.Join(blocks, ListSep), strconv.Itoa(m.Occurrences)}
	for _, f := range comp {
		row = append(row, strings.Join(m.Complementary[f], ListSep))
	}
	return row
}

// RecordHeader 返回全部记录表头。
func RecordHeader(comp []string) []string {
	return append([]string{"valor", "tipo", "confianca", "bloco", "arquivo", "valor_original"}, comp...)
}

// RecordRow 展开一条记录；缺失的补充字段为空串。
func RecordRow(r contract.Record, comp []string) []string {
	row := []string{r.Value, string(r.Type), r.Tier.Label(), string(r.Block), string(r.File), r.Raw}
	for _, f := range comp {
		row = append(row, r.Complementary[f])
	}
	return row
}

// ArtifactName 拼接前缀、基名与扩展名。
func ArtifactName(prefix, base, ext string) contract.ArtifactID {
	return contract.ArtifactID(prefix + base + ext)
}

// Package xlsx 将结果导出为两份工作簿：交叉结果与全部记录，置信度单元格按等级着色。
package xlsx

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"telematch/pkg/contract"
	"telematch/plugins/exporter/tabular"
)

// Options: XLSX 导出选项。
type Options struct {
	// Prefix: 工件文件名前缀（例如案件编号）。
	Prefix string `json:"prefix"`
	// SkipRecords: 只导出交叉结果工作簿。
	SkipRecords bool `json:"skip_records"`
}

// 等级配色：背景 / 字体。
var tierFill = map[contract.Tier][2]string{
	contract.High:   {"#C6EFCE", "#006100"},
	contract.Medium: {"#FFEB9C", "#9C6500"},
	contract.Low:    {"#FFC7CE", "#9C0006"},
}

// MaxRows: 单个工作表的行数上限（含表头）。
const MaxRows = excelize.TotalRows

type Exporter struct {
	prefix      string
	skipRecords bool
}

var _ contract.Exporter = (*Exporter)(nil)

func New(opts *Options) *Exporter {
	if opts == nil {
		return &Exporter{}
	}
	return &Exporter{prefix: opts.Prefix, skipRecords: opts.SkipRecords}
}

// Export 生成交叉结果工作簿与（可选）全部记录工作簿。
func (e *Exporter) Export(ctx context.Context, res *contract.Result) ([]contract.Artifact, error) {
	comp := res.Complementary
	rows := make([][]string, 0, len(res.Matches))
	tiers := make([]contract.Tier, 0, len(res.Matches))
	for _, m := range res.Matches {
		rows = append(rows, tabular.MatchRow(m, comp))
		tiers = append(tiers, m.Tier)
	}
	buf, err := workbook(ctx, tabular.MatchesSheet, tabular.MatchHeader(comp), rows, tiers)
	if err != nil {
		return nil, fmt.Errorf("xlsx %s: %w", tabular.MatchesName, err)
	}
	out := []contract.Artifact{{ID: tabular.ArtifactName(e.prefix, tabular.MatchesName, ".xlsx"), Body: buf}}
	if e.skipRecords {
		return out, nil
	}

	rows = make([][]string, 0, len(res.Records))
	tiers = make([]contract.Tier, 0, len(res.Records))
	for _, r := range res.Records {
		rows = append(rows, tabular.RecordRow(r, comp))
		tiers = append(tiers, r.Tier)
	}
	buf, err = workbook(ctx, tabular.RecordsSheet, tabular.RecordHeader(comp), rows, tiers)
	if err != nil {
		return nil, fmt.Errorf("xlsx %s: %w", tabular.RecordsName, err)
	}
	return append(out, contract.Artifact{ID: tabular.ArtifactName(e.prefix, tabular.RecordsName, ".xlsx"), Body: buf}), nil
}

// workbook 以流式写入构建单工作表工作簿；tiers[i] 决定第 i 行置信度单元格的样式。
func workbook(ctx context.Context, sheet string, header []string, rows [][]string, tiers []contract.Tier) (*bytes.Buffer, error) {
	if len(rows)+1 > MaxRows {
		return nil, fmt.Errorf("%w: %d rows exceed the worksheet limit", contract.ErrInvalidInput, len(rows))
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	styles := make(map[contract.Tier]int, len(tierFill))
	for tier, c := range tierFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{c[0]}},
			Font: &excelize.Font{Color: c[1]},
		})
		if err != nil {
			return nil, err
		}
		styles[tier] = id
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, err
	}
	if err := sw.SetColWidth(1, len(header), 22); err != nil {
		return nil, err
	}
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", cells); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		if id, ok := styles[tiers[i]]; ok && tabular.TierColumn < len(cells) {
			cells[tabular.TierColumn] = excelize.Cell{StyleID: id, Value: row[tabular.TierColumn]}
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(axis, cells); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}
	return f.WriteToBuffer()
}

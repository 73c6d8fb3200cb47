// Package csv 将结果导出为两份分隔文本：交叉结果与全部记录。
package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"telematch/pkg/contract"
	"telematch/plugins/exporter/tabular"
)

// Options: CSV 导出选项。
type Options struct {
	// Prefix: 工件文件名前缀。
	Prefix string `json:"prefix"`
	// Delimiter: 字段分隔符（单字符，或 "tab"）。默认 ';'，便于葡语区域的表格软件直接打开。
	Delimiter string `json:"delimiter"`
	// BOM: 写入 UTF-8 BOM，Excel 据此识别编码。
	BOM bool `json:"bom"`
	// SkipRecords: 只导出交叉结果。
	SkipRecords bool `json:"skip_records"`
}

type Exporter struct {
	prefix      string
	comma       rune
	bom         bool
	skipRecords bool
}

var _ contract.Exporter = (*Exporter)(nil)

// New 校验分隔符并构造导出器。
func New(opts *Options) (*Exporter, error) {
	e := &Exporter{comma: ';'}
	if opts == nil {
		return e, nil
	}
	e.prefix, e.bom, e.skipRecords = opts.Prefix, opts.BOM, opts.SkipRecords
	switch d := opts.Delimiter; {
	case d == "":
	case strings.EqualFold(d, "tab"):
		e.comma = '\t'
	case utf8.RuneCountInString(d) == 1:
		r, _ := utf8.DecodeRuneInString(d)
		if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
			return nil, fmt.Errorf("%w: csv delimiter %q", contract.ErrInvalidInput, d)
		}
		e.comma = r
	default:
		return nil, fmt.Errorf("%w: csv delimiter %q", contract.ErrInvalidInput, d)
	}
	return e, nil
}

func (e *Exporter) Export(ctx context.Context, res *contract.Result) ([]contract.Artifact, error) {
	comp := res.Complementary
	rows := make([][]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		rows = append(rows, tabular.MatchRow(m, comp))
	}
	buf, err := e.encode(ctx, tabular.MatchHeader(comp), rows)
	if err != nil {
		return nil, fmt.Errorf("csv %s: %w", tabular.MatchesName, err)
	}
	out := []contract.Artifact{{ID: tabular.ArtifactName(e.prefix, tabular.MatchesName, ".csv"), Body: buf}}
	if e.skipRecords {
		return out, nil
	}
	rows = make([][]string, 0, len(res.Records))
	for _, r := range res.Records {
		rows = append(rows, tabular.RecordRow(r, comp))
	}
	buf, err = e.encode(ctx, tabular.RecordHeader(comp), rows)
	if err != nil {
		return nil, fmt.Errorf("csv %s: %w", tabular.RecordsName, err)
	}
	return append(out, contract.Artifact{ID: tabular.ArtifactName(e.prefix, tabular.RecordsName, ".csv"), Body: buf}), nil
}

func (e *Exporter) encode(ctx context.Context, header []string, rows [][]string) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if e.bom {
		buf.WriteString("\ufeff")
	}
	w := csv.NewWriter(&buf)
	w.Comma = e.comma
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return &buf, nil
}

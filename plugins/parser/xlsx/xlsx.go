// Package xlsx 使用 excelize 将工作簿的一个工作表解码为原始网格。
package xlsx

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"telematch/pkg/contract"
)

// Options: XLSX 解析选项。
type Options struct {
	// Sheet: 读取的工作表名；为空时读取第一个工作表。
	Sheet string `json:"sheet"`
	// Formatted: true 时读取按单元格格式渲染后的文本；默认读取原始值，
	// 避免长数字（电话、IMEI）被显示格式截断为科学计数法。
	Formatted bool `json:"formatted"`
}

type Parser struct {
	sheet     string
	formatted bool
}

var _ contract.Parser = (*Parser)(nil)

func New(opts *Options) *Parser {
	if opts == nil {
		return &Parser{}
	}
	return &Parser{sheet: strings.TrimSpace(opts.Sheet), formatted: opts.Formatted}
}

// Exts 返回负责的扩展名。
func (p *Parser) Exts() []string { return []string{".xlsx", ".xlsm"} }

// Parse 打开工作簿并返回所选工作表的全部行。
func (p *Parser) Parse(ctx context.Context, fileID contract.FileID, r io.Reader) (contract.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", contract.ErrMalformedTable, fileID, err)
	}
	defer f.Close()

	sheet := p.sheet
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: %s: workbook has no sheets", contract.ErrMalformedTable, fileID)
		}
		sheet = list[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: !p.formatted})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: sheet %q: %w", contract.ErrMalformedTable, fileID, sheet, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s: sheet %q is empty", contract.ErrMalformedTable, fileID, sheet)
	}
	return contract.Grid(rows), nil
}

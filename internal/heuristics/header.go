package heuristics

import (
	"strconv"
	"strings"

	"telematch/pkg/contract"
)

const (
	// MaxHeaderProbe: 依次尝试的候选表头行数（0..14）。
	MaxHeaderProbe = 15
	// PreviewRows: 每个候选表头之后参与判定的数据行数。
	PreviewRows = 5
)

const anonymousPrefix = "unnamed: "

// nullMarkers: 视为缺失值的单元格文本（与常见表格库的默认缺失值集合一致）。
var nullMarkers = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsNull 判断单元格是否为缺失值标记。
func IsNull(cell string) bool {
	_, ok := nullMarkers[strings.TrimSpace(cell)]
	return ok
}

// DetectHeaderRow 在原始行网格中定位表头行。
// 对候选行 0..14：以该行为表头、取其后 5 行预览，宽度为表头与预览中的最大单元格数；
// 匿名列 = 表头中的空单元格 + 超出表头长度的位置。
// 首个满足 宽度>=2 且 匿名列 < 宽度/2（整除）的候选被接受；否则回退为 0。
func DetectHeaderRow(rows [][]string) int {
	for i := 0; i < MaxHeaderProbe && i < len(rows); i++ {
		header := rows[i]
		width := len(header)
		end := i + 1 + PreviewRows
		if end > len(rows) {
			end = len(rows)
		}
		for _, r := range rows[i+1 : end] {
			if len(r) > width {
				width = len(r)
			}
		}
		if width < 2 {
			continue
		}
		anon := width - len(header)
		for _, c := range header {
			if strings.TrimSpace(c) == "" {
				anon++
			}
		}
		if anon < width/2 {
			return i
		}
	}
	return 0
}

// Tabulate 以 headerRow 为表头把原始网格转换为表。
// 列名去首尾空白并小写；空列名记为 "unnamed: N"；重名依次追加 ".1"、".2"。
// 完全空白的数据行被丢弃；缺失值标记统一为 ""。
func Tabulate(file contract.FileID, block contract.BlockID, rows [][]string, headerRow int) contract.Table {
	t := contract.Table{File: file, Block: block}
	if headerRow < 0 || headerRow >= len(rows) {
		return t
	}
	header := rows[headerRow]
	data := rows[headerRow+1:]
	width := len(header)
	for _, r := range data {
		if len(r) > width {
			width = len(r)
		}
	}
	t.Columns = columnNames(header, width)
	for _, r := range data {
		row := make(contract.Row, width)
		blank := true
		for j, col := range t.Columns {
			v := ""
			if j < len(r) && !IsNull(r[j]) {
				v = r[j]
				if strings.TrimSpace(v) != "" {
					blank = false
				}
			}
			row[col] = v
		}
		if blank {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func columnNames(header []string, width int) []string {
	cols := make([]string, width)
	seen := make(map[string]int, width)
	for j := 0; j < width; j++ {
		name := ""
		if j < len(header) {
			name = strings.ToLower(strings.TrimSpace(header[j]))
		}
		if name == "" {
			name = anonymousPrefix + strconv.Itoa(j)
		}
		if n, dup := seen[name]; dup {
			base := name
			for {
				n++
				name = base + "." + strconv.Itoa(n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[base] = n
		}
		seen[name] = 0
		cols[j] = name
	}
	return cols
}

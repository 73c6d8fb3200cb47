// Package csv 将带分隔符的文本文件解码为原始网格。
// 处理 UTF-8 BOM、分隔符嗅探与 Windows-1252 / Latin-1 回退。
package csv

import (
	"bytes"
	"context"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"telematch/pkg/contract"
)

// Options: CSV 解析选项。
type Options struct {
	// Delimiter: 固定分隔符（单字符，"\t" 可写作 "tab"）；为空时自动嗅探。
	Delimiter string `json:"delimiter"`
	// Encoding: utf-8 | latin1 | windows-1252 | auto（默认）。
	// auto: 内容不是合法 UTF-8 时按 Windows-1252 解码。
	Encoding string `json:"encoding"`
	// SniffLines: 参与嗅探的非空行数；<=0 使用 20。
	SniffLines int `json:"sniff_lines"`
	// Exts: 负责的扩展名；默认 [".csv", ".txt", ".tsv"]。
	Exts []string `json:"exts"`
}

// Candidates: 自动嗅探时尝试的分隔符（同分时按此顺序优先）。
var Candidates = []rune{',', ';', '\t', '|'}

type Parser struct {
	delim      rune
	enc        encoding.Encoding
	auto       bool
	sniffLines int
	exts       []string
}

var _ contract.Parser = (*Parser)(nil)

// New 校验选项并构造解析器。
func New(opts *Options) (*Parser, error) {
	if opts == nil {
		opts = &Options{}
	}
	p := &Parser{sniffLines: opts.SniffLines, exts: []string{".csv", ".txt", ".tsv"}}
	if p.sniffLines <= 0 {
		p.sniffLines = 20
	}
	if len(opts.Exts) > 0 {
		p.exts = normalizeExts(opts.Exts)
	}
	switch d := opts.Delimiter; strings.ToLower(d) {
	case "":
	case "tab", `\t`:
		p.delim = '\t'
	default:
		r, n := utf8.DecodeRuneInString(d)
		if n != len(d) || r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
			return nil, fmt.Errorf("%w: csv delimiter must be a single character, got %q", contract.ErrInvalidInput, d)
		}
		p.delim = r
	}
	switch strings.ToLower(strings.TrimSpace(opts.Encoding)) {
	case "", "auto":
		p.auto = true
	case "utf-8", "utf8":
	case "latin1", "latin-1", "iso-8859-1":
		p.enc = charmap.ISO8859_1
	case "windows-1252", "cp1252":
		p.enc = charmap.Windows1252
	default:
		return nil, fmt.Errorf("%w: unknown csv encoding %q", contract.ErrInvalidInput, opts.Encoding)
	}
	return p, nil
}

func normalizeExts(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// Exts 返回负责的扩展名。
func (p *Parser) Exts() []string { return append([]string(nil), p.exts...) }

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse 读取全部内容并解码为网格（行长度可不一致，空行被跳过）。
func (p *Parser) Parse(ctx context.Context, fileID contract.FileID, r io.Reader) (contract.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	text, err := p.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", fileID, err)
	}
	delim := p.delim
	if delim == 0 {
		delim = Sniff(text, p.sniffLines)
	}

	cr := stdcsv.NewReader(strings.NewReader(text))
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	var grid contract.Grid
	for {
		if len(grid)%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", contract.ErrMalformedTable, fileID, err)
		}
		grid = append(grid, rec)
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: %s: no rows", contract.ErrMalformedTable, fileID)
	}
	return grid, nil
}

func (p *Parser) decode(raw []byte) (string, error) {
	enc := p.enc
	if enc == nil && p.auto && !utf8.Valid(raw) {
		enc = charmap.Windows1252
	}
	if enc == nil {
		return string(raw), nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Sniff 在前 maxLines 个非空行上选择分隔符。
// 对每个候选统计每行（引号外）的出现次数，取最常见的非零次数作为该候选的“列宽”，
// 以出现该次数的行数为主序、次数为次序打分；均为零时回退逗号。
func Sniff(text string, maxLines int) rune {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
		if len(lines) == maxLines {
			break
		}
	}
	best, bestRows, bestCount := ',', 0, 0
	for _, c := range Candidates {
		freq := map[int]int{}
		for _, l := range lines {
			if n := countOutsideQuotes(l, c); n > 0 {
				freq[n]++
			}
		}
		rows, count := 0, 0
		for n, k := range freq {
			if k > rows || (k == rows && n > count) {
				rows, count = k, n
			}
		}
		if rows > bestRows || (rows == bestRows && count > bestCount) {
			best, bestRows, bestCount = c, rows, count
		}
	}
	return best
}

func countOutsideQuotes(line string, c rune) int {
	n := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == c && !quoted:
			n++
		}
	}
	return n
}

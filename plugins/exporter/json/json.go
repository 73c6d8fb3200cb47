// Package json 将完整结果导出为单个 JSON 文档（含运行结果、交叉、记录与文件错误）。
package json

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"telematch/pkg/contract"
)

// Name: 工件基名。
const Name = "resultado.json"

// Options: JSON 导出选项。
type Options struct {
	Prefix string `json:"prefix"`
	// Indent: 缩进空格数；0 输出紧凑格式。
	Indent int `json:"indent"`
	// SkipRecords: 省略 records 数组。
	SkipRecords bool `json:"skip_records"`
}

type Exporter struct {
	prefix      string
	indent      int
	skipRecords bool
}

var _ contract.Exporter = (*Exporter)(nil)

func New(opts *Options) (*Exporter, error) {
	if opts == nil {
		return &Exporter{}, nil
	}
	if opts.Indent < 0 || opts.Indent > 8 {
		return nil, fmt.Errorf("%w: json indent %d out of range [0,8]", contract.ErrInvalidInput, opts.Indent)
	}
	return &Exporter{prefix: opts.Prefix, indent: opts.Indent, skipRecords: opts.SkipRecords}, nil
}

// Document 是导出的 JSON 结构；读取方可直接解码到该类型。
type Document struct {
	Outcome       contract.Outcome `json:"outcome"`
	Tables        int              `json:"tables"`
	Complementary []string         `json:"complementary"`
	Matches       []Match          `json:"matches"`
	Records       []Record         `json:"records,omitempty"`
	FileErrors    []FileError      `json:"file_errors"`
}

type Match struct {
	Value         string              `json:"value"`
	Type          contract.FieldType  `json:"type"`
	Tier          contract.Tier       `json:"tier"`
	Blocks        []contract.BlockID  `json:"blocks"`
	Occurrences   int                 `json:"occurrences"`
	Complementary map[string][]string `json:"complementary,omitempty"`
}

type Record struct {
	Value         string             `json:"value"`
	Type          contract.FieldType `json:"type"`
	Tier          contract.Tier      `json:"tier"`
	Block         contract.BlockID   `json:"block"`
	File          contract.FileID    `json:"file"`
	Raw           string             `json:"raw"`
	Complementary map[string]string  `json:"complementary,omitempty"`
}

type FileError struct {
	File  contract.FileID  `json:"file"`
	Block contract.BlockID `json:"block"`
	Error string           `json:"error"`
}

// NewDocument 把结果转换为导出结构；空集合输出为 [] 而非 null。
func NewDocument(res *contract.Result, withRecords bool) Document {
	doc := Document{
		Outcome:       res.Outcome,
		Tables:        res.Tables,
		Complementary: append([]string{}, res.Complementary...),
		Matches:       make([]Match, 0, len(res.Matches)),
		FileErrors:    make([]FileError, 0, len(res.FileErrors)),
	}
	for _, m := range res.Matches {
		doc.Matches = append(doc.Matches, Match{
			Value: m.Value, Type: m.Type, Tier: m.Tier, Blocks: m.Blocks,
			Occurrences: m.Occurrences, Complementary: m.Complementary,
		})
	}
	if withRecords {
		doc.Records = make([]Record, 0, len(res.Records))
		for _, r := range res.Records {
			doc.Records = append(doc.Records, Record{
				Value: r.Value, Type: r.Type, Tier: r.Tier, Block: r.Block,
				File: r.File, Raw: r.Raw, Complementary: r.Complementary,
			})
		}
	}
	for _, fe := range res.FileErrors {
		msg := ""
		if fe.Err != nil {
			msg = fe.Err.Error()
		}
		doc.FileErrors = append(doc.FileErrors, FileError{File: fe.File, Block: fe.Block, Error: msg})
	}
	return doc
}

func (e *Exporter) Export(ctx context.Context, res *contract.Result) ([]contract.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if e.indent > 0 {
		enc.SetIndent("", string(bytes.Repeat([]byte{' '}, e.indent)))
	}
	if err := enc.Encode(NewDocument(res, !e.skipRecords)); err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return []contract.Artifact{{ID: contract.ArtifactID(e.prefix + Name), Body: &buf}}, nil
}

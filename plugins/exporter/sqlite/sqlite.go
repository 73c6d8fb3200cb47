// Package sqlite 将结果导出为单个 SQLite 数据库文件，便于后续以 SQL 复查交叉关系。
//
// 表结构：
//   - matches(id, value, type, tier, occurrences, <补充字段>...)
//   - match_blocks(match_id, ord, block)
//   - records(id, value, type, tier, block, file, raw, <补充字段>...)
//   - file_errors(file, block, error)
//   - meta(key, value)
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"telematch/pkg/contract"
	"telematch/plugins/exporter/tabular"
)

// Name: 工件基名。
const Name = "resultado.sqlite"

// Options: SQLite 导出选项。
type Options struct {
	Prefix string `json:"prefix"`
	// TempDir: 构建数据库时使用的临时目录；空为系统默认。
	TempDir string `json:"temp_dir"`
	// SkipRecords: 不写 records 表的数据行（表仍创建）。
	SkipRecords bool `json:"skip_records"`
}

type Exporter struct {
	prefix      string
	tempDir     string
	skipRecords bool
}

var _ contract.Exporter = (*Exporter)(nil)

func New(opts *Options) *Exporter {
	if opts == nil {
		return &Exporter{}
	}
	return &Exporter{prefix: opts.Prefix, tempDir: opts.TempDir, skipRecords: opts.SkipRecords}
}

// Export 在临时文件中建库写入，读回字节后删除临时文件。
func (e *Exporter) Export(ctx context.Context, res *contract.Result) ([]contract.Artifact, error) {
	tmp, err := os.CreateTemp(e.tempDir, "telematch-*.sqlite")
	if err != nil {
		return nil, fmt.Errorf("sqlite temp: %w", err)
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(path)

	if err := e.build(ctx, path, res); err != nil {
		return nil, fmt.Errorf("sqlite %s: %w", Name, err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sqlite read back: %w", err)
	}
	return []contract.Artifact{{ID: contract.ArtifactID(e.prefix + Name), Body: bytes.NewReader(b)}}, nil
}

func (e *Exporter) build(ctx context.Context, path string, res *contract.Result) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	comp := res.Complementary
	extra := compColumns(comp)
	ddl := []string{
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE matches (id INTEGER PRIMARY KEY, value TEXT NOT NULL, type TEXT NOT NULL, tier TEXT NOT NULL, occurrences INTEGER NOT NULL` + extra + `, UNIQUE(value, type))`,
		`CREATE TABLE match_blocks (match_id INTEGER NOT NULL REFERENCES matches(id), ord INTEGER NOT NULL, block TEXT NOT NULL, PRIMARY KEY(match_id, ord))`,
		`CREATE TABLE records (id INTEGER PRIMARY KEY, value TEXT NOT NULL, type TEXT NOT NULL, tier TEXT NOT NULL, block TEXT NOT NULL, file TEXT NOT NULL, raw TEXT NOT NULL` + extra + `)`,
		`CREATE TABLE file_errors (file TEXT NOT NULL, block TEXT NOT NULL, error TEXT NOT NULL)`,
		`CREATE INDEX idx_records_value ON records(value, type)`,
		`CREATE INDEX idx_match_blocks_block ON match_blocks(block)`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	meta := [][2]string{
		{"outcome", string(res.Outcome)},
		{"tables", fmt.Sprint(res.Tables)},
		{"complementary", strings.Join(comp, ",")},
	}
	for _, kv := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return err
		}
	}

	mStmt, err := tx.PrepareContext(ctx, insertSQL("matches", []string{"id", "value", "type", "tier", "occurrences"}, comp))
	if err != nil {
		return err
	}
	defer mStmt.Close()
	bStmt, err := tx.PrepareContext(ctx, `INSERT INTO match_blocks (match_id, ord, block) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer bStmt.Close()
	for i, m := range res.Matches {
		id := i + 1
		args := []any{id, m.Value, string(m.Type), m.Tier.Label(), m.Occurrences}
		for _, f := range comp {
			args = append(args, strings.Join(m.Complementary[f], tabular.ListSep))
		}
		if _, err := mStmt.ExecContext(ctx, args...); err != nil {
			return err
		}
		for j, b := range m.Blocks {
			if _, err := bStmt.ExecContext(ctx, id, j, string(b)); err != nil {
				return err
			}
		}
	}

	if !e.skipRecords {
		rStmt, err := tx.PrepareContext(ctx, insertSQL("records", []string{"id", "value", "type", "tier", "block", "file", "raw"}, comp))
		if err != nil {
			return err
		}
		defer rStmt.Close()
		for i, r := range res.Records {
			args := []any{i + 1, r.Value, string(r.Type), r.Tier.Label(), string(r.Block), string(r.File), r.Raw}
			for _, f := range comp {
				args = append(args, r.Complementary[f])
			}
			if _, err := rStmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
	}

	for _, fe := range res.FileErrors {
		msg := ""
		if fe.Err != nil {
			msg = fe.Err.Error()
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO file_errors (file, block, error) VALUES (?, ?, ?)`,
			string(fe.File), string(fe.Block), msg); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// compColumns 生成补充字段列定义（带前缀避免与固定列冲突）。
func compColumns(comp []string) string {
	var b strings.Builder
	for _, f := range comp {
		fmt.Fprintf(&b, ", %s TEXT NOT NULL DEFAULT ''", quoteIdent("comp_"+f))
	}
	return b.String()
}

func insertSQL(table string, fixed, comp []string) string {
	cols := make([]string, 0, len(fixed)+len(comp))
	for _, c := range fixed {
		cols = append(cols, quoteIdent(c))
	}
	for _, f := range comp {
		cols = append(cols, quoteIdent("comp_"+f))
	}
	ph := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
	return `INSERT INTO ` + table + ` (` + strings.Join(cols, ",") + `) VALUES (` + ph + `)`
}

func quoteIdent(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

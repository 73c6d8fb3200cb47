package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telematch/pkg/contract"
)

// reopen 把工件写回磁盘后打开，供断言查询。
func reopen(t *testing.T, a contract.Artifact) *sql.DB {
	t.Helper()
	b, err := io.ReadAll(a.Body)
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), string(a.ID))
	require.NoError(t, os.WriteFile(p, b, 0o644))
	db, err := sql.Open("sqlite", p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestExportTables(t *testing.T) {
	res := &contract.Result{
		Outcome:       contract.OutcomeMatched,
		Tables:        2,
		Complementary: []string{"name", "location"},
		Records: []contract.Record{
			{Value: "+5581991234567", Type: contract.Phone, Tier: contract.High, Block: "A", File: "a.csv", Raw: "81 99123-4567", Complementary: map[string]string{"name": "Ana"}},
			{Value: "+5581991234567", Type: contract.Phone, Tier: contract.High, Block: "B", File: "b.csv", Raw: "5581991234567"},
		},
		Matches: []contract.CrossMatch{{
			Value: "+5581991234567", Type: contract.Phone, Tier: contract.High,
			Blocks: []contract.BlockID{"A", "B"}, Occurrences: 2,
			Complementary: map[string][]string{"name": {"Ana"}},
		}},
		FileErrors: []contract.FileError{{File: "c.xlsx", Block: "C", Err: errors.New("boom")}},
	}
	dir := t.TempDir()
	arts, err := New(&Options{Prefix: "p_", TempDir: dir}).Export(context.Background(), res)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, contract.ArtifactID("p_resultado.sqlite"), arts[0].ID)

	// 临时文件已清理
	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, left)

	db := reopen(t, arts[0])
	var value, tier, name string
	var occ int
	require.NoError(t, db.QueryRow(`SELECT value, tier, occurrences, comp_name FROM matches`).Scan(&value, &tier, &occ, &name))
	assert.Equal(t, "+5581991234567", value)
	assert.Equal(t, "alta", tier)
	assert.Equal(t, 2, occ)
	assert.Equal(t, "Ana", name)

	rows, err := db.Query(`SELECT block FROM match_blocks WHERE match_id = 1 ORDER BY ord`)
	require.NoError(t, err)
	var blocks []string
	for rows.Next() {
		var b string
		require.NoError(t, rows.Scan(&b))
		blocks = append(blocks, b)
	}
	require.NoError(t, rows.Err())
	_ = rows.Close()
	assert.Equal(t, []string{"A", "B"}, blocks)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM records WHERE comp_location = ''`).Scan(&n))
	assert.Equal(t, 2, n)
	var msg, outcome string
	require.NoError(t, db.QueryRow(`SELECT error FROM file_errors`).Scan(&msg))
	assert.Equal(t, "boom", msg)
	require.NoError(t, db.QueryRow(`SELECT value FROM meta WHERE key = 'outcome'`).Scan(&outcome))
	assert.Equal(t, "matched", outcome)
}

func TestExportSkipRecords(t *testing.T) {
	res := &contract.Result{
		Outcome: contract.OutcomeNoMatches,
		Records: []contract.Record{{Value: "x@y.z", Type: contract.Email, Tier: contract.High, Block: "A", File: "a.csv", Raw: "x@y.z"}},
	}
	arts, err := New(&Options{SkipRecords: true, TempDir: t.TempDir()}).Export(context.Background(), res)
	require.NoError(t, err)
	db := reopen(t, arts[0])
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n))
	assert.Zero(t, n)
}

func TestExportCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&Options{TempDir: t.TempDir()}).Export(ctx, &contract.Result{})
	assert.ErrorIs(t, err, context.Canceled)
}

package filesystem

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"telematch/pkg/contract"
)

type visit struct {
	id   string
	data string
	err  error
}

func collect(t *testing.T, r *FileSystem, roots ...string) []visit {
	t.Helper()
	var out []visit
	err := r.Iterate(context.Background(), roots, func(id contract.FileID, rc io.ReadCloser, openErr error) error {
		v := visit{id: string(id), err: openErr}
		if rc != nil {
			b, _ := io.ReadAll(rc)
			rc.Close()
			v.data = string(b)
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	return out
}

// TestIterateSingleFile 读取单文件（不受扩展名过滤）
func TestIterateSingleFile(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "a.txt")
	os.WriteFile(fp, []byte("hello"), 0o644)
	got := collect(t, New(nil), fp)
	if len(got) != 1 || got[0].data != "hello" || got[0].err != nil {
		t.Fatalf("iterate: %#v", got)
	}
	if got[0].id != string(contract.NormalizeFileID(fp)) {
		t.Fatalf("file id mismatch %s", got[0].id)
	}
}

// TestIterateDirOrderAndExts 目录：先子目录后文件、字典序、仅收录允许的扩展名
func TestIterateDirOrderAndExts(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "b.csv"), []byte("b"), 0o644)
	os.WriteFile(filepath.Join(dir, "a.XLSX"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("n"), 0o644)
	os.WriteFile(filepath.Join(dir, "~$a.xlsx"), []byte("lock"), 0o644)
	sub := filepath.Join(dir, "sub")
	os.Mkdir(sub, 0o755)
	os.WriteFile(filepath.Join(sub, "z.csv"), []byte("z"), 0o644)

	got := collect(t, New(nil), dir)
	var names []string
	for _, v := range got {
		names = append(names, filepath.Base(v.id))
	}
	if strings.Join(names, ",") != "z.csv,a.XLSX,b.csv" {
		t.Fatalf("unexpected order %v", names)
	}
}

// TestAllowExtsOption 自定义扩展名（自动补点）
func TestAllowExtsOption(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.csv"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.tsv"), []byte("b"), 0o644)
	got := collect(t, New(&Options{AllowExts: []string{"TSV", ""}}), dir)
	if len(got) != 1 || filepath.Base(got[0].id) != "b.tsv" {
		t.Fatalf("allow exts: %#v", got)
	}
}

// TestExcludeDir 跳过目录
func TestExcludeDir(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "keep.csv"), []byte("k"), 0o644)
	skipDir := filepath.Join(dir, "Skip")
	os.Mkdir(skipDir, 0o755)
	os.WriteFile(filepath.Join(skipDir, "bad.csv"), []byte("b"), 0o644)

	got := collect(t, New(&Options{ExcludeDirNames: []string{"skip", ""}}), dir)
	if len(got) != 1 || !strings.Contains(got[0].id, "keep.csv") {
		t.Fatalf("exclude failed: %#v", got)
	}
}

// TestMissingRootReportedPerFile 缺失路径以 openErr 回调，后续 root 继续
func TestMissingRootReportedPerFile(t *testing.T) {
	dir := t.TempDir()
	ok := filepath.Join(dir, "ok.csv")
	os.WriteFile(ok, []byte("x"), 0o644)
	got := collect(t, New(nil), filepath.Join(dir, "missing.csv"), ok)
	if len(got) != 2 {
		t.Fatalf("expect 2 visits, got %#v", got)
	}
	if !errors.Is(got[0].err, os.ErrNotExist) {
		t.Fatalf("expect not-exist, got %v", got[0].err)
	}
	if got[1].err != nil || got[1].data != "x" {
		t.Fatalf("second root: %#v", got[1])
	}
}

// TestYieldErrorStops yield 返回错误时终止遍历
func TestYieldErrorStops(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.csv"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.csv"), []byte("b"), 0o644)
	boom := errors.New("boom")
	calls := 0
	err := New(nil).Iterate(context.Background(), []string{dir}, func(_ contract.FileID, rc io.ReadCloser, _ error) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expect stop after first, got err=%v calls=%d", err, calls)
	}
}

// TestIterateCtxCancel 上下文取消
func TestIterateCtxCancel(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "a.csv")
	os.WriteFile(fp, []byte("x"), 0o644)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(nil).Iterate(ctx, []string{fp}, func(contract.FileID, io.ReadCloser, error) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expect ctx cancel, got %v", err)
	}
}

// TestNewBufferedCloserDefault bufSize<=0 时使用默认
func TestNewBufferedCloserDefault(t *testing.T) {
	bc := newBufferedCloser(io.NopCloser(strings.NewReader("")), 0)
	if bc.Reader == nil {
		t.Fatalf("nil reader")
	}
	bc.Close()
}

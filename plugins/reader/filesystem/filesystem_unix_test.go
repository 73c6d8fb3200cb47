//go:build !windows

package filesystem

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
)

// TestWalkDirNonRegular 非常规文件被忽略
func TestWalkDirNonRegular(t *testing.T) {
	root := t.TempDir()
	if err := syscall.Mkfifo(filepath.Join(root, "fifo.csv"), 0o644); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	if got := collect(t, New(nil), root); len(got) != 0 {
		t.Fatalf("non-regular should skip, visited %#v", got)
	}
}

// TestIterateSymlink 指向常规文件的符号链接按链接路径标识
func TestIterateSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "t.csv")
	os.WriteFile(target, []byte("ok"), 0o644)
	link := filepath.Join(dir, "l.csv")
	os.Symlink(target, link)
	got := collect(t, New(nil), link)
	if len(got) != 1 || !strings.Contains(got[0].id, "l.csv") || got[0].data != "ok" {
		t.Fatalf("symlink not visited: %#v", got)
	}
}

// TestWalkDirSymlinkDir 遍历目录时不跟随指向目录的符号链接
func TestWalkDirSymlinkDir(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	os.Mkdir(sub, 0o755)
	os.WriteFile(filepath.Join(sub, "ok.csv"), []byte("o"), 0o644)
	os.Symlink(sub, filepath.Join(root, "sub_link.csv"))
	got := collect(t, New(nil), root)
	if len(got) != 1 || filepath.Base(got[0].id) != "ok.csv" {
		t.Fatalf("unexpected files %#v", got)
	}
}

// TestIterateSymlinkDangling 失效链接以 openErr 回调
func TestIterateSymlinkDangling(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "dangling.csv")
	os.Symlink(filepath.Join(dir, "no"), link)
	got := collect(t, New(nil), link)
	if len(got) != 1 || got[0].err == nil {
		t.Fatalf("expect open error for dangling symlink: %#v", got)
	}
}

package filesystem

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"telematch/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// ExcludeDirNames: 在扫描目录时跳过这些目录名（基名，大小写不敏感）。
	// 仅影响目录递归，不影响单文件 root。
	ExcludeDirNames []string `json:"exclude_dir_names"`
	// AllowExts: 目录扫描时收录的扩展名（小写，含点）。默认 [".csv", ".xlsx"]。
	// 显式给出的单文件 root 不受此限制，交由解析阶段判定格式。
	AllowExts []string `json:"allow_exts"`
}

// FileSystem 实现基于文件系统的 Reader。
// 单个 root 或文件无法打开时以 openErr 回调，遍历继续。
type FileSystem struct {
	bufSize    int
	excludeDir map[string]struct{}
	allowExt   map[string]struct{}
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	b := defaultBuf
	if opts != nil && opts.BufSize > 0 {
		b = opts.BufSize
	}
	ex := make(map[string]struct{})
	if opts != nil {
		for _, name := range opts.ExcludeDirNames {
			if name == "" {
				continue
			}
			ex[strings.ToLower(name)] = struct{}{}
		}
	}
	exts := []string{".csv", ".xlsx"}
	if opts != nil && len(opts.AllowExts) > 0 {
		exts = opts.AllowExts
	}
	allow := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		allow[e] = struct{}{}
	}
	return &FileSystem{bufSize: b, excludeDir: ex, allowExt: allow}
}

type yieldFn = func(contract.FileID, io.ReadCloser, error) error

// Iterate 遍历 roots，按稳定顺序对每个常规文件调用 yield。
// yield 返回的错误终止遍历；文件级打开失败不终止。
func (r *FileSystem) Iterate(ctx context.Context, roots []string, yield yieldFn) error {
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.iterateOne(ctx, root, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) iterateOne(ctx context.Context, root string, yield yieldFn) error {
	id := contract.NormalizeFileID(root)
	info, err := os.Stat(root)
	if err != nil {
		return yield(id, nil, err)
	}
	if info.IsDir() {
		return r.walkDir(ctx, root, yield)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return r.open(root, yield)
}

func (r *FileSystem) open(p string, yield yieldFn) error {
	id := contract.NormalizeFileID(p)
	f, err := os.Open(p)
	if err != nil {
		return yield(id, nil, err)
	}
	brc := newBufferedCloser(f, r.bufSize)
	if err := yield(id, brc, nil); err != nil {
		_ = brc.Close()
		return err
	}
	return nil
}

func (r *FileSystem) walkDir(ctx context.Context, dir string, yield yieldFn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return yield(contract.NormalizeFileID(dir), nil, err)
	}
	// 稳定顺序：字典序
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	// 先目录（不跟随目录符号链接）
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		if err := r.walkDir(ctx, filepath.Join(dir, e.Name()), yield); err != nil {
			return err
		}
	}
	// 再文件（允许指向常规文件的符号链接）
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() {
			continue
		}
		if _, ok := r.allowExt[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
			continue
		}
		// 办公软件的锁文件（~$name.xlsx）
		if strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		p := filepath.Join(dir, e.Name())
		t, err := os.Stat(p)
		if err != nil {
			if err := yield(contract.NormalizeFileID(p), nil, err); err != nil {
				return err
			}
			continue
		}
		if !t.Mode().IsRegular() {
			continue
		}
		if err := r.open(p, yield); err != nil {
			return err
		}
	}
	return nil
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }

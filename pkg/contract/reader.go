package contract

import (
	"context"
	"io"
)

// Reader: 输入源抽象（文件/目录）。
// 约束：
// 1) 按文件维度回调，顺序稳定；
// 2) FileID 稳定且去平台差异化；
// 3) 单个文件打开失败以 openErr 形式回调（rc 为 nil），不终止遍历；
// 4) 不做解码，仅提供字节流；不在内部起并发。
type Reader interface {
	Iterate(ctx context.Context, roots []string, yield func(fileID FileID, rc io.ReadCloser, openErr error) error) error
}

// Grid: 解析器产出的原始网格（行 × 单元格文本），尚未确定表头。
type Grid [][]string

// Parser: 将单个文件字节流解码为 Grid。
// 表头定位与列名规范化不在此处进行。
type Parser interface {
	Parse(ctx context.Context, fileID FileID, r io.Reader) (Grid, error)
	// Exts 返回该解析器负责的扩展名（小写，含点）。
	Exts() []string
}

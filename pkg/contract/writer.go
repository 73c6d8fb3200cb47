package contract

import (
	"context"
	"io"
)

// ArtifactID: 导出工件标识（相对输出根目录的文件名）。
type ArtifactID string

// Artifact: 导出器产出的单个工件。
type Artifact struct {
	ID   ArtifactID
	Body io.Reader
}

// Exporter: 将分析结果编码为一个或多个工件。
// 约束：只读访问 Result；不得修改记录或交叉结果。
type Exporter interface {
	Export(ctx context.Context, res *Result) ([]Artifact, error)
}

// Writer: 将工件字节流持久化到目标介质。
// 约束：
//  1. 同一 ArtifactID 单写者；
//  2. 流式写入，按字节透传，不读取/修改内容；
//  3. ctx 取消需尽快返回；
//  4. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}

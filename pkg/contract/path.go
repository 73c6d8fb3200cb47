package contract

import (
	"path"
	"strings"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：反斜杠转正斜杠；path.Clean 清理；保留相对/绝对语义。
func NormalizeFileID(p string) FileID {
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}

// Base 返回 FileID 的文件名部分（用于导出与终端展示）。
func (f FileID) Base() string { return path.Base(string(f)) }

// Ext 返回小写扩展名（含点）；无扩展名时为空串。
func (f FileID) Ext() string { return strings.ToLower(path.Ext(string(f))) }

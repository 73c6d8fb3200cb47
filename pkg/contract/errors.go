package contract

import "errors"

// 最小错误分类（哨兵错误）。
var (
	// ErrInvalidInput: 配置或调用参数不合法。
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFormat: 没有解析器能处理该文件扩展名。
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrMalformedTable: 文件可读但无法构成表格（无行、无列）。
	ErrMalformedTable = errors.New("malformed table")
	// ErrInsufficientTables: 成功解析的表格少于两个，无法交叉。
	ErrInsufficientTables = errors.New("insufficient tables")
	// ErrNoRecords: 所有表格均未抽取到任何记录。
	ErrNoRecords = errors.New("no records extracted")
	// ErrPathInvalid: 工件标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)

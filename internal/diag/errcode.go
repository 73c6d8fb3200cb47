package diag

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"time"

	"telematch/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeInput     Code = "input"
	CodeFormat    Code = "format"
	CodeInvariant Code = "invariant"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	if errors.Is(err, contract.ErrInvalidInput) ||
		errors.Is(err, contract.ErrInsufficientTables) ||
		errors.Is(err, contract.ErrNoRecords) {
		return CodeInput
	}
	var cerr *csv.ParseError
	if errors.Is(err, contract.ErrUnsupportedFormat) ||
		errors.Is(err, contract.ErrMalformedTable) ||
		errors.As(err, &cerr) {
		return CodeFormat
	}
	if errors.Is(err, contract.ErrInvariantViolation) || errors.Is(err, contract.ErrPathInvalid) {
		return CodeInvariant
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

// Record 记录一次失败：计数并写 error 事件（nil logger 时仅计数）。
func Record(l *Logger, comp, msg string, err error, fileID, block string) Code {
	code := Classify(err)
	IncOp(comp, "error", "error")
	IncError(comp, string(code))
	l.ErrorWithKV(comp, string(code), msg, nil, fileID, block, map[string]string{"err": err.Error()})
	return code
}

// NowUTC 返回 RFC3339 UTC 时间字符串。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

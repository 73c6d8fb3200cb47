package diag

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 为结构化事件日志器：zap JSON 编码，每条事件一行。
// 事件字段约定：comp/stage(start|finish|warn|error)/code/dur_ms/count/file_id/block/corr_id。
// 所有方法对 nil 接收者为 no-op。
type Logger struct {
	corrID string
	z      *zap.Logger
}

// NewLogger 以给定级别构造日志器；sink 为 nil 时写 stderr。
func NewLogger(corrID, level string, sink zapcore.WriteSyncer) *Logger {
	if sink == nil {
		sink = zapcore.Lock(os.Stderr)
	}
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.MessageKey = "msg"
	enc.EncodeTime = zapcore.RFC3339TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), sink, zap.NewAtomicLevelAt(parseLevel(level)))
	return &Logger{corrID: corrID, z: zap.New(core).With(zap.String("corr_id", corrID))}
}

// NewFileLogger 写入 dir 下按大小轮转的日志文件。
func NewFileLogger(corrID, level, dir string, maxBytes int64) (*Logger, *RotatingFile) {
	rf := NewRotatingFile(dir, maxBytes)
	return NewLogger(corrID, level, rf), rf
}

// Nop 返回丢弃全部事件的日志器。
func Nop() *Logger { return &Logger{z: zap.NewNop()} }

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// CorrID 返回本次运行的关联 ID。
func (l *Logger) CorrID() string {
	if l == nil {
		return ""
	}
	return l.corrID
}

// Sync 刷新底层 sink。
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.z.Sync()
}

func scope(comp, stage, fileID, block string) []zap.Field {
	fs := []zap.Field{zap.String("comp", comp), zap.String("stage", stage)}
	if fileID != "" {
		fs = append(fs, zap.String("file_id", fileID))
	}
	if block != "" {
		fs = append(fs, zap.String("block", block))
	}
	return fs
}

func kvFields(fs []zap.Field, kv map[string]string) []zap.Field {
	if len(kv) > 0 {
		fs = append(fs, zap.Any("kv", kv))
	}
	return fs
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, "", "")
}

// StartWith 记录带 file_id/block 的 start。
func (l *Logger) StartWith(comp, msg, fileID, block string) *Timer {
	if l == nil {
		return nil
	}
	l.z.Info(msg, scope(comp, "start", fileID, block)...)
	return &Timer{l: l, comp: comp, fileID: fileID, block: block, t0: time.Now()}
}

// DebugStart 输出调试级别的 start 类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, fileID, block string, kv map[string]string) {
	if l == nil {
		return
	}
	l.z.Debug(msg, kvFields(scope(comp, "start", fileID, block), kv)...)
}

// Warn 记录可恢复的问题（例如单文件解析失败）。
func (l *Logger) Warn(comp, code, msg, fileID, block string) {
	if l == nil {
		return
	}
	l.z.Warn(msg, append(scope(comp, "warn", fileID, block), zap.String("code", code))...)
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWith(comp, code, msg, durSince, "", "")
}

// ErrorWith 支持 file_id/block。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID, block string) {
	l.ErrorWithKV(comp, code, msg, durSince, fileID, block, nil)
}

// ErrorWithKV 支持附带键值对。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, fileID, block string, kv map[string]string) {
	if l == nil {
		return
	}
	fs := append(scope(comp, "error", fileID, block), zap.String("code", code))
	if durSince != nil {
		fs = append(fs, zap.Int64("dur_ms", time.Since(*durSince).Milliseconds()))
	}
	l.z.Error(msg, kvFields(fs, kv)...)
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	if l == nil {
		return
	}
	l.z.Info(msg, append(scope(comp, "finish", "", ""),
		zap.Int64("dur_ms", time.Since(start).Milliseconds()), zap.Int64("count", count))...)
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	block  string
	t0     time.Time
}

// Finish 记录 finish 与耗时，并计入指标。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	dur := time.Since(t.t0).Milliseconds()
	t.l.z.Info(msg, append(scope(t.comp, "finish", t.fileID, t.block),
		zap.Int64("dur_ms", dur), zap.Int64("count", count))...)
	ObserveDuration(t.comp, msg, dur)
}

// Since 返回计时起点（供 ErrorWith 计算耗时）。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}

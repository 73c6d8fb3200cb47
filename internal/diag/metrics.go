package diag

import (
	"strconv"
	"strings"
	"sync"
)

// 进程内指标（计数器 + 耗时累计），运行结束时以 debug 事件输出快照。
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}

var (
	metricsMu sync.Mutex
	counters  = map[string]int64{}
)

func key(parts ...string) string { return strings.Join(parts, "|") }

func add(k string, v int64) {
	metricsMu.Lock()
	counters[k] += v
	metricsMu.Unlock()
}

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) { add(key("op_total", comp, stage, result), 1) }

// IncError 按分类累加错误计数。
func IncError(comp, code string) { add(key("error_total", comp, code), 1) }

// ObserveDuration 累计阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	add(key("op_duration_ms", comp, stage), durMS)
}

// Snapshot 返回当前指标的拷贝；键形如 "op_total|reader|finish|success"。
func Snapshot() map[string]int64 {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	out := make(map[string]int64, len(counters))
	for k, v := range counters {
		out[k] = v
	}
	return out
}

// ResetMetrics 清空全部指标。
func ResetMetrics() {
	metricsMu.Lock()
	counters = map[string]int64{}
	metricsMu.Unlock()
}

// LogMetrics 以 debug 事件输出指标快照。
func LogMetrics(l *Logger) {
	snap := Snapshot()
	if len(snap) == 0 {
		return
	}
	kv := make(map[string]string, len(snap))
	for k, v := range snap {
		kv[k] = strconv.FormatInt(v, 10)
	}
	l.DebugStart("metrics", "snapshot", "", "", kv)
}

package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"telematch/pkg/contract"
)

// Terminal: 终端信息提示（非日志）。
// - 输出到提供的 io.Writer（默认 stderr）。
// - TTY: 当前文件单行 \r 覆盖；非 TTY: 关键节点分行打印。
// - 并发安全；写失败后进入禁用态为 no-op。
// - 颜色由 lipgloss 按输出端能力降级（非终端输出纯文本）。
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool
	r       *lipgloss.Renderer

	kind      string
	filesDone int
	filesFail int
	runStart  time.Time

	curFileID string
	curBlock  string
	lastLen   int

	mu sync.Mutex
}

// 进程级终端（可选，全局设置后供 pipeline 旁路调用）。
var (
	termMu sync.RWMutex
	term   *Terminal
)

// SetTerminal 设置全局终端指针（nil 可清除）。
func SetTerminal(t *Terminal) { termMu.Lock(); term = t; termMu.Unlock() }

// GetTerminal 返回全局终端（可能为 nil）。
func GetTerminal() *Terminal { termMu.RLock(); defer termMu.RUnlock(); return term }

// NewTerminal 构造终端提示器。enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled, r: lipgloss.NewRenderer(w)}
	// CI 环境视为非 TTY
	if os.Getenv("CI") != "" {
		t.isTTY = false
	} else if f, ok := w.(*os.File); ok {
		if fi, err := f.Stat(); err == nil {
			t.isTTY = fi.Mode()&os.ModeCharDevice != 0
		}
	}
	return t
}

// 置信度配色（与表格导出一致）。
var tierColors = map[contract.Tier][2]string{
	contract.High:   {"#C6EFCE", "#006100"},
	contract.Medium: {"#FFEB9C", "#9C6500"},
	contract.Low:    {"#FFC7CE", "#9C0006"},
}

func (t *Terminal) tierBadge(tier contract.Tier) string {
	c, ok := tierColors[tier]
	if !ok {
		return tier.Label()
	}
	return t.r.NewStyle().
		Background(lipgloss.Color(c[0])).
		Foreground(lipgloss.Color(c[1])).
		Padding(0, 1).
		Render(tier.Label())
}

func (t *Terminal) bold(s string) string { return t.r.NewStyle().Bold(true).Render(s) }

func (t *Terminal) faint(s string) string { return t.r.NewStyle().Faint(true).Render(s) }

// RunStart: 记录运行上下文（分析类型、Block 数）。
func (t *Terminal) RunStart(kind string, blocks int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.kind = kind
	t.filesDone, t.filesFail = 0, 0
	t.runStart = time.Now()
	t.println(fmt.Sprintf("[run] 分析=%s | blocks=%d", safe(kind), blocks))
}

// FileStart: 标记当前文件。
func (t *Terminal) FileStart(fileID, block string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.curFileID = shortenBase(fileID, 48)
	t.curBlock = safe(block)
	line := fmt.Sprintf("[file] %s (%s) | 解析中…", t.curFileID, t.curBlock)
	if t.isTTY {
		t.printInline(line)
		return
	}
	t.println(line)
}

// FileFinish: 完成当前文件（rows=表格数据行数）。
func (t *Terminal) FileFinish(ok bool, rows int, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	status := "done"
	if ok {
		t.filesDone++
	} else {
		t.filesFail++
		status = "fail"
	}
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
	}
	t.println(fmt.Sprintf("[%s] %s (%s) | 行 %d | 用时 %s", status, t.curFileID, t.curBlock, rows, formatDur(dur)))
}

// RunFinish: 结束总览。
func (t *Terminal) RunFinish(ok bool, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	tag := "ok"
	if !ok {
		tag = "fail"
	}
	t.println(fmt.Sprintf("[%s] 全部完成 | 文件 %d | 失败 %d | 总用时 %s", tag, t.filesDone, t.filesFail, formatDur(dur)))
}

// MaxSummaryMatches: 终端摘要最多列出的交叉条目数（完整结果见导出文件）。
const MaxSummaryMatches = 20

// Summary 输出结果摘要：计数、交叉条目（带置信度色块）与文件错误。
func (t *Terminal) Summary(res *contract.Result) {
	if t == nil || res == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.println(t.bold(fmt.Sprintf("结果: %s | 表格 %d | 记录 %d | 交叉 %d",
		res.Outcome, res.Tables, len(res.Records), len(res.Matches))))
	for i, m := range res.Matches {
		if i == MaxSummaryMatches {
			t.println(t.faint(fmt.Sprintf("… 另有 %d 条", len(res.Matches)-i)))
			break
		}
		blocks := make([]string, len(m.Blocks))
		for j, b := range m.Blocks {
			blocks[j] = string(b)
		}
		t.println(fmt.Sprintf("  %s %s [%s] blocks=%s x%d",
			t.tierBadge(m.Tier), safe(m.Value), m.Type, strings.Join(blocks, ","), m.Occurrences))
	}
	for _, fe := range res.FileErrors {
		t.println(t.faint("  ! " + safe(fe.Message())))
	}
}

func (t *Terminal) println(s string) {
	if t == nil || !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		t.enabled = false
	}
	t.lastLen = 0
}

// printInline: \r + 内容；新行比旧行短时以空格覆盖残留。
func (t *Terminal) printInline(s string) {
	if t == nil || !t.enabled {
		return
	}
	pad := 0
	if l := lipgloss.Width(s); t.lastLen > l {
		pad = t.lastLen - l
	}
	var b strings.Builder
	b.WriteByte('\r')
	b.WriteString(s)
	if pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = lipgloss.Width(s)
}

// shortenBase: 取基名并按可见宽度截断（尾部省略号）。
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimSpace(s))
	if base == "" {
		return ""
	}
	rs := []rune(base)
	if len(rs) <= max {
		return base
	}
	cut := max - 1
	if cut < 1 {
		cut = 1
	}
	return string(rs[:cut]) + "…"
}

func safe(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms <= 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	s := float64(d.Milliseconds()) / 1000.0
	return fmt.Sprintf("%.1fs", s)
}

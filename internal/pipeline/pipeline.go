package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"telematch/internal/confidence"
	"telematch/internal/diag"
	"telematch/internal/heuristics"
	"telematch/pkg/contract"
)

// - 核心单线程：读取、解析、抽取、交叉均在调用 goroutine 内顺序执行。
// - 文件级失败收集为 FileError，运行继续；只有 Reader 回调链本身出错才终止。
// - 导出阶段是唯一的并发点：各导出器只读共享 Result，首错取消其余。
// - 不足类结果（表格不足、无记录）不导出任何工件。

// Components 聚合运行所需的组件。
type Components struct {
	Reader    contract.Reader
	Parsers   []contract.Parser
	Exporters []contract.Exporter
	Writer    contract.Writer
}

// BlockSpec: 一个 Block 的名称与输入路径（文件或目录）。
type BlockSpec struct {
	ID    contract.BlockID
	Paths []string
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Blocks []BlockSpec
	Kind   contract.AnalysisKind
	// Complementary: 已解析的补充字段名，顺序即导出列顺序。
	Complementary []string
	Policy        confidence.Policy
}

// Run 执行完整流程：Reader → Parser → 表头定位 → Analyze → Exporter → Writer。
// 返回的 Result 在不足类结果下仍然完整（含 FileErrors），err 携带对应哨兵错误。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (contract.Result, error) {
	parsers, err := sanity(comp, set)
	if err != nil {
		return contract.Result{}, fmt.Errorf("sanity: %w", err)
	}
	runStart := time.Now()
	term := diag.GetTerminal()
	term.RunStart(string(set.Kind), len(set.Blocks))

	blocks, fileErrs, err := load(ctx, comp.Reader, parsers, set.Blocks, logger)
	if err != nil {
		term.RunFinish(false, time.Since(runStart))
		return contract.Result{FileErrors: fileErrs}, err
	}

	atimer := logger.Start("analyze", "analyze")
	res, err := Analyze(blocks, fileErrs, set)
	if err != nil {
		diag.Record(logger, "analyze", "analyze failed", err, "", "")
		term.Summary(&res)
		term.RunFinish(false, time.Since(runStart))
		return res, fmt.Errorf("analyze: %w", err)
	}
	atimer.Finish("analyze", int64(len(res.Matches)))
	diag.IncOp("analyze", "finish", "success")
	logger.DebugStart("analyze", "result", "", "", map[string]string{
		"outcome": string(res.Outcome),
		"tables":  strconv.Itoa(res.Tables),
		"records": strconv.Itoa(len(res.Records)),
		"matches": strconv.Itoa(len(res.Matches)),
		"errors":  strconv.Itoa(len(res.FileErrors)),
	})

	if err := export(ctx, comp.Exporters, comp.Writer, &res, logger); err != nil {
		term.RunFinish(false, time.Since(runStart))
		return res, err
	}
	term.Summary(&res)
	term.RunFinish(true, time.Since(runStart))
	return res, nil
}

// load 逐 Block 遍历文件并解析为 Table。
func load(ctx context.Context, rd contract.Reader, parsers map[string]contract.Parser, specs []BlockSpec, logger *diag.Logger) ([]contract.Block, []contract.FileError, error) {
	var (
		blocks   = make([]contract.Block, 0, len(specs))
		fileErrs []contract.FileError
	)
	for _, spec := range specs {
		block := contract.Block{ID: spec.ID}
		rtimer := logger.StartWith("reader", "iterate", "", string(spec.ID))
		err := rd.Iterate(ctx, spec.Paths, func(fid contract.FileID, rc io.ReadCloser, openErr error) error {
			if err := ctx.Err(); err != nil {
				if rc != nil {
					_ = rc.Close()
				}
				return err
			}
			term := diag.GetTerminal()
			term.FileStart(string(fid), string(spec.ID))
			start := time.Now()

			t, err := parseFile(ctx, parsers, fid, spec.ID, rc, openErr, logger)
			if err != nil {
				// 取消直接上抛；其余视为文件级失败
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				fileErrs = append(fileErrs, contract.FileError{File: fid, Block: spec.ID, Err: err})
				code := diag.Classify(err)
				diag.IncOp("parser", "file", "error")
				diag.IncError("parser", string(code))
				logger.Warn("parser", string(code), err.Error(), string(fid), string(spec.ID))
				term.FileFinish(false, 0, time.Since(start))
				return nil
			}
			block.Tables = append(block.Tables, t)
			diag.IncOp("parser", "file", "success")
			term.FileFinish(true, len(t.Rows), time.Since(start))
			return nil
		})
		if err != nil {
			diag.Record(logger, "reader", "iterate failed", err, "", string(spec.ID))
			return blocks, fileErrs, fmt.Errorf("reader iterate %s: %w", spec.ID, err)
		}
		rtimer.Finish("iterate", int64(len(block.Tables)))
		diag.IncOp("reader", "finish", "success")
		blocks = append(blocks, block)
	}
	return blocks, fileErrs, nil
}

// parseFile 选择解析器、解码网格、定位表头并整理为 Table。rc 总会被关闭。
func parseFile(ctx context.Context, parsers map[string]contract.Parser, fid contract.FileID, block contract.BlockID, rc io.ReadCloser, openErr error, logger *diag.Logger) (contract.Table, error) {
	if openErr != nil {
		return contract.Table{}, fmt.Errorf("open: %w", openErr)
	}
	defer rc.Close()
	ext := strings.ToLower(filepath.Ext(string(fid)))
	p, ok := parsers[ext]
	if !ok {
		return contract.Table{}, fmt.Errorf("%w: %q", contract.ErrUnsupportedFormat, ext)
	}
	ptimer := logger.StartWith("parser", "parse", string(fid), string(block))
	grid, err := p.Parse(ctx, fid, rc)
	if err != nil {
		return contract.Table{}, err
	}
	hdr := heuristics.DetectHeaderRow(grid)
	t := heuristics.Tabulate(fid, block, grid, hdr)
	if len(t.Columns) == 0 {
		return contract.Table{}, fmt.Errorf("%w: %s: no columns", contract.ErrMalformedTable, fid)
	}
	logger.DebugStart("parser", "header", string(fid), string(block), map[string]string{
		"header_row": strconv.Itoa(hdr),
		"columns":    strings.Join(t.Columns, ","),
	})
	ptimer.Finish("parse", int64(len(t.Rows)))
	return t, nil
}

// export 仅在 matched / no_matches 时运行；每个导出器独立 goroutine，产物交给同一 Writer。
func export(ctx context.Context, exporters []contract.Exporter, w contract.Writer, res *contract.Result, logger *diag.Logger) error {
	if res.Outcome != contract.OutcomeMatched && res.Outcome != contract.OutcomeNoMatches {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, ex := range exporters {
		g.Go(func() error {
			etimer := logger.StartWith("exporter", "export", "", "")
			arts, err := ex.Export(gctx, res)
			if err != nil {
				diag.Record(logger, "exporter", "export failed", err, "", "")
				return fmt.Errorf("exporter #%d: %w", i, err)
			}
			etimer.Finish("export", int64(len(arts)))
			diag.IncOp("exporter", "finish", "success")
			for _, a := range arts {
				wtimer := logger.StartWith("writer", "write", string(a.ID), "")
				if err := w.Write(gctx, a.ID, a.Body); err != nil {
					diag.Record(logger, "writer", "write failed", err, string(a.ID), "")
					return fmt.Errorf("writer write %s: %w", a.ID, err)
				}
				wtimer.Finish("write", 0)
				diag.IncOp("writer", "finish", "success")
			}
			return nil
		})
	}
	return g.Wait()
}

// sanity 校验组件与设置，并按扩展名建立解析器索引。
func sanity(c Components, s Settings) (map[string]contract.Parser, error) {
	if c.Reader == nil || len(c.Parsers) == 0 || c.Writer == nil {
		return nil, fmt.Errorf("%w: missing components", contract.ErrInvalidInput)
	}
	if len(s.Blocks) == 0 {
		return nil, fmt.Errorf("%w: no blocks", contract.ErrInvalidInput)
	}
	seen := make(map[contract.BlockID]struct{}, len(s.Blocks))
	for _, b := range s.Blocks {
		if strings.TrimSpace(string(b.ID)) == "" {
			return nil, fmt.Errorf("%w: empty block id", contract.ErrInvalidInput)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate block id %q", contract.ErrInvalidInput, b.ID)
		}
		seen[b.ID] = struct{}{}
		if len(b.Paths) == 0 {
			return nil, fmt.Errorf("%w: block %q has no inputs", contract.ErrInvalidInput, b.ID)
		}
	}
	idx := make(map[string]contract.Parser)
	for _, p := range c.Parsers {
		if p == nil {
			return nil, fmt.Errorf("%w: nil parser", contract.ErrInvalidInput)
		}
		for _, ext := range p.Exts() {
			ext = strings.ToLower(ext)
			if _, dup := idx[ext]; dup {
				return nil, fmt.Errorf("%w: extension %q claimed by two parsers", contract.ErrInvalidInput, ext)
			}
			idx[ext] = p
		}
	}
	return idx, nil
}

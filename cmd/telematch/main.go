package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfgpkg "telematch/internal/config"
	"telematch/internal/diag"
	"telematch/internal/pipeline"
	"telematch/pkg/contract"
)

var pipelineRun = pipeline.Run

// 退出码：0 成功（含无交叉）；1 运行期失败；2 输入不足；3 配置错误。
const (
	exitOK           = 0
	exitRuntime      = 1
	exitInsufficient = 2
	exitConfig       = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// cliFlags: 命令行覆盖项（优先级最高）。
type cliFlags struct {
	config         string
	envFile        string
	kind           string
	blocks         []string
	complementary  []string
	strict         bool
	tiers          []string
	tierResolution string
	output         string
	prefix         string
	formats        []string
	logLevel       string
	logDir         string
	status         bool
}

func run(args []string) int {
	code := exitOK
	root := newRootCmd(&code)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		// 旗标解析等 cobra 层错误
		fprintf(os.Stderr, "%v\n", err)
		if code == exitOK {
			code = exitConfig
		}
	}
	return code
}

func newRootCmd(code *int) *cobra.Command {
	var f cliFlags
	root := &cobra.Command{
		Use:   "telematch",
		Short: "按 Block 交叉比对电话、IMEI、邮箱、哈希与位置 ID",
		Long: `读取每个 Block 的 CSV/XLSX 文件，自动定位表头，按分析类型抽取并归一化标识符，
报告出现在两个及以上 Block 中的规范值，并导出结果（xlsx/csv/json/sqlite）。

示例:
  telematch --block alvo_1=dados/a.xlsx --block alvo_2=dados/b/ --kind erb
  telematch --config config.yaml --format xlsx,json --output resultados`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			*code = analyze(cmd, f)
			return nil
		},
	}
	fl := root.Flags()
	fl.StringVar(&f.config, "config", "", "配置文件（JSON 或 YAML）；缺省读取 ./config.json 或 ./config.yaml（若存在）")
	fl.StringVar(&f.envFile, "env-file", ".env", "启动时加载的 .env（不覆盖已有环境变量）")
	fl.StringVar(&f.kind, "kind", "", "分析类型：cell_tower_extract|erb 或 online_account|google_location")
	fl.StringArrayVar(&f.blocks, "block", nil, "Block 定义 NAME=path[,path]（可重复；路径可为目录）")
	fl.StringSliceVar(&f.complementary, "complementary", nil, "补充字段：name,document,contact_email,timestamp,location")
	fl.BoolVar(&f.strict, "strict", false, "严格模式：拒绝低置信度归一化")
	fl.StringSliceVar(&f.tiers, "tiers", nil, "参与交叉的置信度等级（high,medium,low）")
	fl.StringVar(&f.tierResolution, "tier-resolution", "", "组内等级取舍：first|highest")
	fl.StringVar(&f.output, "output", "", "输出目录（覆盖 writer 选项）")
	fl.StringVar(&f.prefix, "prefix", "", "导出文件名前缀")
	fl.StringSliceVar(&f.formats, "format", nil, "导出格式：xlsx,csv,json,sqlite")
	fl.StringVar(&f.logLevel, "log-level", "", "日志等级：debug|info|warn|error")
	fl.StringVar(&f.logDir, "log-dir", "", "日志目录")
	fl.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")

	root.AddCommand(newInitCmd(code))
	return root
}

func newInitCmd(code *int) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "init-config [dir]",
		Short: "在指定目录生成默认配置与 .env 模板（不覆盖已存在的配置文件）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = strings.TrimSpace(args[0])
			}
			*code = initConfig(dir, format)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "配置文件格式：json|yaml")
	return cmd
}

func initConfig(dir, format string) int {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
		return exitConfig
	}
	name := "config.json"
	if format == "yaml" || format == "yml" {
		name = "config.yaml"
	} else if format != "json" {
		fprintf(os.Stderr, "未知的配置格式: %s\n", format)
		return exitConfig
	}
	if err := writeConfig(filepath.Join(dir, name), cfgpkg.DefaultTemplateConfig()); err != nil {
		fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
		return exitConfig
	}
	if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
		fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return exitOK
}

func analyze(cmd *cobra.Command, f cliFlags) int {
	start := time.Now()
	corrID := uuid.NewString()
	// 在任何 ENV 读取前加载 .env（不覆盖已有 ENV）。
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			fprintf(os.Stderr, "提示：.env 读取失败（已跳过）：%v\n", err)
		}
	}

	cfg, err := resolveConfig(cmd, f)
	if err != nil {
		fprintf(os.Stderr, "配置解析失败: %v\n", err)
		return exitConfig
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		// 提示打印有效配置，便于诊断
		_ = dumpConfig(cfg)
		return exitConfig
	}

	logger := diag.Nop()
	if dir := strings.TrimSpace(cfg.Logging.Dir); dir != "" && dir != "-" {
		l, rf := diag.NewFileLogger(corrID, cfg.Logging.Level, dir, cfg.Logging.MaxBytes)
		defer rf.Close()
		logger = l
	} else {
		logger = diag.NewLogger(corrID, cfg.Logging.Level, nil)
	}
	defer func() { _ = logger.Sync() }()

	if err := preflightCheckOutputDir(cfg); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "preflight failed", &start)
		return exitConfig
	}
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "assemble failed", &start)
		return exitConfig
	}

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(os.Stderr, f.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	logger.DebugStart("config", "effective", "", "", map[string]string{
		"blocks":          strconv.Itoa(len(set.Blocks)),
		"kind":            string(set.Kind),
		"complementary":   strings.Join(set.Complementary, ","),
		"strict":          strconv.FormatBool(set.Policy.Strict),
		"tier_resolution": string(set.Policy.Resolution),
		"parsers":         strconv.Itoa(len(comp.Parsers)),
		"exporters":       strconv.Itoa(len(comp.Exporters)),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t := logger.Start("pipeline", "run")
	res, err := pipelineRun(ctx, comp, set, logger)
	defer diag.LogMetrics(logger)
	if err != nil {
		code := diag.Record(logger, "pipeline", "first error", err, "", "")
		switch {
		case errors.Is(err, contract.ErrInsufficientTables), errors.Is(err, contract.ErrNoRecords):
			fprintf(os.Stderr, "输入不足: %v\n", err)
			printFileErrors(os.Stderr, res.FileErrors)
			return exitInsufficient
		case errors.Is(err, contract.ErrInvalidInput):
			fprintf(os.Stderr, "配置错误: %v\n", err)
			return exitConfig
		}
		if code != diag.CodeCancel {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		return exitRuntime
	}
	t.Finish("run", int64(len(res.Matches)))
	diag.IncOp("pipeline", "finish", "success")
	if lw, ok := comp.Writer.(interface{ Written() []string }); ok && f.status {
		for _, p := range lw.Written() {
			fprintf(os.Stderr, "[out] %s\n", p)
		}
	}
	return exitOK
}

// resolveConfig 合并 Defaults < 文件 < ENV < CLI。
func resolveConfig(cmd *cobra.Command, f cliFlags) (cfgpkg.Config, error) {
	path := f.config
	if path == "" {
		path = os.Getenv("TELEMATCH_CONFIG_FILE")
	}
	if path == "" {
		for _, cand := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(cand); err == nil {
				path = cand
				break
			}
		}
	}
	cfg := cfgpkg.Defaults()
	if path != "" {
		base, err := cfgpkg.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	var over cfgpkg.Config
	for _, s := range f.blocks {
		b, err := cfgpkg.ParseBlock(s)
		if err != nil {
			return cfg, err
		}
		over.Blocks = append(over.Blocks, b)
	}
	over.Kind = f.kind
	over.Complementary = f.complementary
	if cmd.Flags().Changed("strict") {
		v := f.strict
		over.Strict = &v
	}
	over.Tiers = f.tiers
	over.TierResolution = f.tierResolution
	over.OutputDir = f.output
	over.Prefix = f.prefix
	over.Components.Exporters = f.formats
	over.Logging.Level = f.logLevel
	over.Logging.Dir = f.logDir
	return cfgpkg.Merge(cfg, over), nil
}

func printFileErrors(w io.Writer, errs []contract.FileError) {
	for _, fe := range errs {
		_, _ = fmt.Fprintf(w, "  ! %s\n", fe.Message())
	}
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, _ = os.Stderr.Write(append([]byte("有效配置:\n"), b...))
	_, _ = os.Stderr.Write([]byte("\n"))
	return nil
}

// writeConfig 按扩展名写 JSON 或 YAML；path 为 "-" 时写 stdout（JSON）。已存在的文件不覆盖。
func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// JSON 即合法 YAML：经 Node 转换可保留整数字面量与键顺序
		var doc yaml.Node
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return err
		}
		blockStyle(&doc)
		if b, err = yaml.Marshal(&doc); err != nil {
			return err
		}
	default:
		b = append(b, '\n')
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(b)
	return err
}

// blockStyle 清除 JSON 来源的流式/引号样式，交由编码器选择块样式。
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
// 仅创建文件；不覆盖，不合并。
func writeDotEnv(path string) error {
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	var b strings.Builder
	b.WriteString("# telematch .env 模板（由 init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源\n")
	b.WriteString("TELEMATCH_CONFIG_FILE=\n\n")

	b.WriteString("# 分析参数\n")
	b.WriteString("# BLOCKS 形如 alvo_1=a.csv,b.xlsx;alvo_2=dir\n")
	for _, k := range []string{"BLOCKS", "KIND", "COMPLEMENTARY", "STRICT", "TIERS", "TIER_RESOLUTION"} {
		b.WriteString("TELEMATCH_" + k + "=\n")
	}
	b.WriteString("\n# 输出与日志\n")
	for _, k := range []string{"OUTPUT_DIR", "PREFIX", "LOG_LEVEL", "LOG_DIR", "LOG_MAX_BYTES"} {
		b.WriteString("TELEMATCH_" + k + "=\n")
	}
	b.WriteString("\n# 组件选择\n")
	for _, k := range []string{"COMPONENTS_READER", "COMPONENTS_PARSERS", "COMPONENTS_EXPORTERS", "COMPONENTS_WRITER"} {
		b.WriteString("TELEMATCH_" + k + "=\n")
	}
	b.WriteString("\n# 组件选项（原样 JSON）\n")
	b.WriteString("TELEMATCH_PARSER__csv__OPTIONS_JSON=\n")
	b.WriteString("TELEMATCH_EXPORTER__xlsx__OPTIONS_JSON=\n")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}

// preflightCheckOutputDir: 当 Writer 使用文件系统实现(fs)时，启动前检查输出目录可写性。
// 规则：
// - 若目录已存在：尝试创建并删除临时文件；失败则判为不可写。
// - 若目录不存在：检查父目录是否可写（尝试在父目录创建并删除临时目录）。
// 仅针对 fs writer 生效；其他 writer 跳过。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	writerName := cfg.Components.Writer
	if strings.TrimSpace(writerName) == "" {
		writerName = cfgpkg.Defaults().Components.Writer
	}
	if strings.TrimSpace(writerName) != "fs" {
		return nil
	}
	dir := strings.TrimSpace(cfg.OutputDir)
	if dir == "" {
		var wopts struct {
			OutputDir string `json:"output_dir"`
		}
		if len(cfg.Options.Writer) > 0 {
			_ = json.Unmarshal(cfg.Options.Writer, &wopts)
		}
		dir = strings.TrimSpace(wopts.OutputDir)
	}
	if dir == "" {
		dir = cfgpkg.DefaultOutputDir
	}
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return nil
	} else if err == nil && !st.IsDir() {
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	// 目录不存在：检查最近的已存在祖先目录可写性
	parent := filepath.Dir(filepath.Clean(dir))
	for {
		pst, err := os.Stat(parent)
		if err == nil {
			if !pst.IsDir() {
				return fmt.Errorf("父路径不是目录: %s", parent)
			}
			break
		}
		if !os.IsNotExist(err) {
			return err
		}
		next := filepath.Dir(parent)
		if next == parent {
			return fmt.Errorf("无法确定父目录: %s", dir)
		}
		parent = next
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	_ = os.RemoveAll(tmpd)
	return nil
}

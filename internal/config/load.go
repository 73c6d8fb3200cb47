package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：Blocks 不设默认（必须由文件/ENV/CLI 提供）。
func Defaults() Config {
	return Config{
		Kind:           "cell_tower_extract",
		TierResolution: "first",
		Logging:        Logging{Level: "info", Dir: "logs"},
		Components: Components{
			Reader:    "fs",
			Parsers:   []string{"csv", "xlsx"},
			Exporters: []string{"xlsx"},
			Writer:    "fs",
		},
	}
}

// Load 按扩展名选择解码器：.yaml/.yml 走 YAML，其余按 JSON。
func Load(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		return LoadYAML(raw)
	default:
		return LoadJSON(path, nil)
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadYAML 将 YAML 文档转为 JSON 后走 LoadJSON，保证与 JSON 相同的严格字段校验。
// Options 子树因此同样以原样 JSON 传给工厂。
func LoadYAML(raw []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	if doc == nil {
		return Config{}, errors.New("yaml: empty document")
	}
	js, err := json.Marshal(jsonCompatible(doc))
	if err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	return LoadJSON("", js)
}

// jsonCompatible 把 YAML 的非字符串键映射转为 map[string]any。
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, x := range t {
			t[k] = jsonCompatible(x)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[fmt.Sprint(k)] = jsonCompatible(x)
		}
		return out
	case []any:
		for i, x := range t {
			t[i] = jsonCompatible(x)
		}
		return t
	default:
		return v
	}
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Blocks) > 0 {
		out.Blocks = cloneBlocks(over.Blocks)
	}
	if strings.TrimSpace(over.Kind) != "" {
		out.Kind = strings.TrimSpace(over.Kind)
	}
	if len(over.Complementary) > 0 {
		out.Complementary = cloneStrings(over.Complementary)
	}
	// Strict 的 false 具有语义，使用指针区分“未设置”。
	if over.Strict != nil {
		v := *over.Strict
		out.Strict = &v
	}
	if len(over.Tiers) > 0 {
		out.Tiers = cloneStrings(over.Tiers)
	}
	if strings.TrimSpace(over.TierResolution) != "" {
		out.TierResolution = strings.TrimSpace(over.TierResolution)
	}
	if strings.TrimSpace(over.OutputDir) != "" {
		out.OutputDir = strings.TrimSpace(over.OutputDir)
	}
	if over.Prefix != "" {
		out.Prefix = over.Prefix
	}

	// Logging
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}
	if strings.TrimSpace(over.Logging.Dir) != "" {
		out.Logging.Dir = strings.TrimSpace(over.Logging.Dir)
	}
	if over.Logging.MaxBytes > 0 {
		out.Logging.MaxBytes = over.Logging.MaxBytes
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if len(over.Components.Parsers) > 0 {
		out.Components.Parsers = cloneStrings(over.Components.Parsers)
	}
	if len(over.Components.Exporters) > 0 {
		out.Components.Exporters = cloneStrings(over.Components.Exporters)
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	out.Options.Parser = mergeRawMap(out.Options.Parser, over.Options.Parser)
	out.Options.Exporter = mergeRawMap(out.Options.Exporter, over.Options.Exporter)
	return out
}

const envPrefix = "TELEMATCH_"

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 TELEMATCH_；集合之外的键忽略。
// 支持：KIND, BLOCKS（"A=p1,p2;B=p3"）, COMPLEMENTARY, STRICT, TIERS, TIER_RESOLUTION,
// OUTPUT_DIR, PREFIX, LOG_LEVEL, LOG_DIR, LOG_MAX_BYTES, COMPONENTS_*
// 以及 PARSER__<name>__OPTIONS_JSON / EXPORTER__<name>__OPTIONS_JSON。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, envPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(envPrefix) {
			continue
		}
		nk := kv[len(envPrefix):eq]
		val := kv[eq+1:]
		switch nk {
		case "KIND":
			over.Kind = strings.TrimSpace(val)
		case "BLOCKS":
			bs, err := ParseBlocks(val)
			if err != nil {
				return over, fmt.Errorf("env %sBLOCKS: %w", envPrefix, err)
			}
			over.Blocks = bs
		case "COMPLEMENTARY":
			over.Complementary = splitComma(val)
		case "STRICT":
			if strings.TrimSpace(val) == "" {
				continue
			}
			b, err := strconv.ParseBool(strings.TrimSpace(val))
			if err != nil {
				return over, fmt.Errorf("env %sSTRICT: %w", envPrefix, err)
			}
			over.Strict = &b
		case "TIERS":
			over.Tiers = splitComma(val)
		case "TIER_RESOLUTION":
			over.TierResolution = strings.TrimSpace(val)
		case "OUTPUT_DIR":
			over.OutputDir = strings.TrimSpace(val)
		case "PREFIX":
			over.Prefix = strings.TrimSpace(val)
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "LOG_DIR":
			over.Logging.Dir = strings.TrimSpace(val)
		case "LOG_MAX_BYTES":
			if v, err := atoi(val); err == nil {
				over.Logging.MaxBytes = int64(v)
			}
		case "COMPONENTS_READER":
			over.Components.Reader = strings.TrimSpace(val)
		case "COMPONENTS_PARSERS":
			over.Components.Parsers = splitComma(val)
		case "COMPONENTS_EXPORTERS":
			over.Components.Exporters = splitComma(val)
		case "COMPONENTS_WRITER":
			over.Components.Writer = strings.TrimSpace(val)
		default:
			// <KIND>__<name>__OPTIONS_JSON
			parts := strings.Split(nk, "__")
			if len(parts) != 3 || parts[2] != "OPTIONS_JSON" || strings.TrimSpace(val) == "" {
				continue
			}
			name := strings.ToLower(strings.TrimSpace(parts[1]))
			raw := json.RawMessage(val)
			switch parts[0] {
			case "PARSER":
				over.Options.Parser = mergeRawMap(over.Options.Parser, map[string]json.RawMessage{name: raw})
			case "EXPORTER":
				over.Options.Exporter = mergeRawMap(over.Options.Exporter, map[string]json.RawMessage{name: raw})
			}
		}
	}
	return over, nil
}

// ParseBlock 解析 "NAME=path[,path...]"。
func ParseBlock(s string) (Block, error) {
	eq := strings.IndexByte(s, '=')
	if eq <= 0 {
		return Block{}, fmt.Errorf("block %q: want NAME=path[,path]", s)
	}
	b := Block{ID: strings.TrimSpace(s[:eq]), Paths: splitComma(s[eq+1:])}
	if b.ID == "" || len(b.Paths) == 0 {
		return Block{}, fmt.Errorf("block %q: want NAME=path[,path]", s)
	}
	return b, nil
}

// ParseBlocks 解析以 ';' 分隔的多个 Block。
func ParseBlocks(s string) ([]Block, error) {
	var out []Block
	for _, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		b, err := ParseBlock(part)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func cloneBlocks(in []Block) []Block {
	out := make([]Block, len(in))
	for i, b := range in {
		out[i] = Block{ID: b.ID, Paths: cloneStrings(b.Paths)}
	}
	return out
}

func mergeRawMap(base, over map[string]json.RawMessage) map[string]json.RawMessage {
	if len(over) == 0 {
		return base
	}
	out := make(map[string]json.RawMessage, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		if len(v) > 0 {
			out[k] = cloneRaw(v)
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

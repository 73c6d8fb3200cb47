package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"telematch/internal/confidence"
	"telematch/internal/heuristics"
	"telematch/internal/pipeline"
	"telematch/pkg/contract"
	"telematch/pkg/registry"
)

// DefaultOutputDir: writer 选项与 output_dir 均未给出时的输出目录。
const DefaultOutputDir = "out"

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if len(cfg.Blocks) == 0 {
		return errors.New("config: blocks empty")
	}
	seen := map[string]bool{}
	for _, b := range cfg.Blocks {
		id := strings.TrimSpace(b.ID)
		if id == "" {
			return errors.New("config: block id cannot be empty")
		}
		if seen[id] {
			return fmt.Errorf("config: duplicate block id %q", id)
		}
		seen[id] = true
		if len(b.Paths) == 0 {
			return fmt.Errorf("config: block %q has no paths", id)
		}
		for _, p := range b.Paths {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("config: block %q: path cannot be empty", id)
			}
		}
	}
	if _, err := contract.ParseAnalysisKind(effName(cfg.Kind, Defaults().Kind)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := heuristics.ParseComplementary(cfg.Complementary); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := confidence.ParseTiers(cfg.Tiers); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := confidence.ParseResolution(cfg.TierResolution); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", cfg.Logging.Level)
	}

	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	d := Defaults()
	if name := effName(cfg.Components.Reader, d.Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	for _, name := range effNames(cfg.Components.Parsers, d.Components.Parsers) {
		if registry.Parser[name] == nil {
			return fmt.Errorf("config: parser %q not registered", name)
		}
	}
	for _, name := range effNames(cfg.Components.Exporters, d.Components.Exporters) {
		if registry.Exporter[name] == nil {
			return fmt.Errorf("config: exporter %q not registered", name)
		}
	}
	if name := effName(cfg.Components.Writer, d.Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	for name := range cfg.Options.Parser {
		if registry.Parser[name] == nil {
			return fmt.Errorf("config: options for unknown parser %q", name)
		}
	}
	for name := range cfg.Options.Exporter {
		if registry.Exporter[name] == nil {
			return fmt.Errorf("config: options for unknown exporter %q", name)
		}
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry （工厂）层进行；此处只传 raw JSON（必要时注入 output_dir / prefix）。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults()

	r, err := registry.Reader[effName(cfg.Components.Reader, d.Components.Reader)](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("reader options: %w", err)
	}
	var parsers []contract.Parser
	for _, name := range effNames(cfg.Components.Parsers, d.Components.Parsers) {
		p, err := registry.Parser[name](cfg.Options.Parser[name])
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("parser %s options: %w", name, err)
		}
		parsers = append(parsers, p)
	}
	var exporters []contract.Exporter
	for _, name := range effNames(cfg.Components.Exporters, d.Components.Exporters) {
		raw := cfg.Options.Exporter[name]
		if cfg.Prefix != "" {
			if raw, err = withKey(raw, "prefix", cfg.Prefix, true); err != nil {
				return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("exporter %s options: %w", name, err)
			}
		}
		e, err := registry.Exporter[name](raw)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("exporter %s options: %w", name, err)
		}
		exporters = append(exporters, e)
	}
	wraw, err := writerOptions(cfg)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer options: %w", err)
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Components.Writer)](wraw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer options: %w", err)
	}

	comp := pipeline.Components{Reader: r, Parsers: parsers, Exporters: exporters, Writer: w}
	set, err := settings(cfg)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	return comp, set, nil
}

func settings(cfg Config) (pipeline.Settings, error) {
	kind, err := contract.ParseAnalysisKind(effName(cfg.Kind, Defaults().Kind))
	if err != nil {
		return pipeline.Settings{}, err
	}
	comp, err := heuristics.ParseComplementary(cfg.Complementary)
	if err != nil {
		return pipeline.Settings{}, err
	}
	tiers, err := confidence.ParseTiers(cfg.Tiers)
	if err != nil {
		return pipeline.Settings{}, err
	}
	res, err := confidence.ParseResolution(cfg.TierResolution)
	if err != nil {
		return pipeline.Settings{}, err
	}
	set := pipeline.Settings{
		Kind:          kind,
		Complementary: comp,
		Policy:        confidence.Policy{Strict: cfg.Strict != nil && *cfg.Strict, Enabled: tiers, Resolution: res},
	}
	for _, b := range cfg.Blocks {
		set.Blocks = append(set.Blocks, pipeline.BlockSpec{
			ID:    contract.BlockID(strings.TrimSpace(b.ID)),
			Paths: cloneStrings(b.Paths),
		})
	}
	return set, nil
}

// writerOptions: 顶层 output_dir 优先；两者都缺省时使用 DefaultOutputDir。
func writerOptions(cfg Config) (json.RawMessage, error) {
	if cfg.OutputDir != "" {
		return withKey(cfg.Options.Writer, "output_dir", cfg.OutputDir, true)
	}
	return withKey(cfg.Options.Writer, "output_dir", DefaultOutputDir, false)
}

// withKey 在原样 JSON 对象中设置 key；override=false 时仅在缺失或为空时设置。
func withKey(raw json.RawMessage, key, val string, override bool) (json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		if m == nil {
			m = map[string]json.RawMessage{}
		}
	}
	if !override {
		var cur string
		if v, ok := m[key]; ok && json.Unmarshal(v, &cur) == nil && cur != "" {
			return raw, nil
		}
	}
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	m[key] = b
	return json.Marshal(m)
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}

func effNames(got, def []string) []string {
	if len(got) == 0 {
		return def
	}
	return got
}

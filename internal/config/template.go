package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 两个示例 Block（目录输入），分析类型为 ERB 抽取；
// - 导出 xlsx + json，Writer 输出到 ./out 目录；
// - 组件名采用仓库内置实现；
// - 选项包含全部键并给出安全中性默认值。
func DefaultTemplateConfig() Config {
	d := Defaults()
	strict := false
	cfg := Config{
		Blocks: []Block{
			{ID: "alvo_1", Paths: []string{"dados/alvo_1"}},
			{ID: "alvo_2", Paths: []string{"dados/alvo_2"}},
		},
		Kind:           d.Kind,
		Complementary:  []string{"name", "timestamp", "location"},
		Strict:         &strict,
		Tiers:          []string{"high", "medium", "low"},
		TierResolution: d.TierResolution,
		Logging:        Logging{Level: "info", Dir: "logs", MaxBytes: 10 * 1024 * 1024},
		Components: Components{
			Reader:    d.Components.Reader,
			Parsers:   d.Components.Parsers,
			Exporters: []string{"xlsx", "json"},
			Writer:    d.Components.Writer,
		},
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git", "__MACOSX"],
  "allow_exts": [".csv", ".txt", ".tsv", ".xlsx", ".xlsm"]
}`)
	cfg.Options.Parser = map[string]json.RawMessage{
		"csv": json.RawMessage(`{
  "delimiter": "",
  "encoding": "auto",
  "sniff_lines": 20,
  "exts": [".csv", ".txt", ".tsv"]
}`),
		"xlsx": json.RawMessage(`{
  "sheet": "",
  "formatted": false
}`),
	}
	cfg.Options.Exporter = map[string]json.RawMessage{
		"xlsx": json.RawMessage(`{
  "prefix": "",
  "skip_records": false
}`),
		"csv": json.RawMessage(`{
  "prefix": "",
  "delimiter": ";",
  "bom": true,
  "skip_records": false
}`),
		"json": json.RawMessage(`{
  "prefix": "",
  "indent": 2,
  "skip_records": false
}`),
		"sqlite": json.RawMessage(`{
  "prefix": "",
  "temp_dir": "",
  "skip_records": false
}`),
	}
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "flat": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}

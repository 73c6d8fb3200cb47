package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// Blocks: 交叉比对的来源分组；顺序即结果中 Block 的首见顺序。
	Blocks []Block `json:"blocks"`
	// Kind: cell_tower_extract | online_account（接受别名 erb / google_location）。
	Kind string `json:"kind"`
	// Complementary: 补充字段名（name/document/contact_email/timestamp/location 或葡语别名）。
	Complementary []string `json:"complementary"`
	// Strict: 严格模式（拒绝低置信度归一化）；nil 表示未设置。
	Strict *bool `json:"strict,omitempty"`
	// Tiers: 参与交叉的置信度等级；空表示全部。
	Tiers []string `json:"tiers"`
	// TierResolution: first | highest。
	TierResolution string `json:"tier_resolution"`
	// OutputDir: 覆盖 writer 选项中的 output_dir。
	OutputDir string `json:"output_dir"`
	// Prefix: 覆盖所有导出器的工件文件名前缀。
	Prefix string `json:"prefix"`

	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Block: 一个命名分组及其输入路径（文件或目录）。
type Block struct {
	ID    string   `json:"id"`
	Paths []string `json:"paths"`
}

// Logging: 日志等级与轮转文件位置。
type Logging struct {
	Level string `json:"level"`
	// Dir: 日志目录；"-" 表示写 stderr。
	Dir string `json:"dir"`
	// MaxBytes: 单个日志文件上限；<=0 使用 10MiB。
	MaxBytes int64 `json:"max_bytes"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader    string   `json:"reader"`
	Parsers   []string `json:"parsers"`
	Exporters []string `json:"exporters"`
	Writer    string   `json:"writer"`
}

// Options: 各组件的原样 JSON Options；parser/exporter 按实现名分键。
type Options struct {
	Reader   json.RawMessage            `json:"reader"`
	Parser   map[string]json.RawMessage `json:"parser"`
	Exporter map[string]json.RawMessage `json:"exporter"`
	Writer   json.RawMessage            `json:"writer"`
}

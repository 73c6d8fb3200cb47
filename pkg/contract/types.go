package contract

import (
	"fmt"
	"strings"
)

// FileID: 源文件标识（规范化路径，跨平台一致）。
type FileID string

// BlockID: 调用方定义的分组标识，是交叉比对的“来源”单位。
type BlockID string

// Row: 单行数据；列名 → 原始文本。缺失值一律为空串，不存在 null 标记。
type Row map[string]string

// Get 返回列值；列不存在时返回空串。
func (r Row) Get(col string) string { return r[col] }

// Table: 已解析的表格内容。
// 约束：
// - Columns 已 trim + 小写，且表内唯一；
// - Rows 中每个单元格均为文本（空串表示缺失）；
// - 归属唯一 Block，并携带来源文件名。
type Table struct {
	File    FileID
	Block   BlockID
	Columns []string
	Rows    []Row
}

// Block: 一个或多个 Table 的命名分组；处理开始后只读。
type Block struct {
	ID     BlockID
	Tables []Table
}

// FieldType: 可交叉的数据类型（固定枚举）。
type FieldType string

const (
	Phone      FieldType = "phone"
	IMEI       FieldType = "imei"
	Email      FieldType = "email"
	Hash       FieldType = "hash"
	LocationID FieldType = "location_id"
)

var fieldAliases = map[string]FieldType{
	"phone":          Phone,
	"telefone":       Phone,
	"imei":           IMEI,
	"email":          Email,
	"e-mail":         Email,
	"hash":           Hash,
	"location_id":    LocationID,
	"id_localizacao": LocationID,
}

// ParseFieldType 解析类型名（接受葡语别名）。
func ParseFieldType(s string) (FieldType, error) {
	if ft, ok := fieldAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return ft, nil
	}
	return "", fmt.Errorf("%w: unknown field type %q", ErrInvalidInput, s)
}

// AnalysisKind: 分析类型，决定启用哪些 FieldType。
type AnalysisKind string

const (
	CellTowerExtract AnalysisKind = "cell_tower_extract"
	OnlineAccount    AnalysisKind = "online_account"
)

var kindAliases = map[string]AnalysisKind{
	"cell_tower_extract": CellTowerExtract,
	"erb":                CellTowerExtract,
	"erbs":               CellTowerExtract,
	"online_account":     OnlineAccount,
	"google_location":    OnlineAccount,
}

// ParseAnalysisKind 解析分析类型名（接受别名）。
func ParseAnalysisKind(s string) (AnalysisKind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown analysis kind %q", ErrInvalidInput, s)
}

// Fields 返回该分析类型启用的主字段（顺序固定）。两个集合互不相交。
func (k AnalysisKind) Fields() []FieldType {
	switch k {
	case CellTowerExtract:
		return []FieldType{Phone, IMEI}
	case OnlineAccount:
		return []FieldType{LocationID, Email, Hash}
	default:
		return nil
	}
}

// Record: 单个 (行, 命中列, 类型) 归一化成功后的产物；创建后不再修改。
type Record struct {
	Value string
	Type  FieldType
	Tier  Tier
	Block BlockID
	File  FileID
	Raw   string
	// Complementary: 补充字段名 → 原始值；无匹配列时不含该键。
	Complementary map[string]string
}

// CrossMatch: 出现在两个及以上 Block 的规范值。
// 不变量：len(Blocks) >= 2；(Value, Type) 在结果集中唯一。
type CrossMatch struct {
	Value       string
	Type        FieldType
	Tier        Tier
	Blocks      []BlockID
	Occurrences int
	// Complementary: 字段名 → 组内出现过的去重非空值（首见顺序）。
	Complementary map[string][]string
}

// FileError: 单文件读取/解析失败；不会中断整个运行。
type FileError struct {
	File  FileID
	Block BlockID
	Err   error
}

// Message 返回面向用户的单行描述。
func (e FileError) Message() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", e.File, e.Block)
	}
	return fmt.Sprintf("%s (%s) -> %v", e.File, e.Block, e.Err)
}

func (e FileError) Error() string { return e.Message() }

func (e FileError) Unwrap() error { return e.Err }

// Outcome: 一次分析的命名结果。
type Outcome string

const (
	OutcomeMatched            Outcome = "matched"
	OutcomeNoMatches          Outcome = "no_matches"
	OutcomeInsufficientTables Outcome = "insufficient_tables"
	OutcomeNoRecords          Outcome = "no_records"
)

// Result: 核心对外输出。即使 Outcome 为不足类，FileErrors 仍然完整。
type Result struct {
	Outcome    Outcome
	Tables     int
	Records    []Record
	Matches    []CrossMatch
	FileErrors []FileError
	// Complementary: 本次选择的补充字段（导出列顺序）。
	Complementary []string
}

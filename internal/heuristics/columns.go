package heuristics

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"telematch/pkg/contract"
)

// 主字段关键词（子串匹配，大小写与重音不敏感）。
var primaryKeywords = map[contract.FieldType][]string{
	contract.Phone:      {"telefone", "fone", "numero", "tel", "terminal", "msisdn", "número", "celular"},
	contract.IMEI:       {"imei", "terminal id", "terminal_id", "id", "equipamento", "aparelho"},
	contract.LocationID: {"location id", "obfuscated id", "id", "identifier", "locid"},
	contract.Email:      {"email", "conta google", "gmail", "conta", "e-mail", "endereco", "endereço"},
	contract.Hash:       {"hash", "md5", "sha1", "sha256", "sha512", "checksum", "digest"},
}

// 补充字段名（导出列顺序即此顺序）。
const (
	Name         = "name"
	Document     = "document"
	ContactEmail = "contact_email"
	Timestamp    = "timestamp"
	Location     = "location"
)

// ComplementaryFields 返回全部补充字段名（固定顺序）。
func ComplementaryFields() []string {
	return []string{Name, Document, ContactEmail, Timestamp, Location}
}

var complementaryKeywords = map[string][]string{
	Name:         {"nome", "titular", "assinante", "usuário", "usuario", "cliente", "person", "name"},
	Document:     {"cpf", "cnpj", "documento", "doc", "documentos", "identification", "id"},
	ContactEmail: {"email_contato", "contato", "contact", "alt_email", "email alternativo"},
	Timestamp:    {"data", "hora", "timestamp", "time", "date", "datetime", "datahora"},
	Location:     {"endereco", "bairro", "cidade", "uf", "erb", "siteid", "location", "endereço", "localidade", "local", "address"},
}

var complementaryAliases = map[string]string{
	"nome":          Name,
	"cpf":           Document,
	"email_contato": ContactEmail,
	"data_hora":     Timestamp,
	"localizacao":   Location,
	"localização":   Location,
}

// ParseComplementary 解析补充字段名（接受葡语别名），保持输入顺序并去重。
func ParseComplementary(names []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" {
			continue
		}
		if alias, ok := complementaryAliases[key]; ok {
			key = alias
		}
		if _, ok := complementaryKeywords[key]; !ok {
			return nil, fmt.Errorf("%w: unknown complementary field %q", contract.ErrInvalidInput, n)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out, nil
}

// PrimaryKeywords 返回主字段关键词；未知类型返回 nil。
func PrimaryKeywords(ft contract.FieldType) []string { return primaryKeywords[ft] }

// ComplementaryKeywords 返回补充字段关键词；未知字段返回 nil。
func ComplementaryKeywords(field string) []string { return complementaryKeywords[field] }

// Fold 小写并去除重音，用于列名与关键词比较。
// transform.Chain 带内部状态，每次调用新建。
func Fold(s string) string {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(stripAccents, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// MatchColumns 返回名称包含任一关键词（子串）的全部列，保持表内列顺序。
// 同一列可同时满足多个类型；主字段按“过量抽取”处理，不在此处择一。
func MatchColumns(columns, keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	folded := make([]string, len(keywords))
	for i, k := range keywords {
		folded[i] = Fold(k)
	}
	var out []string
	for _, col := range columns {
		name := Fold(col)
		for _, k := range folded {
			if k != "" && strings.Contains(name, k) {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

// FirstColumn 返回最左侧的命中列（补充字段的显式优先规则）。
func FirstColumn(columns, keywords []string) (string, bool) {
	m := MatchColumns(columns, keywords)
	if len(m) == 0 {
		return "", false
	}
	return m[0], true
}

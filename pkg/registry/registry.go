package registry

import (
	"bytes"
	"encoding/json"

	"telematch/pkg/contract"
	ecsv "telematch/plugins/exporter/csv"
	ejson "telematch/plugins/exporter/json"
	esql "telematch/plugins/exporter/sqlite"
	exlsx "telematch/plugins/exporter/xlsx"
	pcsv "telematch/plugins/parser/csv"
	pxlsx "telematch/plugins/parser/xlsx"
	rfs "telematch/plugins/reader/filesystem"
	wfs "telematch/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewParser 工厂签名：接收原样 JSON Options。
type NewParser func(raw json.RawMessage) (contract.Parser, error)

// NewExporter 工厂签名：接收原样 JSON Options。
type NewExporter func(raw json.RawMessage) (contract.Exporter, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件/目录 Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Parser 工厂注册表；按扩展名分派，互不重叠。
var Parser = map[string]NewParser{
	// csv: 分隔文本（嗅探分隔符 + 编码回退）
	"csv": func(raw json.RawMessage) (contract.Parser, error) {
		var opts pcsv.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return pcsv.New(&opts)
	},
	"xlsx": func(raw json.RawMessage) (contract.Parser, error) {
		var opts pxlsx.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return pxlsx.New(&opts), nil
	},
}

// Exporter 工厂注册表。
var Exporter = map[string]NewExporter{
	// xlsx: 两份工作簿，置信度着色
	"xlsx": func(raw json.RawMessage) (contract.Exporter, error) {
		var opts exlsx.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return exlsx.New(&opts), nil
	},
	"csv": func(raw json.RawMessage) (contract.Exporter, error) {
		var opts ecsv.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ecsv.New(&opts)
	},
	"json": func(raw json.RawMessage) (contract.Exporter, error) {
		var opts ejson.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ejson.New(&opts)
	},
	// sqlite: 单文件数据库（matches / match_blocks / records / file_errors）
	"sqlite": func(raw json.RawMessage) (contract.Exporter, error) {
		var opts esql.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return esql.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

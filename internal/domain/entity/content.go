// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"strings"
)

// DefaultLicense H5P 元数据缺省许可证代码（Undisclosed）
const DefaultLicense = "U"

// TerminalContentID 分支内容的“无后继节点”哨兵值
const TerminalContentID = -1

// ContentDocument H5P 内容文档
// 信封结构固定为两层：外层 library + params，params 内为 metadata + params。
// 每次模型产出可解析文档时整体替换，不做增量修改。
type ContentDocument struct {
	Library string         `json:"library"`
	Params  DocumentParams `json:"params"`
}

// DocumentParams 文档参数层
type DocumentParams struct {
	Metadata Metadata       `json:"metadata"`
	Params   map[string]any `json:"params"`
}

// Metadata 文档元数据
type Metadata struct {
	Title      string            `json:"title"`
	License    string            `json:"license"`
	Authors    []Author          `json:"authors"`
	Changes    []json.RawMessage `json:"changes"`
	ExtraTitle string            `json:"extraTitle"`
}

// Author 作者信息
type Author struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// MachineName 返回 library 标识的基础名（去掉版本号），如 "H5P.QuestionSet"
func (d *ContentDocument) MachineName() string {
	name, _, _ := strings.Cut(d.Library, " ")
	return name
}

// LibraryVersion 返回 library 标识携带的版本号，如 "1.20"
func (d *ContentDocument) LibraryVersion() string {
	_, version, _ := strings.Cut(d.Library, " ")
	return version
}

// Clone 深拷贝文档（通过 JSON 往返）
func (d *ContentDocument) Clone() (*ContentDocument, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out ContentDocument
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

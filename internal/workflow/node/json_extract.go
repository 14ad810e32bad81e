// Package node 实现生成工作流中的单步处理节点：
// 文档抽取、内容类型识别、归一化与校验
package node

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pascalkienast/H5P-AI-Generator/pkg/errors"
)

// fencedJSONPattern 匹配 ```json 围栏代码块，取第一个
var fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// ExtractJSONBlock 从助手回复中取出第一个 ```json 围栏块的内容
// 围栏外的 JSON 一律忽略，未找到时返回 false
func ExtractJSONBlock(text string) (string, bool) {
	m := fencedJSONPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	block := strings.TrimSpace(m[1])
	if block == "" {
		return "", false
	}
	return block, true
}

// ParseDocument 抽取并解析助手回复中的内容文档
// 返回原始对象树，后续归一化在对象树上进行
func ParseDocument(text string) (map[string]any, error) {
	block, ok := ExtractJSONBlock(text)
	if !ok {
		return nil, errors.New(errors.CodeNoDocumentFound, "回复中未找到 JSON 文档块")
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(block), &doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformedDocument, "JSON 文档块解析失败").
			WithDetail(truncateForDetail(block, 512))
	}
	return doc, nil
}

// HasDocumentBlock 判断回复是否携带 JSON 文档块（不做解析）
func HasDocumentBlock(text string) bool {
	_, ok := ExtractJSONBlock(text)
	return ok
}

func truncateForDetail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

package node

import "regexp"

// identifierPattern 匹配规范的内容类型标识符，如 H5P.MultiChoice
var identifierPattern = regexp.MustCompile(`H5P\.[A-Za-z]+`)

// recommendationPattern 匹配推荐措辞后紧跟的标识符
// 限制在同一句内，避免跨句误配
var recommendationPattern = regexp.MustCompile(
	`(?i)(?:recommend\w*|suggest\w*|best\s+(?:choice|option|fit)|ideal\s+(?:choice|option|type)|would\s+be)[^\n.!?]{0,80}?(H5P\.[A-Za-z]+)`)

// ExtractContentType 从选型阶段的助手回复中识别被推荐的内容类型
//
// 两遍扫描：第一遍只看推荐措辞后的标识符，第二遍回退到全文任意
// 标识符；同一遍内出现多个候选时取最后一个。只接受 supported 中
// 的标识符，未命中返回 false
func ExtractContentType(text string, supported []string) (string, bool) {
	known := make(map[string]struct{}, len(supported))
	for _, s := range supported {
		known[s] = struct{}{}
	}

	pick := func(candidates []string) (string, bool) {
		result := ""
		for _, c := range candidates {
			if _, ok := known[c]; ok {
				result = c
			}
		}
		return result, result != ""
	}

	var recommended []string
	for _, m := range recommendationPattern.FindAllStringSubmatch(text, -1) {
		recommended = append(recommended, m[1])
	}
	if id, ok := pick(recommended); ok {
		return id, true
	}

	return pick(identifierPattern.FindAllString(text, -1))
}

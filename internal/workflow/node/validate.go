package node

import (
	"fmt"
	"strings"

	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/errors"
)

// Validate 对归一化后的文档做类型相关校验
//
// 检查各内容类型的必填参数，分支场景额外检查节点引用的完整性。
// 发现缺失字段返回 IncompleteDocument，悬空引用返回 DanglingReference
func Validate(doc *entity.ContentDocument) error {
	body := doc.Params.Params
	machineName := doc.MachineName()

	missing := func(field string) error {
		return errors.New(errors.CodeIncompleteDocument, "缺少必填字段").
			WithDetail(fmt.Sprintf("%s: %s", machineName, field))
	}

	switch machineName {
	case "H5P.MultiChoice":
		if !hasText(body, "question") {
			return missing("question")
		}
		if !hasNonEmptyList(body, "answers") {
			return missing("answers")
		}
	case "H5P.TrueFalse":
		if !hasText(body, "question") {
			return missing("question")
		}
		if _, ok := body["correct"]; !ok {
			return missing("correct")
		}
	case "H5P.Blanks":
		if !hasNonEmptyList(body, "questions") {
			return missing("questions")
		}
	case "H5P.QuestionSet":
		if !hasNonEmptyList(body, "questions") {
			return missing("questions")
		}
	case "H5P.BranchingScenario":
		scenario, ok := body["branchingScenario"].(map[string]any)
		if !ok {
			return missing("branchingScenario")
		}
		content, ok := scenario["content"].([]any)
		if !ok || len(content) == 0 {
			return missing("branchingScenario.content")
		}
		return checkBranchingReferences(content)
	case "H5P.InteractiveVideo":
		iv, ok := body["interactiveVideo"].(map[string]any)
		if !ok {
			return missing("interactiveVideo")
		}
		if _, ok := iv["video"].(map[string]any); !ok {
			return missing("interactiveVideo.video")
		}
	}
	return nil
}

// checkBranchingReferences 检查分支场景中所有 nextContentId 都指向
// 已存在的节点或终止哨兵 -1，含分支问题选项内的跳转
func checkBranchingReferences(content []any) error {
	known := make(map[int]struct{}, len(content))
	for _, item := range content {
		node, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := asInt(node["contentId"]); ok {
			known[id] = struct{}{}
		}
	}

	dangling := func(from string, to int) error {
		return errors.New(errors.CodeDanglingReference, "分支跳转指向不存在的节点").
			WithDetail(fmt.Sprintf("%s -> %d", from, to))
	}

	for i, item := range content {
		node, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if to, ok := asInt(node["nextContentId"]); ok {
			if err := checkTarget(known, fmt.Sprintf("content[%d]", i), to, dangling); err != nil {
				return err
			}
		}
		for j, to := range alternativeTargets(node) {
			from := fmt.Sprintf("content[%d].alternatives[%d]", i, j)
			if err := checkTarget(known, from, to, dangling); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkTarget(known map[int]struct{}, from string, to int, dangling func(string, int) error) error {
	if to == entity.TerminalContentID {
		return nil
	}
	if _, ok := known[to]; !ok {
		return dangling(from, to)
	}
	return nil
}

// alternativeTargets 取出分支问题各选项的跳转目标
func alternativeTargets(node map[string]any) []int {
	typeInfo, ok := node["type"].(map[string]any)
	if !ok {
		return nil
	}
	library, _ := typeInfo["library"].(string)
	if !strings.HasPrefix(library, "H5P.BranchingQuestion") {
		return nil
	}
	params, ok := typeInfo["params"].(map[string]any)
	if !ok {
		return nil
	}
	question, ok := params["branchingQuestion"].(map[string]any)
	if !ok {
		return nil
	}
	alternatives, ok := question["alternatives"].([]any)
	if !ok {
		return nil
	}

	targets := make([]int, 0, len(alternatives))
	for _, alt := range alternatives {
		m, ok := alt.(map[string]any)
		if !ok {
			continue
		}
		if to, ok := asInt(m["nextContentId"]); ok {
			targets = append(targets, to)
		}
	}
	return targets
}

func hasText(body map[string]any, field string) bool {
	s, ok := body[field].(string)
	return ok && strings.TrimSpace(s) != ""
}

func hasNonEmptyList(body map[string]any, field string) bool {
	list, ok := body[field].([]any)
	return ok && len(list) > 0
}

// asInt 宽容地从 JSON 值中取整数，接受数值与数字字符串
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		var parsed int
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &parsed); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

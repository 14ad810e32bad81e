package node

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/errors"
)

// uuidV4Pattern 校验 subContentId 是否为合法 UUID v4
var uuidV4Pattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// NormalizeResult 归一化输出
type NormalizeResult struct {
	Document *entity.ContentDocument
	// Repairs 被重写的非法 subContentId 数量
	Repairs int
}

// Normalize 将模型产出的原始对象树整形为规范的内容文档
//
// 步骤：信封结构校验、元数据默认值补齐、库版本钉到目录版本、
// subContentId 修复。对已规范的文档重复执行不产生任何改动
func Normalize(raw map[string]any, versions entity.VersionMap) (*NormalizeResult, error) {
	if err := checkEnvelope(raw); err != nil {
		return nil, err
	}

	library, _ := raw["library"].(string)
	outer := raw["params"].(map[string]any)
	body := outer["params"].(map[string]any)

	meta, err := normalizeMetadata(outer["metadata"])
	if err != nil {
		return nil, err
	}

	repairs := repairSubContentIDs(body)

	machineName, _, _ := strings.Cut(strings.TrimSpace(library), " ")
	if spec, ok := versions.Spec(machineName); ok {
		library = spec
	}
	if machineName == "H5P.BranchingScenario" {
		fillBranchingScreens(body, meta.Title)
	}

	return &NormalizeResult{
		Document: &entity.ContentDocument{
			Library: library,
			Params: entity.DocumentParams{
				Metadata: *meta,
				Params:   body,
			},
		},
		Repairs: repairs,
	}, nil
}

// checkEnvelope 校验两层信封 {library, params: {metadata, params}}
func checkEnvelope(raw map[string]any) error {
	// 顶层只有一个键且其值内含 library：多包了一层
	if _, hasLib := raw["library"]; !hasLib && len(raw) == 1 {
		for key, v := range raw {
			if inner, ok := v.(map[string]any); ok {
				if _, ok := inner["library"]; ok {
					return errors.New(errors.CodeBadEnvelope, "文档被多包了一层").
						WithDetail(fmt.Sprintf("多余的外层键: %q", key))
				}
			}
		}
	}

	library, ok := raw["library"].(string)
	if !ok || strings.TrimSpace(library) == "" {
		return errors.New(errors.CodeBadEnvelope, "缺少顶层 library 字段")
	}
	if _, ok := raw["metadata"]; ok {
		return errors.New(errors.CodeBadEnvelope, "metadata 出现在顶层，应位于 params 之内")
	}

	outer, ok := raw["params"].(map[string]any)
	if !ok {
		return errors.New(errors.CodeBadEnvelope, "缺少顶层 params 对象")
	}
	body, ok := outer["params"].(map[string]any)
	if !ok {
		return errors.New(errors.CodeBadEnvelope, "params 内缺少类型参数对象 params")
	}

	// 内层再次出现信封结构：信封被重复了一层
	if _, hasLib := body["library"]; hasLib {
		if _, hasParams := body["params"]; hasParams {
			return errors.New(errors.CodeBadEnvelope, "信封结构在 params.params 内重复出现")
		}
	}
	return nil
}

// normalizeMetadata 解析元数据并补齐默认值
func normalizeMetadata(v any) (*entity.Metadata, error) {
	var meta entity.Metadata
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeMalformedDocument, "metadata 序列化失败")
		}
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, errors.Wrap(err, errors.CodeMalformedDocument, "metadata 结构不合法")
		}
	}

	if strings.TrimSpace(meta.Title) == "" {
		return nil, errors.New(errors.CodeIncompleteDocument, "缺少必填字段").
			WithDetail("metadata.title")
	}
	if meta.License == "" {
		meta.License = entity.DefaultLicense
	}
	if meta.ExtraTitle == "" {
		meta.ExtraTitle = meta.Title
	}
	if meta.Authors == nil {
		meta.Authors = []entity.Author{}
	}
	if meta.Changes == nil {
		meta.Changes = []json.RawMessage{}
	}
	return &meta, nil
}

// fillBranchingScreens 为分支场景补齐起始页与结束页
// 播放器要求这两块存在，模型偶尔会漏掉
func fillBranchingScreens(body map[string]any, title string) {
	scenario, ok := body["branchingScenario"].(map[string]any)
	if !ok {
		return
	}
	if _, ok := scenario["startScreen"].(map[string]any); !ok {
		scenario["startScreen"] = map[string]any{
			"startScreenTitle":    title,
			"startScreenSubtitle": "",
		}
	}
	if screens, ok := scenario["endScreens"].([]any); !ok || len(screens) == 0 {
		scenario["endScreens"] = []any{
			map[string]any{
				"endScreenTitle":    title,
				"endScreenSubtitle": "",
				"contentId":         float64(entity.TerminalContentID),
			},
		}
	}
}

// repairSubContentIDs 深度遍历参数树，重写所有非法的 subContentId
// 合法的 UUID v4 原样保留，保证幂等
func repairSubContentIDs(v any) int {
	repairs := 0
	switch node := v.(type) {
	case map[string]any:
		if id, ok := node["subContentId"]; ok {
			if s, isStr := id.(string); !isStr || !uuidV4Pattern.MatchString(strings.ToLower(s)) {
				node["subContentId"] = uuid.NewString()
				repairs++
			}
		}
		for _, child := range node {
			repairs += repairSubContentIDs(child)
		}
	case []any:
		for _, child := range node {
			repairs += repairSubContentIDs(child)
		}
	}
	return repairs
}

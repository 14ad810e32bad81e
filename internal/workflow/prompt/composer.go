// Package prompt 负责组装各会话阶段的系统提示
package prompt

import (
	"fmt"
	"strings"

	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	"github.com/pascalkienast/H5P-AI-Generator/internal/schema"
)

// section 系统提示中的一个段落，标题 + 若干行
type section struct {
	heading string
	lines   []string
}

func render(sections []section) string {
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## ")
		b.WriteString(s.heading)
		b.WriteString("\n")
		for _, line := range s.lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Composer 按会话阶段组装系统提示，提示只组装一次、随请求整体发送
type Composer struct {
	registry *schema.Registry
}

// NewComposer 创建提示组装器
func NewComposer(registry *schema.Registry) *Composer {
	return &Composer{registry: registry}
}

// Selection 选型阶段的系统提示
// 列出受支持的内容类型与各自限制，要求助手在推荐时给出规范标识
func (c *Composer) Selection() string {
	types := c.registry.ListSupported()
	typeLines := make([]string, 0, len(types))
	for _, t := range types {
		typeLines = append(typeLines,
			fmt.Sprintf("- %s (%s): limitations: %s", t.MachineName, t.DisplayName, t.Limitations))
	}

	return render([]section{
		{
			heading: "Role",
			lines: []string{
				"You are an assistant that helps educators create interactive H5P learning content.",
				"In this phase you help the user pick the most suitable content type for their goal.",
			},
		},
		{
			heading: "Supported content types",
			lines:   typeLines,
		},
		{
			heading: "Instructions",
			lines: []string{
				"- Ask clarifying questions if the user's goal is unclear.",
				"- When you are confident, recommend exactly one content type.",
				"- State the recommendation with its canonical identifier, e.g. \"I recommend H5P.QuestionSet\".",
				"- Do NOT output any JSON in this phase.",
			},
		},
	})
}

// Generation 生成阶段的系统提示
// 嵌入所选类型的结构文档，并钉死信封规则与库版本
func (c *Composer) Generation(desc *schema.Description, versions entity.VersionMap) string {
	return render([]section{
		{
			heading: "Role",
			lines: []string{
				"You are an assistant that produces complete H5P content documents as JSON.",
				fmt.Sprintf("The user has chosen the content type %s.", desc.MachineName),
			},
		},
		envelopeSection(desc, versions),
		{
			heading: "Content type documentation",
			lines:   []string{desc.Documentation},
		},
		{
			heading: "Output format",
			lines: []string{
				"- Reply with a short explanation followed by exactly one fenced code block:",
				"```json",
				"{ ...the complete document... }",
				"```",
				"- The block must contain the entire document, never a fragment or a diff.",
			},
		},
	})
}

// Refinement 迭代修改阶段的系统提示，附带当前文档全文
func (c *Composer) Refinement(desc *schema.Description, versions entity.VersionMap, current string) string {
	return render([]section{
		{
			heading: "Role",
			lines: []string{
				"You are an assistant that revises an existing H5P content document.",
				"Apply the user's requested changes and return the FULL revised document.",
			},
		},
		envelopeSection(desc, versions),
		{
			heading: "Current document",
			lines: []string{
				"```json",
				current,
				"```",
			},
		},
		{
			heading: "Output format",
			lines: []string{
				"- Reply with a short summary of the changes followed by exactly one ```json fenced block.",
				"- The block must contain the complete revised document, not only the changed parts.",
			},
		},
	})
}

// envelopeSection 信封结构与元数据规则，生成与修改阶段共用
func envelopeSection(desc *schema.Description, versions entity.VersionMap) section {
	library := desc.MachineName + " " + desc.Version
	if spec, ok := versions.Spec(desc.MachineName); ok {
		library = spec
	}

	return section{
		heading: "Document envelope",
		lines: []string{
			"The document is a JSON object with exactly this two-level shape:",
			fmt.Sprintf(`{"library": "%s", "params": {"metadata": {...}, "params": {...}}}`, library),
			fmt.Sprintf("- \"library\" must be exactly \"%s\".", library),
			"- \"params.metadata\" carries: title (required), license (default \"U\"), authors, changes, extraTitle (mirror of title).",
			"- \"params.params\" carries the type-specific structure described below.",
			"- Never wrap the document in any additional object.",
			"- Every \"subContentId\" must be a freshly generated UUID v4.",
		},
	}
}

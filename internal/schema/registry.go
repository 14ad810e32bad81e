// Package schema 提供内容类型结构文档的静态注册表
package schema

import (
	"embed"
	"strings"
	"sync"

	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/errors"
)

//go:embed docs/*.md
var docsFS embed.FS

// ContentType 一个受支持的 H5P 内容类型
type ContentType struct {
	// MachineName 规范标识，如 "H5P.QuestionSet"
	MachineName string
	// DisplayName 展示名称
	DisplayName string
	// DefaultVersion 无法获取托管服务目录时使用的版本
	DefaultVersion string
	// Limitations 已知限制，选型提示中原样列出
	Limitations string
	// docFile docs/ 下的结构文档文件名
	docFile string
}

// Description 内容类型的结构文档与版本
type Description struct {
	MachineName   string
	Documentation string
	Version       string
}

// supportedTypes 生成流水线支持的内容类型，按选型提示中的展示顺序排列
var supportedTypes = []ContentType{
	{
		MachineName:    "H5P.MultiChoice",
		DisplayName:    "Multiple Choice",
		DefaultVersion: "1.16",
		Limitations:    "single question per document; media attachments need externally hosted files",
		docFile:        "multichoice.md",
	},
	{
		MachineName:    "H5P.TrueFalse",
		DisplayName:    "True/False",
		DefaultVersion: "1.8",
		Limitations:    "one statement per document",
		docFile:        "truefalse.md",
	},
	{
		MachineName:    "H5P.Blanks",
		DisplayName:    "Fill in the Blanks",
		DefaultVersion: "1.14",
		Limitations:    "answers must be embedded in the text with *word:hint* markers",
		docFile:        "blanks.md",
	},
	{
		MachineName:    "H5P.QuestionSet",
		DisplayName:    "Question Set",
		DefaultVersion: "1.20",
		Limitations:    "sub-questions limited to types supported by the hosting service",
		docFile:        "questionset.md",
	},
	{
		MachineName:    "H5P.BranchingScenario",
		DisplayName:    "Branching Scenario",
		DefaultVersion: "1.8",
		Limitations:    "complex structure, every branch reference must resolve; recommend only when non-linear paths are truly needed",
		docFile:        "branchingscenario.md",
	},
	{
		MachineName:    "H5P.InteractiveVideo",
		DisplayName:    "Interactive Video",
		DefaultVersion: "1.27",
		Limitations:    "requires an externally hosted video URL; generated packages occasionally fail to load",
		docFile:        "interactivevideo.md",
	},
}

// DefaultVersions 托管服务目录不可用时的兜底版本表
var DefaultVersions = entity.VersionMap{
	"H5P.MultiChoice":       "1.16",
	"H5P.TrueFalse":         "1.8",
	"H5P.Blanks":            "1.14",
	"H5P.InteractiveVideo":  "1.27",
	"H5P.BranchingScenario": "1.8",
	"H5P.DragQuestion":      "1.14",
	"H5P.CoursePresentation": "1.25",
	"H5P.QuestionSet":       "1.20",
	"H5P.Summary":           "1.10",
	"H5P.DialogCards":       "1.8",
	"H5P.InteractiveBook":   "1.11",
	"H5P.MarkTheWords":      "1.11",
	"H5P.Flashcards":        "1.5",
	"H5P.ImageHotspots":     "1.10",
	"H5P.ArithmeticQuiz":    "1.1",
	"H5P.DragText":          "1.10",
	"H5P.Essay":             "1.5",
	"H5P.FindTheHotspot":    "1.0",
	"H5P.Audio":             "1.5",
	"H5P.Accordion":         "1.0",
}

// Registry 内容类型注册表，纯查询、无状态变更
type Registry struct {
	mu    sync.RWMutex
	cache map[string]string // machineName -> documentation
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[string]string, len(supportedTypes)),
	}
}

// ListSupported 返回受支持内容类型的规范标识，顺序固定
func (r *Registry) ListSupported() []ContentType {
	out := make([]ContentType, len(supportedTypes))
	copy(out, supportedTypes)
	return out
}

// IsSupported 判断标识是否为受支持的内容类型
func (r *Registry) IsSupported(machineName string) bool {
	_, err := r.lookup(machineName)
	return err == nil
}

// Describe 返回内容类型的结构文档与默认版本
// 未注册的标识返回 UnknownContentType 错误
func (r *Registry) Describe(machineName string) (*Description, error) {
	ct, err := r.lookup(machineName)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	doc, ok := r.cache[ct.MachineName]
	r.mu.RUnlock()

	if !ok {
		raw, err := docsFS.ReadFile("docs/" + ct.docFile)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternalError, "failed to load schema documentation")
		}
		doc = strings.TrimSpace(string(raw))

		r.mu.Lock()
		r.cache[ct.MachineName] = doc
		r.mu.Unlock()
	}

	return &Description{
		MachineName:   ct.MachineName,
		Documentation: doc,
		Version:       ct.DefaultVersion,
	}, nil
}

func (r *Registry) lookup(machineName string) (*ContentType, error) {
	name := strings.TrimSpace(machineName)
	for i := range supportedTypes {
		if supportedTypes[i].MachineName == name {
			return &supportedTypes[i], nil
		}
	}
	return nil, errors.New(errors.CodeUnknownContentType, "unknown content type").WithDetail(machineName)
}

package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	"github.com/pascalkienast/H5P-AI-Generator/internal/schema"
)

func TestComposer_Selection(t *testing.T) {
	c := NewComposer(schema.NewRegistry())
	out := c.Selection()

	// 所有受支持类型都要出现在选型提示中
	for _, ct := range schema.NewRegistry().ListSupported() {
		assert.Contains(t, out, ct.MachineName)
	}
	assert.Contains(t, out, "canonical identifier")
	assert.NotContains(t, out, "```json")
}

func TestComposer_GenerationPinsCatalogVersion(t *testing.T) {
	registry := schema.NewRegistry()
	c := NewComposer(registry)

	desc, err := registry.Describe("H5P.TrueFalse")
	require.NoError(t, err)

	out := c.Generation(desc, entity.VersionMap{"H5P.TrueFalse": "1.9"})
	assert.Contains(t, out, `"H5P.TrueFalse 1.9"`)
	assert.Contains(t, out, "```json")
	assert.Contains(t, out, desc.Documentation[:40])
}

func TestComposer_GenerationFallsBackToDefaultVersion(t *testing.T) {
	registry := schema.NewRegistry()
	c := NewComposer(registry)

	desc, err := registry.Describe("H5P.TrueFalse")
	require.NoError(t, err)

	out := c.Generation(desc, entity.VersionMap{})
	assert.Contains(t, out, `"H5P.TrueFalse `+desc.Version+`"`)
}

func TestComposer_RefinementEmbedsCurrentDocument(t *testing.T) {
	registry := schema.NewRegistry()
	c := NewComposer(registry)

	desc, err := registry.Describe("H5P.Blanks")
	require.NoError(t, err)

	current := `{"library": "H5P.Blanks 1.14", "params": {"metadata": {"title": "X"}, "params": {}}}`
	out := c.Refinement(desc, entity.VersionMap{}, current)

	assert.Contains(t, out, current)
	assert.Contains(t, out, "revised document")
	// 修订提示同样要求完整文档
	assert.True(t, strings.Contains(out, "complete revised document"))
}

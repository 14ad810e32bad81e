package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pascalkienast/H5P-AI-Generator/pkg/errors"
)

func TestRegistry_Describe(t *testing.T) {
	r := NewRegistry()

	for _, ct := range r.ListSupported() {
		desc, err := r.Describe(ct.MachineName)
		require.NoError(t, err, ct.MachineName)
		assert.Equal(t, ct.MachineName, desc.MachineName)
		assert.Equal(t, ct.DefaultVersion, desc.Version)
		// 每份结构文档都带一个完整示例
		assert.Contains(t, desc.Documentation, "```json")
		assert.Contains(t, desc.Documentation, ct.MachineName+" "+ct.DefaultVersion)
	}
}

func TestRegistry_DescribeUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Describe("H5P.Chart")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeUnknownContentType))
}

func TestRegistry_IsSupported(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.IsSupported("H5P.QuestionSet"))
	assert.True(t, r.IsSupported(" H5P.QuestionSet "))
	assert.False(t, r.IsSupported("H5P.Chart"))
}

func TestDefaultVersionsCoverSupportedTypes(t *testing.T) {
	r := NewRegistry()
	for _, ct := range r.ListSupported() {
		v, ok := DefaultVersions[ct.MachineName]
		require.True(t, ok, ct.MachineName)
		assert.Equal(t, ct.DefaultVersion, v)
	}
}

package node

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/errors"
)

var testVersions = entity.VersionMap{
	"H5P.TrueFalse":         "1.8",
	"H5P.QuestionSet":       "1.20",
	"H5P.BranchingScenario": "1.8",
}

func parseRaw(t *testing.T, s string) map[string]any {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return raw
}

func TestNormalize_FillsMetadataDefaults(t *testing.T) {
	raw := parseRaw(t, `{
		"library": "H5P.TrueFalse 1.8",
		"params": {
			"metadata": {"title": "Water Quiz"},
			"params": {"question": "Water boils at 100C?", "correct": "true"}
		}
	}`)

	res, err := Normalize(raw, testVersions)
	require.NoError(t, err)

	meta := res.Document.Params.Metadata
	assert.Equal(t, "U", meta.License)
	assert.Equal(t, "Water Quiz", meta.ExtraTitle)
	assert.NotNil(t, meta.Authors)
	assert.Empty(t, meta.Authors)
	assert.NotNil(t, meta.Changes)
	assert.Empty(t, meta.Changes)
}

func TestNormalize_PinsLibraryToCatalogVersion(t *testing.T) {
	raw := parseRaw(t, `{
		"library": "H5P.TrueFalse 1.2",
		"params": {
			"metadata": {"title": "T"},
			"params": {"question": "Q", "correct": "true"}
		}
	}`)

	res, err := Normalize(raw, testVersions)
	require.NoError(t, err)
	assert.Equal(t, "H5P.TrueFalse 1.8", res.Document.Library)
}

func TestNormalize_MissingTitle(t *testing.T) {
	raw := parseRaw(t, `{
		"library": "H5P.TrueFalse 1.8",
		"params": {"metadata": {}, "params": {"question": "Q", "correct": "true"}}
	}`)

	_, err := Normalize(raw, testVersions)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeIncompleteDocument))
}

func TestNormalize_EnvelopeViolations(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"extra wrapper", `{"h5p": {"library": "H5P.TrueFalse 1.8", "params": {"params": {}}}}`},
		{"missing library", `{"params": {"metadata": {}, "params": {}}}`},
		{"missing params", `{"library": "H5P.TrueFalse 1.8"}`},
		{"metadata at top level", `{"library": "H5P.TrueFalse 1.8", "metadata": {"title": "T"}, "params": {"params": {}}}`},
		{"missing inner params", `{"library": "H5P.TrueFalse 1.8", "params": {"metadata": {"title": "T"}}}`},
		{"nested envelope", `{"library": "H5P.TrueFalse 1.8", "params": {"metadata": {"title": "T"}, "params": {"library": "H5P.TrueFalse 1.8", "params": {}}}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(parseRaw(t, tc.doc), testVersions)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeBadEnvelope), "got: %v", err)
		})
	}
}

func TestNormalize_RepairsInvalidSubContentIDs(t *testing.T) {
	raw := parseRaw(t, `{
		"library": "H5P.QuestionSet 1.20",
		"params": {
			"metadata": {"title": "Quiz"},
			"params": {
				"questions": [
					{"library": "H5P.MultiChoice 1.16", "subContentId": "not-a-uuid", "params": {}},
					{"library": "H5P.TrueFalse 1.8", "subContentId": "761cca1f-6432-4a3e-912c-bd31a3bf53de", "params": {}}
				]
			}
		}
	}`)

	res, err := Normalize(raw, testVersions)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Repairs)

	questions := res.Document.Params.Params["questions"].([]any)
	repaired := questions[0].(map[string]any)["subContentId"].(string)
	kept := questions[1].(map[string]any)["subContentId"].(string)

	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`, repaired)
	assert.Equal(t, "761cca1f-6432-4a3e-912c-bd31a3bf53de", kept)
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := parseRaw(t, `{
		"library": "H5P.QuestionSet 1.20",
		"params": {
			"metadata": {"title": "Quiz"},
			"params": {
				"questions": [
					{"library": "H5P.MultiChoice 1.16", "subContentId": "bad", "params": {}}
				]
			}
		}
	}`)

	first, err := Normalize(raw, testVersions)
	require.NoError(t, err)
	require.Equal(t, 1, first.Repairs)

	// 第二次在已规范的文档上执行，不应产生任何改动
	again, err := json.Marshal(first.Document)
	require.NoError(t, err)
	var roundTrip map[string]any
	require.NoError(t, json.Unmarshal(again, &roundTrip))

	second, err := Normalize(roundTrip, testVersions)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Repairs)

	secondJSON, err := json.Marshal(second.Document)
	require.NoError(t, err)
	assert.JSONEq(t, string(again), string(secondJSON))
}

func TestNormalize_FillsBranchingScreens(t *testing.T) {
	raw := parseRaw(t, `{
		"library": "H5P.BranchingScenario 1.8",
		"params": {
			"metadata": {"title": "Decision Path"},
			"params": {
				"branchingScenario": {
					"content": [
						{"type": {"library": "H5P.AdvancedText 1.1", "params": {}}, "contentId": 0, "nextContentId": -1}
					]
				}
			}
		}
	}`)

	res, err := Normalize(raw, testVersions)
	require.NoError(t, err)

	scenario := res.Document.Params.Params["branchingScenario"].(map[string]any)
	start := scenario["startScreen"].(map[string]any)
	assert.Equal(t, "Decision Path", start["startScreenTitle"])

	screens := scenario["endScreens"].([]any)
	require.Len(t, screens, 1)
	end := screens[0].(map[string]any)
	assert.Equal(t, float64(-1), end["contentId"])
}

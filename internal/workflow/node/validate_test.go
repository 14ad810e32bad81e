package node

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/errors"
)

func docWithBody(t *testing.T, library, body string) *entity.ContentDocument {
	t.Helper()
	var params map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &params))
	return &entity.ContentDocument{
		Library: library,
		Params: entity.DocumentParams{
			Metadata: entity.Metadata{Title: "T", License: "U", ExtraTitle: "T"},
			Params:   params,
		},
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	cases := []struct {
		name    string
		library string
		body    string
		valid   bool
	}{
		{"multichoice ok", "H5P.MultiChoice 1.16", `{"question": "Q", "answers": [{"text": "A", "correct": true}]}`, true},
		{"multichoice empty answers", "H5P.MultiChoice 1.16", `{"question": "Q", "answers": []}`, false},
		{"multichoice missing question", "H5P.MultiChoice 1.16", `{"answers": [{"text": "A"}]}`, false},
		{"truefalse ok", "H5P.TrueFalse 1.8", `{"question": "Q", "correct": "true"}`, true},
		{"truefalse missing correct", "H5P.TrueFalse 1.8", `{"question": "Q"}`, false},
		{"blanks ok", "H5P.Blanks 1.14", `{"text": "intro", "questions": ["*x* marks the spot"]}`, true},
		{"blanks empty questions", "H5P.Blanks 1.14", `{"text": "intro", "questions": []}`, false},
		{"questionset ok", "H5P.QuestionSet 1.20", `{"questions": [{"library": "H5P.MultiChoice 1.16", "params": {}}]}`, true},
		{"questionset missing questions", "H5P.QuestionSet 1.20", `{"introPage": {}}`, false},
		{"interactivevideo ok", "H5P.InteractiveVideo 1.27", `{"interactiveVideo": {"video": {"files": []}}}`, true},
		{"interactivevideo missing video", "H5P.InteractiveVideo 1.27", `{"interactiveVideo": {}}`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(docWithBody(t, tc.library, tc.body))
			if tc.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.CodeIncompleteDocument), "got: %v", err)
			}
		})
	}
}

func TestValidate_BranchingReferences(t *testing.T) {
	valid := `{
		"branchingScenario": {
			"content": [
				{
					"type": {
						"library": "H5P.BranchingQuestion 1.0",
						"params": {
							"branchingQuestion": {
								"question": "<p>Pick one</p>",
								"alternatives": [
									{"text": "go deeper", "nextContentId": 1},
									{"text": "stop here", "nextContentId": -1}
								]
							}
						}
					},
					"contentId": 0,
					"nextContentId": -1
				},
				{
					"type": {"library": "H5P.AdvancedText 1.1", "params": {}},
					"contentId": 1,
					"nextContentId": -1
				}
			]
		}
	}`
	assert.NoError(t, Validate(docWithBody(t, "H5P.BranchingScenario 1.8", valid)))

	t.Run("dangling node reference", func(t *testing.T) {
		body := `{
			"branchingScenario": {
				"content": [
					{"type": {"library": "H5P.AdvancedText 1.1", "params": {}}, "contentId": 0, "nextContentId": 7}
				]
			}
		}`
		err := Validate(docWithBody(t, "H5P.BranchingScenario 1.8", body))
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeDanglingReference))
	})

	t.Run("dangling alternative reference", func(t *testing.T) {
		body := `{
			"branchingScenario": {
				"content": [
					{
						"type": {
							"library": "H5P.BranchingQuestion 1.0",
							"params": {
								"branchingQuestion": {
									"alternatives": [{"text": "broken", "nextContentId": 42}]
								}
							}
						},
						"contentId": 0,
						"nextContentId": -1
					}
				]
			}
		}`
		err := Validate(docWithBody(t, "H5P.BranchingScenario 1.8", body))
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeDanglingReference))
	})

	t.Run("empty content", func(t *testing.T) {
		err := Validate(docWithBody(t, "H5P.BranchingScenario 1.8", `{"branchingScenario": {"content": []}}`))
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeIncompleteDocument))
	})
}

package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSupported = []string{
	"H5P.MultiChoice",
	"H5P.TrueFalse",
	"H5P.QuestionSet",
	"H5P.BranchingScenario",
}

func TestExtractContentType_RecommendationPhraseWins(t *testing.T) {
	text := "H5P.MultiChoice would only cover one question. " +
		"I recommend H5P.QuestionSet for your quiz. " +
		"H5P.TrueFalse was also mentioned earlier."

	id, ok := ExtractContentType(text, testSupported)
	require.True(t, ok)
	assert.Equal(t, "H5P.QuestionSet", id)
}

func TestExtractContentType_LastMentionWinsWithoutRecommendation(t *testing.T) {
	text := "You could use H5P.MultiChoice, or maybe H5P.TrueFalse, or even H5P.QuestionSet."

	id, ok := ExtractContentType(text, testSupported)
	require.True(t, ok)
	assert.Equal(t, "H5P.QuestionSet", id)
}

func TestExtractContentType_UnsupportedIdentifiersIgnored(t *testing.T) {
	id, ok := ExtractContentType("I suggest H5P.Chart for this, or H5P.TrueFalse as a fallback.", testSupported)
	require.True(t, ok)
	assert.Equal(t, "H5P.TrueFalse", id)
}

func TestExtractContentType_NoMatch(t *testing.T) {
	_, ok := ExtractContentType("Tell me more about your learning goals first.", testSupported)
	assert.False(t, ok)

	_, ok = ExtractContentType("H5P.Chart is all I can think of.", testSupported)
	assert.False(t, ok)
}

func TestExtractContentType_Idempotent(t *testing.T) {
	text := "The best choice is H5P.BranchingScenario."
	first, ok1 := ExtractContentType(text, testSupported)
	second, ok2 := ExtractContentType(text, testSupported)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first, second)
}

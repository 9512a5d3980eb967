package agent

import (
	"testing"

	"github.com/maxbolgarin/reviewd/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalResultPlainJSON(t *testing.T) {
	result, err := unmarshalResult(`{"overall_score": 85, "summary": "good", "bug_count": 1}`)
	require.NoError(t, err)
	assert.Equal(t, 85, result.OverallScore)
	assert.Equal(t, "good", result.Summary)
	assert.Equal(t, 1, result.BugCount)
}

func TestUnmarshalResultFencedJSON(t *testing.T) {
	response := "```json\n{\"overall_score\": 70, \"summary\": \"ok\"}\n```"
	result, err := unmarshalResult(response)
	require.NoError(t, err)
	assert.Equal(t, 70, result.OverallScore)
}

func TestUnmarshalResultSurroundingText(t *testing.T) {
	response := `Here is my analysis:
{"overall_score": 60, "feedback": "needs work"}
Hope this helps!`
	result, err := unmarshalResult(response)
	require.NoError(t, err)
	assert.Equal(t, 60, result.OverallScore)
	assert.Equal(t, "needs work", result.Feedback)
}

func TestUnmarshalResultIssueArrays(t *testing.T) {
	response := `{
		"overall_score": 55,
		"suggestions": [{"line": 10, "message": "use a map", "severity": "low", "type": "refactor"}],
		"security_issues": [{"line": 3, "issue": "raw SQL", "severity": "high", "recommendation": "use bindings", "cwe_id": "CWE-89"}]
	}`
	result, err := unmarshalResult(response)
	require.NoError(t, err)

	require.Len(t, result.Suggestions, 1)
	require.NotNil(t, result.Suggestions[0].Line)
	assert.Equal(t, 10, *result.Suggestions[0].Line)

	require.Len(t, result.SecurityIssues, 1)
	assert.Equal(t, "CWE-89", result.SecurityIssues[0].CWEID)
	assert.Equal(t, model.SeverityHigh, result.SecurityIssues[0].Severity)
}

func TestUnmarshalResultNoJSON(t *testing.T) {
	_, err := unmarshalResult("I could not analyze this code.")
	assert.Error(t, err)

	_, err = unmarshalResult("")
	assert.Error(t, err)
}

func TestFixCommonJSONIssuesTruncated(t *testing.T) {
	truncated := `{
  "overall_score": 80,
  "suggestions": [
    {
      "line": 5,
      "message": "complete",
      "severity": "low",`

	fixed := fixCommonJSONIssues(truncated)
	result := &model.AnalysisResult{}
	require.NoError(t, json.UnmarshalFromString(fixed, result))
	assert.Equal(t, 80, result.OverallScore)
	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, model.SeverityLow, result.Suggestions[0].Severity)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{APIKey: "key", GeminiAPIKey: "gkey"}
	require.NoError(t, cfg.PrepareAndValidate())

	assert.Equal(t, defaultBaseURL, cfg.BaseURL)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.InDelta(t, defaultTemperature, cfg.Temperature, 0.001)
	assert.Equal(t, defaultResponseTokens, cfg.ResponseTokens)
	assert.Len(t, cfg.Models, 3)
}

func TestConfigRequiresKeysForProviders(t *testing.T) {
	cfg := Config{GeminiAPIKey: "gkey"}
	assert.Error(t, cfg.PrepareAndValidate(), "default models need an OpenAI-compatible key")

	cfg = Config{
		APIKey: "key",
		Models: []model.ModelProfile{
			{ID: "only", Provider: model.ProviderOpenAI, MaxTokens: 4096, QualityTier: model.TierLow},
		},
	}
	assert.NoError(t, cfg.PrepareAndValidate(), "Gemini key is not needed without Gemini models")

	cfg = Config{APIKey: "key", Models: []model.ModelProfile{
		{ID: "x", Provider: "unknown"},
	}}
	assert.Error(t, cfg.PrepareAndValidate())
}

func TestConfigProfile(t *testing.T) {
	cfg := Config{APIKey: "key", GeminiAPIKey: "gkey"}
	require.NoError(t, cfg.PrepareAndValidate())

	p, ok := cfg.Profile("gemini-2.5-flash")
	require.True(t, ok)
	assert.Equal(t, model.ProviderGemini, p.Provider)

	_, ok = cfg.Profile("nope")
	assert.False(t, ok)
}

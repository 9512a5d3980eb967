package prompts

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/maxbolgarin/reviewd/internal/model"
)

const (
	// Conservative token-to-character estimate used to size prompt content.
	charsPerToken = 3

	truncationMarker = "... [content truncated]"
)

// Build constructs the analysis prompt for one code unit, sized to the given
// model. Content longer than the model's token budget allows is cut with a
// truncation marker. The instruction block scales with the model's quality
// tier so that small models are not asked to produce output they cannot fit.
func Build(unit model.CodeUnit, profile model.ModelProfile, contextLabel string) model.Prompt {
	guidance, schema, fieldNotes := tierBlocks(profile.QualityTier)

	language := unit.Language
	if language == "" {
		language = model.DetectLanguage(unit.Filename)
	}

	var contextSection string
	if contextLabel != "" {
		contextSection = fmt.Sprintf("CONTEXT: %s\n", contextLabel)
	}

	var diffSection string
	if unit.DiffContext != "" {
		diffSection = fmt.Sprintf(diffSectionTemplate, Truncate(unit.DiffContext, profile.MaxTokens))
	}

	userPrompt := fmt.Sprintf(analysisUserPromptTemplate,
		language,
		contextSection,
		Truncate(unit.Content, profile.MaxTokens),
		diffSection,
		schema,
		fieldNotes,
	)

	return model.Prompt{
		SystemPrompt: fmt.Sprintf(analysisSystemPromptTemplate, guidance),
		UserPrompt:   userPrompt,
	}
}

// Truncate cuts content to roughly maxTokens worth of characters, appending a
// marker when anything was cut. The cut never splits a multi-byte rune.
func Truncate(content string, maxTokens int) string {
	limit := maxTokens * charsPerToken
	if limit <= 0 || len(content) <= limit {
		return content
	}
	for limit > 0 && !utf8.RuneStart(content[limit]) {
		limit--
	}
	return strings.TrimSpace(content[:limit]) + "\n" + truncationMarker
}

func tierBlocks(tier model.QualityTier) (guidance, schema, fieldNotes string) {
	switch tier {
	case model.TierHigh:
		return highTierGuidance, highTierSchema, highTierFieldNotes
	case model.TierLow:
		return lowTierGuidance, lowTierSchema, lowTierFieldNotes
	default:
		return mediumTierGuidance, mediumTierSchema, mediumTierFieldNotes
	}
}

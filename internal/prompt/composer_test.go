package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aidesk/internal/model"
)

func TestComposeSystemPromptFallsBackToGeneral(t *testing.T) {
	general := ComposeSystemPrompt(model.FeatureGeneral, nil, nil)
	unknown := ComposeSystemPrompt(model.Feature("SOMETHING_NEW"), nil, nil)

	assert.Equal(t, general, unknown)
	assert.Contains(t, general, "wide range of topics")
}

func TestComposeSystemPromptPersonaPerFeature(t *testing.T) {
	tests := []struct {
		feature model.Feature
		want    string
	}{
		{model.FeatureGeneral, "wide range of topics"},
		{model.FeatureCodeCheck, "coding standards"},
		{model.FeatureCodeHelper, "documentation and comments"},
		{model.FeatureFAQBot, "FAQ information"},
	}

	for _, tt := range tests {
		got := ComposeSystemPrompt(tt.feature, nil, nil)
		assert.Contains(t, got, tt.want, "feature %s", tt.feature)
	}
}

func TestComposeSystemPromptFAQConcatenation(t *testing.T) {
	items := []model.KnowledgeItem{
		{Question: "How do I reset my password?", Answer: "Use the reset link.", ImagePath: "uploads/reset.png"},
		{Question: "What are the support hours?", Answer: "9 to 5 on weekdays."},
	}

	got := ComposeSystemPrompt(model.FeatureFAQBot, items, nil)

	assert.Contains(t, got, "Q: How do I reset my password?")
	assert.Contains(t, got, "A: Use the reset link.")
	assert.Contains(t, got, "Image: uploads/reset.png")
	assert.Contains(t, got, "Q: What are the support hours?")

	// FAQ items only feed the faq-bot persona.
	general := ComposeSystemPrompt(model.FeatureGeneral, items, nil)
	assert.NotContains(t, general, "How do I reset my password?")
}

func TestComposeSystemPromptIncludesEveryContext(t *testing.T) {
	contexts := []model.Context{
		{Content: "We ship on Fridays.", ContentType: model.ContextTypeText},
		{Content: "handbook.pdf", ContentType: model.ContextTypeFile, ContentRaw: "Chapter 1: onboarding"},
	}

	got := ComposeSystemPrompt(model.FeatureGeneral, nil, contexts)

	assert.Contains(t, got, "Additional context:\nWe ship on Fridays.")
	assert.Contains(t, got, "Additional context from file:\nChapter 1: onboarding")
}

func TestComposeSystemPromptClosingInstruction(t *testing.T) {
	got := ComposeSystemPrompt(model.FeatureGeneral, nil, nil)

	assert.Contains(t, got, "Do not apologize.")
	assert.Contains(t, got, "still help with other questions")
}

func TestParseFeature(t *testing.T) {
	assert.Equal(t, model.FeatureGeneral, model.ParseFeature(""))
	assert.Equal(t, model.FeatureGeneral, model.ParseFeature("bogus"))
	assert.Equal(t, model.FeatureCodeCheck, model.ParseFeature("CODE_CHECK"))
	assert.Equal(t, model.FeatureFAQBot, model.ParseFeature("FAQ_BOT"))
}

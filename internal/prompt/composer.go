package prompt

import (
	"strings"

	"aidesk/internal/model"
)

const basePersona = "You are the AI assistant for this company. " +
	"You are only allowed to answer questions about programming and about the company itself. "

func persona(feature model.Feature) string {
	switch feature {
	case model.FeatureCodeCheck:
		return basePersona + "You will review code for compliance with the company coding standards."
	case model.FeatureCodeHelper:
		return basePersona + "You will help add documentation and comments to project code."
	case model.FeatureFAQBot:
		return basePersona + "You will answer questions about the company's products based on the FAQ information."
	default:
		return basePersona + "You can answer a wide range of topics including coding."
	}
}

const closingInstruction = "\nIf the question is unrelated to the information above, " +
	"politely explain that you do not have that information. " +
	"Do not apologize. " +
	"Reassure the user that you can still help with other questions."

// ComposeSystemPrompt builds the system prompt for one turn. It is a pure
// function and is safe to call with empty FAQ and context slices. Unknown
// feature values use the general persona.
func ComposeSystemPrompt(feature model.Feature, faqItems []model.KnowledgeItem, contexts []model.Context) string {
	var b strings.Builder
	b.WriteString(persona(feature))

	if feature == model.FeatureFAQBot && len(faqItems) > 0 {
		b.WriteString("\n\nAdditional information:\n")
		for _, item := range faqItems {
			b.WriteString("\nQ: ")
			b.WriteString(item.Question)
			b.WriteString("\nA: ")
			b.WriteString(item.Answer)
			if item.ImagePath != "" {
				b.WriteString("\nImage: ")
				b.WriteString(item.ImagePath)
			}
		}
	}

	for _, ctx := range contexts {
		switch ctx.ContentType {
		case model.ContextTypeFile:
			b.WriteString("\n\nAdditional context from file:\n")
			b.WriteString(ctx.ContentRaw)
		default:
			b.WriteString("\n\nAdditional context:\n")
			b.WriteString(ctx.Content)
		}
	}

	b.WriteString("\n")
	b.WriteString(closingInstruction)
	return b.String()
}

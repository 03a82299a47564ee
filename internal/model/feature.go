package model

// Feature selects which assistant persona and behavior set applies to a chat.
type Feature string

const (
	FeatureGeneral    Feature = "GENERAL"
	FeatureCodeCheck  Feature = "CODE_CHECK"
	FeatureCodeHelper Feature = "CODE_HELPER"
	FeatureFAQBot     Feature = "FAQ_BOT"
)

// ParseFeature maps a request string onto the closed feature set. Unknown or
// empty values fall back to FeatureGeneral, never an error.
func ParseFeature(raw string) Feature {
	switch Feature(raw) {
	case FeatureCodeCheck, FeatureCodeHelper, FeatureFAQBot:
		return Feature(raw)
	default:
		return FeatureGeneral
	}
}

// Package outbreak implements the outbreak-risk aggregation engine: it
// buckets waterborne-illness symptom reports and failed water-quality tests
// by area over a rolling window, classifies each area into a risk tier,
// raises deduplicated alerts for high-risk areas, and optionally asks a text
// generator for a short narrative brief.
package outbreak

import (
	"strings"

	"outbreakwatch/internal/types"
)

// waterborneKeywords are matched as lowercase substrings of each symptom.
var waterborneKeywords = []string{
	"diarrhea",
	"diarrhoea",
	"vomiting",
	"fever",
	"typhoid",
	"cholera",
	"jaundice",
	"dysentery",
	"stomach",
	"dehydration",
}

// IsWaterborneSymptom reports whether a single symptom string mentions one of
// the waterborne-illness keywords. Matching is case-insensitive substring.
func IsWaterborneSymptom(symptom string) bool {
	s := strings.ToLower(symptom)
	for _, kw := range waterborneKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Qualifies reports whether any symptom of the signal matches a keyword.
func Qualifies(sig types.MedicalSignal) bool {
	for _, s := range sig.Symptoms {
		if IsWaterborneSymptom(s) {
			return true
		}
	}
	return false
}

// QualifyingSignals filters signals down to those that qualify. The input
// slice is not modified.
func QualifyingSignals(signals []types.MedicalSignal) []types.MedicalSignal {
	out := make([]types.MedicalSignal, 0, len(signals))
	for _, sig := range signals {
		if Qualifies(sig) {
			out = append(out, sig)
		}
	}
	return out
}

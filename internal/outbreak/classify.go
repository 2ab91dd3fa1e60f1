package outbreak

import "outbreakwatch/internal/types"

// Classification weights and thresholds. A failed water test weighs twice a
// single qualifying symptom report.
const (
	SymptomWeight   = 1
	WaterFailWeight = 2

	HighRiskScore   = 5
	MediumRiskScore = 2
)

// Score returns the weighted risk score for an area's window totals.
func Score(symptoms, waterFails int) int {
	return symptoms*SymptomWeight + waterFails*WaterFailWeight
}

// Classify maps window totals to a risk tier. It is monotone in both
// arguments.
func Classify(symptoms, waterFails int) types.RiskTier {
	switch score := Score(symptoms, waterFails); {
	case score >= HighRiskScore:
		return types.RiskHigh
	case score >= MediumRiskScore:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

package types

import "time"

// UnknownArea is the area key assigned when no location source is available.
// It is aggregated like any other key but never alerted on.
const UnknownArea = "unknown"

// RiskTier is the three-level classification of an area.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Rank orders tiers so that higher risk compares greater.
func (t RiskTier) Rank() int {
	switch t {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// BacterialPresence is the outcome of a water-quality test.
type BacterialPresence string

const (
	BacterialPass    BacterialPresence = "pass"
	BacterialFail    BacterialPresence = "fail"
	BacterialUnknown BacterialPresence = "unknown"
)

// MedicalSignal is a patient medical record reduced to the fields the risk
// engine reads. PinCode is an optional record-level location.
type MedicalSignal struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	Symptoms   []string  `json:"symptoms"`
	PinCode    string    `json:"pinCode,omitempty"`
	ObservedAt time.Time `json:"observedAt"`
}

// WaterQualityReport is a single water test. Only failures inside the
// lookback window contribute to risk.
type WaterQualityReport struct {
	ID                string            `json:"id"`
	ReporterID        string            `json:"reporterId,omitempty"`
	AreaPinCode       string            `json:"areaPinCode,omitempty"`
	LocationCity      string            `json:"locationCity,omitempty"`
	BacterialPresence BacterialPresence `json:"bacterialPresence"`
	ReportedAt        time.Time         `json:"reportedAt"`
}

// ProfileLocation is the free-form location block of a user profile.
type ProfileLocation struct {
	PinCode string `json:"pinCode,omitempty"`
	City    string `json:"city,omitempty"`
}

// LocationProfile carries the location fields of one user's profile.
type LocationProfile struct {
	OwnerID  string          `json:"ownerId"`
	PinCode  string          `json:"pinCode,omitempty"`
	Location ProfileLocation `json:"location"`
}

// TrendPoint is one calendar day of the trailing trend series.
type TrendPoint struct {
	Date       string `json:"date"`
	Symptoms   int    `json:"symptoms"`
	WaterFails int    `json:"waterFails"`
}

// AreaAggregate is the per-area result of one risk query. It is recomputed on
// every query and never persisted.
type AreaAggregate struct {
	AreaKey        string       `json:"area"`
	Risk           RiskTier     `json:"risk"`
	SymptomCount   int          `json:"symptomCount"`
	WaterFailCount int          `json:"waterFailCount"`
	Trend          []TrendPoint `json:"trends"`

	// Baseline marks entries contributed by the seed supplier rather than
	// computed from stored records.
	Baseline bool `json:"-"`
}

// RiskReport is the outcome of a risk query.
type RiskReport struct {
	Since     time.Time       `json:"since"`
	Areas     []AreaAggregate `json:"areas"`
	AISummary string          `json:"aiSummary,omitempty"`
}

// AlertStatus is the lifecycle state of an Alert.
type AlertStatus string

const (
	AlertActive   AlertStatus = "ACTIVE"
	AlertResolved AlertStatus = "RESOLVED"
)

// AlertRiskHigh is the only risk level alerts are raised for.
const AlertRiskHigh = "HIGH"

// Alert is a persisted high-risk notification for one area. At most one
// ACTIVE alert exists per area key.
type Alert struct {
	ID         string      `json:"id"`
	AreaKey    string      `json:"area"`
	RiskLevel  string      `json:"riskLevel"`
	Message    string      `json:"message"`
	Status     AlertStatus `json:"status"`
	CreatedAt  time.Time   `json:"createdAt"`
	ResolvedAt *time.Time  `json:"resolvedAt,omitempty"`
	ResolvedBy string      `json:"resolvedBy,omitempty"`
}

// AlertFilter narrows alert listings. Empty fields match everything.
type AlertFilter struct {
	Status  AlertStatus
	AreaKey string
	Limit   int
}

package types

// CloudWatch metric names and dimensions. Emitters use these constants.
const (
	MetricAPILatency      = "APILatency"
	MetricAlertCreated    = "OutbreakAlertCreated"
	MetricSummaryOutcome  = "OutbreakSummary"
	MetricHighRiskAreas   = "HighRiskAreas"
	MetricAlertPublishErr = "AlertPublishFailure"

	DimEndpoint = "Endpoint"
	DimArea     = "Area"
	DimResult   = "Result"

	MetricNamespace = "OutbreakWatch"
)

// Summary outcomes reported under DimResult.
const (
	SummaryGenerated = "generated"
	SummarySkipped   = "skipped"
	SummaryFailed    = "failed"
)

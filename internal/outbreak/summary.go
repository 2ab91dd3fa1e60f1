package outbreak

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"outbreakwatch/internal/types"
)

// DefaultSummaryTimeout bounds a single text-generation call.
const DefaultSummaryTimeout = 15 * time.Second

// SummaryRequester asks a TextGenerator for narrative briefs. A nil generator
// means no credential is configured.
type SummaryRequester struct {
	gen     TextGenerator
	timeout time.Duration
	metrics MetricsRecorder
	logger  *slog.Logger
}

// NewSummaryRequester creates a requester. gen may be nil, which disables
// summaries. A non-positive timeout selects DefaultSummaryTimeout.
func NewSummaryRequester(gen TextGenerator, timeout time.Duration, metrics MetricsRecorder, logger *slog.Logger) *SummaryRequester {
	if timeout <= 0 {
		timeout = DefaultSummaryTimeout
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryRequester{gen: gen, timeout: timeout, metrics: metrics, logger: logger}
}

// Enabled reports whether a generator is configured.
func (s *SummaryRequester) Enabled() bool {
	return s != nil && s.gen != nil
}

// RiskSummaryPrompt renders the deterministic prompt for a list of areas.
// Areas are listed in the order given.
func RiskSummaryPrompt(areas []types.AreaAggregate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Waterborne disease surveillance for the last %d days.\n", int(LookbackWindow/(24*time.Hour)))
	b.WriteString("Each line is: area, risk tier, qualifying symptom reports, failed water tests.\n\n")
	for _, a := range areas {
		fmt.Fprintf(&b, "- %s: risk=%s symptoms=%d waterFails=%d\n", a.AreaKey, a.Risk, a.SymptomCount, a.WaterFailCount)
	}
	b.WriteString("\nWrite a brief (3-4 sentences) for public-health staff: name the highest-risk areas, ")
	b.WriteString("note whether contaminated water is implicated, and suggest immediate actions.")
	return b.String()
}

// AreaBriefPrompt renders the prompt for a single-area brief.
func AreaBriefPrompt(area string, symptoms, waterFails int) string {
	return fmt.Sprintf(
		"Area %s has %d waterborne-illness symptom reports and %d failed water-quality tests in the last %d days "+
			"(computed risk tier: %s). In 2-3 sentences, assess the outbreak risk for local health workers and "+
			"recommend precautions for residents.",
		area, symptoms, waterFails, int(LookbackWindow/(24*time.Hour)), Classify(symptoms, waterFails),
	)
}

func (s *SummaryRequester) generate(ctx context.Context, prompt string) (text string, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("text generator panicked: %v", r)
		}
	}()

	text, err = s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("text generator returned empty output")
	}
	return text, nil
}

// Summarize returns a brief over the given areas, or "" when no generator is
// configured, the list is empty, or generation fails. It never returns an
// error.
func (s *SummaryRequester) Summarize(ctx context.Context, areas []types.AreaAggregate) string {
	if !s.Enabled() || len(areas) == 0 {
		if s != nil {
			s.metrics.RecordSummaryOutcome(ctx, types.SummarySkipped)
		}
		return ""
	}

	text, err := s.generate(ctx, RiskSummaryPrompt(areas))
	if err != nil {
		s.logger.WarnContext(ctx, "risk summary unavailable", "areas", len(areas), "error", err)
		s.metrics.RecordSummaryOutcome(ctx, types.SummaryFailed)
		return ""
	}
	s.metrics.RecordSummaryOutcome(ctx, types.SummaryGenerated)
	return text
}

// Brief returns a narrative for one area. Unlike Summarize it reports
// misconfiguration and generation failures to the caller.
func (s *SummaryRequester) Brief(ctx context.Context, area string, symptoms, waterFails int) (string, error) {
	if !s.Enabled() {
		return "", types.NewAppError(types.ErrCodeUnavailableAINotConfigured, "AI summaries are not configured", nil)
	}

	text, err := s.generate(ctx, AreaBriefPrompt(area, symptoms, waterFails))
	if err != nil {
		s.logger.WarnContext(ctx, "area brief unavailable", "area", area, "error", err)
		s.metrics.RecordSummaryOutcome(ctx, types.SummaryFailed)
		return "", types.NewAppError(types.ErrCodeUpstreamAI, "AI summary service unavailable", err)
	}
	s.metrics.RecordSummaryOutcome(ctx, types.SummaryGenerated)
	return text, nil
}

package outbreak

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outbreakwatch/internal/types"
)

func sampleAreas() []types.AreaAggregate {
	return []types.AreaAggregate{
		{AreaKey: "781001", Risk: types.RiskHigh, SymptomCount: 4, WaterFailCount: 2},
		{AreaKey: "781002", Risk: types.RiskLow, SymptomCount: 1},
	}
}

func TestSummarize_SkipsWithoutGenerator(t *testing.T) {
	metrics := &recordingMetrics{}
	s := NewSummaryRequester(nil, 0, metrics, discardLogger())

	assert.Equal(t, "", s.Summarize(context.Background(), sampleAreas()))
	assert.Equal(t, []string{types.SummarySkipped}, metrics.outcomes)
}

func TestSummarize_SkipsEmptyAreaList(t *testing.T) {
	gen := &stubGenerator{text: "should not be used"}
	s := NewSummaryRequester(gen, 0, nil, discardLogger())

	assert.Equal(t, "", s.Summarize(context.Background(), nil))
	assert.Empty(t, gen.prompts)
}

func TestSummarize_DegradesOnFailure(t *testing.T) {
	tests := []struct {
		name string
		gen  *stubGenerator
	}{
		{"error", &stubGenerator{err: errors.New("503 from provider")}},
		{"timeout", &stubGenerator{err: context.DeadlineExceeded}},
		{"blank output", &stubGenerator{text: "   \n"}},
		{"panic", &stubGenerator{panics: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &recordingMetrics{}
			s := NewSummaryRequester(tt.gen, time.Second, metrics, discardLogger())

			assert.Equal(t, "", s.Summarize(context.Background(), sampleAreas()))
			assert.Equal(t, []string{types.SummaryFailed}, metrics.outcomes)
		})
	}
}

func TestSummarize_TrimsOutput(t *testing.T) {
	gen := &stubGenerator{text: "\n  Area 781001 needs attention.  \n"}
	s := NewSummaryRequester(gen, 0, nil, discardLogger())

	got := s.Summarize(context.Background(), sampleAreas())

	assert.Equal(t, "Area 781001 needs attention.", got)
	require.Len(t, gen.prompts, 1)
	assert.Equal(t, RiskSummaryPrompt(sampleAreas()), gen.prompts[0])
}

func TestRiskSummaryPrompt_Deterministic(t *testing.T) {
	p := RiskSummaryPrompt(sampleAreas())

	assert.Equal(t, p, RiskSummaryPrompt(sampleAreas()))
	assert.Contains(t, p, "- 781001: risk=high symptoms=4 waterFails=2")
	assert.Contains(t, p, "- 781002: risk=low symptoms=1 waterFails=0")
}

func TestBrief_NotConfigured(t *testing.T) {
	s := NewSummaryRequester(nil, 0, nil, discardLogger())

	_, err := s.Brief(context.Background(), "781001", 3, 1)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUnavailableAINotConfigured, appErr.Code)
}

func TestBrief_GenerationFailure(t *testing.T) {
	s := NewSummaryRequester(&stubGenerator{err: errors.New("boom")}, 0, nil, discardLogger())

	_, err := s.Brief(context.Background(), "781001", 3, 1)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamAI, appErr.Code)
}

func TestBrief_Success(t *testing.T) {
	gen := &stubGenerator{text: " Boil drinking water. "}
	s := NewSummaryRequester(gen, 0, nil, discardLogger())

	got, err := s.Brief(context.Background(), "781001", 3, 1)

	require.NoError(t, err)
	assert.Equal(t, "Boil drinking water.", got)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Area 781001 has 3")
	assert.Contains(t, gen.prompts[0], "computed risk tier: high", "3 + 2*1 scores 5")

	_, err = s.Brief(context.Background(), "781002", 1, 1)
	require.NoError(t, err)
	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "computed risk tier: medium")
}

func TestGenerate_AppliesTimeout(t *testing.T) {
	gen := &deadlineGenerator{}
	s := NewSummaryRequester(gen, 20*time.Millisecond, nil, discardLogger())

	assert.Equal(t, "", s.Summarize(context.Background(), sampleAreas()))
	assert.True(t, gen.sawDeadline)
}

// deadlineGenerator blocks until its context is done.
type deadlineGenerator struct {
	sawDeadline bool
}

func (g *deadlineGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	_, g.sawDeadline = ctx.Deadline()
	<-ctx.Done()
	return "", ctx.Err()
}

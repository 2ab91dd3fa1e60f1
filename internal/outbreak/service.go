package outbreak

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"outbreakwatch/internal/types"
)

// QueryOptions narrows a risk query.
type QueryOptions struct {
	// AreaKey, when non-empty, keeps only the area with exactly this key.
	AreaKey string
	// SkipSummary suppresses the text-generation call.
	SkipSummary bool
}

// ServiceDeps groups the collaborators of a Service. Source, Alerts and
// Summaries are required; Baseline may be nil to disable seed areas.
type ServiceDeps struct {
	Source    SignalSource
	Alerts    *AlertEmitter
	Summaries *SummaryRequester
	Baseline  BaselineSupplier
	Clock     types.Clock
	Metrics   MetricsRecorder
	Logger    *slog.Logger
}

// Service runs the full risk pipeline on every call. Nothing is cached
// between calls.
type Service struct {
	source    SignalSource
	alerts    *AlertEmitter
	summaries *SummaryRequester
	baseline  BaselineSupplier
	clock     types.Clock
	metrics   MetricsRecorder
	logger    *slog.Logger
}

// NewService wires a Service.
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		source:    deps.Source,
		alerts:    deps.Alerts,
		summaries: deps.Summaries,
		baseline:  deps.Baseline,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
	if s.clock == nil {
		s.clock = types.RealClock{}
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// GetOutbreakRisk loads in-window records, aggregates and classifies them by
// area, raises alerts for high-risk areas, merges baseline areas, applies the
// area filter and attaches a best-effort summary of the filtered set.
//
// Alerts are evaluated against every computed area before filtering, so a
// filtered query still raises alerts elsewhere. Any persistence failure
// fails the whole query; summary failures only drop the summary.
func (s *Service) GetOutbreakRisk(ctx context.Context, opts QueryOptions) (*types.RiskReport, error) {
	start := time.Now()
	now := s.clock.Now().UTC()
	since := WindowStart(now)

	var (
		signals  []types.MedicalSignal
		failures []types.WaterQualityReport
		profiles []types.LocationProfile
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		signals, err = s.source.FindSignalsInWindow(gCtx, since)
		return err
	})
	g.Go(func() error {
		var err error
		failures, err = s.source.FindFailuresInWindow(gCtx, since)
		return err
	})
	g.Go(func() error {
		var err error
		profiles, err = s.source.FindAllProfiles(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "failed to load risk inputs", "error", err)
		return nil, asInternal(err, "failed to load outbreak inputs")
	}

	live := Aggregate(now, signals, failures, NewProfileIndex(profiles))

	highCount := 0
	for _, a := range live {
		if a.Risk == types.RiskHigh {
			highCount++
		}
	}
	s.metrics.RecordHighRiskAreas(ctx, highCount)

	created, err := s.alerts.Emit(ctx, now, live)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to emit outbreak alerts", "error", err)
		return nil, asInternal(err, "failed to record outbreak alerts")
	}

	areas := live
	if s.baseline != nil {
		areas = MergeBaseline(live, s.baseline.Baseline(now))
	}
	areas = FilterByArea(areas, opts.AreaKey)
	SortAreas(areas)

	report := &types.RiskReport{Since: since, Areas: areas}
	if !opts.SkipSummary {
		report.AISummary = s.summaries.Summarize(ctx, areas)
	}

	s.logger.InfoContext(ctx, "outbreak risk computed",
		"signals", len(signals),
		"failures", len(failures),
		"live_areas", len(live),
		"high_areas", highCount,
		"alerts_created", len(created),
		"returned_areas", len(areas),
		"filter", opts.AreaKey,
		"summary", report.AISummary != "",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// AreaBrief produces a narrative for caller-supplied counts. No persistence
// is touched.
func (s *Service) AreaBrief(ctx context.Context, area string, symptoms, waterFails int) (string, error) {
	return s.summaries.Brief(ctx, area, symptoms, waterFails)
}

// FilterByArea keeps only the area whose key equals areaKey exactly. An empty
// key returns areas unchanged.
func FilterByArea(areas []types.AreaAggregate, areaKey string) []types.AreaAggregate {
	if areaKey == "" {
		return areas
	}
	out := make([]types.AreaAggregate, 0, 1)
	for _, a := range areas {
		if a.AreaKey == areaKey {
			out = append(out, a)
		}
	}
	return out
}

// SortAreas orders areas by tier (high first), then score, then key.
func SortAreas(areas []types.AreaAggregate) {
	sort.SliceStable(areas, func(i, j int) bool {
		a, b := areas[i], areas[j]
		if a.Risk.Rank() != b.Risk.Rank() {
			return a.Risk.Rank() > b.Risk.Rank()
		}
		sa, sb := Score(a.SymptomCount, a.WaterFailCount), Score(b.SymptomCount, b.WaterFailCount)
		if sa != sb {
			return sa > sb
		}
		return a.AreaKey < b.AreaKey
	})
}

func asInternal(err error, msg string) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return types.NewAppError(types.ErrCodeInternalDB, msg, err)
}

package outbreak

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"outbreakwatch/internal/types"
)

// AlertEmitter raises at most one ACTIVE alert per high-risk area.
type AlertEmitter struct {
	store     AlertStore
	publisher AlertPublisher
	metrics   MetricsRecorder
	logger    *slog.Logger
}

// NewAlertEmitter creates an emitter. publisher and metrics may be nil.
func NewAlertEmitter(store AlertStore, publisher AlertPublisher, metrics MetricsRecorder, logger *slog.Logger) *AlertEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &AlertEmitter{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// AlertMessage renders the alert text for an area aggregate.
func AlertMessage(a types.AreaAggregate) string {
	return fmt.Sprintf(
		"High outbreak risk in area %s: %d waterborne-illness symptom reports and %d failed water-quality tests in the last %d days.",
		a.AreaKey, a.SymptomCount, a.WaterFailCount, int(LookbackWindow/(24*time.Hour)),
	)
}

// alertable reports whether an aggregate may raise an alert.
func alertable(a types.AreaAggregate) bool {
	return a.Risk == types.RiskHigh && a.AreaKey != types.UnknownArea && !a.Baseline
}

// Emit ensures an ACTIVE alert exists for every alertable area. Existing
// ACTIVE alerts are left untouched and alerts are never resolved here.
// Returns the alerts created by this call. Any store error aborts the run.
func (e *AlertEmitter) Emit(ctx context.Context, now time.Time, areas []types.AreaAggregate) ([]types.Alert, error) {
	var created []types.Alert
	for _, area := range areas {
		if !alertable(area) {
			continue
		}

		existing, err := e.store.FindActiveByArea(ctx, area.AreaKey)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}

		alert := &types.Alert{
			AreaKey:   area.AreaKey,
			RiskLevel: types.AlertRiskHigh,
			Message:   AlertMessage(area),
			Status:    types.AlertActive,
			CreatedAt: now.UTC(),
		}
		ok, err := e.store.CreateIfNoActive(ctx, alert)
		if err != nil {
			return created, err
		}
		if !ok {
			// A concurrent query created it between our read and write.
			e.logger.InfoContext(ctx, "active alert created concurrently", "area", area.AreaKey)
			continue
		}

		e.logger.InfoContext(ctx, "outbreak alert created",
			"alert_id", alert.ID,
			"area", alert.AreaKey,
			"symptom_count", area.SymptomCount,
			"water_fail_count", area.WaterFailCount,
		)
		e.metrics.RecordAlertCreated(ctx, alert.AreaKey)
		e.publish(ctx, *alert)
		created = append(created, *alert)
	}
	return created, nil
}

func (e *AlertEmitter) publish(ctx context.Context, alert types.Alert) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishAlertCreated(ctx, alert); err != nil {
		e.logger.WarnContext(ctx, "failed to publish alert",
			"alert_id", alert.ID,
			"area", alert.AreaKey,
			"error", err,
		)
	}
}

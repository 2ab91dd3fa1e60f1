package outbreak

import (
	"context"
	"time"

	"outbreakwatch/internal/types"
)

// SignalSource reads the engine's inputs. Implementations exist for
// PostgreSQL (internal/db) and Firestore (internal/docstore).
type SignalSource interface {
	// FindSignalsInWindow returns medical records observed at or after since.
	FindSignalsInWindow(ctx context.Context, since time.Time) ([]types.MedicalSignal, error)

	// FindFailuresInWindow returns failed water tests reported at or after since.
	FindFailuresInWindow(ctx context.Context, since time.Time) ([]types.WaterQualityReport, error)

	// FindAllProfiles returns every user location profile.
	FindAllProfiles(ctx context.Context) ([]types.LocationProfile, error)
}

// RecordWriter stores engine inputs. Writes are keyed by record id (owner id
// for profiles), so replaying the same records does not duplicate them.
type RecordWriter interface {
	InsertSignal(ctx context.Context, s types.MedicalSignal) error
	InsertReport(ctx context.Context, r types.WaterQualityReport) error
	UpsertProfile(ctx context.Context, p types.LocationProfile) error
}

// AlertStore persists alerts. CreateIfNoActive must be an atomic conditional
// write scoped to {area, ACTIVE}: when an ACTIVE alert already exists for the
// area it returns false and leaves the store unchanged. On success it fills in
// the alert's ID and CreatedAt as stored.
type AlertStore interface {
	FindActiveByArea(ctx context.Context, areaKey string) (*types.Alert, error)
	CreateIfNoActive(ctx context.Context, alert *types.Alert) (bool, error)
}

// AlertAdminStore adds the listing and resolution operations used by the
// alert administration endpoints.
type AlertAdminStore interface {
	AlertStore
	GetByID(ctx context.Context, id string) (*types.Alert, error)
	List(ctx context.Context, filter types.AlertFilter) ([]types.Alert, error)
	// Resolve moves an ACTIVE alert to RESOLVED. It returns a not_found_alert
	// AppError for unknown ids and conflict_alert_already_resolved when the
	// alert is no longer ACTIVE.
	Resolve(ctx context.Context, id string, actorID string, at time.Time) (*types.Alert, error)
}

// TextGenerator produces free text for a prompt. It may fail or time out.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AlertPublisher fans out newly created alerts. Failures are logged by the
// caller and never fail a query.
type AlertPublisher interface {
	PublishAlertCreated(ctx context.Context, alert types.Alert) error
}

// MetricsRecorder receives engine-level metrics.
type MetricsRecorder interface {
	RecordAlertCreated(ctx context.Context, areaKey string)
	RecordSummaryOutcome(ctx context.Context, outcome string)
	RecordHighRiskAreas(ctx context.Context, count int)
}

// BaselineSupplier provides seed areas merged into query results so a
// dashboard is populated before live data exists.
type BaselineSupplier interface {
	Baseline(now time.Time) []types.AreaAggregate
}

type noopMetrics struct{}

func (noopMetrics) RecordAlertCreated(context.Context, string)   {}
func (noopMetrics) RecordSummaryOutcome(context.Context, string) {}
func (noopMetrics) RecordHighRiskAreas(context.Context, int)     {}

package outbreak

import (
	"context"
	"log/slog"

	"outbreakwatch/internal/types"
)

// MaxAlertListLimit caps a single alert listing.
const MaxAlertListLimit = 200

// AlertService exposes alert listing and the explicit resolve action.
type AlertService struct {
	store  AlertAdminStore
	clock  types.Clock
	logger *slog.Logger
}

// NewAlertService creates an AlertService. clock defaults to RealClock.
func NewAlertService(store AlertAdminStore, clock types.Clock, logger *slog.Logger) *AlertService {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertService{store: store, clock: clock, logger: logger}
}

// List returns alerts matching filter, newest first.
func (s *AlertService) List(ctx context.Context, filter types.AlertFilter) ([]types.Alert, error) {
	switch filter.Status {
	case "", types.AlertActive, types.AlertResolved:
	default:
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidQuery,
			"status must be ACTIVE or RESOLVED", nil, map[string]any{"status": string(filter.Status)})
	}
	if filter.Limit <= 0 || filter.Limit > MaxAlertListLimit {
		filter.Limit = MaxAlertListLimit
	}
	return s.store.List(ctx, filter)
}

// Resolve marks an ACTIVE alert RESOLVED on behalf of the caller in ctx.
// Once resolved, a later high-risk query may raise a new alert for the area.
func (s *AlertService) Resolve(ctx context.Context, id string) (*types.Alert, error) {
	if id == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "alert id is required", nil)
	}
	actor, ok := types.GetActor(ctx)
	if !ok {
		actor = types.SystemActor("internal")
	}

	alert, err := s.store.Resolve(ctx, id, actor.ID, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "outbreak alert resolved",
		"alert_id", alert.ID,
		"area", alert.AreaKey,
		"actor_id", actor.ID,
	)
	return alert, nil
}

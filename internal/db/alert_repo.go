package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outbreakwatch/internal/types"
)

const alertColumns = `id, area_key, risk_level, message, status, created_at, resolved_at, resolved_by`

// AlertRepository persists outbreak alerts in the outbreak_alerts table. The
// partial unique index uq_outbreak_alerts_active_area enforces at most one
// ACTIVE alert per area key.
type AlertRepository struct {
	db DBTX
}

// NewAlertRepository creates an AlertRepository backed by the given
// connection (pool or transaction).
func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

// NewAlertID returns a prefixed random alert id.
func NewAlertID() string {
	return "alert_" + uuid.NewString()
}

func scanAlert(row pgx.Row) (*types.Alert, error) {
	var (
		a          types.Alert
		status     string
		resolvedBy *string
	)
	if err := row.Scan(&a.ID, &a.AreaKey, &a.RiskLevel, &a.Message, &status, &a.CreatedAt, &a.ResolvedAt, &resolvedBy); err != nil {
		return nil, err
	}
	a.Status = types.AlertStatus(status)
	a.ResolvedBy = derefString(resolvedBy)
	return &a, nil
}

// FindActiveByArea returns the ACTIVE alert for areaKey, or nil when none
// exists.
func (r *AlertRepository) FindActiveByArea(ctx context.Context, areaKey string) (*types.Alert, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+alertColumns+`
		 FROM outbreak_alerts
		 WHERE area_key = $1 AND status = 'ACTIVE'`,
		areaKey,
	)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query active alert", err)
	}
	return a, nil
}

// CreateIfNoActive inserts alert as ACTIVE unless an ACTIVE alert already
// exists for its area. The check and the insert are a single statement
// arbitrated by the partial unique index, so concurrent callers cannot both
// succeed. On success alert.ID and alert.CreatedAt hold the stored values.
func (r *AlertRepository) CreateIfNoActive(ctx context.Context, alert *types.Alert) (bool, error) {
	id := alert.ID
	if id == "" {
		id = NewAlertID()
	}
	var createdAt *time.Time
	if !alert.CreatedAt.IsZero() {
		createdAt = &alert.CreatedAt
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO outbreak_alerts (id, area_key, risk_level, message, status, created_at)
		 VALUES ($1, $2, $3, $4, 'ACTIVE', COALESCE($5, NOW()))
		 ON CONFLICT (area_key) WHERE status = 'ACTIVE' DO NOTHING
		 RETURNING id, created_at`,
		id, alert.AreaKey, alert.RiskLevel, alert.Message, createdAt,
	)
	if err := row.Scan(&alert.ID, &alert.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to create alert", err)
	}
	alert.Status = types.AlertActive
	return true, nil
}

// GetByID returns the alert with the given id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*types.Alert, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM outbreak_alerts WHERE id = $1`,
		id,
	)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundAlert, "alert not found", nil, map[string]any{"id": id})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get alert", err)
	}
	return a, nil
}

// List returns alerts matching filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter types.AlertFilter) ([]types.Alert, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AreaKey != "" {
		args = append(args, filter.AreaKey)
		where = append(where, fmt.Sprintf("area_key = $%d", len(args)))
	}

	query := `SELECT ` + alertColumns + ` FROM outbreak_alerts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list alerts", err)
	}
	defer rows.Close()

	var out []types.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating alerts", err)
	}
	return out, nil
}

// Resolve transitions an ACTIVE alert to RESOLVED. The status guard in the
// WHERE clause makes concurrent resolves safe: exactly one succeeds.
func (r *AlertRepository) Resolve(ctx context.Context, id string, actorID string, at time.Time) (*types.Alert, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE outbreak_alerts
		 SET status = 'RESOLVED', resolved_at = $2, resolved_by = $3
		 WHERE id = $1 AND status = 'ACTIVE'
		 RETURNING `+alertColumns,
		id, at, nilIfEmpty(actorID),
	)
	a, err := scanAlert(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to resolve alert", err)
	}

	// Nothing updated: either the id is unknown or the alert is not ACTIVE.
	existing, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, types.NewAppErrorWithDetails(types.ErrCodeConflictAlertResolved,
		"alert is already resolved", nil, map[string]any{"id": existing.ID, "status": string(existing.Status)})
}

package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"outbreakwatch/internal/types"
)

// SignalRepository reads medical records, water-quality failures and
// location profiles.
type SignalRepository struct {
	db DBTX
}

// NewSignalRepository creates a SignalRepository backed by the given
// connection (pool or transaction).
func NewSignalRepository(db DBTX) *SignalRepository {
	return &SignalRepository{db: db}
}

// FindSignalsInWindow returns medical records observed at or after since.
// Keyword filtering happens in the engine, not in SQL.
func (r *SignalRepository) FindSignalsInWindow(ctx context.Context, since time.Time) ([]types.MedicalSignal, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, owner_id, symptoms, pin_code, observed_at
		 FROM medical_records
		 WHERE observed_at >= $1`,
		since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query medical records", err)
	}
	defer rows.Close()

	var out []types.MedicalSignal
	for rows.Next() {
		var (
			s   types.MedicalSignal
			pin *string
		)
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Symptoms, &pin, &s.ObservedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan medical record", err)
		}
		s.PinCode = derefString(pin)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating medical records", err)
	}
	return out, nil
}

// FindFailuresInWindow returns failed water tests reported at or after since.
func (r *SignalRepository) FindFailuresInWindow(ctx context.Context, since time.Time) ([]types.WaterQualityReport, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, reporter_id, area_pin_code, location_city, bacterial_presence, reported_at
		 FROM water_quality_reports
		 WHERE bacterial_presence = 'fail' AND reported_at >= $1`,
		since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query water quality reports", err)
	}
	defer rows.Close()

	var out []types.WaterQualityReport
	for rows.Next() {
		var (
			w                   types.WaterQualityReport
			reporter, pin, city *string
			presence            string
		)
		if err := rows.Scan(&w.ID, &reporter, &pin, &city, &presence, &w.ReportedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan water quality report", err)
		}
		w.ReporterID = derefString(reporter)
		w.AreaPinCode = derefString(pin)
		w.LocationCity = derefString(city)
		w.BacterialPresence = types.BacterialPresence(presence)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating water quality reports", err)
	}
	return out, nil
}

// FindAllProfiles returns every location profile.
func (r *SignalRepository) FindAllProfiles(ctx context.Context) ([]types.LocationProfile, error) {
	rows, err := r.db.Query(ctx,
		`SELECT owner_id, pin_code, location_pin_code, location_city
		 FROM location_profiles`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query location profiles", err)
	}
	defer rows.Close()

	profiles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.LocationProfile, error) {
		var (
			p                 types.LocationProfile
			pin, locPin, city *string
		)
		err := row.Scan(&p.OwnerID, &pin, &locPin, &city)
		p.PinCode = derefString(pin)
		p.Location = types.ProfileLocation{PinCode: derefString(locPin), City: derefString(city)}
		return p, err
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan location profiles", err)
	}
	return profiles, nil
}

// InsertSignal stores a medical record. Replaying an id is a no-op.
func (r *SignalRepository) InsertSignal(ctx context.Context, s types.MedicalSignal) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO medical_records (id, owner_id, symptoms, pin_code, observed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		s.ID, s.OwnerID, s.Symptoms, nilIfEmpty(s.PinCode), s.ObservedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert medical record", err)
	}
	return nil
}

// InsertReport stores a water-quality report. Replaying an id is a no-op.
func (r *SignalRepository) InsertReport(ctx context.Context, w types.WaterQualityReport) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO water_quality_reports
		 (id, reporter_id, area_pin_code, location_city, bacterial_presence, reported_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		w.ID, nilIfEmpty(w.ReporterID), nilIfEmpty(w.AreaPinCode), nilIfEmpty(w.LocationCity),
		string(w.BacterialPresence), w.ReportedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert water quality report", err)
	}
	return nil
}

// UpsertProfile stores or replaces a location profile.
func (r *SignalRepository) UpsertProfile(ctx context.Context, p types.LocationProfile) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO location_profiles (owner_id, pin_code, location_pin_code, location_city)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner_id) DO UPDATE SET
		   pin_code = EXCLUDED.pin_code,
		   location_pin_code = EXCLUDED.location_pin_code,
		   location_city = EXCLUDED.location_city`,
		p.OwnerID, nilIfEmpty(p.PinCode), nilIfEmpty(p.Location.PinCode), nilIfEmpty(p.Location.City),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert location profile", err)
	}
	return nil
}

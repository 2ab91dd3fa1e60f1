package outbreak

import (
	"context"
	"fmt"
	"time"

	"outbreakwatch/internal/types"
)

// Fixture is a batch of engine inputs loaded by outbreakctl seed.
type Fixture struct {
	Profiles []types.LocationProfile    `json:"profiles"`
	Signals  []types.MedicalSignal      `json:"signals"`
	Reports  []types.WaterQualityReport `json:"reports"`
}

// SeedResult counts the records written by Seed.
type SeedResult struct {
	Profiles int `json:"profiles"`
	Signals  int `json:"signals"`
	Reports  int `json:"reports"`
}

// Validate checks that every record carries the key it is stored under.
func (f Fixture) Validate() error {
	for i, p := range f.Profiles {
		if p.OwnerID == "" {
			return fmt.Errorf("profiles[%d]: ownerId is required", i)
		}
	}
	for i, s := range f.Signals {
		if s.ID == "" || s.OwnerID == "" {
			return fmt.Errorf("signals[%d]: id and ownerId are required", i)
		}
		if s.ObservedAt.IsZero() {
			return fmt.Errorf("signals[%d]: observedAt is required", i)
		}
	}
	for i, r := range f.Reports {
		if r.ID == "" {
			return fmt.Errorf("reports[%d]: id is required", i)
		}
		if r.ReportedAt.IsZero() {
			return fmt.Errorf("reports[%d]: reportedAt is required", i)
		}
		switch r.BacterialPresence {
		case types.BacterialPass, types.BacterialFail, types.BacterialUnknown:
		default:
			return fmt.Errorf("reports[%d]: bacterialPresence must be pass, fail or unknown, got %q", i, r.BacterialPresence)
		}
	}
	return nil
}

// Rebase returns a copy of f with every timestamp shifted by the same amount
// so that the latest event lands on now. Relative spacing is preserved, which
// keeps a checked-in fixture inside the lookback window.
func (f Fixture) Rebase(now time.Time) Fixture {
	var latest time.Time
	for _, s := range f.Signals {
		if s.ObservedAt.After(latest) {
			latest = s.ObservedAt
		}
	}
	for _, r := range f.Reports {
		if r.ReportedAt.After(latest) {
			latest = r.ReportedAt
		}
	}
	if latest.IsZero() {
		return f
	}
	shift := now.Sub(latest)

	out := Fixture{
		Profiles: f.Profiles,
		Signals:  make([]types.MedicalSignal, len(f.Signals)),
		Reports:  make([]types.WaterQualityReport, len(f.Reports)),
	}
	for i, s := range f.Signals {
		s.ObservedAt = s.ObservedAt.Add(shift)
		out.Signals[i] = s
	}
	for i, r := range f.Reports {
		r.ReportedAt = r.ReportedAt.Add(shift)
		out.Reports[i] = r
	}
	return out
}

// Seed validates f and writes profiles, then signals, then reports. It stops
// at the first failed write; the result counts what was written before it.
func Seed(ctx context.Context, w RecordWriter, f Fixture) (SeedResult, error) {
	var res SeedResult
	if err := f.Validate(); err != nil {
		return res, types.NewAppError(types.ErrCodeValidationInvalidBody, "invalid fixture", err)
	}
	for _, p := range f.Profiles {
		if err := w.UpsertProfile(ctx, p); err != nil {
			return res, err
		}
		res.Profiles++
	}
	for _, s := range f.Signals {
		if err := w.InsertSignal(ctx, s); err != nil {
			return res, err
		}
		res.Signals++
	}
	for _, r := range f.Reports {
		if err := w.InsertReport(ctx, r); err != nil {
			return res, err
		}
		res.Reports++
	}
	return res, nil
}

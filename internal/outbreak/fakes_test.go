package outbreak

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"outbreakwatch/internal/types"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func daysAgo(n int) time.Time {
	return testNow.AddDate(0, 0, -n)
}

func symptomSignal(owner, pin string, observed time.Time, symptoms ...string) types.MedicalSignal {
	return types.MedicalSignal{
		ID:         fmt.Sprintf("mr-%s-%d", owner, observed.Unix()),
		OwnerID:    owner,
		Symptoms:   symptoms,
		PinCode:    pin,
		ObservedAt: observed,
	}
}

func failedTest(pin string, reported time.Time) types.WaterQualityReport {
	return types.WaterQualityReport{
		ID:                fmt.Sprintf("wq-%s-%d", pin, reported.Unix()),
		AreaPinCode:       pin,
		BacterialPresence: types.BacterialFail,
		ReportedAt:        reported,
	}
}

// fakeSource is an in-memory SignalSource that applies the window filter the
// way the real stores do.
type fakeSource struct {
	mu       sync.Mutex
	signals  []types.MedicalSignal
	reports  []types.WaterQualityReport
	profiles []types.LocationProfile
	err      error
	writeErr error
}

func (f *fakeSource) FindSignalsInWindow(ctx context.Context, since time.Time) ([]types.MedicalSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []types.MedicalSignal
	for _, s := range f.signals {
		if !s.ObservedAt.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSource) FindFailuresInWindow(ctx context.Context, since time.Time) ([]types.WaterQualityReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.WaterQualityReport
	for _, r := range f.reports {
		if r.BacterialPresence == types.BacterialFail && !r.ReportedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) FindAllProfiles(ctx context.Context) ([]types.LocationProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.LocationProfile(nil), f.profiles...), nil
}

func (f *fakeSource) InsertSignal(ctx context.Context, s types.MedicalSignal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.signals = append(f.signals, s)
	return nil
}

func (f *fakeSource) InsertReport(ctx context.Context, r types.WaterQualityReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeSource) UpsertProfile(ctx context.Context, p types.LocationProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	for i := range f.profiles {
		if f.profiles[i].OwnerID == p.OwnerID {
			f.profiles[i] = p
			return nil
		}
	}
	f.profiles = append(f.profiles, p)
	return nil
}

// memAlertStore is an in-memory AlertAdminStore whose conditional create is
// atomic under its mutex.
type memAlertStore struct {
	mu        sync.Mutex
	alerts    []types.Alert
	seq       int
	findErr   error
	createErr error
	// raceOnCreate simulates another writer winning between find and create.
	raceOnCreate bool
}

func (m *memAlertStore) FindActiveByArea(ctx context.Context, areaKey string) (*types.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, a := range m.alerts {
		if a.AreaKey == areaKey && a.Status == types.AlertActive {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memAlertStore) CreateIfNoActive(ctx context.Context, alert *types.Alert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return false, m.createErr
	}
	if m.raceOnCreate {
		m.raceOnCreate = false
		m.seq++
		m.alerts = append(m.alerts, types.Alert{
			ID: fmt.Sprintf("alert_other_%d", m.seq), AreaKey: alert.AreaKey,
			RiskLevel: types.AlertRiskHigh, Status: types.AlertActive, CreatedAt: alert.CreatedAt,
		})
		return false, nil
	}
	for _, a := range m.alerts {
		if a.AreaKey == alert.AreaKey && a.Status == types.AlertActive {
			return false, nil
		}
	}
	m.seq++
	alert.ID = fmt.Sprintf("alert_%d", m.seq)
	m.alerts = append(m.alerts, *alert)
	return true, nil
}

func (m *memAlertStore) GetByID(ctx context.Context, id string) (*types.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == id {
			found := a
			return &found, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
}

func (m *memAlertStore) List(ctx context.Context, filter types.AlertFilter) ([]types.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Alert
	for _, a := range m.alerts {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.AreaKey != "" && a.AreaKey != filter.AreaKey {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memAlertStore) Resolve(ctx context.Context, id string, actorID string, at time.Time) (*types.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.alerts {
		if m.alerts[i].ID != id {
			continue
		}
		if m.alerts[i].Status != types.AlertActive {
			return nil, types.NewAppError(types.ErrCodeConflictAlertResolved, "alert already resolved", nil)
		}
		m.alerts[i].Status = types.AlertResolved
		m.alerts[i].ResolvedAt = &at
		m.alerts[i].ResolvedBy = actorID
		resolved := m.alerts[i]
		return &resolved, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
}

func (m *memAlertStore) activeFor(area string) []types.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Alert
	for _, a := range m.alerts {
		if a.AreaKey == area && a.Status == types.AlertActive {
			out = append(out, a)
		}
	}
	return out
}

// stubGenerator returns a canned response or error and records prompts.
type stubGenerator struct {
	mu      sync.Mutex
	text    string
	err     error
	panics  bool
	prompts []string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.panics {
		panic("generator exploded")
	}
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []types.Alert
	err       error
}

func (p *recordingPublisher) PublishAlertCreated(ctx context.Context, alert types.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, alert)
	return p.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	created  []string
	outcomes []string
	high     []int
}

func (r *recordingMetrics) RecordAlertCreated(ctx context.Context, area string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, area)
}

func (r *recordingMetrics) RecordSummaryOutcome(ctx context.Context, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingMetrics) RecordHighRiskAreas(ctx context.Context, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.high = append(r.high, count)
}

var errStoreDown = errors.New("store unreachable")

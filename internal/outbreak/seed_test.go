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

func sampleFixture() Fixture {
	old := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return Fixture{
		Profiles: []types.LocationProfile{
			{OwnerID: "u1", PinCode: "781001"},
			{OwnerID: "u2", Location: types.ProfileLocation{City: "Dispur"}},
		},
		Signals: []types.MedicalSignal{
			{ID: "mr-1", OwnerID: "u1", Symptoms: []string{"fever"}, ObservedAt: old.Add(-48 * time.Hour)},
			{ID: "mr-2", OwnerID: "u1", Symptoms: []string{"Diarrhoea"}, ObservedAt: old.Add(-24 * time.Hour)},
			{ID: "mr-3", OwnerID: "u1", Symptoms: []string{"vomiting"}, ObservedAt: old},
			{ID: "mr-4", OwnerID: "u2", Symptoms: []string{"headache"}, ObservedAt: old},
		},
		Reports: []types.WaterQualityReport{
			{ID: "wq-1", AreaPinCode: "781001", BacterialPresence: types.BacterialFail, ReportedAt: old.Add(-time.Hour)},
			{ID: "wq-2", LocationCity: "Dispur", BacterialPresence: types.BacterialPass, ReportedAt: old},
		},
	}
}

func TestSeed_WritesEveryRecord(t *testing.T) {
	src := &fakeSource{}

	res, err := Seed(context.Background(), src, sampleFixture())

	require.NoError(t, err)
	assert.Equal(t, SeedResult{Profiles: 2, Signals: 4, Reports: 2}, res)
	assert.Len(t, src.profiles, 2)
	assert.Len(t, src.signals, 4)
	assert.Len(t, src.reports, 2)
}

func TestSeed_RebasedFixtureDrivesRiskQuery(t *testing.T) {
	f := newServiceFixture(false)

	_, err := Seed(context.Background(), f.source, sampleFixture().Rebase(testNow))
	require.NoError(t, err)

	report, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{AreaKey: "781001"})
	require.NoError(t, err)
	require.Len(t, report.Areas, 1)
	assert.Equal(t, 3, report.Areas[0].SymptomCount)
	assert.Equal(t, 1, report.Areas[0].WaterFailCount)
	assert.Equal(t, types.RiskHigh, report.Areas[0].Risk)
	assert.Len(t, f.alerts.alerts, 1)
}

func TestFixtureRebase(t *testing.T) {
	orig := sampleFixture()

	got := orig.Rebase(testNow)

	assert.Equal(t, testNow, got.Signals[2].ObservedAt, "latest event lands on now")
	assert.Equal(t, testNow.Add(-48*time.Hour), got.Signals[0].ObservedAt)
	assert.Equal(t, testNow.Add(-time.Hour), got.Reports[0].ReportedAt)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), orig.Signals[2].ObservedAt, "input is not modified")

	empty := Fixture{Profiles: orig.Profiles}
	assert.Equal(t, empty, empty.Rebase(testNow))
}

func TestSeed_RejectsInvalidFixture(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Fixture)
	}{
		{"profile without owner", func(f *Fixture) { f.Profiles[0].OwnerID = "" }},
		{"signal without id", func(f *Fixture) { f.Signals[0].ID = "" }},
		{"signal without time", func(f *Fixture) { f.Signals[1].ObservedAt = time.Time{} }},
		{"report without id", func(f *Fixture) { f.Reports[0].ID = "" }},
		{"report with bad presence", func(f *Fixture) { f.Reports[1].BacterialPresence = "positive" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := sampleFixture()
			tt.mutate(&fx)
			src := &fakeSource{}

			_, err := Seed(context.Background(), src, fx)

			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, types.ErrCodeValidationInvalidBody, appErr.Code)
			assert.Empty(t, src.profiles, "nothing is written for an invalid fixture")
		})
	}
}

func TestSeed_StopsAtFirstWriteError(t *testing.T) {
	src := &fakeSource{writeErr: errors.New("disk full")}

	res, err := Seed(context.Background(), src, sampleFixture())

	assert.EqualError(t, err, "disk full")
	assert.Equal(t, SeedResult{}, res)
}

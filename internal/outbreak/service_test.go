package outbreak

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outbreakwatch/internal/types"
)

type serviceFixture struct {
	source  *fakeSource
	alerts  *memAlertStore
	gen     *stubGenerator
	metrics *recordingMetrics
	svc     *Service
}

func newServiceFixture(withBaseline bool) *serviceFixture {
	f := &serviceFixture{
		source:  &fakeSource{},
		alerts:  &memAlertStore{},
		gen:     &stubGenerator{text: "summary text"},
		metrics: &recordingMetrics{},
	}
	var baseline BaselineSupplier
	if withBaseline {
		baseline = NewStaticBaseline()
	}
	f.svc = NewService(ServiceDeps{
		Source:    f.source,
		Alerts:    NewAlertEmitter(f.alerts, nil, f.metrics, discardLogger()),
		Summaries: NewSummaryRequester(f.gen, 0, f.metrics, discardLogger()),
		Baseline:  baseline,
		Clock:     types.FixedClock(testNow),
		Metrics:   f.metrics,
		Logger:    discardLogger(),
	})
	return f
}

// seedHigh781001 produces area 781001 at HIGH: 3 symptoms + 1 failure = 5.
func (f *serviceFixture) seedHigh781001() {
	f.source.signals = append(f.source.signals,
		symptomSignal("u1", "781001", daysAgo(1), "fever"),
		symptomSignal("u2", "781001", daysAgo(2), "diarrhea"),
		symptomSignal("u3", "781001", daysAgo(5), "Vomiting"),
	)
	f.source.reports = append(f.source.reports, failedTest("781001", daysAgo(1)))
}

func TestGetOutbreakRisk_ResultShape(t *testing.T) {
	f := newServiceFixture(false)
	f.seedHigh781001()

	report, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{})

	require.NoError(t, err)
	assert.Equal(t, WindowStart(testNow), report.Since)
	require.Len(t, report.Areas, 1)
	a := report.Areas[0]
	assert.Equal(t, "781001", a.AreaKey)
	assert.Equal(t, types.RiskHigh, a.Risk)
	assert.Equal(t, 3, a.SymptomCount)
	assert.Equal(t, 1, a.WaterFailCount)
	assert.Len(t, a.Trend, TrendDays)
	assert.Equal(t, "summary text", report.AISummary)
}

func TestGetOutbreakRisk_AlertIdempotence(t *testing.T) {
	f := newServiceFixture(true)
	f.seedHigh781001()

	for i := 0; i < 2; i++ {
		_, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{})
		require.NoError(t, err)
	}

	assert.Len(t, f.alerts.activeFor("781001"), 1)
	assert.Len(t, f.alerts.alerts, 1, "baseline areas never raise alerts")
}

func TestGetOutbreakRisk_ConcurrentQueriesRaiseOneAlert(t *testing.T) {
	f := newServiceFixture(false)
	f.seedHigh781001()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{SkipSummary: true})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.alerts.activeFor("781001"), 1)
}

func TestGetOutbreakRisk_TierDropDoesNotResolve(t *testing.T) {
	f := newServiceFixture(false)
	f.seedHigh781001()

	_, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{})
	require.NoError(t, err)

	// Drop the failure: score falls to 3 (MEDIUM).
	f.source.mu.Lock()
	f.source.reports = nil
	f.source.mu.Unlock()

	report, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, types.RiskMedium, report.Areas[0].Risk)
	active := f.alerts.activeFor("781001")
	require.Len(t, active, 1)
	assert.Equal(t, types.AlertActive, active[0].Status)
	assert.Len(t, f.alerts.alerts, 1)
}

func TestGetOutbreakRisk_ResolvedAlertAllowsNewOne(t *testing.T) {
	f := newServiceFixture(false)
	f.seedHigh781001()

	_, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{})
	require.NoError(t, err)
	first := f.alerts.activeFor("781001")[0]
	_, err = f.alerts.Resolve(context.Background(), first.ID, "ops", testNow)
	require.NoError(t, err)

	_, err = f.svc.GetOutbreakRisk(context.Background(), QueryOptions{})
	require.NoError(t, err)

	active := f.alerts.activeFor("781001")
	require.Len(t, active, 1)
	assert.NotEqual(t, first.ID, active[0].ID)
}

func TestGetOutbreakRisk_UnknownAreaRetainedButNotAlerted(t *testing.T) {
	f := newServiceFixture(false)
	for i := 0; i < 6; i++ {
		f.source.signals = append(f.source.signals, symptomSignal("anon", "", daysAgo(1), "cholera"))
	}

	report, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{})

	require.NoError(t, err)
	require.Len(t, report.Areas, 1)
	assert.Equal(t, types.UnknownArea, report.Areas[0].AreaKey)
	assert.Equal(t, types.RiskHigh, report.Areas[0].Risk)
	assert.Empty(t, f.alerts.alerts)
}

func TestGetOutbreakRisk_BaselineOverride(t *testing.T) {
	f := newServiceFixture(true)
	// 781005 is a seed key (6 symptoms, 2 failures); live data has one symptom.
	f.source.signals = []types.MedicalSignal{symptomSignal("u1", "781005", daysAgo(1), "fever")}

	report, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{AreaKey: "781005"})

	require.NoError(t, err)
	require.Len(t, report.Areas, 1)
	assert.Equal(t, 1, report.Areas[0].SymptomCount)
	assert.Equal(t, 0, report.Areas[0].WaterFailCount)
	assert.Equal(t, types.RiskLow, report.Areas[0].Risk)
}

func TestGetOutbreakRisk_BaselinePresentWithoutLiveData(t *testing.T) {
	f := newServiceFixture(true)

	report, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{})

	require.NoError(t, err)
	assert.Len(t, report.Areas, len(DefaultBaselineSeeds))
	assert.Equal(t, types.RiskHigh, report.Areas[0].Risk, "sorted high first")
	assert.Empty(t, f.alerts.alerts)
}

func TestGetOutbreakRisk_SummaryDegradation(t *testing.T) {
	f := newServiceFixture(true)
	f.seedHigh781001()
	f.gen.err = errors.New("provider down")

	report, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{})

	require.NoError(t, err)
	assert.NotEmpty(t, report.Areas)
	assert.Empty(t, report.AISummary)
}

func TestGetOutbreakRisk_FilterCorrectness(t *testing.T) {
	f := newServiceFixture(false)
	f.seedHigh781001()
	f.source.signals = append(f.source.signals, symptomSignal("u9", "781002", daysAgo(1), "fever"))

	report, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{AreaKey: "781099"})

	require.NoError(t, err)
	assert.NotNil(t, report.Areas)
	assert.Empty(t, report.Areas)
	assert.Empty(t, report.AISummary, "no summary for an empty filtered set")
	assert.Empty(t, f.gen.prompts)
}

func TestGetOutbreakRisk_FilterIsExactAndSummaryCoversFilteredSet(t *testing.T) {
	f := newServiceFixture(false)
	f.seedHigh781001()
	f.source.signals = append(f.source.signals, symptomSignal("u9", "781002", daysAgo(1), "fever"))

	report, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{AreaKey: "781002"})

	require.NoError(t, err)
	require.Len(t, report.Areas, 1)
	assert.Equal(t, "781002", report.Areas[0].AreaKey)
	require.Len(t, f.gen.prompts, 1)
	assert.NotContains(t, f.gen.prompts[0], "781001")
	// Alerts are evaluated over every computed area, not just the filtered one.
	assert.Len(t, f.alerts.activeFor("781001"), 1)
}

func TestGetOutbreakRisk_SkipSummary(t *testing.T) {
	f := newServiceFixture(false)
	f.seedHigh781001()

	report, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{SkipSummary: true})

	require.NoError(t, err)
	assert.Empty(t, report.AISummary)
	assert.Empty(t, f.gen.prompts)
}

func TestGetOutbreakRisk_PersistenceFailureFailsRequest(t *testing.T) {
	t.Run("read", func(t *testing.T) {
		f := newServiceFixture(true)
		f.source.err = errStoreDown

		report, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{})

		assert.Nil(t, report)
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
		assert.ErrorIs(t, err, errStoreDown)
	})

	t.Run("alert write", func(t *testing.T) {
		f := newServiceFixture(true)
		f.seedHigh781001()
		f.alerts.createErr = errStoreDown

		report, err := f.svc.GetOutbreakRisk(context.Background(), QueryOptions{})

		assert.Nil(t, report)
		assert.ErrorIs(t, err, errStoreDown)
	})
}

func TestSortAreas(t *testing.T) {
	areas := []types.AreaAggregate{
		{AreaKey: "b", Risk: types.RiskLow},
		{AreaKey: "c", Risk: types.RiskHigh, SymptomCount: 5},
		{AreaKey: "a", Risk: types.RiskHigh, SymptomCount: 5},
		{AreaKey: "d", Risk: types.RiskHigh, SymptomCount: 9},
		{AreaKey: "e", Risk: types.RiskMedium, SymptomCount: 2},
	}

	SortAreas(areas)

	keys := make([]string, len(areas))
	for i, a := range areas {
		keys[i] = a.AreaKey
	}
	assert.Equal(t, []string{"d", "a", "c", "e", "b"}, keys)
}

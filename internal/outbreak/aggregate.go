package outbreak

import (
	"sort"
	"time"

	"outbreakwatch/internal/types"
)

const (
	// LookbackWindow is the period whose events count toward area totals.
	LookbackWindow = 14 * 24 * time.Hour

	// TrendDays is the number of trailing calendar days in each trend series.
	TrendDays = 7

	// TrendDateLayout formats trend bucket dates (ISO 8601 calendar date).
	TrendDateLayout = "2006-01-02"
)

// WindowStart returns the inclusive lower bound of the lookback window.
func WindowStart(now time.Time) time.Time {
	return now.UTC().Add(-LookbackWindow)
}

// TrendDates returns the TrendDays UTC calendar dates ending on now's date,
// oldest first.
func TrendDates(now time.Time) []string {
	today := now.UTC()
	dates := make([]string, TrendDays)
	for i := 0; i < TrendDays; i++ {
		dates[i] = today.AddDate(0, 0, i-(TrendDays-1)).Format(TrendDateLayout)
	}
	return dates
}

// areaTally accumulates one area's counts during aggregation.
type areaTally struct {
	symptoms   int
	waterFails int
	trend      []types.TrendPoint
}

func newAreaTally(dates []string) *areaTally {
	trend := make([]types.TrendPoint, len(dates))
	for i, d := range dates {
		trend[i] = types.TrendPoint{Date: d}
	}
	return &areaTally{trend: trend}
}

// Aggregate buckets qualifying signals and failed water tests by area over
// the lookback window ending at now. Events before WindowStart(now) are
// dropped; events older than the trend window still count toward totals.
// Areas with no events are not materialized. Every returned aggregate is
// classified and carries exactly TrendDays trend points. The result is
// sorted by area key and the function performs no I/O.
func Aggregate(now time.Time, signals []types.MedicalSignal, reports []types.WaterQualityReport, idx ProfileIndex) []types.AreaAggregate {
	since := WindowStart(now)
	dates := TrendDates(now)
	dateIndex := make(map[string]int, len(dates))
	for i, d := range dates {
		dateIndex[d] = i
	}

	tallies := make(map[string]*areaTally)
	tallyFor := func(area string) *areaTally {
		t, ok := tallies[area]
		if !ok {
			t = newAreaTally(dates)
			tallies[area] = t
		}
		return t
	}

	for _, sig := range signals {
		if sig.ObservedAt.Before(since) || !Qualifies(sig) {
			continue
		}
		t := tallyFor(idx.ResolveSignal(sig))
		t.symptoms++
		if i, ok := dateIndex[sig.ObservedAt.UTC().Format(TrendDateLayout)]; ok {
			t.trend[i].Symptoms++
		}
	}

	for _, r := range reports {
		if r.BacterialPresence != types.BacterialFail || r.ReportedAt.Before(since) {
			continue
		}
		t := tallyFor(idx.ResolveReport(r))
		t.waterFails++
		if i, ok := dateIndex[r.ReportedAt.UTC().Format(TrendDateLayout)]; ok {
			t.trend[i].WaterFails++
		}
	}

	out := make([]types.AreaAggregate, 0, len(tallies))
	for area, t := range tallies {
		out = append(out, types.AreaAggregate{
			AreaKey:        area,
			Risk:           Classify(t.symptoms, t.waterFails),
			SymptomCount:   t.symptoms,
			WaterFailCount: t.waterFails,
			Trend:          t.trend,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AreaKey < out[j].AreaKey })
	return out
}

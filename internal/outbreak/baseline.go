package outbreak

import (
	"time"

	"outbreakwatch/internal/types"
)

// BaselineSeed is one fixed demo area.
type BaselineSeed struct {
	AreaKey        string
	SymptomCount   int
	WaterFailCount int
}

// DefaultBaselineSeeds keep the dashboard populated with one area per tier.
var DefaultBaselineSeeds = []BaselineSeed{
	{AreaKey: "781005", SymptomCount: 6, WaterFailCount: 2},
	{AreaKey: "781014", SymptomCount: 3, WaterFailCount: 0},
	{AreaKey: "782001", SymptomCount: 1, WaterFailCount: 0},
}

// StaticBaseline supplies fixed seed areas with a synthesized trend.
type StaticBaseline struct {
	Seeds []BaselineSeed
}

// NewStaticBaseline returns a supplier over DefaultBaselineSeeds.
func NewStaticBaseline() *StaticBaseline {
	return &StaticBaseline{Seeds: DefaultBaselineSeeds}
}

// Baseline returns the seed areas, classified, with trends ending on now's
// date. Counts are spread over the trend days newest first so the series
// sums to the seed totals.
func (b *StaticBaseline) Baseline(now time.Time) []types.AreaAggregate {
	dates := TrendDates(now)
	out := make([]types.AreaAggregate, 0, len(b.Seeds))
	for _, s := range b.Seeds {
		trend := make([]types.TrendPoint, len(dates))
		for i, d := range dates {
			trend[i] = types.TrendPoint{Date: d}
		}
		for i := 0; i < s.SymptomCount; i++ {
			trend[len(trend)-1-i%len(trend)].Symptoms++
		}
		for i := 0; i < s.WaterFailCount; i++ {
			trend[len(trend)-1-(2*i)%len(trend)].WaterFails++
		}
		out = append(out, types.AreaAggregate{
			AreaKey:        s.AreaKey,
			Risk:           Classify(s.SymptomCount, s.WaterFailCount),
			SymptomCount:   s.SymptomCount,
			WaterFailCount: s.WaterFailCount,
			Trend:          trend,
			Baseline:       true,
		})
	}
	return out
}

// MergeBaseline appends baseline areas whose keys are absent from live.
// Live data always wins for a shared key.
func MergeBaseline(live, baseline []types.AreaAggregate) []types.AreaAggregate {
	seen := make(map[string]struct{}, len(live))
	for _, a := range live {
		seen[a.AreaKey] = struct{}{}
	}
	merged := make([]types.AreaAggregate, 0, len(live)+len(baseline))
	merged = append(merged, live...)
	for _, b := range baseline {
		if _, ok := seen[b.AreaKey]; ok {
			continue
		}
		merged = append(merged, b)
	}
	return merged
}

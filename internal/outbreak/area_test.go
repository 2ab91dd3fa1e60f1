package outbreak

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"outbreakwatch/internal/types"
)

func TestResolveSignal_PriorityChain(t *testing.T) {
	idx := NewProfileIndex([]types.LocationProfile{
		{OwnerID: "full", PinCode: "781001", Location: types.ProfileLocation{PinCode: "781002", City: "Guwahati"}},
		{OwnerID: "locpin", Location: types.ProfileLocation{PinCode: "781002", City: "Guwahati"}},
		{OwnerID: "city", Location: types.ProfileLocation{City: "Guwahati"}},
		{OwnerID: "empty"},
	})

	tests := []struct {
		name string
		sig  types.MedicalSignal
		want string
	}{
		{"record pin wins", types.MedicalSignal{OwnerID: "full", PinCode: "790001"}, "790001"},
		{"profile pin", types.MedicalSignal{OwnerID: "full"}, "781001"},
		{"profile location pin", types.MedicalSignal{OwnerID: "locpin"}, "781002"},
		{"profile city", types.MedicalSignal{OwnerID: "city"}, "Guwahati"},
		{"empty profile", types.MedicalSignal{OwnerID: "empty"}, types.UnknownArea},
		{"no profile", types.MedicalSignal{OwnerID: "ghost"}, types.UnknownArea},
		{"no owner", types.MedicalSignal{}, types.UnknownArea},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.ResolveSignal(tt.sig))
		})
	}
}

func TestResolveReport_PriorityChain(t *testing.T) {
	idx := NewProfileIndex([]types.LocationProfile{
		{OwnerID: "reporter", PinCode: "781003"},
	})

	assert.Equal(t, "781001", idx.ResolveReport(types.WaterQualityReport{AreaPinCode: "781001", LocationCity: "Dispur", ReporterID: "reporter"}))
	assert.Equal(t, "Dispur", idx.ResolveReport(types.WaterQualityReport{LocationCity: "Dispur", ReporterID: "reporter"}))
	assert.Equal(t, "781003", idx.ResolveReport(types.WaterQualityReport{ReporterID: "reporter"}))
	assert.Equal(t, types.UnknownArea, idx.ResolveReport(types.WaterQualityReport{}))
}

// Area keys are compared verbatim. Inconsistent formatting of the same PIN
// produces separate buckets; this documents current behavior.
func TestResolve_NoNormalization(t *testing.T) {
	idx := NewProfileIndex(nil)

	keys := []string{
		idx.ResolveSignal(types.MedicalSignal{PinCode: "781001"}),
		idx.ResolveSignal(types.MedicalSignal{PinCode: " 781001"}),
		idx.ResolveSignal(types.MedicalSignal{PinCode: "781001 "}),
	}
	assert.Equal(t, []string{"781001", " 781001", "781001 "}, keys)

	agg := Aggregate(testNow, []types.MedicalSignal{
		symptomSignal("a", "Guwahati", daysAgo(1), "fever"),
		symptomSignal("b", "guwahati", daysAgo(1), "fever"),
	}, nil, idx)
	assert.Len(t, agg, 2, "case variants are distinct areas")
}

func TestNewProfileIndex_LastWins(t *testing.T) {
	idx := NewProfileIndex([]types.LocationProfile{
		{OwnerID: "u1", PinCode: "111111"},
		{OwnerID: "u1", PinCode: "222222"},
		{PinCode: "333333"},
	})

	assert.Len(t, idx, 1)
	assert.Equal(t, "222222", idx.ResolveSignal(types.MedicalSignal{OwnerID: "u1"}))
}

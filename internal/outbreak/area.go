package outbreak

import "outbreakwatch/internal/types"

// ProfileIndex maps an owner id to its location profile. Build it once per
// query with NewProfileIndex.
type ProfileIndex map[string]types.LocationProfile

// NewProfileIndex indexes profiles by owner id. A later profile for the same
// owner replaces an earlier one.
func NewProfileIndex(profiles []types.LocationProfile) ProfileIndex {
	idx := make(ProfileIndex, len(profiles))
	for _, p := range profiles {
		if p.OwnerID == "" {
			continue
		}
		idx[p.OwnerID] = p
	}
	return idx
}

// firstNonEmpty returns the first non-empty candidate, or UnknownArea.
// Values are returned verbatim: keys are compared by exact string equality.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return types.UnknownArea
}

// profileCandidates lists a profile's location fields in resolution order.
func (idx ProfileIndex) profileCandidates(ownerID string) []string {
	if ownerID == "" {
		return nil
	}
	p, ok := idx[ownerID]
	if !ok {
		return nil
	}
	return []string{p.PinCode, p.Location.PinCode, p.Location.City}
}

// ResolveSignal assigns an area key to a medical signal:
// record PIN, then the owner's profile PIN, profile location PIN,
// profile city, and finally "unknown".
func (idx ProfileIndex) ResolveSignal(sig types.MedicalSignal) string {
	candidates := append([]string{sig.PinCode}, idx.profileCandidates(sig.OwnerID)...)
	return firstNonEmpty(candidates...)
}

// ResolveReport assigns an area key to a water-quality report. The report's
// own area PIN and city describe where the sample was taken, so they win over
// the reporter's profile chain, which is consulted only when both are empty.
func (idx ProfileIndex) ResolveReport(r types.WaterQualityReport) string {
	candidates := append([]string{r.AreaPinCode, r.LocationCity}, idx.profileCandidates(r.ReporterID)...)
	return firstNonEmpty(candidates...)
}

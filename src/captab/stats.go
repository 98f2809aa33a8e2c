package captab

import (
	"io"

	"github.com/google/pprof/profile"

	"github.com/exocap/kernel/src/defs"
)

/// Stats is the capability_stats payload exposed through system_info().
type Stats struct {
	UsedSlots    int
	FreeSlots    int
	ByResource   map[defs.ResourceType]int
	PendingCount int
}

/// Stats snapshots slot occupancy, broken down by resource type, plus the
/// number of slots currently stuck in PendingRevoke awaiting a borrow
/// release.
func (t *Table) Stats() Stats {
	t.wrData.Lock()
	free := len(t.rw.freeSlots)
	pending := 0
	for _, l := range t.pendingRevoke {
		pending += len(l)
	}
	t.wrData.Unlock()

	byRes := make(map[defs.ResourceType]int)
	used := 0
	t.roData.RLock()
	for i := range t.slots {
		s := &t.slots[i]
		if s.State == Live || s.State == PendingRevoke {
			used++
			byRes[s.ResourceId.Type]++
		}
	}
	t.roData.RUnlock()

	return Stats{UsedSlots: used, FreeSlots: free, ByResource: byRes, PendingCount: pending}
}

/// ExportProfile renders the current Stats as a pprof profile, one sample
/// per resource type, so the table's occupancy can be inspected with
/// standard pprof tooling (go tool pprof) instead of a bespoke format.
func (t *Table) ExportProfile() *profile.Profile {
	stats := t.Stats()

	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "capabilities", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "snapshot", Unit: "count"},
		Period:     1,
	}
	for rty, n := range stats.ByResource {
		fn := &profile.Function{ID: uint64(rty) + 1, Name: rty.String()}
		loc := &profile.Location{ID: uint64(rty) + 1, Line: []profile.Line{{Function: fn, Line: 0}}}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{int64(n)},
			Label:    map[string][]string{"resource_type": {rty.String()}},
		})
	}
	return p
}

/// WriteProfile writes the gzip-compressed pprof encoding of ExportProfile
/// to w, for callers that want to persist or pipe a snapshot.
func (t *Table) WriteProfile(w io.Writer) error {
	return t.ExportProfile().Write(w)
}

// Package schedwarp implements the per-core GTO (greedy-then-oldest) warp
// scheduler and the round-robin priority counter that rotates issue order
// across a core's schedulers (spec.md §4.8).
package schedwarp

import "sort"

// Candidate is the minimal view of a supervised warp's eligibility and age
// the GTO comparator needs (spec.md §4.8: "orders its supervised warps by
// (1) not functionally done, (2) not waiting ..., (3) highest dynamic-warp-id-age").
type Candidate struct {
	WarpID        uint32
	DynamicWarpID uint64
	FunctionallyDone bool
	Waiting          bool // barrier, memory barrier, or outstanding atomics
}

// eligible reports whether c can be considered for issue at all.
func (c Candidate) eligible() bool {
	return !c.FunctionallyDone && !c.Waiting
}

// Order sorts candidates into GTO issue-priority order: functionally-done
// and waiting warps sink to the back, and among the rest the
// highest dynamic-warp-id (oldest-launched, "greedy-then-oldest") comes
// first. Sort is stable so ties preserve supervised-warp input order.
func Order(candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := out[i].eligible(), out[j].eligible()
		if ei != ej {
			return ei // eligible warps sort before ineligible ones
		}
		if !ei {
			return false // both ineligible: input order is as good as any
		}
		return out[i].DynamicWarpID > out[j].DynamicWarpID
	})
	return out
}

// Next returns the first eligible candidate in GTO order, or false if none
// is eligible this cycle.
func Next(candidates []Candidate) (Candidate, bool) {
	ordered := Order(candidates)
	if len(ordered) == 0 || !ordered[0].eligible() {
		return Candidate{}, false
	}
	return ordered[0], true
}

// Scheduler supervises the warps w with w mod N == k (spec.md §4.8) and is
// otherwise just a named subset of a core's warp ids; the GTO ordering
// itself is stateless and operates on whatever Candidate slice the core
// assembles for that scheduler each cycle.
type Scheduler struct {
	ID         int
	NumScheds  int
}

// Supervises reports whether warpID belongs to this scheduler.
func (s Scheduler) Supervises(warpID uint32) bool {
	return int(warpID)%s.NumScheds == s.ID
}

// Saturating-counter bounds for the starvation hint table, grounded on
// proto/tage's 3-bit saturating-counter/neutral-point convention
// (tage.go: CounterBits=3, MaxCounter=7, NeutralCounter=4) repurposed here
// as a per-scheduler starvation level rather than a branch-direction
// confidence (SPEC_FULL.md §3).
const (
	starvationCounterBits = 3
	MaxStarvation         = 1<<starvationCounterBits - 1 // 7
)

// PriorityCounter rotates issue order across a core's N schedulers so that
// no scheduler is perpetually starved behind its neighbors (spec.md §4.8
// "Schedulers take turns via a round-robin priority counter to avoid
// starvation across schedulers"). Adapted from proto/tage/tage.go's
// saturating-counter/aging machinery: each scheduler carries a starvation
// counter that climbs while it is skipped and resets once served, and the
// per-cycle issue order is the schedulers sorted by starvation level
// (highest first), ties broken by a rotating base offset so otherwise-equal
// schedulers still take turns leading.
type PriorityCounter struct {
	n          int
	starvation []uint8
	rrBase     int
}

// NewPriorityCounter builds a counter over n schedulers, all starting at
// the neutral (zero-starvation) level.
func NewPriorityCounter(n int) *PriorityCounter {
	return &PriorityCounter{n: n, starvation: make([]uint8, n)}
}

// Order returns the scheduler indices in this cycle's issue-attempt order.
func (p *PriorityCounter) Order() []int {
	idx := make([]int, p.n)
	for i := range idx {
		idx[i] = (p.rrBase + i) % p.n
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return p.starvation[idx[i]] > p.starvation[idx[j]]
	})
	return idx
}

// Served must be called once per cycle for every scheduler that
// successfully issued an instruction; it resets that scheduler's
// starvation counter and advances the round-robin base past it so the
// next cycle's tie-break favors its neighbor.
func (p *PriorityCounter) Served(schedID int) {
	p.starvation[schedID] = 0
	p.rrBase = (schedID + 1) % p.n
}

// Skipped must be called once per cycle for every scheduler that had an
// eligible warp but failed to issue (register-slot occupied or scoreboard
// collision, spec.md §4.8), saturating at MaxStarvation.
func (p *PriorityCounter) Skipped(schedID int) {
	if p.starvation[schedID] < MaxStarvation {
		p.starvation[schedID]++
	}
}

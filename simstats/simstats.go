// Package simstats implements the stats sink spec.md §6 describes: a
// per-kernel structure built by reducing each component's sub-stats (cache
// stats per core, scheduler issue stats, memory port stats). Emitting that
// structure as CSV is an output-contract concern and explicitly out of
// scope (spec.md §1); this package stops at the reduced, in-memory report.
package simstats

import (
	"sort"

	"github.com/sarchlab/gpucore/cache"
	"github.com/sarchlab/gpucore/core"
	"github.com/sarchlab/gpucore/warpstate"
)

// SchedulerStats is one core's issue-stage contribution: instructions
// retired and issued-per-category counts (spec.md §6 "scheduler stats").
type SchedulerStats struct {
	CoreID           uint32
	InstrCompleted   uint64
	IssuedByCategory map[warpstate.OpCategory]uint64
}

// MemoryPortStats is one core's memory-port contribution: how many fetches
// it forwarded and how many replies it drained (spec.md §6 "memory port
// stats").
type MemoryPortStats struct {
	CoreID   uint32
	Sent     uint64
	Received uint64
}

// KernelReport is the reduced per-kernel stats-sink structure, aggregated
// across every core that ran a block of this kernel.
type KernelReport struct {
	KernelID    uint64
	Caches      []cache.PerKernelStats
	Schedulers  []SchedulerStats
	MemoryPorts []MemoryPortStats
}

// Sink accumulates per-kernel reports as cores report in.
type Sink struct {
	reports map[uint64]*KernelReport
}

// NewSink builds an empty stats sink.
func NewSink() *Sink {
	return &Sink{reports: make(map[uint64]*KernelReport)}
}

func (s *Sink) reportFor(kernelID uint64) *KernelReport {
	r, ok := s.reports[kernelID]
	if !ok {
		r = &KernelReport{KernelID: kernelID}
		s.reports[kernelID] = r
	}
	return r
}

// RecordCore reduces one core's L1I/L1D cache stats and issue/completion
// counters into kernelID's report (spec.md §6: "cache stats per core,
// scheduler stats").
func (s *Sink) RecordCore(kernelID uint64, c *core.Core) {
	r := s.reportFor(kernelID)

	r.Caches = append(r.Caches, cache.Reduce(kernelID, "l1i", c.L1I.Stats()))
	r.Caches = append(r.Caches, cache.Reduce(kernelID, "l1d", c.L1D.Stats()))

	byCategory := make(map[warpstate.OpCategory]uint64, len(c.IssuedByCategory))
	for k, v := range c.IssuedByCategory {
		byCategory[k] = v
	}
	r.Schedulers = append(r.Schedulers, SchedulerStats{
		CoreID:           c.ID,
		InstrCompleted:   c.InstrCompleted,
		IssuedByCategory: byCategory,
	})
}

// RecordMemoryPort attaches one core's memory-port counters to kernelID's
// report.
func (s *Sink) RecordMemoryPort(kernelID uint64, coreID uint32, sent, received uint64) {
	r := s.reportFor(kernelID)
	r.MemoryPorts = append(r.MemoryPorts, MemoryPortStats{CoreID: coreID, Sent: sent, Received: received})
}

// Report returns the reduced report for kernelID, or false if nothing has
// been recorded for it.
func (s *Sink) Report(kernelID uint64) (KernelReport, bool) {
	r, ok := s.reports[kernelID]
	if !ok {
		return KernelReport{}, false
	}
	return *r, true
}

// KernelIDs returns every kernel id with at least one recorded report, in
// ascending order (deterministic iteration for any downstream emitter).
func (s *Sink) KernelIDs() []uint64 {
	ids := make([]uint64, 0, len(s.reports))
	for id := range s.reports {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

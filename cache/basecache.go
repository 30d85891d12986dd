package cache

import (
	"github.com/sarchlab/gpucore/mem"
	"github.com/sirupsen/logrus"
)

// KindStats accumulates per-access-kind, per-status counters for one cache
// (spec.md §6 "Stats sink": "per-kernel structure aggregated by reducing
// per-component sub-stats").
type KindStats struct {
	counts map[mem.AccessKind]map[AccessStatus]uint64
}

func newKindStats() *KindStats {
	return &KindStats{counts: make(map[mem.AccessKind]map[AccessStatus]uint64)}
}

func (s *KindStats) record(kind mem.AccessKind, status AccessStatus) {
	byStatus, ok := s.counts[kind]
	if !ok {
		byStatus = make(map[AccessStatus]uint64)
		s.counts[kind] = byStatus
	}
	byStatus[status]++
}

// Count returns the accumulated count for one (kind, status) pair.
func (s *KindStats) Count(kind mem.AccessKind, status AccessStatus) uint64 {
	return s.counts[kind][status]
}

// Port is the upstream collaborator a BaseCache forwards misses to (the
// core memory port toward the interconnect, per spec.md §4.3 `cycle`).
type Port interface {
	CanSend(size uint32) bool
	Send(fetch *mem.Fetch)
}

// BaseCache wraps a tag array, an MSHR table, a bounded miss queue, and a
// per-kernel stats accumulator, and serves access/fill/cycle (spec.md §4.3,
// component C3).
type BaseCache struct {
	Name string

	controller Controller
	cfg        Config
	tags       *TagArray
	mshr       *MSHRTable

	missQueue   []*mem.Fetch
	readyAccess []*mem.Fetch

	missQueueStatus mem.Status // which pipeline-location status a queued miss gets

	stats *KindStats
	log   *logrus.Entry
}

// NewBaseCache builds a base cache around controller/cfg. missQueueStatus
// should be the Status value this cache's role assigns to a fetch sitting
// in its miss queue (e.g. mem.StatusInL1DMissQueue for an L1 data cache).
func NewBaseCache(name string, controller Controller, cfg Config, missQueueStatus mem.Status, log *logrus.Entry) *BaseCache {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &BaseCache{
		Name:            name,
		controller:      controller,
		cfg:             cfg,
		tags:            NewTagArray(controller, cfg),
		mshr:            NewMSHRTable(cfg.MSHRCapacity),
		missQueueStatus: missQueueStatus,
		stats:           newKindStats(),
		log:             log.WithField("cache", name),
	}
}

// Stats exposes the per-kind/status access counters.
func (c *BaseCache) Stats() *KindStats { return c.stats }

// Tags exposes the underlying tag array (e.g. for flush/invalidate/DumpCSV).
func (c *BaseCache) Tags() *TagArray { return c.tags }

// Access implements spec.md §4.3 `access`: probes/allocates via the tag
// array; on MISS merges into, or opens, an MSHR entry; on RESERVATION_FAIL
// from either the tag array or a full miss queue/MSHR table, returns
// ReservationFail so the caller retries next cycle (a structural transient,
// never an error — spec.md §7).
func (c *BaseCache) Access(fetch *mem.Fetch, time uint64) AccessStatus {
	blockAddr := c.controller.BlockAddr(fetch.Access.Addr)
	mshrAddr := c.controller.MSHRAddr(fetch.Access.Addr)
	isWrite := fetch.Access.IsWrite()

	// A fingerprint already in flight takes priority over the tag array:
	// the line it allocated is merely RESERVED (not yet filled), so probing
	// the tag array again would misreport HIT_RESERVED instead of the
	// MSHR_HIT coalescing spec.md §4.3 requires.
	if c.mshr.Probe(mshrAddr) {
		if !c.mshr.Merge(mshrAddr, fetch) {
			c.stats.record(fetch.Access.Kind, ReservationFail)
			return ReservationFail
		}
		c.stats.record(fetch.Access.Kind, MSHRHit)
		return MSHRHit
	}

	idx, status, evicted := c.tags.Access(blockAddr, fetch.Access.SectorBits, isWrite, time)
	_ = evicted // writeback scheduling is owned by the caller (LDST/fill pipeline)

	switch status {
	case Hit, HitReserved:
		c.stats.record(fetch.Access.Kind, status)
		return status

	case Miss, SectorMiss:
		if c.mshr.Full() || (c.cfg.MissQueueCapacity > 0 && len(c.missQueue) >= c.cfg.MissQueueCapacity) {
			c.stats.record(fetch.Access.Kind, ReservationFail)
			return ReservationFail
		}
		c.mshr.Allocate(mshrAddr, fetch)
		c.missQueue = append(c.missQueue, fetch)
		fetch.Status = c.missQueueStatus
		_ = idx
		c.stats.record(fetch.Access.Kind, status)
		return status

	default: // ReservationFail
		c.stats.record(fetch.Access.Kind, ReservationFail)
		return ReservationFail
	}
}

// Cycle implements spec.md §4.3 `cycle`: forwards one ready miss to the
// upstream port if it can accept it.
func (c *BaseCache) Cycle(port Port, time uint64) {
	if len(c.missQueue) == 0 {
		return
	}
	head := c.missQueue[0]
	if !port.CanSend(head.Access.ReqSize) {
		return
	}
	port.Send(head)
	head.Status = mem.StatusInIcnqueueToMem
	c.missQueue = c.missQueue[1:]
}

// Fill implements spec.md §4.3 `fill`: on a reply, consults the MSHR table
// for fetch's mshr_addr, transitions the tag-array sector(s) to
// VALID/MODIFIED, and enqueues every merged waiter onto the ready-access
// queue in arrival order.
func (c *BaseCache) Fill(fetch *mem.Fetch, time uint64) {
	mshrAddr := c.controller.MSHRAddr(fetch.Access.Addr)
	primary, waiters, ok := c.mshr.Release(mshrAddr)
	if !ok {
		c.log.WithField("addr", mshrAddr).Warn("fill for unknown mshr fingerprint")
		return
	}

	blockAddr := c.controller.BlockAddr(primary.Access.Addr)
	idx, status, _ := c.tags.Probe(blockAddr, primary.Access.SectorBits, primary.Access.IsWrite())
	if status != ReservationFail {
		c.tags.FillOnMiss(idx, primary.Access.SectorBits, primary.Access.ByteMaskBits, primary.Access.IsWrite(), time)
	}

	primary.Status = mem.StatusInShaderFillQueue
	c.readyAccess = append(c.readyAccess, primary)
	for _, w := range waiters {
		w.Status = mem.StatusInShaderFillQueue
		c.readyAccess = append(c.readyAccess, w)
	}
}

// PopReady dequeues one fetch whose MSHR has completed, in FIFO order, or
// returns (nil, false) if the ready-access queue is empty.
func (c *BaseCache) PopReady() (*mem.Fetch, bool) {
	if len(c.readyAccess) == 0 {
		return nil, false
	}
	f := c.readyAccess[0]
	c.readyAccess = c.readyAccess[1:]
	return f, true
}

// MSHRLen reports the number of outstanding MSHR fingerprints (used by
// tests exercising Scenario S4's coalescing behavior).
func (c *BaseCache) MSHRLen() int { return c.mshr.Len() }

package cache

import (
	"fmt"
	"strings"

	"github.com/sarchlab/gpucore/mem"
)

// AccessStatus is the result of probing or accessing the tag array
// (spec.md §4.2/§4.3).
type AccessStatus uint8

const (
	Hit AccessStatus = iota
	HitReserved
	Miss
	SectorMiss
	MSHRHit
	ReservationFail
)

func (s AccessStatus) String() string {
	switch s {
	case Hit:
		return "HIT"
	case HitReserved:
		return "HIT_RESERVED"
	case Miss:
		return "MISS"
	case SectorMiss:
		return "SECTOR_MISS"
	case MSHRHit:
		return "MSHR_HIT"
	case ReservationFail:
		return "RESERVATION_FAIL"
	default:
		return "UNKNOWN"
	}
}

// EvictedBlockInfo records a writeback-worthy eviction, captured when a
// MODIFIED line is chosen as a victim (spec.md §4.2 "access").
type EvictedBlockInfo struct {
	Allocation   *mem.Allocation
	BlockAddr    mem.Address
	ModifiedSize uint32
	ByteMask     mem.ByteMask
	SectorMask   mem.SectorMask
}

// TagArray is a set-associative, sectorized tag array of num_sets *
// associativity lines, probed and allocated through a Controller
// (spec.md §4.2).
type TagArray struct {
	controller   Controller
	cfg          Config
	lines        []Line // len == cfg.MaxNumLines(), row-major by set
	numDirty     uint32
	nextAllocID  uint64
	pendingLines map[mem.Address]int // block addr -> refcount of pending fetches
}

// NewTagArray allocates an all-INVALID tag array for the given controller
// and policy config.
func NewTagArray(controller Controller, cfg Config) *TagArray {
	return &TagArray{
		controller:   controller,
		cfg:          cfg,
		lines:        make([]Line, cfg.MaxNumLines()),
		pendingLines: make(map[mem.Address]int),
	}
}

func (t *TagArray) setLines(set uint32) []Line {
	lo := set * t.cfg.Associativity
	return t.lines[lo : lo+t.cfg.Associativity]
}

func (t *TagArray) lineIndex(set, way uint32) int {
	return int(set*t.cfg.Associativity + way)
}

func (t *TagArray) dirtyPercent() uint32 {
	if len(t.lines) == 0 {
		return 0
	}
	return t.numDirty * 100 / uint32(len(t.lines))
}

// Probe implements spec.md §4.2 `probe`: locates a hit/sector-miss line, or
// chooses a victim for a miss, without mutating any state.
func (t *TagArray) Probe(blockAddr mem.Address, sectorMask mem.SectorMask, isWrite bool) (idx int, status AccessStatus) {
	set := t.controller.SetIndex(blockAddr)
	tag := t.controller.Tag(blockAddr)
	sector := sectorMask.FirstSet()
	if sector < 0 {
		sector = 0
	}

	invalidIdx := -1
	victimIdx := -1
	var victimTime uint64

	ways := t.setLines(set)
	for w := range ways {
		line := &ways[w]
		li := t.lineIndex(set, uint32(w))

		if !line.IsInvalid() && line.Tag == tag {
			switch line.SectorState[sector] {
			case Valid:
				return li, Hit
			case Reserved:
				return li, HitReserved
			case Modified:
				// A modified sector is always readable and writable.
				return li, Hit
			case Invalid:
				return li, SectorMiss
			}
		}

		if line.IsReserved() {
			continue
		}
		if line.IsInvalid() {
			if invalidIdx < 0 {
				invalidIdx = li
			}
			continue
		}
		if line.IsModified() && t.dirtyPercent() < t.cfg.MaxDirtyPercent {
			continue // dirty budget not yet exhausted: don't evict modified lines
		}

		// Eligible clean (or budget-exhausted dirty) victim candidate.
		var ts uint64
		if t.cfg.Replacement == ReplacementFIFO {
			ts = line.AllocTime
		} else {
			ts = line.LastAccessTime
		}
		if victimIdx < 0 || ts < victimTime {
			victimIdx = li
			victimTime = ts
		}
	}

	if invalidIdx >= 0 {
		return invalidIdx, Miss
	}
	if victimIdx >= 0 {
		return victimIdx, Miss
	}
	return -1, ReservationFail
}

// Access implements spec.md §4.2 `access`: probes, then on MISS/SECTOR_MISS
// with allocate-on-miss, allocates the victim or sector, capturing eviction
// info when a MODIFIED line is displaced. Returns the chosen line index (or
// -1), the status, and the eviction info if an actual writeback is needed.
func (t *TagArray) Access(blockAddr mem.Address, sectorMask mem.SectorMask, isWrite bool, time uint64) (int, AccessStatus, *EvictedBlockInfo) {
	idx, status := t.Probe(blockAddr, sectorMask, isWrite)
	sector := sectorMask.FirstSet()
	if sector < 0 {
		sector = 0
	}

	switch status {
	case Hit, HitReserved:
		t.lines[idx].SetLastAccess(sector, time)
		return idx, status, nil

	case SectorMiss:
		if t.cfg.Allocate == AllocateOnMiss {
			t.nextAllocID++
			t.lines[idx].AllocateSector(sector, t.nextAllocID, time)
		}
		return idx, status, nil

	case Miss:
		var evicted *EvictedBlockInfo
		line := &t.lines[idx]
		if t.cfg.Allocate == AllocateOnMiss {
			if line.IsModified() {
				evicted = &EvictedBlockInfo{
					BlockAddr:    line.Tag,
					ModifiedSize: line.ModifiedBytes,
					ByteMask:     line.DirtyByteMask,
					SectorMask:   line.DirtySectorMask,
				}
				t.numDirty--
			}
			t.nextAllocID++
			line.Allocate(t.controller.Tag(blockAddr), t.nextAllocID, time)
		}
		return idx, status, evicted

	default: // ReservationFail
		return -1, status, nil
	}
}

// FillOnMiss implements spec.md §4.2 `fill_on_miss`.
func (t *TagArray) FillOnMiss(idx int, sectorMask mem.SectorMask, byteMask mem.ByteMask, isWrite bool, time uint64) {
	sector := sectorMask.FirstSet()
	if sector < 0 {
		sector = 0
	}
	wasModified := t.lines[idx].IsModified()
	t.lines[idx].FillSector(sector, byteMask, isWrite, time)
	if !wasModified && t.lines[idx].IsModified() {
		t.numDirty++
	}
}

// FillOnFill implements spec.md §4.2 `fill_on_fill`: probe, allocate on
// MISS/SECTOR_MISS, then fill. It allocates whatever the configured
// allocate policy, so Access runs under allocate-on-miss here.
func (t *TagArray) FillOnFill(blockAddr mem.Address, sectorMask mem.SectorMask, byteMask mem.ByteMask, isWrite bool, time uint64) *EvictedBlockInfo {
	policy := t.cfg.Allocate
	t.cfg.Allocate = AllocateOnMiss
	idx, status, evicted := t.Access(blockAddr, sectorMask, isWrite, time)
	t.cfg.Allocate = policy
	if status == ReservationFail {
		return nil
	}
	t.FillOnMiss(idx, sectorMask, byteMask, isWrite, time)
	return evicted
}

// Flush invalidates every line holding a MODIFIED sector (all of that
// line's sectors become INVALID), returning the number of lines flushed
// (spec.md §4.2 `flush`).
func (t *TagArray) Flush() int {
	flushed := 0
	for i := range t.lines {
		if t.lines[i].IsModified() {
			t.lines[i].Invalidate()
			t.numDirty--
			flushed++
		}
	}
	return flushed
}

// Invalidate invalidates every sector of every line (spec.md §4.2
// `invalidate`). Testable Property 9: afterward num_dirty == 0 and a
// subsequent probe of any previously valid address returns MISS.
func (t *TagArray) Invalidate() {
	for i := range t.lines {
		t.lines[i].Invalidate()
	}
	t.numDirty = 0
}

// InvalidateAddr invalidates the matching tag's sectors within its set
// (spec.md §4.2 `invalidate_addr`).
func (t *TagArray) InvalidateAddr(blockAddr mem.Address) {
	set := t.controller.SetIndex(blockAddr)
	tag := t.controller.Tag(blockAddr)
	for w := uint32(0); w < t.cfg.Associativity; w++ {
		li := t.lineIndex(set, w)
		if t.lines[li].Tag == tag && !t.lines[li].IsInvalid() {
			if t.lines[li].IsModified() {
				t.numDirty--
			}
			t.lines[li].Invalidate()
		}
	}
}

// NumDirty returns the current count of lines with at least one MODIFIED
// sector (spec.md §8 Testable Property 4).
func (t *TagArray) NumDirty() uint32 { return t.numDirty }

// NumLines returns the total capacity of the tag array.
func (t *TagArray) NumLines() int { return len(t.lines) }

// DumpCSV renders the tag array's persisted state (spec.md §6) as CSV:
// one row per line, columns set,way,tag,sector_states,last_access,alloc_time.
// Debugging aid only; not part of the stats-sink output contract.
func (t *TagArray) DumpCSV() string {
	var b strings.Builder
	b.WriteString("set,way,tag,sector_states,last_access,alloc_time\n")
	for i, line := range t.lines {
		set := uint32(i) / t.cfg.Associativity
		way := uint32(i) % t.cfg.Associativity
		var sectors strings.Builder
		for s, st := range line.SectorState {
			if s > 0 {
				sectors.WriteByte('|')
			}
			sectors.WriteString(st.String())
		}
		fmt.Fprintf(&b, "%d,%d,%#x,%s,%d,%d\n",
			set, way, uint64(line.Tag), sectors.String(), line.LastAccessTime, line.AllocTime)
	}
	return b.String()
}

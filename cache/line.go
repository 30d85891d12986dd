package cache

import "github.com/sarchlab/gpucore/mem"

// SectorStatus is the per-sector state of a cache line (spec.md §3).
type SectorStatus uint8

const (
	Invalid SectorStatus = iota
	Reserved
	Valid
	Modified
)

func (s SectorStatus) String() string {
	switch s {
	case Invalid:
		return "INVALID"
	case Reserved:
		return "RESERVED"
	case Valid:
		return "VALID"
	case Modified:
		return "MODIFIED"
	default:
		return "UNKNOWN"
	}
}

// Line is one sectorized cache block: one tag plus mem.NumSectors
// independent per-sector statuses (spec.md §3 "Cache line").
type Line struct {
	Tag mem.Address

	SectorState      [mem.NumSectors]SectorStatus
	SectorAllocID    [mem.NumSectors]uint64
	SectorAllocTime  [mem.NumSectors]uint64
	SectorAccessTime [mem.NumSectors]uint64

	LastAccessTime uint64
	AllocTime      uint64

	DirtyByteMask   mem.ByteMask
	DirtySectorMask mem.SectorMask
	ModifiedBytes   uint32
}

// IsValid reports whether any sector of the line is VALID or MODIFIED.
func (l *Line) IsValid() bool {
	for _, s := range l.SectorState {
		if s == Valid || s == Modified {
			return true
		}
	}
	return false
}

// IsReserved reports whether any sector of the line is RESERVED.
func (l *Line) IsReserved() bool {
	for _, s := range l.SectorState {
		if s == Reserved {
			return true
		}
	}
	return false
}

// IsModified reports whether any sector of the line is MODIFIED (spec.md §3
// invariant: "a line with any sector MODIFIED counts toward the dirty-line
// count").
func (l *Line) IsModified() bool {
	for _, s := range l.SectorState {
		if s == Modified {
			return true
		}
	}
	return false
}

// IsInvalid reports whether every sector is INVALID.
func (l *Line) IsInvalid() bool {
	for _, s := range l.SectorState {
		if s != Invalid {
			return false
		}
	}
	return true
}

// Allocate (re)allocates the whole line for tag, marking every sector
// RESERVED. Invariant: tag is set exactly when a line is (re)allocated.
func (l *Line) Allocate(tag mem.Address, allocID uint64, time uint64) {
	l.Tag = tag
	for i := range l.SectorState {
		l.SectorState[i] = Reserved
		l.SectorAllocID[i] = allocID
		l.SectorAllocTime[i] = time
		l.SectorAccessTime[i] = time
	}
	l.AllocTime = time
	l.LastAccessTime = time
	l.DirtyByteMask = mem.ByteMask{}
	l.DirtySectorMask = 0
	l.ModifiedBytes = 0
}

// AllocateSector (re)allocates a single sector, used for SECTOR_MISS
// allocate-on-miss (spec.md §4.2).
func (l *Line) AllocateSector(sector int, allocID uint64, time uint64) {
	l.SectorState[sector] = Reserved
	l.SectorAllocID[sector] = allocID
	l.SectorAllocTime[sector] = time
	l.SectorAccessTime[sector] = time
	l.LastAccessTime = time
}

// SetLastAccess updates the access timestamp for a sector (used by LRU).
func (l *Line) SetLastAccess(sector int, time uint64) {
	l.SectorAccessTime[sector] = time
	l.LastAccessTime = time
}

// FillSector transitions sector to VALID (or MODIFIED, if isWrite) and
// updates dirty accounting according to byteMask semantics (spec.md §4.2
// fill_on_miss / fill_on_fill).
func (l *Line) FillSector(sector int, byteMask mem.ByteMask, isWrite bool, time uint64) {
	wasModified := l.SectorState[sector] == Modified
	if isWrite {
		l.SectorState[sector] = Modified
	} else if l.SectorState[sector] != Modified {
		l.SectorState[sector] = Valid
	}
	l.SectorAccessTime[sector] = time
	l.LastAccessTime = time

	if isWrite {
		lo, hi := sector*mem.SectorSize, (sector+1)*mem.SectorSize
		l.DirtyByteMask.SetByteRange(lo, hi)
		l.DirtySectorMask.Set(sector)
		if !wasModified {
			l.ModifiedBytes += mem.SectorSize
		}
	}
}

// Invalidate clears every sector to INVALID.
func (l *Line) Invalidate() {
	for i := range l.SectorState {
		l.SectorState[i] = Invalid
	}
	l.DirtyByteMask = mem.ByteMask{}
	l.DirtySectorMask = 0
	l.ModifiedBytes = 0
}

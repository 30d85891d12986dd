package mem

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Allocation describes a logical buffer the trace refers to by address
// range. Id 0 is reserved for instructions (spec.md §3).
type Allocation struct {
	ID    uint64
	Name  string
	Start Address
	End   Address
}

// Contains reports whether addr falls within [Start, End).
func (a Allocation) Contains(addr Address) bool {
	return addr >= a.Start && addr < a.End
}

// NumBytes returns the size of the allocation.
func (a Allocation) NumBytes() uint64 {
	if a.End <= a.Start {
		return 0
	}
	return uint64(a.End - a.Start)
}

func (a Allocation) String() string {
	return fmt.Sprintf("Allocation{id=%d name=%q [0x%x, 0x%x)}", a.ID, a.Name, a.Start, a.End)
}

// AllocationMap is an interval map from address range to Allocation.
//
// Insertion overlap is logged as a warning, never a fatal error: traces may
// legitimately re-use address ranges across kernel launches (spec.md §3).
type AllocationMap struct {
	mu      sync.RWMutex
	entries []Allocation // kept sorted by Start for binary search
	log     *logrus.Entry
}

// NewAllocationMap constructs an empty allocation map. log may be nil, in
// which case a standard logrus entry is used.
func NewAllocationMap(log *logrus.Entry) *AllocationMap {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &AllocationMap{log: log}
}

// Insert records a new allocation spanning [start, end) under name,
// returning the assigned id. Overlapping an existing allocation only logs a
// warning (spec.md §3 invariant: "on insertion, overlap is a warning, not a
// fatal error").
func (m *AllocationMap) Insert(start, end Address, name string) Allocation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.overlapsLocked(start, end) {
		m.log.WithFields(logrus.Fields{
			"start": start,
			"end":   end,
			"name":  name,
		}).Warn("overlapping memory allocation")
	}

	id := uint64(len(m.entries) + 1) // id 0 reserved for instructions
	alloc := Allocation{ID: id, Name: name, Start: start, End: end}

	idx := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].Start >= start })
	m.entries = append(m.entries, Allocation{})
	copy(m.entries[idx+1:], m.entries[idx:])
	m.entries[idx] = alloc

	return alloc
}

func (m *AllocationMap) overlapsLocked(start, end Address) bool {
	for _, e := range m.entries {
		if start < e.End && e.Start < end {
			return true
		}
	}
	return false
}

// Lookup returns the allocation containing addr, if any.
func (m *AllocationMap) Lookup(addr Address) (Allocation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// entries sorted by Start; find the last entry with Start <= addr.
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].Start > addr })
	if i == 0 {
		return Allocation{}, false
	}
	candidate := m.entries[i-1]
	if candidate.Contains(addr) {
		return candidate, true
	}
	return Allocation{}, false
}

// Len returns the number of recorded allocations.
func (m *AllocationMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

package cache

import "github.com/sarchlab/gpucore/mem"

// mshrEntry is one in-flight miss, holding every waiter fetch merged behind
// the primary request (spec.md §4.3: "the MSHR merges replies in insertion
// order of waiters").
type mshrEntry struct {
	primary *mem.Fetch
	waiters []*mem.Fetch
}

// MSHRTable deduplicates outstanding misses by mshr_addr: at most one
// inflight request per fingerprint (spec.md §4.3 "At-most-one-inflight").
type MSHRTable struct {
	capacity int
	entries  map[mem.Address]*mshrEntry
	order    []mem.Address // insertion order, for deterministic draining
}

// NewMSHRTable builds an empty MSHR table with the given entry capacity.
func NewMSHRTable(capacity int) *MSHRTable {
	return &MSHRTable{
		capacity: capacity,
		entries:  make(map[mem.Address]*mshrEntry),
	}
}

// Probe reports whether addr already has an outstanding entry.
func (m *MSHRTable) Probe(addr mem.Address) bool {
	_, ok := m.entries[addr]
	return ok
}

// Full reports whether the table has no room for a new fingerprint.
func (m *MSHRTable) Full() bool {
	return m.capacity > 0 && len(m.entries) >= m.capacity
}

// Allocate registers a brand-new miss under addr as the primary fetch.
// Callers must first check !Probe(addr) && !Full().
func (m *MSHRTable) Allocate(addr mem.Address, primary *mem.Fetch) {
	m.entries[addr] = &mshrEntry{primary: primary}
	m.order = append(m.order, addr)
}

// Merge appends waiter behind the existing entry for addr (an MSHR_HIT).
// Returns false if no entry exists for addr.
func (m *MSHRTable) Merge(addr mem.Address, waiter *mem.Fetch) bool {
	e, ok := m.entries[addr]
	if !ok {
		return false
	}
	e.waiters = append(e.waiters, waiter)
	return true
}

// Release removes and returns the primary fetch plus every merged waiter
// for addr, in arrival order, when the reply for that fingerprint arrives
// (spec.md §4.3 `fill`).
func (m *MSHRTable) Release(addr mem.Address) (primary *mem.Fetch, waiters []*mem.Fetch, ok bool) {
	e, found := m.entries[addr]
	if !found {
		return nil, nil, false
	}
	delete(m.entries, addr)
	for i, a := range m.order {
		if a == addr {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return e.primary, e.waiters, true
}

// Len returns the number of currently outstanding fingerprints.
func (m *MSHRTable) Len() int { return len(m.entries) }

// Package regfile implements the pipeline register sets that pass
// warp-instructions between stages (spec.md §4.6), and the stage enum that
// indexes them.
package regfile

// Stage enumerates every pipeline register-set location an in-flight
// warp-instruction can occupy. The enum order only matters as array
// indices (spec.md §4.6).
type Stage uint8

const (
	IDOCSP Stage = iota
	IDOCDP
	IDOCInt
	IDOCSFU
	IDOCMem
	IDOCTensor
	OCEXSP
	OCEXDP
	OCEXInt
	OCEXSFU
	OCEXMem
	OCEXTensor
	EXWB
	NumStages
)

func (s Stage) String() string {
	names := [...]string{
		"ID_OC_SP", "ID_OC_DP", "ID_OC_INT", "ID_OC_SFU", "ID_OC_MEM", "ID_OC_TENSOR",
		"OC_EX_SP", "OC_EX_DP", "OC_EX_INT", "OC_EX_SFU", "OC_EX_MEM", "OC_EX_TENSOR",
		"EX_WB",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN_STAGE"
}

// Slot holds one optional warp-instruction. The generic payload type is
// left to the caller (the core package supplies its own warp-instruction
// struct) since regfile only needs to move and query occupancy.
type Slot[T any] struct {
	occupied bool
	value    T
	// owner is the sub-core (scheduler) index that exclusively may read
	// and write this slot when sub_core_model is enabled (spec.md §4.6
	// "Sub-core rule: scheduler i reads and writes only slot i").
	owner int
}

// Set is a register set of width W holding up to W optional
// warp-instruction slots, one per scheduler under the sub-core model
// (spec.md §4.6).
type Set[T any] struct {
	slots []Slot[T]
}

// New allocates a register set of the given width, pre-assigning each
// slot's sub-core owner to its own index (the common 1-slot-per-scheduler
// configuration; widths greater than the scheduler count leave the extra
// slots owned by index -1, meaning "shared / no sub-core owner").
func New[T any](width int, numSchedulers int) *Set[T] {
	slots := make([]Slot[T], width)
	for i := range slots {
		if i < numSchedulers {
			slots[i].owner = i
		} else {
			slots[i].owner = -1
		}
	}
	return &Set[T]{slots: slots}
}

// HasFree reports whether any slot in the set is unoccupied.
func (s *Set[T]) HasFree() bool {
	for i := range s.slots {
		if !s.slots[i].occupied {
			return true
		}
	}
	return false
}

// HasFreeSubCore reports whether the slot owned by sub-core i is free.
func (s *Set[T]) HasFreeSubCore(i int) bool {
	idx := s.subCoreIndex(i)
	if idx < 0 {
		return false
	}
	return !s.slots[idx].occupied
}

// GetFreeMut returns a pointer into the first free slot's value and marks
// it occupied, or nil if the set is full.
func (s *Set[T]) GetFreeMut() *T {
	for i := range s.slots {
		if !s.slots[i].occupied {
			s.slots[i].occupied = true
			return &s.slots[i].value
		}
	}
	return nil
}

// GetFreeSubCoreMut returns the sub-core-owned free slot for scheduler i,
// marking it occupied, or nil if that scheduler's slot is occupied or does
// not exist.
func (s *Set[T]) GetFreeSubCoreMut(i int) *T {
	idx := s.subCoreIndex(i)
	if idx < 0 || s.slots[idx].occupied {
		return nil
	}
	s.slots[idx].occupied = true
	return &s.slots[idx].value
}

// GetReady returns the first occupied slot in ascending index order
// (spec.md §5 ordering guarantee (a)), or nil if none is occupied.
func (s *Set[T]) GetReady() *T {
	for i := range s.slots {
		if s.slots[i].occupied {
			return &s.slots[i].value
		}
	}
	return nil
}

// GetReadySubCoreMut returns the sub-core-owned slot for scheduler i if it
// is occupied, else nil.
func (s *Set[T]) GetReadySubCoreMut(i int) *T {
	idx := s.subCoreIndex(i)
	if idx < 0 || !s.slots[idx].occupied {
		return nil
	}
	return &s.slots[idx].value
}

// PopReady removes and returns the first occupied slot's value in
// ascending index order (spec.md §5 ordering guarantee (a)).
func (s *Set[T]) PopReady() (T, bool) {
	var zero T
	for i := range s.slots {
		if s.slots[i].occupied {
			v := s.slots[i].value
			s.FreeAt(i)
			return v, true
		}
	}
	return zero, false
}

// PopReadySubCore removes and returns the sub-core-owned slot for
// scheduler i if occupied.
func (s *Set[T]) PopReadySubCore(i int) (T, bool) {
	var zero T
	idx := s.subCoreIndex(i)
	if idx < 0 || !s.slots[idx].occupied {
		return zero, false
	}
	v := s.slots[idx].value
	s.FreeAt(idx)
	return v, true
}

// FreeAt clears the slot at index idx, marking it unoccupied and zeroing
// its value.
func (s *Set[T]) FreeAt(idx int) {
	var zero T
	s.slots[idx].occupied = false
	s.slots[idx].value = zero
}

// Occupied returns every occupied slot's value, in ascending index order,
// without removing them — a read-only snapshot used by deadlock/debug
// diagnostics that need to see everything in flight at once rather than
// draining the set (spec.md §6 "Persisted state").
func (s *Set[T]) Occupied() []T {
	var out []T
	for i := range s.slots {
		if s.slots[i].occupied {
			out = append(out, s.slots[i].value)
		}
	}
	return out
}

// MoveWarp transfers ownership of the occupied slot at src into dst (a
// different Set, possibly of a different stage), clearing src
// (spec.md §4.6 `move_warp`). Returns false if src has nothing occupied or
// dst has no free slot.
func MoveWarp[T any](src *Set[T], srcIdx int, dst *Set[T]) bool {
	if !src.slots[srcIdx].occupied {
		return false
	}
	dstSlot := dst.GetFreeMut()
	if dstSlot == nil {
		return false
	}
	*dstSlot = src.slots[srcIdx].value
	src.FreeAt(srcIdx)
	return true
}

func (s *Set[T]) subCoreIndex(i int) int {
	for idx := range s.slots {
		if s.slots[idx].owner == i {
			return idx
		}
	}
	return -1
}

// Width reports the number of slots in the set.
func (s *Set[T]) Width() int { return len(s.slots) }

// Package barrier implements the per-core barrier-set state machine:
// allocation/deallocation of thread-block barriers and the Sync/Arrive/
// Reduction release semantics of CUDA-style __syncthreads()/bar.sync.
package barrier

import (
	"errors"
	"fmt"
)

// ErrReductionUnsupported is returned when a Reduction-kind barrier would
// release: the reference model this is built against leaves the reduction
// payload unimplemented (original_source/src/barrier.rs: `todo!("bar
// reduciton")`). spec.md §4.4 Open Question: treated as a fatal structural
// error rather than silently dropping the reduction.
var ErrReductionUnsupported = errors.New("barrier: reduction-kind barrier release is unsupported")

// Kind distinguishes the three barrier instruction variants (spec.md §4.4).
type Kind uint8

const (
	KindSync Kind = iota
	KindArrive
	KindReduction
)

func (k Kind) String() string {
	switch k {
	case KindSync:
		return "SYNC"
	case KindArrive:
		return "ARRIVE"
	case KindReduction:
		return "REDUCTION"
	default:
		return "UNKNOWN"
	}
}

// WarpMask is a bitmask over the warps live on one core.
type WarpMask uint64

func (m WarpMask) test(w int) bool       { return m&(1<<uint(w)) != 0 }
func (m *WarpMask) set(w int)            { *m |= 1 << uint(w) }
func (m *WarpMask) clearMask(o WarpMask) { *m &^= o }
func (m WarpMask) any() bool             { return m != 0 }
func (m WarpMask) count() int {
	c := 0
	for i := 0; i < 64; i++ {
		if m.test(i) {
			c++
		}
	}
	return c
}

// Descriptor is the barrier metadata carried by a BARRIER_OP instruction
// (the `bar` field of spec.md's WarpInstruction).
type Descriptor struct {
	ID    int
	Kind  Kind
	Count *uint32 // optional explicit release count, in threads
}

// Set is the per-core barrier-set state machine (spec.md §4.4, component
// grounded on original_source/src/barrier.rs's BarrierSet).
type Set struct {
	maxBlocksPerCore    int
	maxBarriersPerBlock int
	warpSize            int
	warpsPerBlock       map[uint64]WarpMask
	barIDToWarps        []WarpMask
	activeWarps         WarpMask
	warpsAtBarrier      WarpMask
}

// New builds an empty barrier set.
func New(maxBlocksPerCore, maxBarriersPerBlock, warpSize int) *Set {
	return &Set{
		maxBlocksPerCore:    maxBlocksPerCore,
		maxBarriersPerBlock: maxBarriersPerBlock,
		warpSize:            warpSize,
		warpsPerBlock:       make(map[uint64]WarpMask),
		barIDToWarps:        make([]WarpMask, maxBarriersPerBlock),
	}
}

// IsWaitingAtBarrier reports whether warpID is currently blocked.
func (s *Set) IsWaitingAtBarrier(warpID int) bool {
	return s.warpsAtBarrier.test(warpID)
}

// Allocate registers a new thread block's warp mask (spec.md §4.4 step
// preceding warp_reached_barrier; grounded on barrier.rs `allocate`).
func (s *Set) Allocate(blockID uint64, warps WarpMask) {
	if _, exists := s.warpsPerBlock[blockID]; exists {
		panic(fmt.Sprintf("barrier: block %d should not already be active", blockID))
	}
	s.warpsPerBlock[blockID] = warps
	if len(s.warpsPerBlock) > s.maxBlocksPerCore {
		panic("barrier: no blocks that were not properly deallocated")
	}

	s.activeWarps |= warps
	s.warpsAtBarrier.clearMask(warps)
	for i := range s.barIDToWarps {
		s.barIDToWarps[i].clearMask(warps)
	}
}

// Deallocate releases block's barrier bookkeeping once it has fully
// completed. Panics (an asserted invariant, spec.md §4.4) if any warp of
// the block is still at a barrier or still active.
func (s *Set) Deallocate(blockID uint64) {
	warpsInBlock, ok := s.warpsPerBlock[blockID]
	if !ok {
		return
	}
	delete(s.warpsPerBlock, blockID)

	if (warpsInBlock & s.warpsAtBarrier).any() {
		panic("barrier: no warps stuck at barrier on deallocate")
	}
	if (warpsInBlock & s.activeWarps).any() {
		panic("barrier: no warps in block are still running on deallocate")
	}

	s.activeWarps.clearMask(warpsInBlock)
	s.warpsAtBarrier.clearMask(warpsInBlock)
	for i := range s.barIDToWarps {
		if (warpsInBlock & s.barIDToWarps[i]).any() {
			panic("barrier: no warps stuck at a specific barrier on deallocate")
		}
		s.barIDToWarps[i].clearMask(warpsInBlock)
	}
}

// WarpExited clears warpID from the active set and releases any barrier
// whose remaining active warps now exactly match those already waiting
// (spec.md §4.4 "warp_exited").
func (s *Set) WarpExited(warpID int) error {
	s.activeWarps.clearMask(1 << uint(warpID))

	var warpsInBlock WarpMask
	found := false
	for _, w := range s.warpsPerBlock {
		if w.test(warpID) {
			warpsInBlock = w
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	active := warpsInBlock & s.activeWarps
	for barID := range s.barIDToWarps {
		atBarrier := warpsInBlock & s.barIDToWarps[barID]
		if atBarrier == active {
			s.barIDToWarps[barID].clearMask(atBarrier)
			s.warpsAtBarrier.clearMask(atBarrier)
		}
	}
	return nil
}

// WarpReachedBarrier implements spec.md §4.4's four-step release protocol,
// grounded on barrier.rs `warp_reached_barrier`.
func (s *Set) WarpReachedBarrier(blockID uint64, warpID int, bar Descriptor) error {
	warpsInBlock, ok := s.warpsPerBlock[blockID]
	if !ok {
		panic(fmt.Sprintf("barrier: block %d not found in barrier set", blockID))
	}
	if !warpsInBlock.test(warpID) {
		panic("barrier: warp is not in the block")
	}

	s.barIDToWarps[bar.ID].set(warpID)
	if bar.Kind == KindSync || bar.Kind == KindReduction {
		s.warpsAtBarrier.set(warpID)
	}

	atBarrier := warpsInBlock & s.barIDToWarps[bar.ID]
	active := warpsInBlock & s.activeWarps

	release := false
	if bar.Count != nil {
		release = uint32(atBarrier.count())*uint32(s.warpSize) == *bar.Count
	} else {
		release = atBarrier == active
	}

	if release {
		if bar.Kind == KindReduction {
			return ErrReductionUnsupported
		}
		s.barIDToWarps[bar.ID].clearMask(atBarrier)
		s.warpsAtBarrier.clearMask(atBarrier)
	}
	return nil
}

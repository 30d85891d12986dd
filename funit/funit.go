// Package funit implements the per-core functional units (SP/DP/INT/SFU ×
// count, plus the single LDST) and the shared result-bus reservation table
// they issue into (spec.md §4.9 "Execute").
package funit

import (
	"fmt"

	"github.com/sarchlab/gpucore/regfile"
)

// MaxALULatency bounds how far out a functional unit may reserve a result
// bus slot (spec.md §9 tuning constant). A latency beyond this indicates a
// misconfigured or malformed trace instruction; exceeding it is a fatal
// assertion rather than a silent clamp, per SPEC_FULL.md Open Question 4.
const MaxALULatency = 512

// No error value is returned for this case: reaching MaxALULatency panics,
// since it signals a structural configuration error the caller cannot
// usefully recover from mid-cycle.

// Kind identifies a functional unit's category, used to route an
// instruction's issue_port to the right unit (spec.md §4.9).
type Kind uint8

const (
	KindSP Kind = iota
	KindDP
	KindInt
	KindSFU
	KindTensor
	KindLDST
)

// ResultBus is a left-shifting reservation vector: bit i set means a
// result will retire i cycles from now. Adapted from the teacher's
// ooo.UpdateScoreboardAfterIssue OR-of-bitmap style, generalized from a
// single-cycle scoreboard update to a multi-cycle latency reservation.
type ResultBus struct {
	occupied [MaxALULatency / 64]uint64 // bit i (word i/64, bit i%64): cycle (now+i) is reserved, 0 <= i < MaxALULatency
}

// Shift advances the bus by one cycle (spec.md §4.9 "shift every result-bus
// leftward").
func (b *ResultBus) Shift() {
	for w := range b.occupied {
		b.occupied[w] >>= 1
		if w+1 < len(b.occupied) {
			b.occupied[w] |= b.occupied[w+1] << 63
		}
	}
}

// Available reports whether latency cycles from now is free.
func (b *ResultBus) Available(latency int) bool {
	if latency < 0 || latency >= MaxALULatency {
		return false
	}
	return b.occupied[latency/64]&(1<<uint(latency%64)) == 0
}

// Reserve marks latency cycles from now as occupied. Panics if latency
// is MaxALULatency or more (a malformed trace instruction, not a runtime
// transient) or if the slot is already taken (a caller bug: Available
// must be checked first).
func (b *ResultBus) Reserve(latency int) {
	if latency >= MaxALULatency {
		panic(fmt.Sprintf("funit: result-bus reservation latency %d exceeds MAX_ALU_LATENCY %d", latency, MaxALULatency))
	}
	if !b.Available(latency) {
		panic(fmt.Sprintf("funit: result-bus slot at latency %d already reserved", latency))
	}
	b.occupied[latency/64] |= 1 << uint(latency%64)
}

// Unit is one functional unit: an internal latency pipeline plus an issue
// port it pulls ready instructions from (spec.md §4.9). T is the caller's
// warp-instruction payload type, mirroring regfile.Set[T]/collector.Unit[T].
type Unit[T any] struct {
	Kind Kind

	// Stallable units (LDST) do not reserve a shared result bus slot on
	// issue; non-stallable units (SP/DP/INT/SFU/TENSOR) do.
	Stallable bool

	IssuePort   regfile.Stage
	SubCoreID   int // which scheduler's sub-core slot this unit reads, if sub-core model
	SubCore     bool

	pipeline []pipelineEntry[T]
}

type pipelineEntry[T any] struct {
	instr      T
	cyclesLeft int
}

// NewUnit builds a functional unit of the given kind and issue port.
func NewUnit[T any](kind Kind, stallable bool, issuePort regfile.Stage, subCore bool, subCoreID int) *Unit[T] {
	return &Unit[T]{Kind: kind, Stallable: stallable, IssuePort: issuePort, SubCore: subCore, SubCoreID: subCoreID}
}

// AdvancePipeline implements spec.md §4.9 Execute step 1: advances the
// unit's internal latency pipeline by one cycle, returning every
// instruction that completed this cycle (cyclesLeft reached 0).
func (u *Unit[T]) AdvancePipeline() []T {
	var completed []T
	kept := u.pipeline[:0]
	for _, e := range u.pipeline {
		e.cyclesLeft--
		if e.cyclesLeft <= 0 {
			completed = append(completed, e.instr)
		} else {
			kept = append(kept, e)
		}
	}
	u.pipeline = kept
	return completed
}

// TryIssue implements spec.md §4.9 Execute step 2: attempts to pull a
// ready instruction from the unit's issue port. latency is the
// instruction's declared execution latency; for non-stallable units a
// result-bus slot at that latency must be available or issue fails.
// Returns true if an instruction entered the unit's internal pipeline.
func (u *Unit[T]) TryIssue(issueSet *regfile.Set[T], latency int, bus *ResultBus) bool {
	var ready T
	var ok bool
	if u.SubCore {
		ready, ok = issueSet.PopReadySubCore(u.SubCoreID)
	} else {
		ready, ok = issueSet.PopReady()
	}
	if !ok {
		return false
	}

	if !u.Stallable {
		if !bus.Available(latency) {
			// Not consumed: the instruction must remain issuable next
			// cycle, so it is pushed back into its slot.
			if u.SubCore {
				*issueSet.GetFreeSubCoreMut(u.SubCoreID) = ready
			} else {
				*issueSet.GetFreeMut() = ready
			}
			return false
		}
		bus.Reserve(latency)
	}

	u.pipeline = append(u.pipeline, pipelineEntry[T]{instr: ready, cyclesLeft: latency})
	return true
}

// Busy reports whether the unit currently holds any in-flight instruction.
func (u *Unit[T]) Busy() bool { return len(u.pipeline) > 0 }

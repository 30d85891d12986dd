// Package warpstate implements the per-warp execution state (trace
// instruction buffer, program counter, active-thread mask, done/waiting
// flags) and the in-flight Instruction payload that flows through the
// regfile, collector, and funit pipeline register sets (spec.md §4.6-4.10).
package warpstate

import (
	"sync/atomic"

	"github.com/sarchlab/gpucore/barrier"
	"github.com/sarchlab/gpucore/mem"
)

var globalInstructionUID uint64

// NextInstructionUID returns a process-wide monotonic instruction id
// (spec.md §5 "the instruction-unique-id generator (atomic counter)" —
// distinct from mem.NextFetchUID, which numbers memory fetches).
func NextInstructionUID() uint64 {
	return atomic.AddUint64(&globalInstructionUID, 1) - 1
}

// ResetInstructionUID resets the global instruction id counter. Intended
// for test determinism only.
func ResetInstructionUID() {
	atomic.StoreUint64(&globalInstructionUID, 0)
}

// OpCategory classifies a trace instruction's opcode into the pipeline
// stage family it targets (spec.md §4.8: "SP/DP/INT/SFU/MEM/TENSOR/BARRIER").
type OpCategory uint8

const (
	OpSP OpCategory = iota
	OpDP
	OpInt
	OpSFU
	OpMem
	OpTensor
	OpBarrier
	OpMemoryBarrier
	OpExit
)

func (c OpCategory) String() string {
	names := [...]string{"SP", "DP", "INT", "SFU", "MEM", "TENSOR", "BARRIER", "MEMORY_BARRIER", "EXIT"}
	if int(c) < len(names) {
		return names[c]
	}
	return "UNKNOWN_OP"
}

// TraceInstruction is one static instruction as recorded by the trace
// (spec.md §6 TraceReader / §4.9 decode). Register numbers are the
// instruction's raw source/destination operand list, pre-deduplication.
type TraceInstruction struct {
	Category OpCategory

	SrcRegs  []uint16
	DestRegs []uint16

	// Latency is the functional unit's pipeline depth; InitiationInterval is
	// the dispatch delay charged against the issuing scheduler (spec.md §4.9
	// "Issue ... dispatch delay = initiation interval").
	Latency            int
	InitiationInterval int

	IsLoad  bool
	IsStore bool
	IsLocal bool // LOCAL_ACC_{R,W}: routes through mem.TranslateLocal (spec.md §4.11)

	AccessKind mem.AccessKind
	DataSize   uint32

	Bar Descriptor // valid only when Category == OpBarrier
}

// Descriptor mirrors barrier.Descriptor; kept as a value alias so trace
// instructions need not import barrier types directly into their public
// surface beyond what decode actually uses.
type Descriptor = barrier.Descriptor

// Instruction is one in-flight dynamic instance of a TraceInstruction,
// threaded through ID_OC / OC_EX / EX_WB register sets and collector units
// (spec.md §4.9 Issue: "assigns it a globally-unique instruction id, stamps
// warp id, issue cycle, dispatch delay ..., scheduler id").
type Instruction struct {
	UID    uint64
	WarpID uint32
	Static *TraceInstruction

	IssueCycle    uint64
	DispatchDelay int
	SchedulerID   int

	// SrcRegs/DestRegs are deduplicated copies of the static instruction's
	// operand lists, since the scoreboard and operand collector both key on
	// distinct register numbers (spec.md §4.5, §4.7).
	SrcRegs  []uint16
	DestRegs []uint16

	ActiveMask uint32

	// MemAccessQueue holds the coalesced accesses generated for a load/store
	// (spec.md §4.12), consumed in order by the LDST functional unit.
	MemAccessQueue []mem.Access
}

// Category forwards the static instruction's opcode category.
func (in *Instruction) Category() OpCategory {
	if in.Static == nil {
		return OpInt
	}
	return in.Static.Category
}

// dedupRegs returns regs with duplicate register numbers removed, preserving
// first-occurrence order (spec.md §4.7 "deduplicated by register number").
func dedupRegs(regs []uint16) []uint16 {
	if len(regs) == 0 {
		return nil
	}
	seen := make(map[uint16]struct{}, len(regs))
	out := make([]uint16, 0, len(regs))
	for _, r := range regs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// NewInstruction stamps a fresh in-flight instruction from its static form
// (spec.md §4.9 Issue).
func NewInstruction(uid uint64, warpID uint32, static *TraceInstruction, issueCycle uint64, schedulerID int, activeMask uint32) *Instruction {
	return &Instruction{
		UID:           uid,
		WarpID:        warpID,
		Static:        static,
		IssueCycle:    issueCycle,
		DispatchDelay: static.InitiationInterval,
		SchedulerID:   schedulerID,
		SrcRegs:       dedupRegs(static.SrcRegs),
		DestRegs:      dedupRegs(static.DestRegs),
		ActiveMask:    activeMask,
	}
}

// InstructionBuffer is a warp's small FIFO of decoded-but-not-yet-issued
// trace instructions (spec.md §4.9 Decode: "instr_buffer.fill(slot, instr)").
type InstructionBuffer struct {
	slots []*TraceInstruction
}

// NewInstructionBuffer allocates a buffer of the given width.
func NewInstructionBuffer(width int) *InstructionBuffer {
	return &InstructionBuffer{slots: make([]*TraceInstruction, width)}
}

// Fill places instr into the first empty slot; returns false if no slot is
// free.
func (b *InstructionBuffer) Fill(instr *TraceInstruction) bool {
	for i := range b.slots {
		if b.slots[i] == nil {
			b.slots[i] = instr
			return true
		}
	}
	return false
}

// Empty reports whether every slot is unfilled.
func (b *InstructionBuffer) Empty() bool {
	for _, s := range b.slots {
		if s != nil {
			return false
		}
	}
	return true
}

// Front returns the first filled slot without removing it, or nil.
func (b *InstructionBuffer) Front() *TraceInstruction {
	for _, s := range b.slots {
		if s != nil {
			return s
		}
	}
	return nil
}

// PopFront removes and returns the first filled slot, or nil if empty.
func (b *InstructionBuffer) PopFront() *TraceInstruction {
	for i := range b.slots {
		if b.slots[i] != nil {
			instr := b.slots[i]
			b.slots[i] = nil
			return instr
		}
	}
	return nil
}

// Flush clears every slot, returning how many instructions were discarded
// (spec.md §4.9 "flush the warp's instruction buffer (decrementing in-pipeline
// counter by the flushed count)").
func (b *InstructionBuffer) Flush() int {
	n := 0
	for i := range b.slots {
		if b.slots[i] != nil {
			b.slots[i] = nil
			n++
		}
	}
	return n
}

// FetchBufferState is the top-of-pipe latch between fetch and decode
// (spec.md §4.9 "the fetch buffer state is Valid").
type FetchBufferState uint8

const (
	FetchInvalid FetchBufferState = iota
	FetchValid
)

// FetchBuffer is the single-entry latch a core's fetch stage fills and the
// decode stage drains (spec.md §4.9).
type FetchBuffer struct {
	State  FetchBufferState
	WarpID uint32
	Addr   mem.Address
}

// Warp holds all per-warp execution state the core orchestration loop reads
// and mutates each cycle (spec.md §4.9, §4.10).
type Warp struct {
	BlockID        uint64
	WarpID         uint32
	DynamicWarpID  uint64
	KernelID       uint64
	ActiveMask     uint32 // lanes participating in this warp's block
	ThreadsCompleted uint32 // bitmask of lanes that have hit EXIT_OPS

	TracePC           int
	TraceInstructions []TraceInstruction

	Buffer *InstructionBuffer

	NumInstrInPipeline int

	HasIMissPending        bool
	WaitingForMemoryBarrier bool
	DoneExit                bool
}

// NewWarp allocates a warp with an instruction buffer of the given width.
func NewWarp(bufferWidth int) *Warp {
	return &Warp{Buffer: NewInstructionBuffer(bufferWidth)}
}

// Init reinitializes a warp slot for a freshly issued block (spec.md §4.10
// step 5: "warp.init(block_id, warp_id, dynamic_warp_id, mask, kernel_id)").
func (w *Warp) Init(blockID uint64, warpID uint32, dynamicWarpID uint64, activeMask uint32, kernelID uint64) {
	w.BlockID = blockID
	w.WarpID = warpID
	w.DynamicWarpID = dynamicWarpID
	w.ActiveMask = activeMask
	w.KernelID = kernelID
	w.ThreadsCompleted = 0
	w.TracePC = 0
	w.TraceInstructions = nil
	w.NumInstrInPipeline = 0
	w.HasIMissPending = false
	w.WaitingForMemoryBarrier = false
	w.DoneExit = false
}

// HardwareDone reports whether every active lane has executed EXIT_OPS
// (spec.md §4.9 "Reap completed warps (hardware_done ...)").
func (w *Warp) HardwareDone() bool {
	return w.ActiveMask != 0 && w.ThreadsCompleted&w.ActiveMask == w.ActiveMask
}

// FunctionallyDone reports whether the warp has no more trace instructions
// left to decode; instructions already in its buffer may still await issue.
func (w *Warp) FunctionallyDone() bool {
	return w.TracePC >= len(w.TraceInstructions)
}

// Done reports whether nothing of the warp is in flight
// (NumInstrInPipeline == 0); issue combines it with FunctionallyDone to
// decide whether to flush the instruction buffer and notify the barrier set
// (spec.md §4.9 "warp.done() && warp.functional_done()").
func (w *Warp) Done() bool {
	return w.NumInstrInPipeline == 0
}

// WaitingAtMemBarrier implements spec.md §4.9's
// `warp_waiting_at_mem_barrier` predicate given the warp's current pending
// scoreboard write count.
func (w *Warp) WaitingAtMemBarrier(pendingWrites int) bool {
	return w.WaitingForMemoryBarrier && pendingWrites > 0
}

// NextTraceInstruction returns the next unconsumed static trace instruction
// without advancing TracePC, or nil if the warp is functionally done.
func (w *Warp) NextTraceInstruction() *TraceInstruction {
	if w.FunctionallyDone() {
		return nil
	}
	return &w.TraceInstructions[w.TracePC]
}

// AdvanceTracePC moves the trace program counter past the instruction just
// decoded.
func (w *Warp) AdvanceTracePC() {
	w.TracePC++
}

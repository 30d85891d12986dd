package warpstate

import "testing"

func TestInstructionBufferFillAndFlush(t *testing.T) {
	b := NewInstructionBuffer(2)
	if !b.Empty() {
		t.Fatalf("expected a fresh buffer to be empty")
	}
	a := &TraceInstruction{Category: OpInt}
	c := &TraceInstruction{Category: OpSP}
	if !b.Fill(a) || !b.Fill(c) {
		t.Fatalf("expected both fills to succeed on an empty 2-wide buffer")
	}
	if b.Fill(&TraceInstruction{}) {
		t.Fatalf("expected fill to fail once the buffer is full")
	}
	if n := b.Flush(); n != 2 {
		t.Fatalf("expected flush to report 2 discarded instructions, got %d", n)
	}
	if !b.Empty() {
		t.Fatalf("expected buffer empty after flush")
	}
}

func TestInstructionBufferPopFrontOrder(t *testing.T) {
	b := NewInstructionBuffer(2)
	a := &TraceInstruction{Category: OpInt}
	c := &TraceInstruction{Category: OpSP}
	b.Fill(a)
	b.Fill(c)

	if got := b.PopFront(); got != a {
		t.Fatalf("expected PopFront to return the first-filled slot")
	}
	if got := b.PopFront(); got != c {
		t.Fatalf("expected PopFront to return the second-filled slot next")
	}
	if b.PopFront() != nil {
		t.Fatalf("expected PopFront on an empty buffer to return nil")
	}
}

func TestNewInstructionDedupesRegisters(t *testing.T) {
	static := &TraceInstruction{
		Category:           OpInt,
		SrcRegs:            []uint16{1, 2, 1, 3},
		DestRegs:           []uint16{5, 5},
		InitiationInterval: 2,
	}
	in := NewInstruction(100, 7, static, 42, 1, 0xFFFFFFFF)

	if len(in.SrcRegs) != 3 {
		t.Fatalf("expected 3 deduplicated source registers, got %v", in.SrcRegs)
	}
	if len(in.DestRegs) != 1 {
		t.Fatalf("expected 1 deduplicated destination register, got %v", in.DestRegs)
	}
	if in.DispatchDelay != 2 {
		t.Fatalf("expected dispatch delay to equal the static initiation interval")
	}
	if in.IssueCycle != 42 || in.SchedulerID != 1 {
		t.Fatalf("expected issue cycle/scheduler id to be stamped from arguments")
	}
}

func TestWarpHardwareDoneAndFunctionallyDone(t *testing.T) {
	w := NewWarp(2)
	w.Init(1, 0, 0, 0b0011, 5)
	w.TraceInstructions = make([]TraceInstruction, 1)

	if w.HardwareDone() {
		t.Fatalf("expected not hardware-done before any lane completes")
	}
	if w.FunctionallyDone() {
		t.Fatalf("expected not functionally-done with trace instructions remaining")
	}

	w.ThreadsCompleted = 0b0011
	if !w.HardwareDone() {
		t.Fatalf("expected hardware-done once every active lane completes")
	}

	w.AdvanceTracePC()
	if !w.FunctionallyDone() {
		t.Fatalf("expected functionally-done once trace pc passes the last instruction")
	}
}

func TestWaitingAtMemBarrier(t *testing.T) {
	w := NewWarp(2)
	w.WaitingForMemoryBarrier = true
	if w.WaitingAtMemBarrier(0) {
		t.Fatalf("expected not waiting once pending writes drain to zero")
	}
	if !w.WaitingAtMemBarrier(3) {
		t.Fatalf("expected waiting while pending writes remain nonzero")
	}
}

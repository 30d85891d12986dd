package funit

import (
	"testing"

	"github.com/sarchlab/gpucore/regfile"
)

type instr struct{ id int }

func TestResultBusReserveAndShift(t *testing.T) {
	var bus ResultBus
	if !bus.Available(3) {
		t.Fatalf("expected a fresh bus to have every slot available")
	}
	bus.Reserve(3)
	if bus.Available(3) {
		t.Fatalf("expected slot 3 to be occupied after reserving it")
	}
	bus.Shift()
	if bus.Available(2) {
		t.Fatalf("expected the reservation to shift left by one cycle")
	}
}

func TestResultBusReservePanicsBeyondBudget(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Reserve to panic when latency exceeds MAX_ALU_LATENCY")
		}
	}()
	var bus ResultBus
	bus.Reserve(MaxALULatency)
}

func TestNonStallableUnitReservesResultBus(t *testing.T) {
	issueSet := regfile.New[instr](1, 1)
	*issueSet.GetFreeMut() = instr{id: 1}

	u := NewUnit[instr](KindSP, false, regfile.OCEXSP, false, 0)
	var bus ResultBus

	if !u.TryIssue(issueSet, 4, &bus) {
		t.Fatalf("expected issue to succeed with a free result-bus slot")
	}
	if bus.Available(4) {
		t.Fatalf("expected the unit to reserve the result bus at its latency")
	}
}

func TestStallableUnitIssuesWithoutResultBus(t *testing.T) {
	issueSet := regfile.New[instr](1, 1)
	*issueSet.GetFreeMut() = instr{id: 2}

	u := NewUnit[instr](KindLDST, true, regfile.OCEXMem, false, 0)
	var bus ResultBus
	bus.Reserve(0) // result-bus slot at latency 0 taken, irrelevant for a stallable unit

	if !u.TryIssue(issueSet, 0, &bus) {
		t.Fatalf("expected stallable unit to issue without needing a result-bus slot")
	}
}

func TestAdvancePipelineCompletesAtZeroLatency(t *testing.T) {
	issueSet := regfile.New[instr](1, 1)
	*issueSet.GetFreeMut() = instr{id: 3}

	u := NewUnit[instr](KindInt, false, regfile.OCEXInt, false, 0)
	var bus ResultBus
	u.TryIssue(issueSet, 2, &bus)

	if got := u.AdvancePipeline(); len(got) != 0 {
		t.Fatalf("expected no completions on the first advance (2 cycles left->1)")
	}
	if !u.Busy() {
		t.Fatalf("expected unit to still be busy before its latency elapses")
	}
	completed := u.AdvancePipeline()
	if len(completed) != 1 || completed[0].id != 3 {
		t.Fatalf("expected the instruction to complete on the second advance, got %v", completed)
	}
	if u.Busy() {
		t.Fatalf("expected unit to be idle after completion")
	}
}

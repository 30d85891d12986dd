package schedwarp

import "testing"

func TestOrderSinksDoneAndWaitingWarps(t *testing.T) {
	cands := []Candidate{
		{WarpID: 0, DynamicWarpID: 5, FunctionallyDone: true},
		{WarpID: 1, DynamicWarpID: 3},
		{WarpID: 2, DynamicWarpID: 9, Waiting: true},
		{WarpID: 3, DynamicWarpID: 7},
	}
	ordered := Order(cands)

	if ordered[0].WarpID != 3 || ordered[1].WarpID != 1 {
		t.Fatalf("expected eligible warps ordered oldest-first (3 then 1), got %+v", ordered)
	}
	if ordered[2].WarpID != 0 && ordered[2].WarpID != 2 {
		t.Fatalf("expected ineligible warps to sink to the back")
	}
}

func TestNextReturnsOldestEligible(t *testing.T) {
	cands := []Candidate{
		{WarpID: 0, DynamicWarpID: 1},
		{WarpID: 1, DynamicWarpID: 99, Waiting: true},
		{WarpID: 2, DynamicWarpID: 50},
	}
	got, ok := Next(cands)
	if !ok || got.WarpID != 2 {
		t.Fatalf("expected warp 2 (oldest eligible), got %+v ok=%v", got, ok)
	}
}

func TestNextNoneEligible(t *testing.T) {
	cands := []Candidate{
		{WarpID: 0, FunctionallyDone: true},
		{WarpID: 1, Waiting: true},
	}
	if _, ok := Next(cands); ok {
		t.Fatalf("expected no eligible candidate")
	}
}

func TestSchedulerSupervisesModuloAssignment(t *testing.T) {
	s := Scheduler{ID: 1, NumScheds: 4}
	if !s.Supervises(5) || !s.Supervises(9) {
		t.Fatalf("expected scheduler 1 to supervise warps 5 and 9 mod 4")
	}
	if s.Supervises(4) || s.Supervises(8) {
		t.Fatalf("expected scheduler 1 to not supervise warps 4 and 8 mod 4")
	}
}

func TestPriorityCounterRotatesAwayFromServedScheduler(t *testing.T) {
	p := NewPriorityCounter(3)
	first := p.Order()
	if first[0] != 0 {
		t.Fatalf("expected scheduler 0 to lead the first cycle, got %v", first)
	}
	p.Served(0)

	second := p.Order()
	if second[0] != 1 {
		t.Fatalf("expected scheduler 1 to lead after scheduler 0 was served, got %v", second)
	}
}

func TestPriorityCounterPromotesStarvedScheduler(t *testing.T) {
	p := NewPriorityCounter(2)
	for i := 0; i < 5; i++ {
		p.Skipped(1)
	}
	order := p.Order()
	if order[0] != 1 {
		t.Fatalf("expected the repeatedly-skipped scheduler to lead, got %v", order)
	}
}

func TestPriorityCounterStarvationSaturates(t *testing.T) {
	p := NewPriorityCounter(1)
	for i := 0; i < 2*MaxStarvation; i++ {
		p.Skipped(0)
	}
	if p.starvation[0] != MaxStarvation {
		t.Fatalf("expected starvation counter to saturate at %d, got %d", MaxStarvation, p.starvation[0])
	}
}

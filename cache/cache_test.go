package cache

import (
	"testing"

	"github.com/sarchlab/gpucore/mem"
)

func testL1DConfig() Config {
	return Config{
		LineSize:          mem.LineSize,
		NumSets:           4,
		Associativity:     4,
		AtomSize:          mem.SectorSize,
		Allocate:          AllocateOnMiss,
		Replacement:       ReplacementLRU,
		WriteAllocate:     WriteAllocateFetchOnWrite,
		MaxDirtyPercent:   50,
		MSHRCapacity:      8,
		MissQueueCapacity: 8,
		L1Banks:           4,
		L1BanksByteInterleaving: 32,
	}
}

func sectorMaskFor(addr mem.Address) mem.SectorMask {
	var m mem.SectorMask
	m.Set(int((addr % mem.LineSize) / mem.SectorSize))
	return m
}

// TestSetIndexInvariant exercises spec.md §4.1's required invariant: for
// every address a, set_index(a) < num_sets, across all three controllers.
func TestSetIndexInvariant(t *testing.T) {
	cfg := testL1DConfig()
	controllers := []Controller{
		NewInstrController(cfg),
		NewL1DataController(cfg),
		NewL2DataController(cfg, nil),
	}
	for _, c := range controllers {
		for i := 0; i < 4096; i++ {
			addr := mem.Address(i) * 37
			if idx := c.SetIndex(addr); idx >= cfg.NumSets {
				t.Fatalf("%T: set_index(%d) = %d >= num_sets %d", c, addr, idx, cfg.NumSets)
			}
		}
	}
}

func TestL2AccelsimCompatUsesLinearIndex(t *testing.T) {
	cfg := testL1DConfig()
	cfg.AccelsimCompat = true
	compat := NewL2DataController(cfg, nil)

	// Addresses spaced by exactly one line stride through the linear hash
	// always land on sequentially incrementing sets modulo num_sets (the
	// "stride artifact" spec.md §8 Scenario S6 checks for).
	for i := 0; i < 8; i++ {
		addr := mem.Address(i) * mem.Address(cfg.LineSize)
		want := uint32(i) % cfg.NumSets
		if got := compat.SetIndex(addr); got != want {
			t.Fatalf("accelsim-compat set_index(%d) = %d, want stride-artifact value %d", addr, got, want)
		}
	}
}

func TestTagArrayMissThenHit(t *testing.T) {
	cfg := testL1DConfig()
	controller := NewL1DataController(cfg)
	tags := NewTagArray(controller, cfg)

	addr := mem.Address(0x1000)
	sm := sectorMaskFor(addr)

	idx, status, _ := tags.Access(addr, sm, false, 1)
	if status != Miss {
		t.Fatalf("expected MISS on first access, got %v", status)
	}
	tags.FillOnMiss(idx, sm, mem.ByteMask{}, false, 2)

	idx2, status2, _ := tags.Access(addr, sm, false, 3)
	if status2 != Hit {
		t.Fatalf("expected HIT after fill, got %v", status2)
	}
	if idx2 != idx {
		t.Fatalf("expected same line index on hit, got %d vs %d", idx2, idx)
	}
}

// TestCacheReservationStress mirrors spec.md §8 Scenario S3: filling every
// way of one set with clean lines, then issuing associativity+1 misses
// against a capacity-limited MSHR/miss-queue must eventually return
// RESERVATION_FAIL.
func TestCacheReservationStress(t *testing.T) {
	cfg := testL1DConfig()
	cfg.Associativity = 4
	cfg.NumSets = 1
	cfg.MSHRCapacity = 4
	cfg.MissQueueCapacity = 4
	controller := NewL1DataController(cfg)
	c := NewBaseCache("l1d", controller, cfg, mem.StatusInL1DMissQueue, nil)

	sawReservationFail := false
	for i := 0; i < 6; i++ {
		addr := mem.Address(i) * mem.Address(cfg.LineSize)
		access := mem.Access{Addr: addr, Kind: mem.GlobalAccR, SectorBits: sectorMaskFor(addr)}
		f := mem.NewFetch(access, mem.ReadRequest, uint32(i), 0, 0)
		status := c.Access(f, uint64(i))
		if status == ReservationFail {
			sawReservationFail = true
		}
	}
	if !sawReservationFail {
		t.Fatalf("expected RESERVATION_FAIL once MSHR/miss-queue capacity is exhausted")
	}
}

// TestMSHRCoalescing mirrors spec.md §8 Scenario S4: two misses to the same
// sector address in one cycle; the first is MISS, the second MSHR_HIT, and
// the eventual fill releases both waiters in arrival order.
func TestMSHRCoalescing(t *testing.T) {
	cfg := testL1DConfig()
	controller := NewL1DataController(cfg)
	c := NewBaseCache("l1d", controller, cfg, mem.StatusInL1DMissQueue, nil)

	addr := mem.Address(0x4000)
	access := mem.Access{Addr: addr, Kind: mem.GlobalAccR, SectorBits: sectorMaskFor(addr)}

	f1 := mem.NewFetch(access, mem.ReadRequest, 0, 0, 0)
	f2 := mem.NewFetch(access, mem.ReadRequest, 1, 0, 0)

	if status := c.Access(f1, 1); status != Miss {
		t.Fatalf("expected first access to MISS, got %v", status)
	}
	if status := c.Access(f2, 1); status != MSHRHit {
		t.Fatalf("expected second access to MSHR_HIT, got %v", status)
	}
	if c.MSHRLen() != 1 {
		t.Fatalf("expected exactly one outstanding MSHR fingerprint, got %d", c.MSHRLen())
	}

	c.Fill(f1, 2)

	first, ok := c.PopReady()
	if !ok || !first.Equal(f1) {
		t.Fatalf("expected primary fetch to be released first")
	}
	second, ok := c.PopReady()
	if !ok || !second.Equal(f2) {
		t.Fatalf("expected waiter fetch to be released second, in arrival order")
	}
	if _, ok := c.PopReady(); ok {
		t.Fatalf("expected ready-access queue to be drained")
	}
}

// TestInvalidateLeavesNoDirtyAndForcesMiss exercises spec.md §8 Testable
// Property 9: flush then invalidate leaves num_dirty == 0 and every sector
// INVALID; a subsequent probe of a previously valid address returns MISS.
func TestInvalidateLeavesNoDirtyAndForcesMiss(t *testing.T) {
	cfg := testL1DConfig()
	controller := NewL1DataController(cfg)
	tags := NewTagArray(controller, cfg)

	addr := mem.Address(0x2000)
	sm := sectorMaskFor(addr)

	idx, _, _ := tags.Access(addr, sm, true, 1)
	tags.FillOnMiss(idx, sm, mem.ByteMask{}, true, 1)
	if tags.NumDirty() == 0 {
		t.Fatalf("expected a dirty line after a write fill")
	}

	tags.Flush()
	tags.Invalidate()

	if tags.NumDirty() != 0 {
		t.Fatalf("expected num_dirty == 0 after flush+invalidate, got %d", tags.NumDirty())
	}
	_, status := tags.Probe(addr, sm, false)
	if status != Miss {
		t.Fatalf("expected MISS after invalidate, got %v", status)
	}
}

type fakePort struct {
	sent []*mem.Fetch
	cap  bool
}

func (p *fakePort) CanSend(uint32) bool { return p.cap }
func (p *fakePort) Send(f *mem.Fetch)   { p.sent = append(p.sent, f) }

func TestBaseCacheCycleForwardsOneReadyMiss(t *testing.T) {
	cfg := testL1DConfig()
	controller := NewL1DataController(cfg)
	c := NewBaseCache("l1d", controller, cfg, mem.StatusInL1DMissQueue, nil)

	addr := mem.Address(0x8000)
	access := mem.Access{Addr: addr, Kind: mem.GlobalAccR, SectorBits: sectorMaskFor(addr)}
	f := mem.NewFetch(access, mem.ReadRequest, 0, 0, 0)
	c.Access(f, 1)

	port := &fakePort{cap: false}
	c.Cycle(port, 2)
	if len(port.sent) != 0 {
		t.Fatalf("expected no forward while port cannot accept")
	}

	port.cap = true
	c.Cycle(port, 3)
	if len(port.sent) != 1 || !port.sent[0].Equal(f) {
		t.Fatalf("expected the queued miss to be forwarded once the port can accept")
	}
}

// Package dram implements the narrow DRAM timing model spec.md §1 scopes
// this simulator to: "a latency queue with a bank-access counter", not a
// full bank/row/refresh timing model.
package dram

import "github.com/sarchlab/gpucore/mem"

// inFlight is one fetch sitting out its fixed DRAM round-trip latency.
type inFlight struct {
	fetch       *mem.Fetch
	readyAtTime uint64
}

// Model is a fixed-latency DRAM stand-in: every accepted fetch becomes
// ready exactly Latency cycles after it is accepted, and each bank's
// access counter is incremented for statistics (spec.md §6 stats sink:
// "memory port stats").
type Model struct {
	Latency    uint64
	NumBanks   uint32
	bankAccess []uint64
	queue      []inFlight
}

// NewModel builds a DRAM model with the given fixed round-trip latency and
// bank count.
func NewModel(latency uint64, numBanks uint32) *Model {
	return &Model{Latency: latency, NumBanks: numBanks, bankAccess: make([]uint64, numBanks)}
}

// bankOf maps a fetch's bank field onto one of NumBanks banks; the exact
// address-to-bank decomposition belongs to the cache controller / memory
// partition layer (out of scope here per spec.md §1), so this uses the
// fetch's already-decomposed PhysicalAddress.Bank field directly.
func (m *Model) bankOf(f *mem.Fetch) uint32 {
	if m.NumBanks == 0 {
		return 0
	}
	return f.Physical.Bank % m.NumBanks
}

// Accept enqueues a fetch for the fixed DRAM latency, incrementing that
// bank's access counter.
func (m *Model) Accept(f *mem.Fetch, time uint64) {
	bank := m.bankOf(f)
	if int(bank) < len(m.bankAccess) {
		m.bankAccess[bank]++
	}
	m.queue = append(m.queue, inFlight{fetch: f, readyAtTime: time + m.Latency})
}

// Cycle drains and returns every fetch whose latency has elapsed by time.
func (m *Model) Cycle(time uint64) []*mem.Fetch {
	var ready []*mem.Fetch
	kept := m.queue[:0]
	for _, e := range m.queue {
		if time >= e.readyAtTime {
			ready = append(ready, e.fetch)
		} else {
			kept = append(kept, e)
		}
	}
	m.queue = kept
	return ready
}

// BankAccessCount returns the number of accesses routed to the given bank.
func (m *Model) BankAccessCount(bank uint32) uint64 {
	if int(bank) >= len(m.bankAccess) {
		return 0
	}
	return m.bankAccess[bank]
}

// Len reports the number of fetches currently in flight.
func (m *Model) Len() int { return len(m.queue) }

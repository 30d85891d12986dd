// Package memport implements the per-core memory port (spec.md's C13): the
// single point through which a core's L1 caches push misses out to the
// interconnect and receive fill replies back, satisfying cache.Port.
package memport

import (
	"github.com/sarchlab/gpucore/interconnect"
	"github.com/sarchlab/gpucore/mem"
)

// DestFunc maps an outgoing fetch to the interconnect destination id (a
// memory partition), kept as a pluggable function since the exact
// core-to-partition routing is a configuration concern outside this
// package's scope (spec.md §1).
type DestFunc func(f *mem.Fetch) int

// Port is the core's single memory port: it satisfies cache.Port so any
// BaseCache can forward misses through it, and separately exposes Cycle to
// drain replies destined back to this core (spec.md §5 "single producer
// from interconnect, single consumer in each core's fetch/LDST").
type Port struct {
	conn     *interconnect.Connection
	dest     DestFunc
	coreID   uint32
}

// New builds a memory port over the given interconnect connection.
func New(conn *interconnect.Connection, coreID uint32, dest DestFunc) *Port {
	return &Port{conn: conn, dest: dest, coreID: coreID}
}

// CanSend implements cache.Port.
func (p *Port) CanSend(size uint32) bool {
	return p.conn.CanSend(size)
}

// Send implements cache.Port: enqueues the fetch onto the interconnect,
// stamping its origin core id.
func (p *Port) Send(f *mem.Fetch) {
	f.CoreID = p.coreID
	dest := 0
	if p.dest != nil {
		dest = p.dest(f)
	}
	size := f.Access.ReqSize
	if size == 0 {
		size = mem.LineSize
	}
	p.conn.Send(interconnect.Packet{DestID: dest, Fetch: f, PacketSize: size})
}

// Cycle drains every reply currently available on the connection destined
// for this core, returning them for the caller (the core's fetch stage /
// LDST unit) to deposit into the appropriate cache's Fill.
func (p *Port) Cycle() []*mem.Fetch {
	var out []*mem.Fetch
	for {
		pkt, ok := p.conn.Receive()
		if !ok {
			break
		}
		out = append(out, pkt.Fetch)
	}
	return out
}

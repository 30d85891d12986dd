// Package interconnect implements the narrow on-chip interconnect contract
// the core's memory port consumes (spec.md §1 "Interconnect internals
// beyond a simple bounded queue with credit check" is explicitly out of
// scope; spec.md §6 fully specifies this narrow contract).
package interconnect

import "github.com/sarchlab/gpucore/mem"

// Packet is one in-flight transfer between a core and a memory partition,
// addressed by destination id (spec.md §6 "Connection<Packet<(dest_id,
// MemFetch, packet_size)>>").
type Packet struct {
	DestID     int
	Fetch      *mem.Fetch
	PacketSize uint32
}

// Connection is a bounded, credit-checked queue between one core and the
// rest of the system (spec.md §6 Interconnect contract).
type Connection struct {
	capacity int
	inUse    uint32
	maxSize  uint32
	queue    []Packet
}

// NewConnection builds a connection with the given packet-count capacity
// and a byte-credit budget of maxSize.
func NewConnection(capacity int, maxSize uint32) *Connection {
	return &Connection{capacity: capacity, maxSize: maxSize}
}

// CanSend reports whether sending a packet of the given size would fit
// within both the packet-count capacity and the byte-credit budget
// (spec.md §6 "can_send(&[sizes]) -> bool").
func (c *Connection) CanSend(size uint32) bool {
	return len(c.queue) < c.capacity && c.inUse+size <= c.maxSize
}

// Send enqueues a packet; callers must have checked CanSend first.
func (c *Connection) Send(p Packet) {
	c.queue = append(c.queue, p)
	c.inUse += p.PacketSize
}

// Receive dequeues the oldest packet, if any (spec.md §6 "receive() ->
// Option<Packet>").
func (c *Connection) Receive() (Packet, bool) {
	if len(c.queue) == 0 {
		return Packet{}, false
	}
	p := c.queue[0]
	c.queue = c.queue[1:]
	c.inUse -= p.PacketSize
	return p, true
}

// Len reports the number of packets currently queued.
func (c *Connection) Len() int { return len(c.queue) }

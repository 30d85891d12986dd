package memport

import (
	"testing"

	"github.com/sarchlab/gpucore/interconnect"
	"github.com/sarchlab/gpucore/mem"
)

func TestSendStampsCoreIDAndRoutesByDestFunc(t *testing.T) {
	conn := interconnect.NewConnection(4, 1000)
	var gotDest int
	p := New(conn, 3, func(f *mem.Fetch) int { gotDest = 7; return 7 })

	f := mem.NewFetch(mem.Access{ReqSize: 64}, mem.ReadRequest, 0, 0, 0)
	if !p.CanSend(64) {
		t.Fatalf("expected room to send")
	}
	p.Send(f)

	if f.CoreID != 3 {
		t.Fatalf("expected Send to stamp core id 3, got %d", f.CoreID)
	}
	if gotDest != 7 {
		t.Fatalf("expected dest func invoked")
	}
	if conn.Len() != 1 {
		t.Fatalf("expected one packet queued on the connection")
	}
}

func TestCycleDrainsAllAvailableReplies(t *testing.T) {
	conn := interconnect.NewConnection(4, 1000)
	p := New(conn, 0, nil)

	f1 := mem.NewFetch(mem.Access{ReqSize: 32}, mem.ReadReply, 0, 0, 0)
	f2 := mem.NewFetch(mem.Access{ReqSize: 32}, mem.ReadReply, 0, 0, 0)
	conn.Send(interconnect.Packet{Fetch: f1, PacketSize: 32})
	conn.Send(interconnect.Packet{Fetch: f2, PacketSize: 32})

	got := p.Cycle()
	if len(got) != 2 || got[0] != f1 || got[1] != f2 {
		t.Fatalf("expected both replies drained in FIFO order, got %v", got)
	}
	if len(p.Cycle()) != 0 {
		t.Fatalf("expected nothing left to drain")
	}
}

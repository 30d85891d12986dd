package mem

import "sync/atomic"

// FetchKind distinguishes the four points a MemFetch can represent in its
// request/reply lifecycle (spec.md §3).
type FetchKind uint8

const (
	ReadRequest FetchKind = iota
	WriteRequest
	ReadReply
	WriteAck
)

// Status tracks where a MemFetch currently sits in the pipeline
// (spec.md §3 "status (enum tracking location in pipeline)").
type Status uint8

const (
	StatusInitialized Status = iota
	StatusInIcnqueueToMem
	StatusInIcnqueueToShader
	StatusInCluster2ShaderQueue
	StatusInL1IMissQueue
	StatusInL1DMissQueue
	StatusInL2ToDRAMQueue
	StatusInDRAMReqQueue
	StatusInDRAMToL2Queue
	StatusInL2ToIcnQueue
	StatusInShaderFillQueue
)

// PhysicalAddress holds the decomposed physical address fields a fetch
// carries once it has been routed by the memory controller.
type PhysicalAddress struct {
	SubPartition uint32
	Channel      uint32
	Bank         uint32
	Row          uint32
	Col          uint32
}

var globalFetchUID uint64

// NextFetchUID returns a process-wide monotonic id (spec.md §9 "Global
// atomic counters"). Tests that require determinism should call
// ResetFetchUID between runs.
func NextFetchUID() uint64 {
	return atomic.AddUint64(&globalFetchUID, 1) - 1
}

// ResetFetchUID resets the global fetch id counter. Intended for test
// determinism only.
func ResetFetchUID() {
	atomic.StoreUint64(&globalFetchUID, 0)
}

// Fetch is a single in-flight memory request/reply (spec.md §3 "MemFetch").
// Hash/equality are defined only in terms of UID.
type Fetch struct {
	UID      uint64
	Access   Access
	InstrUID *uint64 // originating instruction uid, if any

	Physical PhysicalAddress
	Kind     FetchKind
	WarpID   uint32
	CoreID   uint32
	ClusterID uint32

	InjectCycle uint64
	ReturnCycle uint64
	Status      Status

	// OriginalFetch links a sector-split child fetch back to its parent.
	OriginalFetch *Fetch
	// OriginalWriteFetch links a fetch-on-write read back to the write that
	// spawned it.
	OriginalWriteFetch *Fetch

	Latency uint64
}

// NewFetch allocates a Fetch with a fresh globally-unique id.
func NewFetch(access Access, kind FetchKind, warpID, coreID, clusterID uint32) *Fetch {
	return &Fetch{
		UID:       NextFetchUID(),
		Access:    access,
		Kind:      kind,
		WarpID:    warpID,
		CoreID:    coreID,
		ClusterID: clusterID,
		Status:    StatusInitialized,
	}
}

// IsWrite reports whether this fetch represents a write-direction request.
func (f *Fetch) IsWrite() bool {
	return f.Kind == WriteRequest || f.Access.IsWrite()
}

// Equal implements fetch identity comparison (id-only, spec.md §3).
func (f *Fetch) Equal(other *Fetch) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.UID == other.UID
}

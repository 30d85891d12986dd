package cache

// AllocatePolicy selects when a missed line is allocated a tag-array slot
// (spec.md §6).
type AllocatePolicy uint8

const (
	AllocateOnMiss AllocatePolicy = iota
	AllocateOnFill
)

// ReplacementPolicy selects the victim-choice policy among non-invalid
// candidate lines (spec.md §4.2).
type ReplacementPolicy uint8

const (
	ReplacementLRU ReplacementPolicy = iota
	ReplacementFIFO
)

// WriteAllocatePolicy controls whether a write miss allocates a line.
type WriteAllocatePolicy uint8

const (
	WriteAllocateNone WriteAllocatePolicy = iota
	WriteAllocateFetchOnWrite
	WriteAllocateLazyFetchOnRead
)

// Config holds the policy parameters shared by every cache specialization
// (spec.md §6: inst_cache_l1 / data_cache_l1 / data_cache_l2 fields).
type Config struct {
	LineSize          uint32
	NumSets           uint32
	Associativity     uint32
	AtomSize          uint32 // sector size, typically 32B
	Allocate          AllocatePolicy
	Replacement       ReplacementPolicy
	WriteAllocate     WriteAllocatePolicy
	MaxDirtyPercent   uint32 // dirty-line budget, 0-100
	MSHRCapacity      int
	MissQueueCapacity int

	// L1-data-only banking parameters.
	L1Banks                int
	L1BanksByteInterleaving int
	L1Latency               int

	// AccelsimCompat selects the linear (compat) vs IPOLY (default) L2
	// set-index variant (spec.md §6 accelsim_compat).
	AccelsimCompat bool
}

// MaxNumLines returns the total number of cache lines this config implies.
func (c Config) MaxNumLines() uint32 {
	return c.NumSets * c.Associativity
}

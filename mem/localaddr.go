package mem

import "errors"

// ErrLocalAccessCrossesWord is returned when a sub-4-byte local access would
// straddle a 4-byte boundary. spec.md §9 notes the original implementation
// emits a debug print before asserting here, "suggesting the check may have
// been violated in practice" — this implementation rejects the trace with a
// clear error instead of panicking (SPEC_FULL.md Open Question 3).
var ErrLocalAccessCrossesWord = errors.New("mem: local access crosses 4-byte word boundary")

// ErrLocalAccessMisaligned is returned for a data_size >= 4 access whose
// local_addr is not 4-byte aligned, or whose data_size is not a multiple of
// 4.
var ErrLocalAccessMisaligned = errors.New("mem: local access is not word-aligned")

// LocalTranslationParams bundles the configuration-derived inputs to local
// address translation (spec.md §4.11).
type LocalTranslationParams struct {
	Core                uint32
	ThreadID             uint32
	TotalCores           uint32
	DataSize             uint32
	PaddedBlockSize      uint32
	MaxBlocksPerCore     uint32
	MaxThreadsPerCore    uint32
	LocalMemMapEnabled   bool
}

// TranslateLocal implements spec.md §4.11: translate a LOCAL load/store
// address into one or more generic-space addresses, splitting multi-word
// accesses into per-word translated addresses.
func TranslateLocal(localAddr Address, p LocalTranslationParams) ([]Address, error) {
	var threadBase Address
	var maxConcurrentThreads uint64

	if p.LocalMemMapEnabled {
		temp := uint64(p.Core) + uint64(p.TotalCores)*(uint64(p.ThreadID)/uint64(p.PaddedBlockSize))
		rest := uint64(p.ThreadID) % uint64(p.PaddedBlockSize)
		threadBase = Address(4 * (uint64(p.PaddedBlockSize)*temp + rest))
		maxConcurrentThreads = uint64(p.PaddedBlockSize) * uint64(p.MaxBlocksPerCore) * uint64(p.TotalCores)
	} else {
		threadBase = Address(4 * (uint64(p.MaxThreadsPerCore)*uint64(p.Core) + uint64(p.ThreadID)))
		maxConcurrentThreads = uint64(p.TotalCores) * uint64(p.MaxThreadsPerCore)
	}

	if p.DataSize >= 4 {
		if p.DataSize%4 != 0 {
			return nil, ErrLocalAccessMisaligned
		}
		if uint64(localAddr)%4 != 0 {
			return nil, ErrLocalAccessMisaligned
		}
		numWords := p.DataSize / 4
		out := make([]Address, numWords)
		for i := uint32(0); i < numWords; i++ {
			wordIdx := uint64(localAddr)/4 + uint64(i)
			out[i] = Address(wordIdx*maxConcurrentThreads*4) + threadBase + LocalGenericStart
		}
		return out, nil
	}

	// data_size < 1 is a trace/configuration error (spec.md §7); callers
	// must not reach here with DataSize == 0.
	if p.DataSize < 1 {
		return nil, errors.New("mem: local access has data_size < 1")
	}

	// Precondition from spec.md §8 Testable Property 11: the access must
	// not straddle the next 4-byte boundary.
	if (uint64(localAddr)+uint64(p.DataSize)-1)/4 != uint64(localAddr)/4 {
		return nil, ErrLocalAccessCrossesWord
	}

	wordIdx := uint64(localAddr) / 4
	byteOffset := uint64(localAddr) % 4
	addr := Address(wordIdx*maxConcurrentThreads*4) + Address(byteOffset) + threadBase + LocalGenericStart
	return []Address{addr}, nil
}

// Package tracereader implements the narrow TraceReader contract a core
// consumes at block-issue time (spec.md §6: "read_warps_for_block(warps_out,
// kernel, config) -> Option<BlockInfo>"). Trace ingestion itself — parsing
// an on-disk trace format — is out of scope (spec.md §1); this package
// models the interface and an in-memory Reader useful for tests and for
// feeding pre-decoded traces into a core.
package tracereader

import "github.com/sarchlab/gpucore/warpstate"

// BlockInfo is the metadata a successful read_warps_for_block call returns
// alongside the mutated warp slice (spec.md §6).
type BlockInfo struct {
	BlockID   uint64
	BlockSize uint32
}

// Reader is the TraceReader contract (spec.md §6).
type Reader interface {
	// ReadWarpsForBlock mutates warps[i] in place for each warp of the next
	// block of kernelID: clearing trace_instructions/trace_pc, setting
	// kernel_id, and filling the instruction list in issue order. Returns
	// false once the kernel has no more blocks.
	ReadWarpsForBlock(warps []*warpstate.Warp, kernelID uint64) (BlockInfo, bool)
}

// StaticReader serves a fixed, pre-decoded sequence of blocks — the
// in-memory stand-in used by tests and by any harness that has already
// parsed a trace file through means outside this repo's scope.
type StaticReader struct {
	Blocks []Block
	next   int
}

// Block is one pre-decoded thread block's worth of per-warp instruction
// streams, indexed by warp id within the block.
type Block struct {
	BlockID   uint64
	BlockSize uint32
	Warps     [][]warpstate.TraceInstruction
}

// NewStaticReader builds a reader that serves blocks in order.
func NewStaticReader(blocks []Block) *StaticReader {
	return &StaticReader{Blocks: blocks}
}

// ReadWarpsForBlock implements Reader by copying the next static block's
// instruction streams into warps, one stream per warp index.
func (r *StaticReader) ReadWarpsForBlock(warps []*warpstate.Warp, kernelID uint64) (BlockInfo, bool) {
	if r.next >= len(r.Blocks) {
		return BlockInfo{}, false
	}
	block := r.Blocks[r.next]
	r.next++

	for i, w := range warps {
		w.KernelID = kernelID
		w.TracePC = 0
		if i < len(block.Warps) {
			w.TraceInstructions = append([]warpstate.TraceInstruction(nil), block.Warps[i]...)
		} else {
			w.TraceInstructions = nil
		}
	}
	return BlockInfo{BlockID: block.BlockID, BlockSize: block.BlockSize}, true
}

// Remaining reports how many blocks this reader has left to serve.
func (r *StaticReader) Remaining() int {
	return len(r.Blocks) - r.next
}

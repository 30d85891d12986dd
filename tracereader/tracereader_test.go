package tracereader

import (
	"testing"

	"github.com/sarchlab/gpucore/warpstate"
)

func TestStaticReaderServesBlocksInOrderThenExhausts(t *testing.T) {
	r := NewStaticReader([]Block{
		{BlockID: 0, BlockSize: 2, Warps: [][]warpstate.TraceInstruction{
			{{Category: warpstate.OpInt}},
			{{Category: warpstate.OpSP}},
		}},
	})

	warps := []*warpstate.Warp{warpstate.NewWarp(2), warpstate.NewWarp(2)}
	info, ok := r.ReadWarpsForBlock(warps, 7)
	if !ok || info.BlockID != 0 || info.BlockSize != 2 {
		t.Fatalf("expected first block served, got %+v ok=%v", info, ok)
	}
	if warps[0].KernelID != 7 || len(warps[0].TraceInstructions) != 1 {
		t.Fatalf("expected warp 0 populated with kernel id and one instruction")
	}
	if warps[1].TraceInstructions[0].Category != warpstate.OpSP {
		t.Fatalf("expected warp 1's instruction stream to match block.Warps[1]")
	}

	if _, ok := r.ReadWarpsForBlock(warps, 7); ok {
		t.Fatalf("expected no more blocks after the only one was served")
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected Remaining() == 0 once exhausted")
	}
}

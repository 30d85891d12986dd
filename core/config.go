// Package core implements the per-SM orchestration loop: writeback,
// execute, operand-collector step, issue, and decode/fetch, run in that
// order every cycle (spec.md §4.9), plus block issue and warp
// initialization (spec.md §4.10).
package core

import (
	"github.com/sarchlab/gpucore/cache"
	"github.com/sarchlab/gpucore/regfile"
)

// Config bundles every core-relevant configuration knob spec.md §6
// enumerates (warp_size is fixed at mem.WarpSize and not repeated here).
type Config struct {
	NumSchedulers       int
	MaxWarpsPerCore     int
	MaxThreadsPerCore   int
	MaxConcurrentBlocks int
	MaxBarriersPerBlock int
	SubCoreModel        bool

	RegFilePortThroughput int
	InstFetchThroughput   int
	InstrBufferWidth      int

	// PipelineWidths sizes each of the 13 regfile.Stage register sets
	// (spec.md §6 "pipeline_widths: stage -> width").
	PipelineWidths [regfile.NumStages]int

	PerfectICache bool

	L1I cache.Config
	L1D cache.Config

	NumSPUnits, NumDPUnits, NumIntUnits, NumSFUUnits int

	CollectorBanksPerSched int
	CollectorBankWarpShift int
	CollectorCUsPerSched   int
	CollectorUnits         int

	PaddedBlockSize    uint32
	BlockSize          uint32
	TotalCores         uint32
	LocalMemMapEnabled bool
}

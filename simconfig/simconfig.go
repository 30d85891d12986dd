// Package simconfig exposes the core-relevant configuration struct spec.md
// §6 enumerates, built with functional options the way
// sarchlab/m2sim's timing/pipeline.Pipeline is configured
// (PipelineOption/NewPipeline) rather than through a file-parsing layer —
// CLI and configuration-file parsing are explicit Non-goals (spec.md §1),
// so this package stops at an in-memory, programmatically-built struct.
package simconfig

import (
	"github.com/sarchlab/gpucore/cache"
	"github.com/sarchlab/gpucore/core"
	"github.com/sarchlab/gpucore/regfile"
)

// Config holds every core-relevant option spec.md §6 names. New fills in
// defaults first and then applies options in order; nothing is backfilled
// afterwards, so a field an option sets to zero stays zero.
type Config struct {
	MaxWarpsPerCore            int
	MaxThreadsPerCore          int
	MaxConcurrentBlocksPerCore int
	MaxBarriersPerBlock        int

	NumSchedulersPerCore int
	NumSPUnits           int
	NumDPUnits           int
	NumIntUnits          int
	NumSFUUnits          int
	SubCoreModel         bool

	// PipelineWidths maps a regfile.Stage to its register-set width.
	// A stage absent from the map uses DefaultPipelineWidth.
	PipelineWidths       map[regfile.Stage]int
	DefaultPipelineWidth int

	OperandCollectorBanksPerSched int
	OperandCollectorBankWarpShift int
	OperandCollectorCUsPerSched   int
	OperandCollectorUnits         int

	RegFilePortThroughput int
	InstFetchThroughput   int
	InstrBufferWidth      int

	InstCacheL1 cache.Config
	DataCacheL1 cache.Config
	DataCacheL2 cache.Config

	LocalMemMap           bool
	PerfectInstConstCache bool
	FlushL1Cache          bool
	AccelsimCompat        bool

	PaddedBlockSize uint32
	BlockSize       uint32
	TotalCores      uint32
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithSchedulers sets the number of per-core schedulers and their
// functional-unit counts in one call, the way most trace-driven configs
// name a warp scheduler count alongside its unit mix (spec.md §6).
func WithSchedulers(n, spUnits, dpUnits, intUnits, sfuUnits int) Option {
	return func(c *Config) {
		c.NumSchedulersPerCore = n
		c.NumSPUnits = spUnits
		c.NumDPUnits = dpUnits
		c.NumIntUnits = intUnits
		c.NumSFUUnits = sfuUnits
	}
}

// WithSubCoreModel enables the sub-core partitioning described in spec.md
// §4.7 (each scheduler restricted to its own pipeline-register slot and
// collector bank range).
func WithSubCoreModel(enabled bool) Option {
	return func(c *Config) { c.SubCoreModel = enabled }
}

// WithPipelineWidth overrides a single pipeline stage's register-set width.
func WithPipelineWidth(stage regfile.Stage, width int) Option {
	return func(c *Config) {
		if c.PipelineWidths == nil {
			c.PipelineWidths = make(map[regfile.Stage]int)
		}
		c.PipelineWidths[stage] = width
	}
}

// WithOperandCollector sets the banked operand collector's sizing (spec.md
// §4.7).
func WithOperandCollector(banksPerSched, bankWarpShift, cusPerSched, units int) Option {
	return func(c *Config) {
		c.OperandCollectorBanksPerSched = banksPerSched
		c.OperandCollectorBankWarpShift = bankWarpShift
		c.OperandCollectorCUsPerSched = cusPerSched
		c.OperandCollectorUnits = units
	}
}

// WithCaches sets the L1 instruction, L1 data, and L2 data cache configs in
// one call.
func WithCaches(l1i, l1d, l2 cache.Config) Option {
	return func(c *Config) {
		c.InstCacheL1 = l1i
		c.DataCacheL1 = l1d
		c.DataCacheL2 = l2
	}
}

// WithPerfectInstConstCache makes instruction (and constant) fetch always
// hit, bypassing L1I modeling entirely (spec.md §6).
func WithPerfectInstConstCache(enabled bool) Option {
	return func(c *Config) { c.PerfectInstConstCache = enabled }
}

// WithLocalMemMap enables the local-memory-to-global-address mapping
// spec.md §4.2's TranslateLocal implements, instead of a flat per-core
// local space.
func WithLocalMemMap(enabled bool) Option {
	return func(c *Config) { c.LocalMemMap = enabled }
}

// WithAccelsimCompat sets the accelsim_compat flag (spec.md §6) on every
// cache config this Config produces. Only the L2 controller reads it, to
// pick the linear (compat) set index over IPOLY; the L1 set-index
// functions do not change with it.
func WithAccelsimCompat(enabled bool) Option {
	return func(c *Config) { c.AccelsimCompat = enabled }
}

// WithBlockSizing sets the padded/unpadded block size and total core count
// used for local-memory address translation (spec.md §4.2).
func WithBlockSizing(paddedBlockSize, blockSize, totalCores uint32) Option {
	return func(c *Config) {
		c.PaddedBlockSize = paddedBlockSize
		c.BlockSize = blockSize
		c.TotalCores = totalCores
	}
}

const (
	defaultMaxWarpsPerCore            = 64
	defaultMaxThreadsPerCore          = 2048
	defaultMaxConcurrentBlocksPerCore = 32
	defaultMaxBarriersPerBlock        = 16
	defaultPipelineWidth              = 1
	defaultRegFilePortThroughput      = 1
	defaultInstFetchThroughput        = 1
	defaultInstrBufferWidth           = 2
)

// New builds a Config from defaults sized after a contemporary SM (spec.md
// §6's option list), then applies opts in order the way NewPipeline applies
// PipelineOption values over its zero-value Pipeline.
func New(opts ...Option) Config {
	c := Config{
		MaxWarpsPerCore:            defaultMaxWarpsPerCore,
		MaxThreadsPerCore:          defaultMaxThreadsPerCore,
		MaxConcurrentBlocksPerCore: defaultMaxConcurrentBlocksPerCore,
		MaxBarriersPerBlock:        defaultMaxBarriersPerBlock,
		NumSchedulersPerCore:       1,
		NumSPUnits:                 1,
		NumIntUnits:                1,
		DefaultPipelineWidth:       defaultPipelineWidth,
		RegFilePortThroughput:      defaultRegFilePortThroughput,
		InstFetchThroughput:        defaultInstFetchThroughput,
		InstrBufferWidth:           defaultInstrBufferWidth,
		PaddedBlockSize:            32,
		BlockSize:                  32,
		TotalCores:                 1,
	}

	for _, opt := range opts {
		opt(&c)
	}

	return c
}

// ToCoreConfig translates this Config into a core.Config, resolving
// PipelineWidths against DefaultPipelineWidth for any omitted stage.
func (c Config) ToCoreConfig() core.Config {
	var widths [regfile.NumStages]int
	for i := range widths {
		widths[i] = c.DefaultPipelineWidth
	}
	for stage, w := range c.PipelineWidths {
		widths[stage] = w
	}

	l1i, l1d := c.InstCacheL1, c.DataCacheL1
	if c.AccelsimCompat {
		l1i.AccelsimCompat = true
		l1d.AccelsimCompat = true
	}

	return core.Config{
		NumSchedulers:          c.NumSchedulersPerCore,
		MaxWarpsPerCore:        c.MaxWarpsPerCore,
		MaxThreadsPerCore:      c.MaxThreadsPerCore,
		MaxConcurrentBlocks:    c.MaxConcurrentBlocksPerCore,
		MaxBarriersPerBlock:    c.MaxBarriersPerBlock,
		SubCoreModel:           c.SubCoreModel,
		RegFilePortThroughput:  c.RegFilePortThroughput,
		InstFetchThroughput:    c.InstFetchThroughput,
		InstrBufferWidth:       c.InstrBufferWidth,
		PipelineWidths:         widths,
		PerfectICache:          c.PerfectInstConstCache,
		L1I:                    l1i,
		L1D:                    l1d,
		NumSPUnits:             c.NumSPUnits,
		NumDPUnits:             c.NumDPUnits,
		NumIntUnits:            c.NumIntUnits,
		NumSFUUnits:            c.NumSFUUnits,
		CollectorBanksPerSched: c.OperandCollectorBanksPerSched,
		CollectorBankWarpShift: c.OperandCollectorBankWarpShift,
		CollectorCUsPerSched:   c.OperandCollectorCUsPerSched,
		CollectorUnits:         c.OperandCollectorUnits,
		PaddedBlockSize:        c.PaddedBlockSize,
		BlockSize:              c.BlockSize,
		TotalCores:             c.TotalCores,
		LocalMemMapEnabled:     c.LocalMemMap,
	}
}

// L2Config returns the L2 data cache config, with AccelsimCompat applied.
// L2 lives outside core.Config because it is shared across a cluster's
// cores, not owned by a single core (spec.md §4.3 component C3).
func (c Config) L2Config() cache.Config {
	l2 := c.DataCacheL2
	if c.AccelsimCompat {
		l2.AccelsimCompat = true
	}
	return l2
}

package cache

import (
	"github.com/sarchlab/gpucore/mem"
	"github.com/sirupsen/logrus"
)

// L1Instruction is the L1 instruction cache specialization: plain linear
// controller, no write path (spec.md §6 `inst_cache_l1`).
type L1Instruction struct {
	*BaseCache
}

// NewL1Instruction builds the L1 instruction cache.
func NewL1Instruction(cfg Config, log *logrus.Entry) *L1Instruction {
	controller := NewInstrController(cfg)
	return &L1Instruction{
		BaseCache: NewBaseCache("l1i", controller, cfg, mem.StatusInL1IMissQueue, log),
	}
}

// L1Data is the L1 data cache specialization: pseudo-random set index,
// banked, full read/write path (spec.md §6 `data_cache_l1`).
type L1Data struct {
	*BaseCache
}

// NewL1Data builds the L1 data cache.
func NewL1Data(cfg Config, log *logrus.Entry) *L1Data {
	controller := NewL1DataController(cfg)
	return &L1Data{
		BaseCache: NewBaseCache("l1d", controller, cfg, mem.StatusInL1DMissQueue, log),
	}
}

// L2Data is the L2 data cache specialization: partition-address projection
// plus IPOLY (or accelsim-compat linear) set index, shared across cores of
// a cluster (spec.md §6 `data_cache_l2`).
type L2Data struct {
	*BaseCache
}

// NewL2Data builds the L2 data cache. partitionAddr may be nil.
func NewL2Data(cfg Config, partitionAddr PartitionAddressFunc, log *logrus.Entry) *L2Data {
	controller := NewL2DataController(cfg, partitionAddr)
	return &L2Data{
		BaseCache: NewBaseCache("l2", controller, cfg, mem.StatusInL2ToDRAMQueue, log),
	}
}

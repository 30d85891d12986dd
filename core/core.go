package core

import (
	"github.com/sarchlab/gpucore/barrier"
	"github.com/sarchlab/gpucore/cache"
	"github.com/sarchlab/gpucore/collector"
	"github.com/sarchlab/gpucore/funit"
	"github.com/sarchlab/gpucore/kernel"
	"github.com/sarchlab/gpucore/regfile"
	"github.com/sarchlab/gpucore/schedwarp"
	"github.com/sarchlab/gpucore/scoreboard"
	"github.com/sarchlab/gpucore/warpstate"
	"github.com/sirupsen/logrus"
)

// Instr is the concrete warp-instruction payload threaded through every
// generic pipeline register set and collector/functional unit in this
// core, mirroring the teacher's convention of one concrete instruction
// struct shared by every stage.
type Instr = *warpstate.Instruction

// blockSlot is one hardware-block-slot's bookkeeping (spec.md §4.10).
type blockSlot struct {
	inUse         bool
	kernel        *kernel.Kernel
	blockID       uint64
	base          int
	count         int
	activeThreads uint32
	warpsInBlock  barrier.WarpMask
}

// Core is one streaming multiprocessor: N GTO schedulers, a scoreboard, a
// barrier set, L1I/L1D caches, a banked operand collector, and one
// functional unit per (kind, count) pair, orchestrated by Cycle
// (spec.md §4.9).
type Core struct {
	ID     uint32
	Config Config
	Log    *logrus.Entry

	Warps      []*warpstate.Warp
	priority   *schedwarp.PriorityCounter
	Scoreboard *scoreboard.Scoreboard
	Barriers   *barrier.Set

	L1I *cache.L1Instruction
	L1D *cache.L1Data
	Mem cache.Port

	regs      [regfile.NumStages]*regfile.Set[Instr]
	collector *collector.Collector[Instr]
	fus       []*funit.Unit[Instr]
	resultBus funit.ResultBus

	fetchBuf        warpstate.FetchBuffer
	lastWarpFetched int

	blockSlots      []blockSlot
	numActiveBlocks int
	nextDynamicWarp uint64
	activeWarps     int
	activeThreads   int

	Kernels       kernel.Manager
	currentKernel *kernel.Kernel

	IssuedByCategory map[warpstate.OpCategory]uint64
	InstrCompleted   uint64

	// FatalErr is set the first time a trace/configuration error or fatal
	// invariant violation terminates the run (spec.md §7); once set, Cycle
	// becomes a no-op that keeps returning it.
	FatalErr error

	// cyclesSinceIssue tracks a deadlock-diagnostic streak: consecutive
	// Cycle calls in which no scheduler issued anything, used to decide
	// when to log a scoreboard.DependencyReport snapshot (grounded on the
	// original implementation's deadlock::gather_state debug dump).
	cyclesSinceIssue uint64
	deadlockReported bool
}

// deadlockStallThreshold is how many consecutive cycles with zero warps
// issued trigger a one-time scoreboard.DependencyReport log, mirroring the
// original implementation's deadlock-detection snapshot.
const deadlockStallThreshold = 10000

// New allocates a core with every pipeline register set, functional unit,
// and per-core structure sized from cfg (spec.md §4.6, §4.9).
func New(id uint32, cfg Config, km kernel.Manager, memPort cache.Port, log *logrus.Entry) *Core {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Core{
		ID:               id,
		Config:           cfg,
		Log:              log,
		Warps:            make([]*warpstate.Warp, cfg.MaxWarpsPerCore),
		priority:         schedwarp.NewPriorityCounter(cfg.NumSchedulers),
		Scoreboard:       scoreboard.New(cfg.MaxWarpsPerCore),
		Barriers:         barrier.New(cfg.MaxConcurrentBlocks, cfg.MaxBarriersPerBlock, 32),
		L1I:              cache.NewL1Instruction(cfg.L1I, log.WithField("unit", "l1i")),
		L1D:              cache.NewL1Data(cfg.L1D, log.WithField("unit", "l1d")),
		Mem:              memPort,
		blockSlots:       make([]blockSlot, cfg.MaxConcurrentBlocks),
		Kernels:          km,
		IssuedByCategory: make(map[warpstate.OpCategory]uint64),
	}
	for i := range c.Warps {
		c.Warps[i] = warpstate.NewWarp(cfg.InstrBufferWidth)
	}
	for s := regfile.Stage(0); s < regfile.NumStages; s++ {
		c.regs[s] = regfile.New[Instr](cfg.PipelineWidths[s], cfg.NumSchedulers)
	}

	units := make([]collector.Unit[Instr], cfg.CollectorUnits)
	for i := range units {
		units[i] = collector.Unit[Instr]{Kind: collector.KindGen, Free: true}
	}
	c.collector = collector.New(cfg.CollectorUnits, cfg.CollectorBanksPerSched, cfg.CollectorBankWarpShift, cfg.SubCoreModel, units)

	c.fus = buildFunitFleet(cfg)
	return c
}

func buildFunitFleet(cfg Config) []*funit.Unit[Instr] {
	var fus []*funit.Unit[Instr]
	add := func(kind funit.Kind, stallable bool, port regfile.Stage, count int) {
		for i := 0; i < count; i++ {
			sub := cfg.SubCoreModel
			id := 0
			if sub {
				id = i % cfg.NumSchedulers
			}
			fus = append(fus, funit.NewUnit[Instr](kind, stallable, port, sub, id))
		}
	}
	add(funit.KindSP, false, regfile.OCEXSP, cfg.NumSPUnits)
	add(funit.KindDP, false, regfile.OCEXDP, cfg.NumDPUnits)
	add(funit.KindInt, false, regfile.OCEXInt, cfg.NumIntUnits)
	add(funit.KindSFU, false, regfile.OCEXSFU, cfg.NumSFUUnits)
	add(funit.KindLDST, true, regfile.OCEXMem, 1)
	return fus
}

// Cycle advances the core by exactly one cycle in the order spec.md §4.9
// mandates: writeback, execute, operand-collector step (x
// reg_file_port_throughput), issue, then decode/fetch (x
// inst_fetch_throughput).
// Cycle advances the core by one cycle (spec.md §4.9). It returns the
// error that terminated the run, if any: a trace/configuration error
// (spec.md §7) unwinds out of issue and is reported here rather than
// panicking, since that error class is not a hardware-invariant bug. Once
// FatalErr is set, Cycle is a no-op that keeps returning it.
func (c *Core) Cycle(time uint64) error {
	if c.FatalErr != nil {
		return c.FatalErr
	}

	c.writeback(time)
	c.execute(time)
	for i := 0; i < max1(c.Config.RegFilePortThroughput); i++ {
		c.operandCollectorStep()
	}

	issued, err := c.issue(time)
	if err != nil {
		c.Log.WithError(err).WithField("cycle", time).Error("core: terminating run on trace/configuration error")
		c.FatalErr = err
		return err
	}

	for i := 0; i < max1(c.Config.InstFetchThroughput); i++ {
		c.decode()
		c.fetch(time)
	}
	c.maybeIssueBlock()

	c.trackDeadlockDiagnostic(issued)

	return nil
}

// trackDeadlockDiagnostic logs a scoreboard.DependencyReport the first time
// the core goes deadlockStallThreshold consecutive cycles without issuing a
// single instruction, the same stuck-simulation signal the original
// implementation's deadlock::gather_state dump exists to diagnose.
func (c *Core) trackDeadlockDiagnostic(issued bool) {
	if issued {
		c.cyclesSinceIssue = 0
		c.deadlockReported = false
		return
	}

	c.cyclesSinceIssue++
	if c.deadlockReported || c.cyclesSinceIssue < deadlockStallThreshold {
		return
	}

	c.deadlockReported = true
	report := c.DependencyReport()
	c.Log.WithFields(logrus.Fields{
		"core_id":        c.ID,
		"stalled_cycles": c.cyclesSinceIssue,
		"in_flight":      len(report.Entries),
		"high_priority":  report.Priority.HighPriority,
	}).Warn("core: no warp issued for an extended run, possible deadlock")
}

// DependencyReport snapshots every in-flight pipeline-register instruction
// into a scoreboard.DependencyReport, naming which instructions are
// blocking which others (spec.md §6 "Persisted state" debugging view,
// grounded on the original implementation's deadlock::State snapshot of
// every functional-unit pipeline register).
func (c *Core) DependencyReport() scoreboard.DependencyReport {
	var entries []scoreboard.InFlightEntry
	for stage := range c.regs {
		for _, instr := range c.regs[stage].Occupied() {
			if instr == nil {
				continue
			}
			entries = append(entries, scoreboard.InFlightEntry{
				UID:      instr.UID,
				WarpID:   instr.WarpID,
				SrcRegs:  instr.SrcRegs,
				DestRegs: instr.DestRegs,
			})
		}
	}
	return scoreboard.BuildReport(entries)
}

// exwbSet returns the EX_WB register set every functional unit deposits
// completed instructions into.
func (c *Core) exwbSet() *regfile.Set[Instr] {
	return c.regs[regfile.EXWB]
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// categoryToStage maps an opcode category to its ID_OC_* target stage
// (spec.md §4.8 "choosing a target pipeline stage by the instruction's
// opcode category").
func categoryToStage(cat warpstate.OpCategory) (idOC, ocEX regfile.Stage, ok bool) {
	switch cat {
	case warpstate.OpSP:
		return regfile.IDOCSP, regfile.OCEXSP, true
	case warpstate.OpDP:
		return regfile.IDOCDP, regfile.OCEXDP, true
	case warpstate.OpInt:
		return regfile.IDOCInt, regfile.OCEXInt, true
	case warpstate.OpSFU:
		return regfile.IDOCSFU, regfile.OCEXSFU, true
	case warpstate.OpMem:
		return regfile.IDOCMem, regfile.OCEXMem, true
	case warpstate.OpTensor:
		return regfile.IDOCTensor, regfile.OCEXTensor, true
	default:
		return 0, 0, false
	}
}

// categoryToCollectorKind maps an opcode category to the collector-unit
// kinds allowed to service it (spec.md §4.7: CU kind in {GEN, SP, DP, SFU,
// TENSOR, INT, MEM}). GEN units accept every category, matching the
// "general" collector-unit pool a real design leans on for overflow.
func categoryToCollectorKind(cat warpstate.OpCategory) []collector.Kind {
	switch cat {
	case warpstate.OpSP:
		return []collector.Kind{collector.KindSP, collector.KindGen}
	case warpstate.OpDP:
		return []collector.Kind{collector.KindDP, collector.KindGen}
	case warpstate.OpInt:
		return []collector.Kind{collector.KindInt, collector.KindGen}
	case warpstate.OpSFU:
		return []collector.Kind{collector.KindSFU, collector.KindGen}
	case warpstate.OpTensor:
		return []collector.Kind{collector.KindTensor, collector.KindGen}
	case warpstate.OpMem:
		return []collector.Kind{collector.KindMem, collector.KindGen}
	default:
		return []collector.Kind{collector.KindGen}
	}
}

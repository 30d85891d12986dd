package core

import (
	"github.com/sarchlab/gpucore/collector"
	"github.com/sarchlab/gpucore/regfile"
	"github.com/sarchlab/gpucore/warpstate"
)

// pipelineCategories lists every opcode category that flows through the
// operand collector (BARRIER/MEMORY_BARRIER/EXIT resolve entirely in issue
// and never occupy an ID_OC/OC_EX slot, spec.md §4.9).
var pipelineCategories = []warpstate.OpCategory{
	warpstate.OpSP, warpstate.OpDP, warpstate.OpInt,
	warpstate.OpSFU, warpstate.OpMem, warpstate.OpTensor,
}

// operandCollectorStep runs the collector's 4 phases once (spec.md §4.7):
// dispatch-ready moves a completed CU into its OC_EX stage set, allocate-
// reads runs the wavefront diagonal arbiter, allocate-CUs pulls freshly
// decoded ID_OC instructions into free CUs, and reset-allocation clears
// per-bank state for the next cycle.
func (c *Core) operandCollectorStep() {
	for _, cat := range pipelineCategories {
		_, ocEX, ok := categoryToStage(cat)
		if !ok {
			continue
		}
		for i := range c.collector.Units {
			if u := &c.collector.Units[i]; u.OutputStage == ocEX && u.Ready(c.regs[ocEX]) {
				c.collector.DispatchReady(c.regs[ocEX], i)
				break
			}
		}
	}

	c.collector.AllocateReads()

	for _, cat := range pipelineCategories {
		idOC, ocEX, ok := categoryToStage(cat)
		if !ok {
			continue
		}
		c.allocateCUsForStage(idOC, ocEX, cat)
	}

	c.collector.ResetAllocation()
}

// allocateCUsForStage implements spec.md §4.7 phase 3 for one input port:
// if the ID_OC stage holds a ready instruction, grab a free CU of an
// allowed kind and move the instruction out of the register set into it.
// Mirrors funit.Unit.TryIssue's pop-then-reinsert-on-failure pattern.
func (c *Core) allocateCUsForStage(idOC, ocEX regfile.Stage, cat warpstate.OpCategory) {
	set := c.regs[idOC]
	schedulers := 1
	if c.Config.SubCoreModel {
		schedulers = c.Config.NumSchedulers
	}

	for sched := 0; sched < schedulers; sched++ {
		var instr Instr
		var ok bool
		if c.Config.SubCoreModel {
			instr, ok = set.PopReadySubCore(sched)
		} else {
			instr, ok = set.PopReady()
		}
		if !ok || instr == nil {
			continue
		}

		srcRegs := make([]uint32, len(instr.SrcRegs))
		for j, r := range instr.SrcRegs {
			srcRegs[j] = uint32(r)
		}
		allowed := categoryToCollectorKind(cat)

		if !c.collector.AllocateCUs(instr, instr.WarpID, instr.SchedulerID, collectorKindFor(cat), allowed, srcRegs, ocEX, c.Config.CollectorCUsPerSched) {
			// No free CU this cycle: the instruction must remain issuable
			// next cycle, so it goes back into its slot.
			if c.Config.SubCoreModel {
				*set.GetFreeSubCoreMut(sched) = instr
			} else {
				*set.GetFreeMut() = instr
			}
		}
	}
}

// collectorKindFor reports the "native" collector-unit kind for a
// category. AllocateCUs takes it as its kind argument but does not use it:
// it filters free units by allowedKinds only and leaves Unit.Kind as built,
// so a GEN unit still services any category.
func collectorKindFor(cat warpstate.OpCategory) collector.Kind {
	switch cat {
	case warpstate.OpSP:
		return collector.KindSP
	case warpstate.OpDP:
		return collector.KindDP
	case warpstate.OpInt:
		return collector.KindInt
	case warpstate.OpSFU:
		return collector.KindSFU
	case warpstate.OpTensor:
		return collector.KindTensor
	case warpstate.OpMem:
		return collector.KindMem
	default:
		return collector.KindGen
	}
}

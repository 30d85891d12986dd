package core

// writeback implements spec.md §4.9's Writeback step: drain every ready
// slot of EX_WB, allocate destination write banks through the operand
// collector, release scoreboard reservations, and retire pipeline
// occupancy.
func (c *Core) writeback(time uint64) {
	set := c.exwbSet()
	schedulers := 1
	if c.Config.SubCoreModel {
		schedulers = c.Config.NumSchedulers
	}

	for sched := 0; sched < schedulers; sched++ {
		for {
			var instr Instr
			var ok bool
			if c.Config.SubCoreModel {
				instr, ok = set.PopReadySubCore(sched)
			} else {
				instr, ok = set.PopReady()
			}
			if !ok || instr == nil {
				break
			}
			c.retireInstruction(instr)
			if c.Config.SubCoreModel {
				break // one slot per scheduler under sub-core model
			}
		}
	}
}

func (c *Core) retireInstruction(instr Instr) {
	destRegs := make([]uint32, len(instr.DestRegs))
	for i, r := range instr.DestRegs {
		destRegs[i] = uint32(r)
	}

	if !c.collector.Writeback(instr.WarpID, instr.SchedulerID, destRegs) {
		// Destination bank busy: per spec.md §4.7 writeback stalls rather
		// than retiring; push the instruction back onto EX_WB to retry next
		// cycle.
		set := c.exwbSet()
		if c.Config.SubCoreModel {
			if slot := set.GetFreeSubCoreMut(instr.SchedulerID); slot != nil {
				*slot = instr
				return
			}
		}
		if slot := set.GetFreeMut(); slot != nil {
			*slot = instr
		}
		return
	}

	c.Scoreboard.ReleaseAll(instr.WarpID, instr.DestRegs)
	c.InstrCompleted++

	if int(instr.WarpID) < len(c.Warps) {
		w := c.Warps[instr.WarpID]
		if w.NumInstrInPipeline > 0 {
			w.NumInstrInPipeline--
		}
	}
}

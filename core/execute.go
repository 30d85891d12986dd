package core

// execute implements spec.md §4.9's Execute step: shift every result-bus
// slot leftward, then for each functional unit advance its internal
// pipeline and try to issue a fresh instruction from its OC_EX issue port.
func (c *Core) execute(time uint64) {
	c.resultBus.Shift()

	for _, fu := range c.fus {
		for _, instr := range fu.AdvancePipeline() {
			c.depositToWriteback(instr)
		}

		// funit.Unit.TryIssue needs the latency of whichever instruction it
		// is about to pull before it can reserve a result-bus slot; peek the
		// issue port's head (GetReady/GetReadySubCoreMut never mutates) so
		// TryIssue's own PopReady/PopReadySubCore call resolves to the same
		// instruction.
		latency := 1
		issueSet := c.regs[fu.IssuePort]
		if p := c.peekHead(issueSet, fu.SubCore, fu.SubCoreID); p != nil && (*p).Static != nil {
			latency = (*p).Static.Latency
		}
		fu.TryIssue(issueSet, latency, &c.resultBus)
	}
}

// peekHead returns the head instruction a regfile.Set would hand back to
// GetReady/GetReadySubCoreMut, without consuming it.
func (c *Core) peekHead(set interface {
	GetReady() *Instr
	GetReadySubCoreMut(int) *Instr
}, subCore bool, subCoreID int) *Instr {
	if subCore {
		return set.GetReadySubCoreMut(subCoreID)
	}
	return set.GetReady()
}

// depositToWriteback moves a completed execution-stage instruction into
// EX_WB, the only stage writeback drains from (spec.md §4.9 "Writeback
// (EX_WB): drain every ready slot of EX_WB").
func (c *Core) depositToWriteback(instr Instr) {
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
}

package core

import (
	"fmt"

	"github.com/sarchlab/gpucore/mem"
	"github.com/sarchlab/gpucore/schedwarp"
	"github.com/sarchlab/gpucore/warpstate"
)

// issue implements spec.md §4.8/§4.9: each scheduler orders its supervised
// warps GTO-style and attempts to issue up to one instruction, taking turns
// via the round-robin starvation-avoiding priority counter. It returns
// whether any scheduler issued an instruction this cycle (used for the
// deadlock-diagnostic streak) and the first trace/configuration error
// encountered, which terminates the run (spec.md §7).
func (c *Core) issue(time uint64) (bool, error) {
	issuedAny := false
	for _, schedID := range c.priority.Order() {
		cands := c.candidatesFor(schedID)
		chosen, ok := schedwarp.Next(cands)
		if !ok {
			continue
		}
		issued, err := c.issueWarp(c.Warps[chosen.WarpID], schedID, time)
		if err != nil {
			return issuedAny, err
		}
		if issued {
			c.priority.Served(schedID)
			issuedAny = true
		} else {
			c.priority.Skipped(schedID)
		}
	}
	return issuedAny, nil
}

// candidatesFor assembles the GTO candidate list for the warps scheduler
// schedID supervises (spec.md §4.8: "scheduler k supervises warps w with
// w mod N == k").
func (c *Core) candidatesFor(schedID int) []schedwarp.Candidate {
	var cands []schedwarp.Candidate
	for i, w := range c.Warps {
		if i%c.Config.NumSchedulers != schedID {
			continue
		}
		if w.TraceInstructions == nil {
			continue // slot not holding a live warp
		}
		waiting := c.Barriers.IsWaitingAtBarrier(i) ||
			w.WaitingAtMemBarrier(c.Scoreboard.PendingWrites(uint32(i))) ||
			w.Buffer.Empty()
		cands = append(cands, schedwarp.Candidate{
			WarpID:           uint32(i),
			DynamicWarpID:    w.DynamicWarpID,
			FunctionallyDone: w.FunctionallyDone() && w.Buffer.Empty(),
			Waiting:          waiting,
		})
	}
	return cands
}

// issueWarp implements CoreIssuer::issue_warp (spec.md §4.9): takes the
// warp's buffered instruction, classifies it, and either retires it
// immediately (BARRIER_OP, MEMORY_BARRIER_OP, EXIT_OPS) or reserves a
// pipeline slot and scoreboard entries for it. Returns (false, nil) if the
// target ID_OC slot is occupied or the scoreboard reports a collision —
// spec.md §4.8's issue-failure conditions — and a non-nil error for a
// trace/configuration error (spec.md §7), which the caller must treat as
// fatal rather than a structural stall.
func (c *Core) issueWarp(w *warpstate.Warp, schedID int, time uint64) (bool, error) {
	trace := w.Buffer.Front()
	if trace == nil {
		return false, nil
	}

	switch trace.Category {
	case warpstate.OpBarrier:
		if err := c.Barriers.WarpReachedBarrier(w.BlockID, int(w.WarpID), trace.Bar); err != nil {
			panic(err)
		}
		c.retireBuffered(w, trace.Category)
		return true, nil

	case warpstate.OpMemoryBarrier:
		w.WaitingForMemoryBarrier = true
		c.retireBuffered(w, trace.Category)
		return true, nil

	case warpstate.OpExit:
		w.ThreadsCompleted |= w.ActiveMask
		c.retireBuffered(w, trace.Category)
		return true, nil
	}

	idOC, ocEX, ok := categoryToStage(trace.Category)
	if !ok {
		return false, nil
	}

	if c.Scoreboard.HasCollision(w.WarpID, trace.SrcRegs, trace.DestRegs) {
		return false, nil
	}

	set := c.regs[idOC]
	if c.Config.SubCoreModel {
		if !set.HasFreeSubCore(schedID) {
			return false, nil
		}
	} else if !set.HasFree() {
		return false, nil
	}

	uid := warpstate.NextInstructionUID()
	instr := warpstate.NewInstruction(uid, w.WarpID, trace, time, schedID, w.ActiveMask)

	if trace.IsLoad || trace.IsStore {
		if trace.IsLocal {
			if err := c.translateAndQueueLocal(w, trace, instr); err != nil {
				return false, fmt.Errorf("core: warp %d block %d: %w", w.WarpID, w.BlockID, err)
			}
		} else {
			lanes := syntheticLaneAddresses(w, trace)
			instr.MemAccessQueue = mem.GenerateAccesses(lanes, trace.AccessKind, w.KernelID, mem.LineSize)
		}
	}

	c.Scoreboard.ReserveAll(w.WarpID, instr.DestRegs)

	if c.Config.SubCoreModel {
		*set.GetFreeSubCoreMut(schedID) = instr
	} else {
		*set.GetFreeMut() = instr
	}
	_ = ocEX

	c.retireBuffered(w, trace.Category)
	return true, nil
}

// retireBuffered pops the issued instruction out of the warp's instruction
// buffer, decrements in-pipeline occupancy for the categories that never
// reach EX_WB, bumps the per-category issue counter, and checks whether
// the warp has now fully retired (spec.md §4.9: "If warp.done() &&
// warp.functional_done(), flush ... and tell the barrier set warp_exited").
func (c *Core) retireBuffered(w *warpstate.Warp, cat warpstate.OpCategory) {
	w.Buffer.PopFront()
	c.IssuedByCategory[cat]++

	switch cat {
	case warpstate.OpBarrier, warpstate.OpMemoryBarrier, warpstate.OpExit:
		if w.NumInstrInPipeline > 0 {
			w.NumInstrInPipeline--
		}
	}

	if w.Done() && w.FunctionallyDone() {
		flushed := w.Buffer.Flush()
		w.NumInstrInPipeline -= flushed
		if err := c.Barriers.WarpExited(int(w.WarpID)); err != nil {
			panic(err)
		}
	}
}

// syntheticLaneAddresses produces one address per active lane for a
// non-local load/store. Computing the functionally-correct address from a
// kernel's actual pointer arithmetic is out of scope (spec.md §1's
// functional-correctness non-goal); this synthesizes a deterministic,
// warp-unique, lane-strided address purely so §4.12's coalescing logic has
// real per-lane addresses to bucket.
func syntheticLaneAddresses(w *warpstate.Warp, trace *warpstate.TraceInstruction) []mem.LaneAddress {
	size := trace.DataSize
	if size == 0 {
		size = 4
	}
	base := mem.GlobalHeapStart + mem.Address(w.WarpID)*mem.Address(mem.WarpSize)*mem.Address(size)
	var lanes []mem.LaneAddress
	for lane := 0; lane < mem.WarpSize; lane++ {
		if w.ActiveMask&(1<<uint(lane)) == 0 {
			continue
		}
		lanes = append(lanes, mem.LaneAddress{
			Lane: lane,
			Addr: base + mem.Address(lane)*mem.Address(size),
			Size: size,
		})
	}
	return lanes
}

// translateAndQueueLocal implements the LOCAL load/store path: each active
// lane's address is translated via mem.TranslateLocal (spec.md §4.11) and
// the resulting generic-space addresses are coalesced exactly as any other
// access (spec.md §4.12). A boundary violation on any lane is a
// trace/configuration error (spec.md §7, SPEC_FULL Open Question 3): it is
// returned to the caller rather than silently dropping the lane, since a
// dropped lane would desynchronize that lane's memory accesses from the
// rest of the warp without anyone noticing.
func (c *Core) translateAndQueueLocal(w *warpstate.Warp, trace *warpstate.TraceInstruction, instr *warpstate.Instruction) error {
	size := trace.DataSize
	if size == 0 {
		size = 4
	}
	var lanes []mem.LaneAddress
	for lane := 0; lane < mem.WarpSize; lane++ {
		if w.ActiveMask&(1<<uint(lane)) == 0 {
			continue
		}
		threadID := w.WarpID*mem.WarpSize + uint32(lane)
		addrs, err := mem.TranslateLocal(mem.Address(lane)*mem.Address(size), mem.LocalTranslationParams{
			Core:               c.ID,
			ThreadID:           threadID,
			TotalCores:         c.Config.TotalCores,
			DataSize:           size,
			PaddedBlockSize:    c.Config.PaddedBlockSize,
			MaxBlocksPerCore:   uint32(c.Config.MaxConcurrentBlocks),
			MaxThreadsPerCore:  uint32(c.Config.MaxThreadsPerCore),
			LocalMemMapEnabled: c.Config.LocalMemMapEnabled,
		})
		if err != nil {
			return fmt.Errorf("local access lane %d: %w", lane, err)
		}
		for _, a := range addrs {
			lanes = append(lanes, mem.LaneAddress{Lane: lane, Addr: a, Size: 4})
		}
	}
	if len(lanes) > 0 {
		instr.MemAccessQueue = mem.GenerateAccesses(lanes, trace.AccessKind, w.KernelID, mem.LineSize)
	}
	return nil
}

package core

import "github.com/sarchlab/gpucore/barrier"

// maybeIssueBlock implements spec.md §4.10: while a free hardware-block
// slot exists, ask the kernel manager for work and admit one new thread
// block's warps onto a statically-partitioned range of this core's warp
// slots.
func (c *Core) maybeIssueBlock() {
	warpsPerSlot := c.Config.MaxWarpsPerCore / c.Config.MaxConcurrentBlocks
	if warpsPerSlot == 0 {
		return
	}

	slot := c.freeBlockSlot()
	if slot < 0 {
		return
	}

	k, ok := c.Kernels.SelectKernel()
	if !ok {
		return
	}

	warpsNeeded := int((k.ThreadsPerBlockPadded + 31) / 32)
	if warpsNeeded > warpsPerSlot {
		panic("core: kernel's padded block size does not fit a hardware block slot")
	}

	base := slot * warpsPerSlot
	warpRange := c.Warps[base : base+warpsNeeded]

	info, ok := k.Reader.ReadWarpsForBlock(warpRange, k.ID)
	if !ok {
		k.SetNoMoreBlocksToRun()
		return
	}

	var warpsInBlock barrier.WarpMask
	remainingThreads := k.ThreadsPerBlock
	for i, w := range warpRange {
		activeMask := uint32(0xFFFFFFFF)
		if remainingThreads < 32 {
			activeMask = (uint32(1) << remainingThreads) - 1
			remainingThreads = 0
		} else {
			remainingThreads -= 32
		}
		// ReadWarpsForBlock already populated TraceInstructions/TracePC/
		// KernelID above; stamp the identity fields Warp.Init would
		// otherwise reset, without touching the freshly loaded trace.
		w.BlockID = info.BlockID
		w.WarpID = uint32(base + i)
		w.DynamicWarpID = c.nextDynamicWarp
		w.ActiveMask = activeMask
		w.ThreadsCompleted = 0
		w.NumInstrInPipeline = 0
		w.HasIMissPending = false
		w.WaitingForMemoryBarrier = false
		w.DoneExit = false
		w.Buffer.Flush()
		c.nextDynamicWarp++
		warpsInBlock |= 1 << uint(base+i)
	}

	c.Barriers.Allocate(info.BlockID, warpsInBlock)

	c.blockSlots[slot] = blockSlot{
		inUse:         true,
		kernel:        k,
		blockID:       info.BlockID,
		base:          base,
		count:         warpsNeeded,
		activeThreads: k.ThreadsPerBlock,
		warpsInBlock:  warpsInBlock,
	}
	c.numActiveBlocks++
	k.IncrementRunningBlocks()
	c.currentKernel = k
}

func (c *Core) freeBlockSlot() int {
	for i := range c.blockSlots {
		if !c.blockSlots[i].inUse {
			return i
		}
	}
	return -1
}

// registerThreadsInBlockExited implements spec.md §4.10's block-retirement
// half: once a warp has gone hardware-done and drained its pipeline, charge
// its active lane count against the owning block slot, and once every
// thread in the block has exited, deallocate the barrier-set entry and free
// the slot for the next block.
func (c *Core) registerThreadsInBlockExited(warpIdx int) {
	slot := c.blockSlotFor(warpIdx)
	if slot < 0 {
		return
	}
	s := &c.blockSlots[slot]

	w := c.Warps[warpIdx]
	exited := popcount32(w.ActiveMask)
	if exited > s.activeThreads {
		exited = s.activeThreads
	}
	s.activeThreads -= exited

	if s.activeThreads > 0 {
		return
	}

	c.Barriers.Deallocate(s.blockID)
	s.kernel.DecrementRunningBlocks()
	c.numActiveBlocks--
	*s = blockSlot{}
}

func (c *Core) blockSlotFor(warpIdx int) int {
	for i := range c.blockSlots {
		s := &c.blockSlots[i]
		if s.inUse && warpIdx >= s.base && warpIdx < s.base+s.count {
			return i
		}
	}
	return -1
}

func popcount32(m uint32) uint32 {
	n := uint32(0)
	for m != 0 {
		m &= m - 1
		n++
	}
	return n
}

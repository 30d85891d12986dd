package core

import (
	"github.com/sarchlab/gpucore/cache"
	"github.com/sarchlab/gpucore/mem"
	"github.com/sarchlab/gpucore/warpstate"
)

// decode implements spec.md §4.9's Decode step: once a fetched instruction
// cache line is valid, pull up to two trace instructions out of the warp
// it belongs to and fill its instruction buffer.
func (c *Core) decode() {
	if c.fetchBuf.State != warpstate.FetchValid {
		return
	}
	w := c.Warps[c.fetchBuf.WarpID]

	for filled := 0; filled < 2; filled++ {
		ti := w.NextTraceInstruction()
		if ti == nil {
			break
		}
		if !w.Buffer.Fill(ti) {
			break
		}
		w.AdvanceTracePC()
		w.NumInstrInPipeline++
	}

	c.fetchBuf.State = warpstate.FetchInvalid
}

// fetch implements spec.md §4.9's Fetch step: drain any ready instruction
// fetch from L1I — clearing has_imiss_pending and marking the fetch buffer
// Valid for that warp directly, without re-probing the cache — then reap
// warps that have gone hardware-done, then scan round-robin from
// lastWarpFetched+1 for the next warp due an instruction fetch and issue it
// (or synthesize an instant hit when PerfectICache is set).
func (c *Core) fetch(time uint64) {
	if !c.Config.PerfectICache {
		if f, ok := c.L1I.PopReady(); ok && int(f.WarpID) < len(c.Warps) {
			c.Warps[f.WarpID].HasIMissPending = false
			if c.fetchBuf.State != warpstate.FetchValid {
				c.fetchBuf = warpstate.FetchBuffer{State: warpstate.FetchValid, WarpID: f.WarpID}
			}
		}
	}

	if c.fetchBuf.State == warpstate.FetchValid {
		return
	}

	n := len(c.Warps)
	for step := 1; step <= n; step++ {
		idx := (c.lastWarpFetched + step) % n
		w := c.Warps[idx]
		if w.TraceInstructions == nil {
			continue
		}
		if w.HardwareDone() {
			if w.NumInstrInPipeline == 0 && !w.DoneExit {
				w.DoneExit = true
				c.registerThreadsInBlockExited(idx)
			}
			continue
		}
		if w.HasIMissPending || !w.Buffer.Empty() || w.FunctionallyDone() {
			continue
		}

		c.lastWarpFetched = idx

		if c.Config.PerfectICache {
			c.fetchBuf = warpstate.FetchBuffer{State: warpstate.FetchValid, WarpID: uint32(idx)}
			return
		}

		access := mem.Access{
			Addr:     mem.InstructionBaseAddr + mem.Address(w.TracePC)*4,
			KernelID: w.KernelID,
			Kind:     mem.InstAccR,
			ReqSize:  4,
		}
		f := mem.NewFetch(access, mem.ReadRequest, uint32(idx), c.ID, 0)
		switch c.L1I.Access(f, time) {
		case cache.Hit, cache.HitReserved, cache.MSHRHit:
			c.fetchBuf = warpstate.FetchBuffer{State: warpstate.FetchValid, WarpID: uint32(idx)}
		case cache.Miss, cache.SectorMiss:
			w.HasIMissPending = true
		case cache.ReservationFail:
			// structural stall: retried next cycle (spec.md §7)
		}
		return
	}

	if !c.Config.PerfectICache {
		c.L1I.Cycle(c.Mem, time)
	}
}

package cache

import "github.com/sarchlab/gpucore/mem"

// PerKernelStats is the reduced cache-access-kind × status table for one
// kernel, the cache's contribution to the stats sink (spec.md §6: "per-
// kernel structure aggregated by reducing per-component sub-stats").
type PerKernelStats struct {
	KernelID uint64
	Cache    string
	Rows     []StatRow
}

// StatRow is one (kind, status, count) triple, the output contract's CSV
// row shape ("CSV columns per cache-access-kind × status × kernel").
type StatRow struct {
	Kind   mem.AccessKind
	Status AccessStatus
	Count  uint64
}

// Reduce flattens a KindStats snapshot into deterministic, kind-then-status
// ordered rows, suitable for CSV emission.
func Reduce(kernelID uint64, cacheName string, s *KindStats) PerKernelStats {
	out := PerKernelStats{KernelID: kernelID, Cache: cacheName}
	kinds := []mem.AccessKind{
		mem.GlobalAccR, mem.GlobalAccW, mem.LocalAccR, mem.LocalAccW,
		mem.ConstAccR, mem.TextureAccR, mem.InstAccR,
		mem.L1WrbkAcc, mem.L2WrbkAcc, mem.L1WrAllocR, mem.L2WrAllocR,
	}
	statuses := []AccessStatus{Hit, HitReserved, Miss, SectorMiss, MSHRHit, ReservationFail}

	for _, k := range kinds {
		for _, st := range statuses {
			if c := s.Count(k, st); c > 0 {
				out.Rows = append(out.Rows, StatRow{Kind: k, Status: st, Count: c})
			}
		}
	}
	return out
}

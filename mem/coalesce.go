package mem


// LaneAddress pairs an active lane index with the byte address it touches.
type LaneAddress struct {
	Lane int
	Addr Address
	Size uint32
}

// bucketKey groups lanes that fall in the same cache line; the sectors
// those lanes touch accumulate into one transaction's sector mask
// (spec.md §4.12 step 1-2).
type bucketKey struct {
	lineAddr Address
}

// GenerateAccesses implements spec.md §4.12: coalesce per-lane addresses of
// a load/store instruction into cache-line-aligned MemAccess transactions.
// lineSize is typically LineSize (128B); kind is the access kind to stamp
// on every generated Access (GLOBAL_*, LOCAL_*, CONST_ACC_R, TEXTURE_ACC_R).
func GenerateAccesses(lanes []LaneAddress, kind AccessKind, kernelID uint64, lineSize uint32) []Access {
	if lineSize == 0 {
		lineSize = LineSize
	}

	type bucket struct {
		lineAddr   Address
		active     uint32
		sectorMask SectorMask
		byteMask   ByteMask
		reqBytes   uint32
	}

	buckets := make(map[bucketKey]*bucket)
	order := make([]bucketKey, 0, len(lanes))

	for _, la := range lanes {
		lineAddr := la.Addr & ^Address(lineSize-1)
		key := bucketKey{lineAddr: lineAddr}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{lineAddr: lineAddr}
			buckets[key] = b
			order = append(order, key)
		}

		offsetInLine := int(la.Addr - lineAddr)
		sector := offsetInLine / SectorSize
		b.sectorMask.Set(sector)
		b.byteMask.SetByteRange(offsetInLine, offsetInLine+int(la.Size))
		b.active |= 1 << uint(la.Lane)
		b.reqBytes += la.Size
	}

	// order already reflects first-touched insertion order, satisfying
	// spec.md §4.12 step 3's determinism requirement.
	accesses := make([]Access, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		accesses = append(accesses, Access{
			Addr:         b.lineAddr,
			KernelID:     kernelID,
			Kind:         kind,
			ReqSize:      b.reqBytes,
			ActiveMask:   b.active,
			ByteMaskBits: b.byteMask,
			SectorBits:   b.sectorMask,
		})
	}
	return accesses
}

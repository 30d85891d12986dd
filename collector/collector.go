// Package collector implements the banked operand collector: register-bank
// mapping, collector units (CUs), dispatch units, and the wavefront
// diagonal arbiter that matches banks to CUs each cycle (spec.md §4.7).
package collector

import "github.com/sarchlab/gpucore/regfile"

// MaxRegOperands bounds the number of distinct source-register slots a
// single instruction can occupy on one collector unit (spec.md §4.7: "up to
// 2·MAX_REG_OPERANDS source-operand slots").
const MaxRegOperands = 32

// Kind enumerates the specialization of a collector unit.
type Kind uint8

const (
	KindGen Kind = iota
	KindSP
	KindDP
	KindSFU
	KindTensor
	KindInt
	KindMem
)

// RegisterBank computes bank(reg, warp, sched) exactly per spec.md §4.7:
// in sub-core mode, `(reg + (warp if bank_warp_shift>0 else 0)) mod
// banks_per_sched + sched*banks_per_sched`; otherwise plain modulo
// num_banks.
func RegisterBank(reg uint32, warpID uint32, numBanks, bankWarpShift int, subCoreModel bool, banksPerSched int, schedID int) int {
	bank := int(reg)
	if bankWarpShift > 0 {
		bank += int(warpID)
	}
	if subCoreModel {
		return (bank % banksPerSched) + schedID*banksPerSched
	}
	return bank % numBanks
}

// Operand is one source-register slot of a collector unit.
type Operand struct {
	Register  uint32
	Bank      int
	Scheduler int
	Collected bool
}

// Unit is a collector unit: holds at most one in-flight warp-instruction
// (opaque payload T) plus its outstanding source-operand slots
// (spec.md §4.7).
type Unit[T any] struct {
	Kind     Kind
	Free     bool
	WarpID   uint32
	Instr    T
	Operands [2 * MaxRegOperands]Operand
	NumOps   int
	NotReady uint64 // bitmap over Operands[0:NumOps]; 1 == not yet collected

	// OutputStage is the pipeline stage this CU dispatches to once ready
	// (spec.md §4.7 "an output pipeline-stage id").
	OutputStage regfile.Stage

	// RegID restricts this CU's output register slot to its owning
	// scheduler under the sub-core model.
	RegID        int
	SubCoreModel bool
}

// Ready reports whether the CU is occupied, has collected every operand,
// and the output register has a free slot for it.
func (u *Unit[T]) Ready(outputSet *regfile.Set[T]) bool {
	if u.Free {
		return false
	}
	if u.NotReady != 0 {
		return false
	}
	if u.SubCoreModel {
		return outputSet.HasFreeSubCore(u.RegID)
	}
	return outputSet.HasFree()
}

// markCollected clears the not-ready bit for every operand slot that reads
// register reg, returning how many slots were newly marked collected.
func (u *Unit[T]) markCollected(reg uint32) int {
	n := 0
	for i := 0; i < u.NumOps; i++ {
		if u.Operands[i].Register == reg && !u.Operands[i].Collected {
			u.Operands[i].Collected = true
			u.NotReady &^= 1 << uint(i)
			n++
		}
	}
	return n
}

// bankRequest is the head-of-queue operand read request for one bank.
type bankRequest struct {
	cu        int
	register  uint32
	scheduler int
}

// Bank is one register-file bank's FIFO of pending operand read requests
// (spec.md §5 ordering guarantee (b): "within a single bank queue, operand
// read requests are served FIFO").
type Bank struct {
	queue         []bankRequest
	writeReserved bool // blocked: a pending write allocation holds priority
}

// Collector is the banked operand collector for one core (spec.md §4.7,
// component C9). T is the caller's warp-instruction payload type.
type Collector[T any] struct {
	NumBanks          int
	NumCollectors     int
	BanksPerScheduler int
	BankWarpShift     int
	SubCoreModel      bool

	Banks []Bank
	Units []Unit[T]

	diagonal int // rotating priority diagonal, advances by one each cycle
}

// New builds a collector with numBanks banks and len(units) collector
// units, pre-populated by the caller.
func New[T any](numBanks, banksPerScheduler, bankWarpShift int, subCoreModel bool, units []Unit[T]) *Collector[T] {
	return &Collector[T]{
		NumBanks:          numBanks,
		NumCollectors:     len(units),
		BanksPerScheduler: banksPerScheduler,
		BankWarpShift:     bankWarpShift,
		SubCoreModel:      subCoreModel,
		Banks:             make([]Bank, numBanks),
		Units:             units,
	}
}

// DispatchReady implements spec.md §4.7 phase 1: find the first ready CU
// (round-robin from dispatchHead) and move its warp-instruction to
// outputSet, freeing the CU. A CU's OutputStage is not compared against
// outputSet here; callers pick the set that matches. Returns the
// dispatched instruction and true on success.
func (c *Collector[T]) DispatchReady(outputSet *regfile.Set[T], dispatchHead int) (T, bool) {
	var zero T
	n := len(c.Units)
	if n == 0 {
		return zero, false
	}
	for i := 0; i < n; i++ {
		idx := (dispatchHead + i) % n
		u := &c.Units[idx]
		if !u.Ready(outputSet) {
			continue
		}
		var slot *T
		if u.SubCoreModel {
			slot = outputSet.GetFreeSubCoreMut(u.RegID)
		} else {
			slot = outputSet.GetFreeMut()
		}
		if slot == nil {
			continue
		}
		*slot = u.Instr
		instr := u.Instr
		*u = Unit[T]{Free: true}
		return instr, true
	}
	return zero, false
}

// AllocateReads implements spec.md §4.7 phase 2: a wavefront diagonal
// match between banks (rows) and CUs (columns), rotating the priority
// diagonal by one each cycle. At most one grant per bank and per CU.
// Adapted from the teacher's ooo.SelectIssueBundle priority-encoder
// rotation: there a bitmap position wins by age via a leading-zero scan;
// here a (bank, CU) pair wins by its position on the current diagonal.
func (c *Collector[T]) AllocateReads() {
	size := c.NumBanks
	if c.NumCollectors > size {
		size = c.NumCollectors
	}
	if size == 0 {
		return
	}

	grantedBank := make([]bool, c.NumBanks)
	grantedCU := make([]bool, len(c.Units))

	for d := 0; d < size; d++ {
		diag := (c.diagonal + d) % size
		for row := 0; row < size; row++ {
			bankIdx := row
			cuIdx := (row + diag) % size
			if bankIdx >= c.NumBanks || cuIdx >= len(c.Units) {
				continue
			}
			if grantedBank[bankIdx] || grantedCU[cuIdx] {
				continue
			}
			bank := &c.Banks[bankIdx]
			if bank.writeReserved || len(bank.queue) == 0 {
				continue
			}
			req := bank.queue[0]
			if req.cu != cuIdx {
				continue
			}
			bank.queue = bank.queue[1:]
			c.Units[cuIdx].markCollected(req.register)
			grantedBank[bankIdx] = true
			grantedCU[cuIdx] = true
		}
	}

	c.diagonal = (c.diagonal + 1) % size
}

// AllocateCUs implements spec.md §4.7 phase 3: for each ready input
// instruction, pick a free CU of an allowed kind (sub-core restricts the
// index range to [sched*cusPerSched, (sched+1)*cusPerSched)), copy source
// registers into operand slots (deduplicated), and push read requests onto
// the matching bank queues.
func (c *Collector[T]) AllocateCUs(instr T, warpID uint32, schedID int, kind Kind, allowedKinds []Kind, srcRegs []uint32, outputStage regfile.Stage, cusPerSched int) bool {
	lo, hi := 0, len(c.Units)
	if c.SubCoreModel && cusPerSched > 0 {
		lo = schedID * cusPerSched
		hi = lo + cusPerSched
		if hi > len(c.Units) {
			hi = len(c.Units)
		}
	}

	allowed := func(k Kind) bool {
		for _, a := range allowedKinds {
			if a == k {
				return true
			}
		}
		return false
	}

	for i := lo; i < hi; i++ {
		u := &c.Units[i]
		if !u.Free || !allowed(u.Kind) {
			continue
		}

		u.Free = false
		u.WarpID = warpID
		u.Instr = instr
		u.OutputStage = outputStage
		u.NumOps = 0
		u.NotReady = 0

		seen := make(map[uint32]bool, len(srcRegs))
		for _, reg := range srcRegs {
			if seen[reg] {
				continue
			}
			seen[reg] = true
			bank := RegisterBank(reg, warpID, c.NumBanks, c.BankWarpShift, c.SubCoreModel, c.BanksPerScheduler, schedID)
			slot := u.NumOps
			u.Operands[slot] = Operand{Register: reg, Bank: bank, Scheduler: schedID}
			u.NotReady |= 1 << uint(slot)
			u.NumOps++

			c.Banks[bank].queue = append(c.Banks[bank].queue, bankRequest{cu: i, register: reg, scheduler: schedID})
		}
		if u.NumOps == 0 {
			u.NotReady = 0
		}
		return true
	}
	return false
}

// ResetAllocation implements spec.md §4.7 phase 4: clears per-bank
// write-reservation flags set for this cycle's writeback allocation.
func (c *Collector[T]) ResetAllocation() {
	for i := range c.Banks {
		c.Banks[i].writeReserved = false
	}
}

// ReserveWriteBank marks bank as reserved for a destination write this
// cycle (spec.md §4.7: "Banks reserved for write get priority-zero, i.e.,
// remain reserved").
func (c *Collector[T]) ReserveWriteBank(bank int) {
	c.Banks[bank].writeReserved = true
}

// Writeback allocates destination banks for a completing instruction's
// write-back (spec.md §4.9/§4.7 `writeback`): if any destination bank is
// already reserved this cycle, the whole writeback stalls and returns
// false without reserving any bank. On success every destination bank is
// reserved (priority-zero) and the call returns true.
func (c *Collector[T]) Writeback(warpID uint32, schedID int, destRegs []uint32) bool {
	banks := make([]int, 0, len(destRegs))
	for _, reg := range destRegs {
		bank := RegisterBank(reg, warpID, c.NumBanks, c.BankWarpShift, c.SubCoreModel, c.BanksPerScheduler, schedID)
		if c.Banks[bank].writeReserved {
			return false
		}
		banks = append(banks, bank)
	}
	for _, bank := range banks {
		c.Banks[bank].writeReserved = true
	}
	return true
}

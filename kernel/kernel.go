// Package kernel implements the narrow KernelManager contract a core
// consults to pick up new work (spec.md §6: "select_kernel() ->
// Option<Kernel>").
package kernel

import "github.com/sarchlab/gpucore/tracereader"

// Kernel is one launched grid of thread blocks (spec.md §6).
type Kernel struct {
	ID                     uint64
	Name                   string
	ThreadsPerBlock        uint32
	ThreadsPerBlockPadded  uint32
	MaxBlocksPerCore       uint32
	Reader                 tracereader.Reader

	runningBlocks      uint32
	noMoreBlocksToRun  bool
}

// IncrementRunningBlocks records that a core admitted one more block of
// this kernel.
func (k *Kernel) IncrementRunningBlocks() { k.runningBlocks++ }

// DecrementRunningBlocks records that a core retired one block of this
// kernel.
func (k *Kernel) DecrementRunningBlocks() {
	if k.runningBlocks > 0 {
		k.runningBlocks--
	}
}

// NoMoreBlocksToRun reports whether the kernel's block source is exhausted.
func (k *Kernel) NoMoreBlocksToRun() bool { return k.noMoreBlocksToRun }

// SetNoMoreBlocksToRun marks the kernel as having no further blocks to
// hand out (set once its TraceReader reports exhaustion).
func (k *Kernel) SetNoMoreBlocksToRun() { k.noMoreBlocksToRun = true }

// Running reports whether this kernel still has any block active on any
// core (spec.md §6 `running`).
func (k *Kernel) Running() bool { return k.runningBlocks > 0 }

// Manager is the KernelManager contract: a stateful kernel selector
// (spec.md §6).
type Manager interface {
	SelectKernel() (*Kernel, bool)
}

// QueueManager is the in-memory Manager implementation: a FIFO of launched
// kernels, each selected once and then handed out repeatedly until it
// reports no more blocks to run.
type QueueManager struct {
	pending []*Kernel
	current *Kernel
}

// NewQueueManager builds a manager over a fixed launch order.
func NewQueueManager(kernels []*Kernel) *QueueManager {
	return &QueueManager{pending: kernels}
}

// SelectKernel returns the current kernel if it still has work, else
// advances to the next queued kernel (spec.md §4.10: "If the current
// kernel has no more blocks and the core has no active threads, select a
// new kernel").
func (m *QueueManager) SelectKernel() (*Kernel, bool) {
	if m.current != nil && !(m.current.NoMoreBlocksToRun() && !m.current.Running()) {
		return m.current, true
	}
	for len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.current = next
		return m.current, true
	}
	if m.current != nil {
		return m.current, true
	}
	return nil, false
}

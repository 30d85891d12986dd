package core_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gpucore/cache"
	"github.com/sarchlab/gpucore/core"
	"github.com/sarchlab/gpucore/interconnect"
	"github.com/sarchlab/gpucore/kernel"
	"github.com/sarchlab/gpucore/mem"
	"github.com/sarchlab/gpucore/memport"
	"github.com/sarchlab/gpucore/regfile"
	"github.com/sarchlab/gpucore/tracereader"
	"github.com/sarchlab/gpucore/warpstate"
)

func TestCore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Core Suite")
}

func newTestConfig() core.Config {
	var widths [regfile.NumStages]int
	for i := range widths {
		widths[i] = 4
	}
	return core.Config{
		NumSchedulers:         1,
		MaxWarpsPerCore:       4,
		MaxThreadsPerCore:     128,
		MaxConcurrentBlocks:   1,
		MaxBarriersPerBlock:   4,
		SubCoreModel:          false,
		RegFilePortThroughput: 1,
		InstFetchThroughput:   1,
		InstrBufferWidth:      4,
		PipelineWidths:        widths,
		PerfectICache:         true,
		L1I:                   cache.Config{},
		L1D:                   cache.Config{},
		NumSPUnits:            2,
		NumDPUnits:            1,
		NumIntUnits:           2,
		NumSFUUnits:           1,
		CollectorBanksPerSched: 4,
		CollectorBankWarpShift: 0,
		CollectorCUsPerSched:   4,
		CollectorUnits:         8,
		PaddedBlockSize:        32,
		BlockSize:              32,
		TotalCores:             1,
		LocalMemMapEnabled:     false,
	}
}

func runUntil(c *core.Core, maxCycles int, done func() bool) uint64 {
	var cycle uint64
	for cycle = 0; cycle < uint64(maxCycles); cycle++ {
		if err := c.Cycle(cycle); err != nil {
			Expect(err).NotTo(HaveOccurred())
			break
		}
		if done() {
			break
		}
	}
	return cycle
}

var _ = Describe("Core", func() {
	var (
		c    *core.Core
		km   *kernel.QueueManager
		kern *kernel.Kernel
		memP *memport.Port
	)

	buildBlock := func(instrs []warpstate.TraceInstruction) tracereader.Block {
		return tracereader.Block{
			BlockID:   1,
			BlockSize: 32,
			Warps:     [][]warpstate.TraceInstruction{instrs},
		}
	}

	BeforeEach(func() {
		reader := tracereader.NewStaticReader(nil)
		kern = &kernel.Kernel{
			ID:                    1,
			Name:                  "test",
			ThreadsPerBlock:       32,
			ThreadsPerBlockPadded: 32,
			MaxBlocksPerCore:      1,
			Reader:                reader,
		}
		km = kernel.NewQueueManager([]*kernel.Kernel{kern})
		conn := interconnect.NewConnection(8, mem.LineSize)
		memP = memport.New(conn, 0, func(f *mem.Fetch) int { return 0 })
		c = core.New(0, newTestConfig(), km, memP, nil)
	})

	Describe("a warp executing three SP instructions then exiting", func() {
		BeforeEach(func() {
			reader := kern.Reader.(*tracereader.StaticReader)
			reader.Blocks = []tracereader.Block{buildBlock([]warpstate.TraceInstruction{
				{Category: warpstate.OpSP, DestRegs: []uint16{1}, Latency: 1, InitiationInterval: 1},
				{Category: warpstate.OpSP, SrcRegs: []uint16{1}, DestRegs: []uint16{2}, Latency: 1, InitiationInterval: 1},
				{Category: warpstate.OpSP, SrcRegs: []uint16{2}, DestRegs: []uint16{3}, Latency: 1, InitiationInterval: 1},
				{Category: warpstate.OpExit},
			})}
		})

		It("retires all three SP instructions", func() {
			runUntil(c, 200, func() bool {
				return c.InstrCompleted >= 3
			})
			Expect(c.InstrCompleted).To(BeNumerically(">=", uint64(3)))
			Expect(c.IssuedByCategory[warpstate.OpSP]).To(Equal(uint64(3)))
			Expect(c.IssuedByCategory[warpstate.OpExit]).To(Equal(uint64(1)))
		})

		It("marks the warp hardware-done and frees its block slot", func() {
			runUntil(c, 200, func() bool {
				return c.Warps[0].HardwareDone() && c.Warps[0].DoneExit
			})
			Expect(c.Warps[0].HardwareDone()).To(BeTrue())
			Expect(c.Warps[0].DoneExit).To(BeTrue())
		})
	})

	Describe("a warp with a local access that crosses a word boundary", func() {
		BeforeEach(func() {
			reader := kern.Reader.(*tracereader.StaticReader)
			reader.Blocks = []tracereader.Block{buildBlock([]warpstate.TraceInstruction{
				{
					Category:           warpstate.OpMem,
					DestRegs:           []uint16{1},
					Latency:            1,
					InitiationInterval: 1,
					IsLoad:             true,
					IsLocal:            true,
					DataSize:           3,
				},
				{Category: warpstate.OpExit},
			})}
		})

		It("terminates the run instead of silently dropping the lane", func() {
			var lastErr error
			for cycle := uint64(0); cycle < 200; cycle++ {
				if err := c.Cycle(cycle); err != nil {
					lastErr = err
					break
				}
			}
			Expect(lastErr).To(HaveOccurred())
			Expect(lastErr.Error()).To(ContainSubstring("crosses 4-byte word boundary"))
			Expect(c.FatalErr).To(Equal(lastErr))
		})
	})

	Describe("a warp with a syncthreads barrier", func() {
		BeforeEach(func() {
			reader := kern.Reader.(*tracereader.StaticReader)
			reader.Blocks = []tracereader.Block{buildBlock([]warpstate.TraceInstruction{
				{Category: warpstate.OpInt, DestRegs: []uint16{1}, Latency: 1, InitiationInterval: 1},
				{Category: warpstate.OpBarrier, Bar: warpstate.Descriptor{ID: 0, Kind: 0}},
				{Category: warpstate.OpExit},
			})}
		})

		It("issues the barrier and keeps running", func() {
			runUntil(c, 200, func() bool {
				return c.IssuedByCategory[warpstate.OpExit] >= 1
			})
			Expect(c.IssuedByCategory[warpstate.OpBarrier]).To(Equal(uint64(1)))
		})
	})
})

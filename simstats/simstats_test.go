package simstats_test

import (
	"testing"

	"github.com/sarchlab/gpucore/cache"
	"github.com/sarchlab/gpucore/core"
	"github.com/sarchlab/gpucore/interconnect"
	"github.com/sarchlab/gpucore/kernel"
	"github.com/sarchlab/gpucore/mem"
	"github.com/sarchlab/gpucore/memport"
	"github.com/sarchlab/gpucore/regfile"
	"github.com/sarchlab/gpucore/simstats"
	"github.com/stretchr/testify/require"
)

func newMinimalCore(t *testing.T) *core.Core {
	t.Helper()
	var widths [regfile.NumStages]int
	for i := range widths {
		widths[i] = 2
	}
	cfg := core.Config{
		NumSchedulers:          1,
		MaxWarpsPerCore:        2,
		MaxConcurrentBlocks:    1,
		MaxBarriersPerBlock:    2,
		RegFilePortThroughput:  1,
		InstFetchThroughput:    1,
		InstrBufferWidth:       2,
		PipelineWidths:         widths,
		PerfectICache:          true,
		L1I:                    cache.Config{},
		L1D:                    cache.Config{},
		NumSPUnits:             1,
		NumIntUnits:            1,
		CollectorBanksPerSched: 2,
		CollectorCUsPerSched:   2,
		CollectorUnits:         4,
		PaddedBlockSize:        32,
		TotalCores:             1,
	}
	km := kernel.NewQueueManager(nil)
	conn := interconnect.NewConnection(4, mem.LineSize)
	mp := memport.New(conn, 0, nil)
	return core.New(0, cfg, km, mp, nil)
}

func TestRecordCoreAggregatesCacheAndSchedulerStats(t *testing.T) {
	c := newMinimalCore(t)
	c.InstrCompleted = 7

	sink := simstats.NewSink()
	sink.RecordCore(1, c)

	report, ok := sink.Report(1)
	require.True(t, ok)
	require.Len(t, report.Caches, 2)
	require.Len(t, report.Schedulers, 1)
	require.Equal(t, uint64(7), report.Schedulers[0].InstrCompleted)
}

func TestKernelIDsAreSortedAndDistinct(t *testing.T) {
	c := newMinimalCore(t)
	sink := simstats.NewSink()
	sink.RecordCore(5, c)
	sink.RecordCore(2, c)
	sink.RecordCore(5, c)

	require.Equal(t, []uint64{2, 5}, sink.KernelIDs())
}

func TestReportMissingKernelReturnsFalse(t *testing.T) {
	sink := simstats.NewSink()
	_, ok := sink.Report(99)
	require.False(t, ok)
}

package simconfig_test

import (
	"testing"

	"github.com/sarchlab/gpucore/cache"
	"github.com/sarchlab/gpucore/regfile"
	"github.com/sarchlab/gpucore/simconfig"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	c := simconfig.New()

	require.Equal(t, 64, c.MaxWarpsPerCore)
	require.Equal(t, 1, c.NumSchedulersPerCore)
	require.False(t, c.SubCoreModel)
}

func TestOptionsOverrideDefaults(t *testing.T) {
	c := simconfig.New(
		simconfig.WithSchedulers(4, 4, 4, 4, 4),
		simconfig.WithSubCoreModel(true),
		simconfig.WithPipelineWidth(regfile.IDOCSP, 2),
		simconfig.WithOperandCollector(16, 2, 8, 32),
		simconfig.WithBlockSizing(64, 64, 80),
		simconfig.WithAccelsimCompat(true),
	)

	require.Equal(t, 4, c.NumSchedulersPerCore)
	require.True(t, c.SubCoreModel)
	require.Equal(t, 2, c.PipelineWidths[regfile.IDOCSP])
	require.Equal(t, 16, c.OperandCollectorBanksPerSched)
	require.Equal(t, uint32(80), c.TotalCores)
	require.True(t, c.AccelsimCompat)
}

func TestToCoreConfigFillsOmittedPipelineStagesWithDefault(t *testing.T) {
	c := simconfig.New(simconfig.WithPipelineWidth(regfile.EXWB, 8))

	cfg := c.ToCoreConfig()

	require.Equal(t, 8, cfg.PipelineWidths[regfile.EXWB])
	require.Equal(t, c.DefaultPipelineWidth, cfg.PipelineWidths[regfile.IDOCDP])
	require.Equal(t, c.MaxWarpsPerCore, cfg.MaxWarpsPerCore)
}

func TestAccelsimCompatAppliesToEveryCacheIncludingL2(t *testing.T) {
	c := simconfig.New(
		simconfig.WithCaches(
			cache.Config{LineSize: 128},
			cache.Config{LineSize: 128, NumSets: 64},
			cache.Config{LineSize: 128, NumSets: 2048},
		),
		simconfig.WithAccelsimCompat(true),
	)

	cfg := c.ToCoreConfig()
	require.True(t, cfg.L1I.AccelsimCompat)
	require.True(t, cfg.L1D.AccelsimCompat)

	l2 := c.L2Config()
	require.True(t, l2.AccelsimCompat)
	require.Equal(t, uint32(2048), l2.NumSets)
}

func TestWithCachesWithoutAccelsimCompatLeavesFlagUnset(t *testing.T) {
	c := simconfig.New(simconfig.WithCaches(cache.Config{}, cache.Config{}, cache.Config{}))

	cfg := c.ToCoreConfig()
	require.False(t, cfg.L1I.AccelsimCompat)
	require.False(t, c.L2Config().AccelsimCompat)
}

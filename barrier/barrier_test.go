package barrier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSyncBarrierReleasesWhenAllActiveWarpsArrive(t *testing.T) {
	s := New(4, 4, 32)
	warps := WarpMask(0b0111) // warps 0,1,2
	s.Allocate(1, warps)

	require.NoError(t, s.WarpReachedBarrier(1, 0, Descriptor{ID: 0, Kind: KindSync}))
	require.True(t, s.IsWaitingAtBarrier(0))
	require.NoError(t, s.WarpReachedBarrier(1, 1, Descriptor{ID: 0, Kind: KindSync}))
	require.True(t, s.IsWaitingAtBarrier(1))

	// Last warp arrives: all three release simultaneously.
	require.NoError(t, s.WarpReachedBarrier(1, 2, Descriptor{ID: 0, Kind: KindSync}))
	require.False(t, s.IsWaitingAtBarrier(0))
	require.False(t, s.IsWaitingAtBarrier(1))
	require.False(t, s.IsWaitingAtBarrier(2))
}

func TestArriveDoesNotBlock(t *testing.T) {
	s := New(4, 4, 32)
	s.Allocate(1, WarpMask(0b11))
	require.NoError(t, s.WarpReachedBarrier(1, 0, Descriptor{ID: 0, Kind: KindArrive}))
	require.False(t, s.IsWaitingAtBarrier(0), "ARRIVE must not block the issuing warp")
}

func TestCountBasedReleaseUsesWarpSizeThreads(t *testing.T) {
	s := New(4, 4, 32)
	s.Allocate(1, WarpMask(0b11))
	count := uint32(64) // 2 warps * warp_size 32
	require.NoError(t, s.WarpReachedBarrier(1, 0, Descriptor{ID: 0, Kind: KindSync, Count: &count}))
	require.True(t, s.IsWaitingAtBarrier(0))
	require.NoError(t, s.WarpReachedBarrier(1, 1, Descriptor{ID: 0, Kind: KindSync, Count: &count}))
	require.False(t, s.IsWaitingAtBarrier(0))
	require.False(t, s.IsWaitingAtBarrier(1))
}

func TestReductionBarrierIsUnsupported(t *testing.T) {
	s := New(4, 4, 32)
	s.Allocate(1, WarpMask(0b1))
	err := s.WarpReachedBarrier(1, 0, Descriptor{ID: 0, Kind: KindReduction})
	require.ErrorIs(t, err, ErrReductionUnsupported)
}

func TestWarpExitedReleasesBarrierWhenRemainingActiveMatch(t *testing.T) {
	s := New(4, 4, 32)
	s.Allocate(1, WarpMask(0b11))
	require.NoError(t, s.WarpReachedBarrier(1, 0, Descriptor{ID: 0, Kind: KindSync}))
	require.True(t, s.IsWaitingAtBarrier(0))

	// Warp 1 exits without ever reaching the barrier: remaining active
	// warps (just warp 0, already at barrier) now match at_barrier.
	require.NoError(t, s.WarpExited(1))
	require.False(t, s.IsWaitingAtBarrier(0))
}

func TestDeallocatePanicsIfWarpsStillAtBarrier(t *testing.T) {
	s := New(4, 4, 32)
	s.Allocate(1, WarpMask(0b11))
	require.NoError(t, s.WarpReachedBarrier(1, 0, Descriptor{ID: 0, Kind: KindSync}))

	require.Panics(t, func() { s.Deallocate(1) })
}

func TestDeallocateSucceedsOnceBlockFullyQuiesced(t *testing.T) {
	s := New(4, 4, 32)
	s.Allocate(1, WarpMask(0b11))
	require.NoError(t, s.WarpExited(0))
	require.NoError(t, s.WarpExited(1))
	require.NotPanics(t, func() { s.Deallocate(1) })
}

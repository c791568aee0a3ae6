package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorEnforcesLimit(t *testing.T) {
	a := NewAllocator(100)
	assert.Equal(t, int64(100), a.Limit())

	require.NoError(t, a.Reserve(60))
	assert.Equal(t, int64(60), a.InUse())

	// The next reservation would overshoot and must fail immediately.
	err := a.Reserve(50)
	assert.ErrorIs(t, err, ErrMemoryLimit)
	assert.Equal(t, int64(60), a.InUse())

	a.Release(60)
	assert.Zero(t, a.InUse())
	require.NoError(t, a.Reserve(100))
}

func TestAllocatorUnlimitedTracksUsage(t *testing.T) {
	a := NewAllocator(0)
	assert.Zero(t, a.Limit())

	require.NoError(t, a.Reserve(1<<40))
	assert.Equal(t, int64(1<<40), a.InUse())
	a.Release(1 << 40)
	assert.Zero(t, a.InUse())
}

func TestAllocatorIgnoresNonPositive(t *testing.T) {
	a := NewAllocator(10)
	require.NoError(t, a.Reserve(0))
	require.NoError(t, a.Reserve(-5))
	assert.Zero(t, a.InUse())
}

func TestWaitIOUnthrottledIsFree(t *testing.T) {
	a := NewAllocator(0)
	require.NoError(t, a.WaitIO(context.Background(), 1<<30))
}

func TestWaitIOAdmitsWithinBurst(t *testing.T) {
	a := NewAllocator(0, WithIORate(1<<20))
	// Fits inside the initial token bucket, so it must not block.
	require.NoError(t, a.WaitIO(context.Background(), 4096))
}

func TestWaitIOHonorsCancellation(t *testing.T) {
	a := NewAllocator(0, WithIORate(8))
	require.NoError(t, a.WaitIO(context.Background(), 8))

	// The bucket is empty now; a cancelled context must surface instead
	// of sleeping for the refill.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, a.WaitIO(ctx, 8))
}

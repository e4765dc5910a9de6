package render

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_SerializesAcquisition(t *testing.T) {
	ctx := context.Background()
	p := NewPool(1)

	release, err := p.Acquire(ctx)
	require.NoError(t, err)

	// Second acquire must not get a slot while the first is held.
	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(blocked)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	release2, err := p.Acquire(ctx)
	require.NoError(t, err)
	release2()
}

func TestPool_AcquireHonorsCancel(t *testing.T) {
	p := NewPool(1)
	release, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPool_MinimumSizeOne(t *testing.T) {
	p := NewPool(0)
	release, err := p.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRunNow_InvokesTickSynchronously(t *testing.T) {
	var calls int32
	tick := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}

	s, err := New(time.Hour, tick, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.RunNow(context.Background()))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStartStop_FiresOnIntervalAndDropsOverlap(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	tick := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil
	}

	s, err := New(20*time.Millisecond, tick, zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	time.Sleep(100 * time.Millisecond) // several intervals elapse while the first tick blocks
	close(release)
	require.NoError(t, s.Stop())

	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "overlapping triggers must be dropped, not queued")
}

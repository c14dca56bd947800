package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRoundsLifecycle(t *testing.T) {
	r := NewRounds()
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	r.Start(3, start, 6)
	require.Equal(t, 1, r.Round())

	require.True(t, r.EndRound())
	require.Equal(t, time.Date(2030, 7, 1, 0, 0, 0, 0, time.UTC), r.AdvanceDate())
	require.True(t, r.EndRound())
	require.Equal(t, 3, r.Round())
	require.False(t, r.EndRound())
	require.Equal(t, 3, r.Round())

	r.Reset()
	require.Equal(t, 0, r.Round())
	require.Equal(t, start, r.Date())
}

func TestStageTimerFires(t *testing.T) {
	s := NewStageTimer()
	done := make(chan struct{})
	s.Arm(10*time.Millisecond, func() { close(done) })
	require.Greater(t, s.Remaining(), time.Duration(0))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	require.Equal(t, time.Duration(0), s.Remaining())
}

func TestStageTimerRearmCancelsPrevious(t *testing.T) {
	s := NewStageTimer()
	var first, second atomic.Int32
	s.Arm(20*time.Millisecond, func() { first.Add(1) })
	s.Arm(40*time.Millisecond, func() { second.Add(1) })
	require.Eventually(t, func() bool { return second.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, int32(0), first.Load())

	s.Arm(10*time.Millisecond, func() { first.Add(1) })
	s.Stop()
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, int32(0), first.Load())
}

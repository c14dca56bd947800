package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishOrdersAndStamps(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(8)
	defer sub.Close()

	b.Publish(New(PhaseStarted, "", map[string]string{"phase": "Build"}))
	b.Publish(New(PlayerChanged, "p1", nil))

	first := <-sub.C()
	second := <-sub.C()
	require.Equal(t, uint64(1), first.Seq)
	require.Equal(t, uint64(2), second.Seq)
	require.False(t, first.Time.IsZero())
	require.Equal(t, "p1", second.EntityID)

	var payload map[string]string
	require.NoError(t, first.Decode(&payload))
	require.Equal(t, "Build", payload["phase"])
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := NewBus()
	slow := b.Subscribe(1)
	fast := b.Subscribe(10)
	for i := 0; i < 5; i++ {
		b.Publish(New(Transaction, "", nil))
	}
	require.Equal(t, uint64(4), slow.Dropped())
	require.Equal(t, uint64(0), fast.Dropped())
	require.Equal(t, uint64(4), b.Dropped())
	require.Len(t, fast.C(), 5)
}

func TestCloseIsIdempotent(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(1)
	sub.Close()
	sub.Close()
	_, ok := <-sub.C()
	require.False(t, ok)
	b.Publish(New(GameReset, "", nil))
	require.Equal(t, uint64(0), b.Dropped())
}

func TestConcurrentPublishUniqueSeq(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(1000)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(New(AssetChanged, "", nil))
			}
		}()
	}
	wg.Wait()
	sub.Close()
	seen := map[uint64]bool{}
	var last uint64
	for ev := range sub.C() {
		require.False(t, seen[ev.Seq])
		require.Greater(t, ev.Seq, last)
		seen[ev.Seq] = true
		last = ev.Seq
	}
	require.Len(t, seen, 500)
}

func TestEncodeReportsBadPayload(t *testing.T) {
	ev, err := Encode(AssetChanged, "a1", map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	require.Contains(t, err.Error(), string(AssetChanged))
	require.Equal(t, AssetChanged, ev.Type)
	require.Equal(t, "a1", ev.EntityID)
	require.Nil(t, ev.Payload)

	ev, err = Encode(AssetChanged, "a1", map[string]int{"level": 2})
	require.NoError(t, err)
	require.JSONEq(t, `{"level":2}`, string(ev.Payload))

	require.Panics(t, func() { New(AssetChanged, "a1", func() {}) })
}

package engine

import "sync"

// turnBarrier records which players ended their turn in one interactive
// phase. Signal and count are checked under the same lock.
type turnBarrier struct {
	mu    sync.Mutex
	ended map[string]struct{}
}

func newTurnBarrier() *turnBarrier {
	return &turnBarrier{ended: map[string]struct{}{}}
}

// signal records id and reports whether this call completed the barrier for
// n players. Repeated signals from the same player never complete it.
func (b *turnBarrier) signal(id string, n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, already := b.ended[id]; already {
		return false
	}
	b.ended[id] = struct{}{}
	return len(b.ended) == n
}

func (b *turnBarrier) has(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.ended[id]
	return ok
}

func (b *turnBarrier) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ended)
}

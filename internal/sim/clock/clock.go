// Package clock tracks rounds and in-game dates and fires stage deadlines.
package clock

import (
	"sync"
	"time"
)

// Rounds counts rounds from 1 to Total and steps the in-game date.
type Rounds struct {
	mu         sync.Mutex
	round      int
	total      int
	start      time.Time
	date       time.Time
	stepMonths int
}

func NewRounds() *Rounds { return &Rounds{} }

func (r *Rounds) Start(total int, start time.Time, stepMonths int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.round = 1
	r.total = total
	r.start = start
	r.date = start
	r.stepMonths = stepMonths
}

func (r *Rounds) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.round = 0
	r.date = r.start
}

// EndRound closes the current round. It reports whether another round
// follows; when it does the round counter has moved on.
func (r *Rounds) EndRound() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.round >= r.total {
		return false
	}
	r.round++
	return true
}

func (r *Rounds) AdvanceDate() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.date = r.date.AddDate(0, r.stepMonths, 0)
	return r.date
}

func (r *Rounds) Round() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round
}

func (r *Rounds) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

func (r *Rounds) Date() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.date
}

// StageTimer runs one deadline at a time. Arming replaces any pending
// deadline.
type StageTimer struct {
	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
	due   time.Time
}

func NewStageTimer() *StageTimer { return &StageTimer{} }

// Arm calls fire after d unless the timer is re-armed or stopped first. A
// non-positive d disarms.
func (s *StageTimer) Arm(d time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	if d <= 0 {
		return
	}
	s.gen++
	gen := s.gen
	s.due = time.Now().Add(d)
	s.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		current := s.gen == gen
		if current {
			s.timer = nil
			s.due = time.Time{}
		}
		s.mu.Unlock()
		if current {
			fire()
		}
	})
}

func (s *StageTimer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *StageTimer) stopLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.due = time.Time{}
}

// Remaining is the time left before the pending deadline, or zero.
func (s *StageTimer) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.due.IsZero() {
		return 0
	}
	if d := time.Until(s.due); d > 0 {
		return d
	}
	return 0
}

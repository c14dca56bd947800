// Package events carries engine notifications to observers. Publishing never
// blocks: a subscriber that falls behind loses events.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type Type string

const (
	PhaseEnded        Type = "PHASE_ENDED"
	PhaseStarted      Type = "PHASE_STARTED"
	PlayerChanged     Type = "PLAYER_CHANGED"
	ParcelChanged     Type = "PARCEL_CHANGED"
	FieldChanged      Type = "FIELD_CHANGED"
	AssetChanged      Type = "ASSET_CHANGED"
	AssetRemoved      Type = "ASSET_REMOVED"
	Transaction       Type = "TRANSACTION"
	OperationRejected Type = "OPERATION_REJECTED"
	HistoryRecorded   Type = "HISTORY_RECORDED"
	RoundAdvanced     Type = "ROUND_ADVANCED"
	GameReset         Type = "GAME_RESET"
	Forecast          Type = "FORECAST"
)

func Types() []Type {
	return []Type{
		PhaseEnded, PhaseStarted, PlayerChanged, ParcelChanged, FieldChanged,
		AssetChanged, AssetRemoved, Transaction, OperationRejected, HistoryRecorded,
		RoundAdvanced, GameReset, Forecast,
	}
}

type Event struct {
	Seq      uint64          `json:"seq"`
	Time     time.Time       `json:"time"`
	GameID   string          `json:"game_id"`
	Round    int             `json:"round"`
	Phase    string          `json:"phase"`
	Type     Type            `json:"type"`
	EntityID string          `json:"entity_id,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Encode builds an event with payload encoded as JSON.
func Encode(t Type, entityID string, payload any) (Event, error) {
	ev := Event{Type: t, EntityID: entityID}
	if payload == nil {
		return ev, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ev, fmt.Errorf("encode %s payload: %w", t, err)
	}
	ev.Payload = b
	return ev, nil
}

// New is Encode for payloads that are known to encode. It panics otherwise.
func New(t Type, entityID string, payload any) Event {
	ev, err := Encode(t, entityID, payload)
	if err != nil {
		panic(err)
	}
	return ev
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error { return json.Unmarshal(e.Payload, v) }

type Bus struct {
	mu      sync.Mutex
	seq     uint64
	nextID  int
	subs    map[int]*Subscription
	dropped atomic.Uint64
	now     func() time.Time
}

func NewBus() *Bus {
	return &Bus{subs: map[int]*Subscription{}, now: time.Now}
}

type Subscription struct {
	id  int
	bus *Bus
	ch  chan Event

	dropped atomic.Uint64
	once    sync.Once
}

// Subscribe registers a subscriber with the given channel buffer.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscription{id: b.nextID, bus: b, ch: make(chan Event, buffer)}
	b.subs[s.id] = s
	return s
}

func (s *Subscription) C() <-chan Event { return s.ch }

// Dropped counts events this subscriber missed because its buffer was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unsubscribes and closes the channel. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		close(s.ch)
		s.bus.mu.Unlock()
	})
}

// Publish stamps ev with the next sequence number and the current time and
// hands it to every subscriber that has room. It returns the stamped event.
func (b *Bus) Publish(ev Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	ev.Seq = b.seq
	if ev.Time.IsZero() {
		ev.Time = b.now().UTC()
	}
	for _, s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
			b.dropped.Add(1)
		}
	}
	return ev
}

// Dropped is the total number of deliveries lost across subscribers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

func (b *Bus) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

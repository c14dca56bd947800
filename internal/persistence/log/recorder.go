package log

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"waterwise.ai/internal/sim/events"
)

// Recorder writes every published event to <data>/events and every rejected
// operation to <data>/audit as well.
type Recorder struct {
	log    zerolog.Logger
	events *JSONLZstdWriter
	audit  *JSONLZstdWriter
	buffer int

	mu   sync.Mutex
	sub  *events.Subscription
	done chan struct{}
}

func NewRecorder(dataDir string, logger zerolog.Logger) *Recorder {
	return &Recorder{
		log:    logger.With().Str("component", "recorder").Logger(),
		events: NewJSONLZstdWriter(filepath.Join(dataDir, "events"), "events"),
		audit:  NewJSONLZstdWriter(filepath.Join(dataDir, "audit"), "audit"),
		buffer: 8192,
	}
}

// Initialize subscribes to bus and starts writing in the background.
func (r *Recorder) Initialize(bus *events.Bus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return errors.New("recorder already initialized")
	}
	r.sub = bus.Subscribe(r.buffer)
	r.done = make(chan struct{})
	go r.run(r.sub, r.done)
	return nil
}

func (r *Recorder) run(sub *events.Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.C() {
		if err := r.events.Write(ev); err != nil {
			r.log.Error().Err(err).Uint64("seq", ev.Seq).Msg("write event")
			continue
		}
		if ev.Type == events.OperationRejected {
			if err := r.audit.Write(ev); err != nil {
				r.log.Error().Err(err).Uint64("seq", ev.Seq).Msg("write audit")
			}
		}
	}
}

// Close stops the subscription, drains what was already delivered and closes
// the files.
func (r *Recorder) Close() error {
	r.mu.Lock()
	sub, done := r.sub, r.done
	r.mu.Unlock()
	if sub != nil {
		sub.Close()
		<-done
		if d := sub.Dropped(); d > 0 {
			r.log.Warn().Uint64("dropped", d).Msg("recorder fell behind")
		}
	}
	return errors.Join(r.events.Close(), r.audit.Close())
}

func (r *Recorder) Written() int { return r.events.Lines() }

// OnFileClosed hands every finished events or audit file to fn, for example
// to ship it to object storage.
func (r *Recorder) OnFileClosed(fn func(path string)) {
	r.events.OnClose(fn)
	r.audit.OnClose(fn)
}

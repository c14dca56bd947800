// Package archive keeps a snapshot of every finished game under
// <data>/archives/game_<id>/.
package archive

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"waterwise.ai/internal/persistence/snapshot"
	"waterwise.ai/internal/sim/events"
)

type Meta struct {
	GameID    string `json:"game_id"`
	Rounds    int    `json:"rounds"`
	Players   int    `json:"players"`
	Winner    string `json:"winner,omitempty"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
}

// Archiver follows the bus, collecting ledgers and rounds per game, and
// writes the archive when the game enters GameEnded.
type Archiver struct {
	dir string
	log zerolog.Logger
	now func() time.Time

	mu       sync.Mutex
	sub      *events.Subscription
	done     chan struct{}
	onWrite  func(path string)
	cur      *snapshot.GameV1
	archived []string
}

func NewArchiver(dataDir string, logger zerolog.Logger) *Archiver {
	return &Archiver{
		dir: filepath.Join(dataDir, "archives"),
		log: logger.With().Str("component", "archive").Logger(),
		now: time.Now,
	}
}

// OnWrite registers fn to receive every file the archiver writes.
func (a *Archiver) OnWrite(fn func(path string)) {
	a.mu.Lock()
	a.onWrite = fn
	a.mu.Unlock()
}

func (a *Archiver) Initialize(bus *events.Bus) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub != nil {
		return errors.New("archiver already initialized")
	}
	a.sub = bus.Subscribe(4096)
	a.done = make(chan struct{})
	go a.run(a.sub, a.done)
	return nil
}

func (a *Archiver) Close() error {
	a.mu.Lock()
	sub, done := a.sub, a.done
	a.mu.Unlock()
	if sub == nil {
		return nil
	}
	sub.Close()
	<-done
	return nil
}

// Archived lists the snapshot paths written so far.
func (a *Archiver) Archived() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.archived...)
}

func (a *Archiver) run(sub *events.Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.C() {
		if err := a.observe(ev); err != nil {
			a.log.Error().Err(err).Str("game_id", ev.GameID).Str("type", string(ev.Type)).Msg("archive")
		}
	}
}

func (a *Archiver) observe(ev events.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.Type {
	case events.PhaseStarted:
		var p events.PhasePayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		switch p.Phase {
		case "GameStarting":
			a.cur = &snapshot.GameV1{
				Header:  snapshot.Header{Version: snapshot.Version, GameID: ev.GameID},
				History: map[string][]events.HistoryPayload{},
			}
		case "GameEnded":
			if a.cur == nil || a.cur.Header.GameID != ev.GameID {
				// Started before we were listening; nothing consistent to keep.
				return nil
			}
			a.cur.Standings = p.Standings
			a.cur.Header.Rounds = len(a.cur.Rounds)
			a.cur.Header.EndedAt = a.now().UTC()
			err := a.writeLocked(*a.cur)
			a.cur = nil
			return err
		}
	case events.HistoryRecorded:
		if a.cur == nil || a.cur.Header.GameID != ev.GameID {
			return nil
		}
		var h events.HistoryPayload
		if err := ev.Decode(&h); err != nil {
			return err
		}
		a.cur.History[h.PlayerID] = append(a.cur.History[h.PlayerID], h)
	case events.RoundAdvanced:
		if a.cur == nil || a.cur.Header.GameID != ev.GameID {
			return nil
		}
		var r events.RoundPayload
		if err := ev.Decode(&r); err != nil {
			return err
		}
		a.cur.Rounds = append(a.cur.Rounds, r)
	case events.GameReset:
		a.cur = nil
	}
	return nil
}

func (a *Archiver) writeLocked(snap snapshot.GameV1) error {
	gameDir := filepath.Join(a.dir, "game_"+snap.Header.GameID)
	snapPath := filepath.Join(gameDir, "final.snap.zst")
	if err := snapshot.Write(snapPath, snap); err != nil {
		return err
	}
	meta := Meta{
		GameID:    snap.Header.GameID,
		Rounds:    snap.Header.Rounds,
		Players:   len(snap.Standings),
		Winner:    snap.Winner(),
		Snapshot:  filepath.Base(snapPath),
		CreatedAt: snap.Header.EndedAt.Format(time.RFC3339Nano),
	}
	metaPath := filepath.Join(gameDir, "meta.json")
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(metaPath, b, 0o644); err != nil {
		return err
	}
	a.archived = append(a.archived, snapPath)
	a.log.Info().Str("game_id", meta.GameID).Str("winner", meta.Winner).Int("rounds", meta.Rounds).Msg("game archived")
	if a.onWrite != nil {
		a.onWrite(snapPath)
		a.onWrite(metaPath)
	}
	return nil
}

// List returns the meta of every archived game, in directory order.
func List(dataDir string) ([]Meta, error) {
	matches, err := filepath.Glob(filepath.Join(dataDir, "archives", "game_*", "meta.json"))
	if err != nil {
		return nil, err
	}
	var out []Meta
	for _, p := range matches {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var m Meta
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

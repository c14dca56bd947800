package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"waterwise.ai/internal/persistence/snapshot"
	"waterwise.ai/internal/sim/events"
	"waterwise.ai/internal/sim/model"
)

func publish(bus *events.Bus, gameID string, t events.Type, payload any) {
	ev := events.New(t, "", payload)
	ev.GameID = gameID
	bus.Publish(ev)
}

func TestArchiver_WritesFinishedGame(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus()
	a := NewArchiver(dir, zerolog.Nop())
	a.now = func() time.Time { return time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC) }
	var written []string
	a.OnWrite(func(p string) { written = append(written, filepath.Base(p)) })
	if err := a.Initialize(bus); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := a.Initialize(bus); err == nil {
		t.Fatalf("expected second initialize to fail")
	}

	// A game already running when the archiver attached is ignored.
	publish(bus, "old", events.HistoryRecorded, events.HistoryPayload{PlayerID: "p1", Round: 1})
	publish(bus, "old", events.PhaseStarted, events.PhasePayload{Phase: "GameEnded"})

	publish(bus, "g1", events.PhaseStarted, events.PhasePayload{Phase: "GameStarting"})
	publish(bus, "g1", events.HistoryRecorded, events.HistoryPayload{PlayerID: "p1", Round: 1, Money: 900})
	publish(bus, "g1", events.HistoryRecorded, events.HistoryPayload{PlayerID: "p2", Round: 1, Money: 1100})
	publish(bus, "g1", events.RoundAdvanced, events.RoundPayload{Round: 1, Rainfall: 30, Next: 0, Total: 1})
	publish(bus, "g1", events.PhaseStarted, events.PhasePayload{Phase: "GameEnded", Standings: []model.PlayerView{
		{ID: "p2", Money: 1100},
		{ID: "p1", Money: 900},
	}})
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := a.Archived()
	if len(got) != 1 {
		t.Fatalf("archived=%v want 1 game", got)
	}
	if len(written) != 2 || written[0] != "final.snap.zst" || written[1] != "meta.json" {
		t.Fatalf("written=%v", written)
	}

	snap, err := snapshot.Read(got[0])
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Header.GameID != "g1" || snap.Header.Rounds != 1 {
		t.Fatalf("header=%+v", snap.Header)
	}
	if snap.Winner() != "p2" {
		t.Fatalf("winner=%q want p2", snap.Winner())
	}
	if len(snap.History["p1"]) != 1 || snap.History["p1"][0].Money != 900 {
		t.Fatalf("history=%+v", snap.History)
	}

	metas, err := List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 1 || metas[0].Winner != "p2" || metas[0].Players != 2 {
		t.Fatalf("metas=%+v", metas)
	}
}

func TestArchiver_ResetDiscardsGame(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus()
	a := NewArchiver(dir, zerolog.Nop())
	if err := a.Initialize(bus); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	publish(bus, "g1", events.PhaseStarted, events.PhasePayload{Phase: "GameStarting"})
	publish(bus, "g1", events.GameReset, events.ResetPayload{PreviousGameID: "g1"})
	publish(bus, "g1", events.PhaseStarted, events.PhasePayload{Phase: "GameEnded"})
	_ = a.Close()

	if got := a.Archived(); len(got) != 0 {
		t.Fatalf("archived=%v want none", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "archives")); !os.IsNotExist(err) {
		t.Fatalf("expected no archive dir, err=%v", err)
	}
}

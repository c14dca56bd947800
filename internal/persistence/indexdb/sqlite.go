// Package indexdb keeps queryable read models of the event stream: a local
// SQLite index and an optional remote ingest mirror.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"waterwise.ai/internal/sim/events"
)

const schemaVersion = "1"

type SQLiteIndex struct {
	db  *sql.DB
	log zerolog.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	stats  queueStats

	subMu sync.Mutex
	sub   *events.Subscription
	pump  chan struct{}
}

type reqKind int

const (
	reqEvent reqKind = iota + 1
	reqConfig
)

type req struct {
	kind   reqKind
	event  events.Event
	config configRow
}

type configRow struct {
	Name      string
	Digest    string
	Raw       string
	UpdatedAt string
}

// OpenSQLite opens or creates the index at path and starts its writer.
func OpenSQLite(path string, logger zerolog.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:  db,
		log: logger.With().Str("component", "indexdb").Logger(),
		ch:  make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			yaml TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY,
			game_id TEXT NOT NULL,
			type TEXT NOT NULL,
			round INTEGER NOT NULL,
			phase TEXT NOT NULL,
			entity_id TEXT,
			player_id TEXT,
			time TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_game_type ON events(game_id, type);`,
		`CREATE INDEX IF NOT EXISTS idx_events_player ON events(player_id, seq);`,
		`CREATE TABLE IF NOT EXISTS history (
			game_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			role TEXT NOT NULL,
			start_money INTEGER NOT NULL,
			end_money INTEGER NOT NULL,
			land_revenue INTEGER NOT NULL,
			land_cost INTEGER NOT NULL,
			water_rights_revenue INTEGER NOT NULL,
			water_rights_cost INTEGER NOT NULL,
			build_revenue INTEGER NOT NULL,
			build_cost INTEGER NOT NULL,
			water_revenue INTEGER NOT NULL,
			water_cost INTEGER NOT NULL,
			water_received INTEGER NOT NULL,
			product_revenue INTEGER NOT NULL,
			maintenance_cost INTEGER NOT NULL,
			cost_of_living INTEGER NOT NULL,
			profit INTEGER NOT NULL,
			money INTEGER NOT NULL,
			PRIMARY KEY (game_id, player_id, round)
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			game_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			date TEXT NOT NULL,
			rainfall INTEGER NOT NULL,
			next_round INTEGER NOT NULL,
			PRIMARY KEY (game_id, round)
		);`,
		`CREATE TABLE IF NOT EXISTS rejections (
			seq INTEGER PRIMARY KEY,
			game_id TEXT NOT NULL,
			player_id TEXT,
			operation TEXT NOT NULL,
			code TEXT NOT NULL,
			message TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rejections_player ON rejections(player_id, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion)
	return err
}

// Initialize subscribes to bus and forwards every event to the writer.
func (s *SQLiteIndex) Initialize(bus *events.Bus) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.sub != nil {
		return errors.New("index already initialized")
	}
	s.sub = bus.Subscribe(8192)
	s.pump = make(chan struct{})
	go forward(s.sub, s.pump, s.WriteEvent)
	return nil
}

func forward(sub *events.Subscription, done chan struct{}, write func(events.Event)) {
	defer close(done)
	for ev := range sub.C() {
		write(ev)
	}
}

// Close detaches from the bus, commits what is queued and closes the
// database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.subMu.Lock()
		sub, pump := s.sub, s.pump
		s.subMu.Unlock()
		if sub != nil {
			sub.Close()
			<-pump
		}
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteEvent queues ev. When the writer falls behind the event is dropped;
// the JSONL recording remains the source of truth.
func (s *SQLiteIndex) WriteEvent(ev events.Event) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqEvent, event: ev}:
	default:
		s.stats.dropEvent.Add(1)
	}
}

// UpsertConfigs stores the configuration documents the server was started
// with, keyed by name.
func (s *SQLiteIndex) UpsertConfigs(docs map[string]string) {
	if s == nil || s.closed.Load() {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		raw := docs[name]
		if raw == "" {
			continue
		}
		r := configRow{Name: name, Digest: digest(raw), Raw: raw, UpdatedAt: now}
		select {
		case s.ch <- req{kind: reqConfig, config: r}:
		default:
			s.stats.dropConfig.Add(1)
		}
	}
}

func digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return s.stats.snapshot(len(s.ch), cap(s.ch))
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(seq,game_id,type,round,phase,entity_id,player_id,time,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertHistory, _ := s.db.Prepare(`INSERT OR REPLACE INTO history(game_id,player_id,round,role,start_money,end_money,land_revenue,land_cost,water_rights_revenue,water_rights_cost,build_revenue,build_cost,water_revenue,water_cost,water_received,product_revenue,maintenance_cost,cost_of_living,profit,money) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertRound, _ := s.db.Prepare(`INSERT OR REPLACE INTO rounds(game_id,round,date,rainfall,next_round) VALUES(?,?,?,?,?)`)
	insertRejection, _ := s.db.Prepare(`INSERT OR REPLACE INTO rejections(seq,game_id,player_id,operation,code,message) VALUES(?,?,?,?,?,?)`)
	insertConfig, _ := s.db.Prepare(`INSERT OR REPLACE INTO configs(name,digest,yaml,updated_at) VALUES(?,?,?,?)`)
	upsertMeta, _ := s.db.Prepare(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertEvent, insertHistory, insertRound, insertRejection, insertConfig, upsertMeta} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.log.Error().Err(err).Msg("begin tx")
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.stats.commitFail.Add(1)
			s.log.Error().Err(err).Msg("commit")
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.stats.writeFail.Add(1)
		s.log.Error().Err(err).Msg("index write failed, rolling back batch")
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return true
		}
		if tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback(err)
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqConfig:
			c := r.config
			exec(insertConfig, c.Name, c.Digest, c.Raw, c.UpdatedAt)

		case reqEvent:
			ev := r.event
			raw, _ := json.Marshal(ev)
			if !exec(insertEvent, int64(ev.Seq), ev.GameID, string(ev.Type), ev.Round, ev.Phase, ev.EntityID, ev.PlayerID, ev.Time.UTC().Format(time.RFC3339Nano), string(raw)) {
				continue
			}
			s.project(ev, exec, insertHistory, insertRound, insertRejection, upsertMeta)
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}

// project writes the typed tables derived from one event.
func (s *SQLiteIndex) project(ev events.Event, exec func(*sql.Stmt, ...any) bool, history, rounds, rejections, meta *sql.Stmt) {
	switch ev.Type {
	case events.HistoryRecorded:
		var p events.HistoryPayload
		if err := ev.Decode(&p); err != nil {
			s.stats.decodeFail.Add(1)
			return
		}
		l := p.Ledger
		exec(history, ev.GameID, p.PlayerID, p.Round, p.Role, l.StartMoney, l.EndMoney,
			l.LandRevenue, l.LandCost, l.WaterRightsRevenue, l.WaterRightsCost,
			l.BuildRevenue, l.BuildCost, l.WaterRevenue, l.WaterCost,
			l.WaterReceived, l.ProductRevenue, l.MaintenanceCost, l.CostOfLiving,
			p.Profit, p.Money)

	case events.RoundAdvanced:
		var p events.RoundPayload
		if err := ev.Decode(&p); err != nil {
			s.stats.decodeFail.Add(1)
			return
		}
		exec(rounds, ev.GameID, p.Round, p.Date.Format("2006-01"), p.Rainfall, p.Next)

	case events.OperationRejected:
		var p events.RejectionPayload
		if err := ev.Decode(&p); err != nil {
			s.stats.decodeFail.Add(1)
			return
		}
		exec(rejections, int64(ev.Seq), ev.GameID, p.PlayerID, p.Operation, p.Code, p.Message)

	case events.PhaseStarted:
		var p events.PhasePayload
		if err := ev.Decode(&p); err != nil {
			s.stats.decodeFail.Add(1)
			return
		}
		if p.Phase == "GameStarting" {
			exec(meta, "current_game_id", ev.GameID)
			exec(meta, "current_game_started_at", ev.Time.UTC().Format(time.RFC3339Nano))
		}
	}
}

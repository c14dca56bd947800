// Package bridge keeps one game connection per agent so that stateless tool
// calls can drive a websocket session.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	GameWSURL   string
	StateFile   string
	MaxSessions int
	Logger      zerolog.Logger
}

type Manager struct {
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	state    map[string]persistedSession

	closed bool
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.GameWSURL == "" {
		return nil, fmt.Errorf("empty game ws url")
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 256
	}
	st, err := loadStateFile(cfg.StateFile)
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg,
		log:      cfg.Logger.With().Str("component", "bridge").Logger(),
		sessions: map[string]*Session{},
		state:    st,
	}, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	return nil
}

func (m *Manager) Join(ctx context.Context, key string, args JoinArgs) (JoinResult, error) {
	s, err := m.session(key)
	if err != nil {
		return JoinResult{}, err
	}
	return s.Join(ctx, args)
}

func (m *Manager) GetStatus(ctx context.Context, key string) (Status, error) {
	s, err := m.session(key)
	if err != nil {
		return Status{}, err
	}
	s.Resume()
	return s.Status(ctx)
}

func (m *Manager) GetEvents(ctx context.Context, key string, opts GetEventsOpts) (GetEventsResult, error) {
	s, err := m.session(key)
	if err != nil {
		return GetEventsResult{}, err
	}
	s.Resume()
	return s.Events(ctx, opts)
}

func (m *Manager) Act(ctx context.Context, key string, args ActArgs) (ActResult, error) {
	s, err := m.session(key)
	if err != nil {
		return ActResult{}, err
	}
	s.Resume()
	return s.Act(ctx, args)
}

func (m *Manager) EndTurn(ctx context.Context, key string) (ActResult, error) {
	s, err := m.session(key)
	if err != nil {
		return ActResult{}, err
	}
	s.Resume()
	return s.EndTurn(ctx)
}

func (m *Manager) Disconnect(_ context.Context, key string) error {
	s, err := m.session(key)
	if err != nil {
		return err
	}
	s.Pause()
	return nil
}

func (m *Manager) session(key string) (*Session, error) {
	if key == "" {
		key = "default"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("bridge manager closed")
	}
	if s := m.sessions[key]; s != nil {
		return s, nil
	}

	// Evict the least recently used session.
	if len(m.sessions) >= m.cfg.MaxSessions {
		var oldestKey string
		var oldest time.Time
		for k, s := range m.sessions {
			t := s.LastUsedAt()
			if oldestKey == "" || t.Before(oldest) {
				oldestKey, oldest = k, t
			}
		}
		if oldestKey != "" {
			go m.sessions[oldestKey].Close()
			delete(m.sessions, oldestKey)
		}
	}

	ps := m.state[key]
	s := NewSession(SessionConfig{
		Key:       key,
		GameWSURL: m.cfg.GameWSURL,
		Name:      ps.Name,
		Role:      ps.Role,
		LastSeq:   ps.LastSeq,
		Logger:    m.cfg.Logger,
	}, m.onSessionUpdate)
	m.sessions[key] = s
	s.Start()
	return s, nil
}

func (m *Manager) onSessionUpdate(key string, upd sessionUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	ps := m.state[key]
	ps.Name = upd.Name
	ps.Role = upd.Role
	ps.LastSeq = upd.LastSeq
	if !upd.LastConnectedAt.IsZero() {
		ps.LastConnectedAt = upd.LastConnectedAt.UTC().Format(time.RFC3339Nano)
	}
	m.state[key] = ps

	b, _ := json.MarshalIndent(m.state, "", "  ")
	if err := writeFileAtomic(m.cfg.StateFile, append(b, '\n')); err != nil {
		m.log.Warn().Err(err).Str("path", m.cfg.StateFile).Msg("persist sessions")
	}
}

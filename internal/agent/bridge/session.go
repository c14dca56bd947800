package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"waterwise.ai/internal/protocol"
)

var ErrNotJoined = errors.New("not joined: call waterwise.join first")

type SessionConfig struct {
	// Key is the agent identity and doubles as the player id.
	Key       string
	GameWSURL string
	Name      string
	Role      string
	LastSeq   uint64
	Buffer    int
	Logger    zerolog.Logger
}

type sessionUpdate struct {
	Name            string
	Role            string
	LastConnectedAt time.Time
	LastSeq         uint64
}

type onUpdateFn func(key string, upd sessionUpdate)

type reply struct {
	typ string
	raw []byte
}

type bufferedEvent struct {
	seq uint64
	raw json.RawMessage
}

type Session struct {
	cfg      SessionConfig
	onUpdate onUpdateFn
	log      zerolog.Logger

	mu sync.Mutex

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
	wake      chan struct{}

	paused          bool
	connected       bool
	lastConnectedAt time.Time
	lastErr         string

	conn    *websocket.Conn
	writeMu sync.Mutex

	welcome   *protocol.WelcomeMsg
	welcomeCh chan struct{}
	lastHud   json.RawMessage

	nextSeq int
	pending map[int]chan reply

	events  []bufferedEvent
	lastSeq uint64
	dropped uint64
	notify  chan struct{}

	lastUsedAt time.Time
}

func NewSession(cfg SessionConfig, onUpdate onUpdateFn) *Session {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 512
	}
	return &Session{
		cfg:        cfg,
		onUpdate:   onUpdate,
		log:        cfg.Logger.With().Str("component", "bridge").Str("player_id", cfg.Key).Logger(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		wake:       make(chan struct{}, 1),
		welcomeCh:  make(chan struct{}),
		pending:    map[int]chan reply{},
		lastSeq:    cfg.LastSeq,
		notify:     make(chan struct{}),
		lastUsedAt: time.Now(),
	}
}

func (s *Session) Start() {
	s.startOnce.Do(func() { go s.run() })
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.disconnect()
		<-s.done
	})
}

func (s *Session) LastUsedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsedAt
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsedAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) joined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Role != ""
}

// Join records the player's name and role and waits for the server to
// welcome it.
func (s *Session) Join(ctx context.Context, args JoinArgs) (JoinResult, error) {
	s.touch()
	role := strings.TrimSpace(args.Role)
	if role == "" {
		return JoinResult{}, fmt.Errorf("missing role")
	}
	s.mu.Lock()
	changed := s.cfg.Role != role || (args.Name != "" && s.cfg.Name != args.Name)
	s.cfg.Role = role
	if args.Name != "" {
		s.cfg.Name = args.Name
	}
	s.paused = false
	s.mu.Unlock()
	if changed {
		// Reconnect so the next HELLO carries the new registration.
		s.disconnect()
	}
	s.kick()

	w, err := s.waitWelcome(ctx, 5*time.Second)
	if err != nil {
		return JoinResult{}, err
	}
	return JoinResult{PlayerID: w.PlayerID, GameID: w.GameID, Phase: w.Phase, Round: w.Round, TotalRounds: w.TotalRounds}, nil
}

func (s *Session) Status(ctx context.Context) (Status, error) {
	s.touch()
	if s.isConnected() {
		rep, err := s.command(ctx, protocol.CommandMsg{Type: protocol.TypeStatus})
		if err == nil && rep.typ == protocol.TypeHud {
			var hud protocol.HudMsg
			if json.Unmarshal(rep.raw, &hud) == nil {
				s.mu.Lock()
				s.lastHud = hud.Status
				s.mu.Unlock()
			}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Connected: s.connected,
		Role:      s.cfg.Role,
		GameWSURL: s.cfg.GameWSURL,
		LastSeq:   s.lastSeq,
		Hud:       s.lastHud,
		LastError: s.lastErr,
	}
	if s.welcome != nil {
		st.PlayerID = s.welcome.PlayerID
		st.GameID = s.welcome.GameID
	}
	return st, nil
}

// Events returns buffered events newer than opts.SinceSeq, oldest first.
func (s *Session) Events(ctx context.Context, opts GetEventsOpts) (GetEventsResult, error) {
	s.touch()
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	if opts.WaitMS > 0 {
		deadline := time.NewTimer(time.Duration(opts.WaitMS) * time.Millisecond)
		defer deadline.Stop()
		for {
			s.mu.Lock()
			newer := s.lastSeq > opts.SinceSeq
			ch := s.notify
			s.mu.Unlock()
			if newer {
				break
			}
			select {
			case <-ctx.Done():
				return GetEventsResult{}, ctx.Err()
			case <-deadline.C:
			case <-ch:
				continue
			}
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := GetEventsResult{LastSeq: s.lastSeq, Events: []json.RawMessage{}}
	if len(s.events) > 0 && s.events[0].seq > opts.SinceSeq+1 {
		out.Dropped = s.dropped
	}
	for _, ev := range s.events {
		if ev.seq <= opts.SinceSeq {
			continue
		}
		out.Events = append(out.Events, ev.raw)
		if len(out.Events) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *Session) Act(ctx context.Context, args ActArgs) (ActResult, error) {
	s.touch()
	if strings.TrimSpace(args.Op) == "" {
		return ActResult{}, fmt.Errorf("missing op")
	}
	return s.result(s.command(ctx, protocol.ActMsg{
		Type:     protocol.TypeAct,
		Op:       strings.ToUpper(args.Op),
		ParcelID: args.ParcelID,
		FieldID:  args.FieldID,
		AssetID:  args.AssetID,
		BuyerID:  args.BuyerID,
		Kind:     args.Kind,
		Rights:   args.Rights,
		Level:    args.Level,
		Amount:   args.Amount,
		Price:    args.Price,
	}))
}

func (s *Session) EndTurn(ctx context.Context) (ActResult, error) {
	s.touch()
	return s.result(s.command(ctx, protocol.CommandMsg{Type: protocol.TypeEndTurn}))
}

func (s *Session) result(rep reply, err error) (ActResult, error) {
	if err != nil {
		return ActResult{}, err
	}
	switch rep.typ {
	case protocol.TypeAck:
		var ack protocol.AckMsg
		_ = json.Unmarshal(rep.raw, &ack)
		return ActResult{OK: true, Seq: ack.Seq}, nil
	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(rep.raw, &e)
		return ActResult{Seq: e.Seq, Code: e.Code, Message: e.Message}, nil
	default:
		return ActResult{}, fmt.Errorf("unexpected reply %s", rep.typ)
	}
}

// command stamps msg with the next seq, sends it and waits for the reply
// carrying that seq.
func (s *Session) command(ctx context.Context, msg any) (reply, error) {
	if !s.joined() {
		return reply{}, ErrNotJoined
	}
	if _, err := s.waitWelcome(ctx, 3*time.Second); err != nil {
		return reply{}, err
	}

	s.mu.Lock()
	s.nextSeq++
	seq := s.nextSeq
	ch := make(chan reply, 1)
	s.pending[seq] = ch
	conn := s.conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, seq)
		s.mu.Unlock()
	}()
	if conn == nil {
		return reply{}, fmt.Errorf("not connected")
	}

	switch m := msg.(type) {
	case protocol.CommandMsg:
		m.ProtocolVersion, m.Seq = protocol.Version, seq
		msg = m
	case protocol.ActMsg:
		m.ProtocolVersion, m.Seq = protocol.Version, seq
		msg = m
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return reply{}, err
	}
	s.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	err = conn.WriteMessage(websocket.TextMessage, b)
	s.writeMu.Unlock()
	if err != nil {
		return reply{}, err
	}

	t := time.NewTimer(5 * time.Second)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-t.C:
		return reply{}, fmt.Errorf("timeout waiting for reply to seq %d", seq)
	case rep := <-ch:
		return rep, nil
	}
}

func (s *Session) isConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) waitWelcome(ctx context.Context, timeout time.Duration) (protocol.WelcomeMsg, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		s.mu.Lock()
		w, ch, lastErr := s.welcome, s.welcomeCh, s.lastErr
		s.mu.Unlock()
		if w != nil {
			return *w, nil
		}
		select {
		case <-ctx.Done():
			return protocol.WelcomeMsg{}, ctx.Err()
		case <-deadline.C:
			if lastErr != "" {
				return protocol.WelcomeMsg{}, errors.New(lastErr)
			}
			return protocol.WelcomeMsg{}, fmt.Errorf("timeout waiting for WELCOME")
		case <-ch:
		}
	}
}

// Pause drops the connection and keeps it down until the agent calls a
// tool again.
func (s *Session) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.disconnect()
}

func (s *Session) Resume() {
	s.mu.Lock()
	was := s.paused
	s.paused = false
	s.mu.Unlock()
	if was {
		s.kick()
	}
}

func (s *Session) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) disconnect() {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.connected = false
	s.welcome = nil
	s.mu.Unlock()
	if c != nil {
		_ = c.Close()
	}
}

func (s *Session) run() {
	defer close(s.done)

	backoff := 200 * time.Millisecond
	for {
		s.mu.Lock()
		idle := s.paused || s.cfg.Role == ""
		s.mu.Unlock()
		if idle {
			select {
			case <-s.stop:
				return
			case <-s.wake:
				continue
			}
		}

		err := s.connectAndReadLoop()
		select {
		case <-s.stop:
			return
		default:
		}
		if err != nil {
			s.mu.Lock()
			s.connected = false
			s.welcome = nil
			s.lastErr = err.Error()
			s.mu.Unlock()
			s.log.Debug().Err(err).Dur("backoff", backoff).Msg("session dropped")
			select {
			case <-s.stop:
				return
			case <-time.After(backoff):
			case <-s.wake:
			}
			if backoff < 5*time.Second {
				backoff = min(backoff*2, 5*time.Second)
			}
			continue
		}
		backoff = 200 * time.Millisecond
	}
}

func (s *Session) connectAndReadLoop() error {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := d.Dial(s.cfg.GameWSURL, http.Header{})
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	s.mu.Lock()
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerID:        s.cfg.Key,
		Name:            s.cfg.Name,
		Role:            s.cfg.Role,
		MaxQueue:        256,
	}
	s.mu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			s.mu.Lock()
			paused := s.paused || s.conn != conn
			s.mu.Unlock()
			if paused {
				return nil
			}
			return err
		}
		s.handle(msg)
	}
}

func (s *Session) handle(msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return
		}
		now := time.Now()
		s.mu.Lock()
		s.welcome = &w
		s.connected = true
		s.lastConnectedAt = now
		s.lastErr = ""
		close(s.welcomeCh)
		s.welcomeCh = make(chan struct{})
		upd := sessionUpdate{Name: s.cfg.Name, Role: s.cfg.Role, LastConnectedAt: now, LastSeq: s.lastSeq}
		s.mu.Unlock()
		s.log.Info().Str("game_id", w.GameID).Str("phase", w.Phase).Msg("welcomed")
		if s.onUpdate != nil {
			s.onUpdate(s.cfg.Key, upd)
		}

	case protocol.TypeEvent:
		var em protocol.EventMsg
		if err := json.Unmarshal(msg, &em); err != nil {
			return
		}
		var head struct {
			Seq uint64 `json:"seq"`
		}
		if err := json.Unmarshal(em.Event, &head); err != nil {
			return
		}
		s.mu.Lock()
		s.events = append(s.events, bufferedEvent{seq: head.Seq, raw: append(json.RawMessage(nil), em.Event...)})
		if over := len(s.events) - s.cfg.Buffer; over > 0 {
			s.events = append(s.events[:0], s.events[over:]...)
			s.dropped += uint64(over)
		}
		if head.Seq > s.lastSeq {
			s.lastSeq = head.Seq
		}
		close(s.notify)
		s.notify = make(chan struct{})
		s.mu.Unlock()

	case protocol.TypeHud, protocol.TypeAck, protocol.TypeError:
		var head struct {
			Seq     int    `json:"seq"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(msg, &head)
		s.mu.Lock()
		ch := s.pending[head.Seq]
		if base.Type == protocol.TypeError && head.Seq == 0 {
			s.lastErr = head.Message
		}
		s.mu.Unlock()
		if ch != nil {
			select {
			case ch <- reply{typ: base.Type, raw: append([]byte(nil), msg...)}:
			default:
			}
		}
	}
}

package observer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"waterwise.ai/internal/observerproto"
	"waterwise.ai/internal/sim/engine"
	"waterwise.ai/internal/sim/events"
)

// Game is what a spectator can see of the engine.
type Game interface {
	Bus() *events.Bus
	Overview() engine.Overview
}

type Server struct {
	game Game
	log  zerolog.Logger

	upgrader websocket.Upgrader
}

func NewServer(g Game, logger zerolog.Logger) *Server {
	return &Server{
		game: g,
		log:  logger.With().Str("component", "observer").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		ov := s.game.Overview()
		raw, err := json.Marshal(ov)
		if err != nil {
			http.Error(rw, "encode overview", http.StatusInternalServerError)
			return
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			GameID:          ov.Game.ID,
			Phase:           ov.Game.Phase,
			Round:           ov.Game.Round,
			Overview:        raw,
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// filter is a spectator's current subscription.
type filter struct {
	mu     sync.RWMutex
	types  map[events.Type]bool
	player string
}

func (f *filter) set(sub observerproto.SubscribeMsg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = nil
	if len(sub.Types) > 0 {
		f.types = map[events.Type]bool{}
		for _, t := range sub.Types {
			f.types[events.Type(strings.ToUpper(strings.TrimSpace(t)))] = true
		}
	}
	f.player = strings.TrimSpace(sub.FocusPlayerID)
}

func (f *filter) match(ev events.Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.types != nil && !f.types[ev.Type] {
		return false
	}
	if f.player != "" && ev.PlayerID != "" && ev.PlayerID != f.player {
		return false
	}
	return true
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		var f filter
		f.set(sub)

		busSub := s.game.Bus().Subscribe(4096)
		defer busSub.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			var lagged uint64
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case ev, ok := <-busSub.C():
					if !ok {
						writeErr <- nil
						return
					}
					if d := busSub.Dropped(); d > lagged {
						if err := writeJSON(conn, observerproto.LagMsg{Type: "LAG", ProtocolVersion: observerproto.Version, Dropped: d - lagged}); err != nil {
							writeErr <- err
							return
						}
						lagged = d
					}
					if !f.match(ev) {
						continue
					}
					raw, err := json.Marshal(ev)
					if err != nil {
						continue
					}
					if err := writeJSON(conn, observerproto.EventMsg{Type: "EVENT", ProtocolVersion: observerproto.Version, Event: raw}); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := decodeSubscribe(msg); ok {
				f.set(sub)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	return sub, true
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

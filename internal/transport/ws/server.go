package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"waterwise.ai/internal/protocol"
	"waterwise.ai/internal/sim/engine"
	"waterwise.ai/internal/sim/events"
	"waterwise.ai/internal/sim/lifecycle"
	"waterwise.ai/internal/sim/model"
)

// Game is the slice of the engine a player connection drives.
type Game interface {
	Bus() *events.Bus
	AddPlayer(id, name string, role model.Role) error
	EndTurn(playerID string) error
	HudStatus(playerID string) (engine.HudStatus, error)

	BuildGameAsset(playerID, parcelID, fieldID string, kind model.AssetKind, level int) error
	ContinueBuildingGameAsset(playerID, assetID string) error
	UpgradeGameAsset(playerID, assetID string, level int) error
	SellGameAssetToEconomy(playerID, assetID string) error
	RemoveGameAsset(playerID, assetID string) error
	BuyLandRights(playerID, parcelID string) error
	SellRights(sellerID, buyerID, parcelID string, kind lifecycle.RightsKind, price int) error
	SellWaterRights(sellerID, buyerID string, amount, price int) error
	UseWater(playerID, assetID string, amount int) error
	UndoUseWater(playerID, assetID string) error
	SellWater(sellerID, buyerID string, amount, price int) error
}

type Options struct {
	Logger zerolog.Logger
	// Commands per second allowed on one connection; zero disables limiting.
	Rate  float64
	Burst int
}

type Server struct {
	game Game
	log  zerolog.Logger

	rate  rate.Limit
	burst int

	upgrader websocket.Upgrader
}

func NewServer(g Game, opts Options) *Server {
	s := &Server{
		game:  g,
		log:   opts.Logger.With().Str("component", "ws").Logger(),
		rate:  rate.Inf,
		burst: opts.Burst,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	if opts.Rate > 0 {
		s.rate = rate.Limit(opts.Rate)
	}
	if s.burst <= 0 {
		s.burst = 1
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID, maxQ := s.handshake(conn)
		if playerID == "" {
			return
		}
		log := s.log.With().Str("player_id", playerID).Logger()
		log.Info().Msg("player connected")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, maxQ)
		sub := s.game.Bus().Subscribe(maxQ * 4)
		defer sub.Close()

		// Event pump.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-sub.C():
					if !ok {
						return
					}
					if !visibleTo(ev, playerID) {
						continue
					}
					b, err := encodeEvent(ev)
					if err != nil {
						continue
					}
					select {
					case out <- b:
					default:
						// Slow reader; it can resync with STATUS.
					}
				}
			}
		}()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		lim := rate.NewLimiter(s.rate, s.burst)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			reply := s.command(playerID, lim, msg)
			if reply == nil {
				continue
			}
			b, err := json.Marshal(reply)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}
		log.Info().Uint64("dropped", sub.Dropped()).Msg("player disconnected")
	}
}

// command handles one client message and returns the reply, if any.
func (s *Server) command(playerID string, lim *rate.Limiter, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return errorMsg(0, protocol.ErrProtoBadRequest, "malformed message")
	}
	var cmd protocol.CommandMsg
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return errorMsg(0, protocol.ErrProtoBadRequest, "malformed command")
	}
	if base.ProtocolVersion != protocol.Version {
		return errorMsg(cmd.Seq, protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	if !lim.Allow() {
		return errorMsg(cmd.Seq, protocol.ErrRateLimit, "too many commands")
	}

	switch base.Type {
	case protocol.TypeEndTurn:
		if err := s.game.EndTurn(playerID); err != nil {
			return errorMsg(cmd.Seq, errorCode(err), err.Error())
		}
		return protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, Seq: cmd.Seq, Op: protocol.TypeEndTurn}
	case protocol.TypeStatus:
		st, err := s.game.HudStatus(playerID)
		if err != nil {
			return errorMsg(cmd.Seq, errorCode(err), err.Error())
		}
		b, err := json.Marshal(st)
		if err != nil {
			return errorMsg(cmd.Seq, protocol.ErrInternal, "encode status")
		}
		return protocol.HudMsg{
			Type:            protocol.TypeHud,
			ProtocolVersion: protocol.Version,
			Seq:             cmd.Seq,
			Status:          b,
		}
	case protocol.TypeAct:
		var act protocol.ActMsg
		if err := json.Unmarshal(msg, &act); err != nil {
			return errorMsg(cmd.Seq, protocol.ErrProtoBadRequest, "malformed ACT")
		}
		if err := s.act(playerID, act); err != nil {
			return errorMsg(act.Seq, errorCode(err), err.Error())
		}
		return protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, Seq: act.Seq, Op: act.Op}
	default:
		return errorMsg(cmd.Seq, protocol.ErrProtoBadRequest, "unknown message type "+base.Type)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (playerID string, maxQ int) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", 0
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return "", 0
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "bad HELLO")
		return "", 0
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return "", 0
	}
	hello.PlayerID = strings.TrimSpace(hello.PlayerID)

	if hello.Role != "" {
		role, err := model.ParseRole(hello.Role)
		if err != nil {
			_ = writeJSON(conn, errorMsg(0, protocol.ErrBadRequest, err.Error()))
			closeWith(conn, websocket.ClosePolicyViolation, "bad role")
			return "", 0
		}
		name := hello.Name
		if name == "" {
			name = hello.PlayerID
		}
		// Past registration the player may only reconnect.
		if err := s.game.AddPlayer(hello.PlayerID, name, role); err != nil && !engine.IsUnsupported(err) {
			_ = writeJSON(conn, errorMsg(0, errorCode(err), err.Error()))
			closeWith(conn, websocket.ClosePolicyViolation, "registration refused")
			return "", 0
		}
	}

	st, err := s.game.HudStatus(hello.PlayerID)
	if err != nil {
		_ = writeJSON(conn, errorMsg(0, protocol.ErrUnknownPlayer, "unknown player "+hello.PlayerID))
		closeWith(conn, websocket.ClosePolicyViolation, "unknown player")
		return "", 0
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        hello.PlayerID,
		GameID:          st.Game.ID,
		Phase:           st.Game.Phase,
		Round:           st.Game.Round,
		TotalRounds:     st.Game.TotalRounds,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", 0
	}

	maxQ = hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 64
	}
	if maxQ > 1024 {
		maxQ = 1024
	}
	return hello.PlayerID, maxQ
}

// visibleTo hides other players' rejections.
func visibleTo(ev events.Event, playerID string) bool {
	if ev.Type == events.OperationRejected {
		return ev.PlayerID == playerID
	}
	return true
}

func encodeEvent(ev events.Event) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Event:           raw,
	})
}

// errorCode maps an engine error onto the wire.
func errorCode(err error) string {
	var bad errBadAct
	switch {
	case errors.As(err, &bad):
		return protocol.ErrProtoBadRequest
	case engine.IsUnsupported(err):
		return protocol.ErrWrongPhase
	case model.IsDomain(err):
		return model.Code(err)
	case model.IsContract(err):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

func errorMsg(seq int, code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Seq:             seq,
		Code:            code,
		Message:         message,
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	}
	return nil
}

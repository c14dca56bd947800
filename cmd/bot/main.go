package main

import (
	"encoding/json"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"waterwise.ai/internal/protocol"
	"waterwise.ai/internal/sim/events"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		id      = flag.String("id", "bot", "player id")
		role    = flag.String("role", "Farmer", "Developer|Farmer|Manufacturer|WaterMaster")
		parcels = flag.String("parcels", "riverside,hillside", "comma separated buy points the bot may bid on")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}).
		With().Timestamp().Str("player_id", *id).Logger()

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("dial")
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerID:        *id,
		Name:            *id,
		Role:            *role,
		MaxQueue:        64,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatal().Err(err).Msg("send HELLO")
	}

	b := &bot{
		conn:    conn,
		log:     logger,
		parcels: strings.Split(*parcels, ","),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		b.handle(msg)
	}
}

type bot struct {
	conn    *websocket.Conn
	log     zerolog.Logger
	parcels []string
	rng     *rand.Rand
	seq     int
}

func (b *bot) handle(msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if json.Unmarshal(msg, &w) == nil {
			b.log.Info().Str("game_id", w.GameID).Str("phase", w.Phase).Msg("WELCOME")
		}
	case protocol.TypeError:
		var e protocol.ErrorMsg
		if json.Unmarshal(msg, &e) == nil {
			b.log.Warn().Int("seq", e.Seq).Str("code", e.Code).Msg(e.Message)
		}
	case protocol.TypeEvent:
		var em protocol.EventMsg
		if json.Unmarshal(msg, &em) != nil {
			return
		}
		var ev events.Event
		if json.Unmarshal(em.Event, &ev) != nil || ev.Type != events.PhaseStarted {
			return
		}
		var p events.PhasePayload
		if ev.Decode(&p) != nil {
			return
		}
		b.onPhase(p)
	}
}

// onPhase bids on a random buy point at the start of each Build phase and
// then ends the turn, so a table of bots always moves forward.
func (b *bot) onPhase(p events.PhasePayload) {
	b.log.Info().Str("phase", p.Phase).Int("round", p.Round).Msg("phase started")
	switch p.Phase {
	case "Build":
		if len(b.parcels) > 0 && b.rng.Intn(2) == 0 {
			b.send(protocol.ActMsg{
				Type:     protocol.TypeAct,
				Op:       protocol.OpBuyLandRights,
				ParcelID: strings.TrimSpace(b.parcels[b.rng.Intn(len(b.parcels))]),
			})
		}
		b.send(protocol.CommandMsg{Type: protocol.TypeEndTurn})
	case "Water":
		b.send(protocol.CommandMsg{Type: protocol.TypeEndTurn})
	}
}

func (b *bot) send(msg any) {
	b.seq++
	switch m := msg.(type) {
	case protocol.ActMsg:
		m.ProtocolVersion, m.Seq = protocol.Version, b.seq
		msg = m
	case protocol.CommandMsg:
		m.ProtocolVersion, m.Seq = protocol.Version, b.seq
		msg = m
	}
	if err := b.conn.WriteJSON(msg); err != nil {
		b.log.Error().Err(err).Msg("send")
	}
}

// Package engine runs the phase state machine of a game: it gates which
// operations are legal, sequences the rule strategies and publishes a
// notification for every change.
package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"waterwise.ai/internal/protocol"
	"waterwise.ai/internal/sim/clock"
	"waterwise.ai/internal/sim/events"
	"waterwise.ai/internal/sim/lifecycle"
	"waterwise.ai/internal/sim/model"
	"waterwise.ai/internal/sim/rules"
	"waterwise.ai/internal/sim/tuning"
)

type Options struct {
	Logger     zerolog.Logger
	Bus        *events.Bus
	Dispatcher Dispatcher
	Rounds     RoundManager
	Timer      StageTimer
	Persister  Persister
	Recorder   Recorder

	// Rules, when set, adjusts the strategies built from the rules
	// configuration at each game start.
	Rules func(rules.Set) rules.Set
	// NewID generates game and asset ids.
	NewID func() string
}

type Engine struct {
	log        zerolog.Logger
	bus        *events.Bus
	game       *model.Game
	dispatcher Dispatcher
	rounds     RoundManager
	timer      StageTimer
	newID      func() string
	adjust     func(rules.Set) rules.Set

	// Guarded by the game transaction lock.
	state     state
	cs        *model.ChangeSet
	pending   []func()
	cfg       tuning.Game
	rules     rules.Set
	templates map[model.AssetKind]map[string]*model.Template
}

func New(opts Options) (*Engine, error) {
	e := &Engine{
		log:        opts.Logger.With().Str("component", "engine").Logger(),
		bus:        opts.Bus,
		dispatcher: opts.Dispatcher,
		rounds:     opts.Rounds,
		timer:      opts.Timer,
		newID:      opts.NewID,
		adjust:     opts.Rules,
		cfg:        tuning.Defaults(),
		rules:      rules.Default(),
	}
	if e.bus == nil {
		e.bus = events.NewBus()
	}
	if e.dispatcher == nil {
		e.dispatcher = StaticDispatcher{}
	}
	if e.rounds == nil {
		e.rounds = clock.NewRounds()
	}
	if e.timer == nil {
		e.timer = clock.NewStageTimer()
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	e.templates = e.cfg.Templates()
	e.game = model.NewGame(e.newID(), e.cfg.EconomyName)
	e.state = newRegistrationState(e)
	e.game.Phase = e.state.phase().String()

	if opts.Persister != nil {
		if err := opts.Persister.Initialize(e.bus); err != nil {
			return nil, err
		}
	}
	if opts.Recorder != nil {
		if err := opts.Recorder.Initialize(e.bus); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) Bus() *events.Bus { return e.bus }

// Game exposes the model for read access. Callers that need a consistent view
// across entities take the game lock.
func (e *Engine) Game() *model.Game { return e.game }

func (e *Engine) Phase() Phase {
	e.game.Lock()
	defer e.game.Unlock()
	return e.state.phase()
}

// TurnEnded reports whether the player has ended their turn in the current
// interactive phase.
func (e *Engine) TurnEnded(playerID string) bool {
	e.game.Lock()
	defer e.game.Unlock()
	return e.state.turnEnded(playerID)
}

func (e *Engine) Close() { e.timer.Stop() }

// do runs one operation inside the transaction lock. Notifications are
// published before the lock is released, so their order is the commit order;
// dispatcher calls run after.
func (e *Engine) do(op, actorID string, fn func(st state) error) error {
	e.game.Lock()
	e.cs = model.NewChangeSet()
	err := fn(e.state)
	e.flush()
	if err != nil {
		e.reject(op, actorID, err)
	}
	calls := e.pending
	e.pending = nil
	e.cs = nil
	e.game.Unlock()

	for _, call := range calls {
		call()
	}
	return err
}

func (e *Engine) reject(op, actorID string, err error) {
	if model.IsDomain(err) {
		code := model.Code(err)
		e.log.Info().Str("op", op).Str("player", actorID).Str("code", code).Msg(err.Error())
		e.emit(events.OperationRejected, actorID, actorID, events.RejectionPayload{
			Operation: op,
			PlayerID:  actorID,
			Code:      code,
			Message:   err.Error(),
		})
		return
	}
	e.log.Error().Err(err).Str("op", op).Str("player", actorID).Str("phase", e.state.phase().String()).Msg("operation failed")
}

func (e *Engine) emit(t events.Type, entityID, playerID string, payload any) {
	ev, err := events.Encode(t, entityID, payload)
	if err != nil {
		e.log.Error().Err(err).Str("type", string(t)).Str("entity", entityID).Msg("event published without payload")
	}
	ev.GameID = e.game.ID
	ev.Round = e.game.Round
	ev.Phase = e.game.Phase
	ev.PlayerID = playerID
	e.bus.Publish(ev)
}

// flush turns the pending change set into notifications and queues the
// matching dispatcher calls.
func (e *Engine) flush() {
	cs := e.cs
	if cs == nil || cs.Empty() {
		return
	}
	e.cs = model.NewChangeSet()

	for _, tx := range cs.Transactions {
		actor := tx.FromID
		if actor == "" || actor == model.EconomyID {
			actor = tx.ToID
		}
		e.emit(events.Transaction, tx.AssetID, actor, tx)
	}
	for _, p := range cs.Players() {
		e.emit(events.PlayerChanged, p.ID, p.ID, model.ViewPlayer(p))
	}
	for _, bp := range cs.Parcels() {
		e.emit(events.ParcelChanged, bp.ID, "", model.ViewParcel(bp))
	}
	for _, f := range cs.RemovedFields() {
		v := model.ViewField(f, true)
		e.emit(events.FieldChanged, f.ID, f.OwnerID, v)
		e.pending = append(e.pending, func() { e.dispatcher.FieldRemoved(v) })
	}
	for _, f := range cs.AddedFields() {
		v := model.ViewField(f, false)
		e.pending = append(e.pending, func() { e.dispatcher.FieldCreated(v) })
	}
	for _, f := range cs.Fields() {
		e.emit(events.FieldChanged, f.ID, f.OwnerID, model.ViewField(f, false))
	}
	for _, a := range cs.AddedAssets() {
		v := model.ViewAsset(a)
		e.pending = append(e.pending, func() { e.dispatcher.AssetCreated(v) })
	}
	for _, a := range cs.Assets() {
		e.emit(events.AssetChanged, a.ID, a.OwnerID, model.ViewAsset(a))
	}
	for _, a := range cs.RemovedAssets() {
		v := model.ViewAsset(a)
		e.emit(events.AssetRemoved, a.ID, a.OwnerID, v)
		e.pending = append(e.pending, func() { e.dispatcher.AssetRemoved(v) })
	}
}

// endState moves to next: the old phase is announced as ended, next becomes
// current and runs its entry work, then is announced as started and runs its
// post-entry work.
func (e *Engine) endState(next state) error {
	prev := e.state
	e.flush()
	e.emit(events.PhaseEnded, "", "", events.PhasePayload{
		Phase: prev.phase().String(),
		Round: e.game.Round,
		Date:  e.game.Date,
	})

	e.state = next
	e.game.Phase = next.phase().String()
	e.log.Info().
		Str("from", prev.phase().String()).
		Str("to", next.phase().String()).
		Int("round", e.game.Round).
		Msg("phase transition")

	if err := next.enter(); err != nil {
		return err
	}
	e.flush()
	started := events.PhasePayload{
		Phase:    next.phase().String(),
		Previous: prev.phase().String(),
		Round:    e.game.Round,
		Date:     e.game.Date,
	}
	if ended, ok := next.(*endedState); ok {
		started.Standings = ended.standings
	}
	e.emit(events.PhaseStarted, "", "", started)
	return next.postEnter()
}

func (e *Engine) armStage(st state, d time.Duration) {
	if d <= 0 {
		e.timer.Stop()
		return
	}
	e.timer.Arm(d, func() { e.stageExpired(st) })
}

// stageExpired ends st if it is still the current phase.
func (e *Engine) stageExpired(st state) {
	_ = e.do("StageTimer", "", func(cur state) error {
		if cur != st {
			return nil
		}
		e.log.Info().Str("phase", st.phase().String()).Msg("stage deadline reached")
		return cur.endStage()
	})
}

func (e *Engine) activity(kind model.AssetKind) float64 {
	if v, ok := e.game.Activity[kind]; ok {
		return v
	}
	return 1
}

func (e *Engine) template(kind model.AssetKind, zone string) (*model.Template, error) {
	zones := e.templates[kind]
	if t, ok := zones[zone]; ok {
		return t, nil
	}
	if t, ok := zones[tuning.DefaultZone]; ok {
		return t, nil
	}
	return nil, model.Domainf(protocol.ErrBadRequest, "no %s can be built in zone %q", kind, zone)
}

func (e *Engine) revalueIfBuilt(a *model.Asset) {
	if a.IsBuilt() {
		lifecycle.Revalue(a, e.rules.Values, e.activity(a.Kind))
	}
}

func (e *Engine) player(id string) (*model.Player, error) {
	p := e.game.Player(id)
	if p == nil {
		return nil, model.Contractf("unknown player %q", id)
	}
	return p, nil
}

func (e *Engine) parcel(id string) (*model.Parcel, error) {
	bp := e.game.Parcel(id)
	if bp == nil {
		return nil, model.Contractf("unknown parcel %q", id)
	}
	return bp, nil
}

func (e *Engine) asset(id string) (*model.Asset, error) {
	a := e.game.Asset(id)
	if a == nil {
		return nil, model.Contractf("unknown asset %q", id)
	}
	return a, nil
}

func validPlayerID(id string) bool {
	return strings.TrimSpace(id) != "" && id != model.EconomyID
}

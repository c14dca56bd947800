package engine

import (
	"waterwise.ai/internal/protocol"
	"waterwise.ai/internal/sim/model"
	"waterwise.ai/internal/sim/rules"
	"waterwise.ai/internal/sim/tuning"
)

type registrationState struct{ baseState }

func newRegistrationState(e *Engine) *registrationState {
	return &registrationState{baseState{e: e, ph: PhaseRegistration}}
}

func playable(r model.Role) bool {
	for _, allowed := range model.Roles() {
		if r == allowed {
			return true
		}
	}
	return false
}

// addPlayer registers a player or updates an existing one in place.
func (s *registrationState) addPlayer(id, name string, role model.Role) error {
	if !validPlayerID(id) {
		return model.Domainf(protocol.ErrBadRequest, "player id %q is not available", id)
	}
	if !playable(role) {
		return model.Domainf(protocol.ErrBadRequest, "%s is not a playable role", role)
	}
	g := s.e.game
	p := g.Player(id)
	if p == nil {
		p = model.NewPlayer(id, name, role)
		g.PutPlayer(p)
	} else {
		p.Name = name
		p.Role = role
	}
	s.e.cs.TouchPlayer(p)
	return nil
}

func (s *registrationState) registerBuyPoint(bp *model.Parcel) error {
	if !s.e.game.AddParcel(bp) {
		s.e.log.Warn().Str("parcel", bp.ID).Msg("buy point already registered, ignoring")
		return nil
	}
	s.e.cs.TouchParcel(bp)
	for _, f := range bp.Fields() {
		s.e.cs.AddField(f)
	}
	return nil
}

// startGame loads the game and rules configuration from the dispatcher, gives
// every player their starting money and moves on.
func (s *registrationState) startGame() error {
	e := s.e
	players := e.game.Players()
	if len(players) == 0 {
		return model.Domainf(protocol.ErrBadRequest, "no players registered")
	}
	gameRaw, err := e.dispatcher.Configuration(ConfigGame)
	if err != nil {
		return model.Domainf(protocol.ErrBadRequest, "%v", err)
	}
	cfg, err := tuning.Parse(gameRaw)
	if err != nil {
		return model.Domainf(protocol.ErrBadRequest, "%v", err)
	}
	rulesRaw, err := e.dispatcher.Configuration(ConfigRules)
	if err != nil {
		return model.Domainf(protocol.ErrBadRequest, "%v", err)
	}
	rc, err := rules.Parse(rulesRaw)
	if err != nil {
		return model.Domainf(protocol.ErrBadRequest, "%v", err)
	}
	set, err := rules.Build(rc)
	if err != nil {
		return model.Domainf(protocol.ErrBadRequest, "rules.yaml: %v", err)
	}
	if e.adjust != nil {
		set = e.adjust(set)
	}
	start, _ := cfg.Start()

	e.cfg = cfg
	e.rules = set
	e.templates = cfg.Templates()

	g := e.game
	g.ID = e.newID()
	g.TotalRounds = cfg.Rounds
	g.Economy.Name = cfg.EconomyName
	g.Economy.Reset(0, 0)
	e.rounds.Start(cfg.Rounds, start, cfg.DateStepMonths)
	g.Round = e.rounds.Round()
	g.Date = start
	for _, p := range players {
		spec := cfg.Role(p.Role)
		p.Reset(spec.StartMoney, spec.CostOfLiving)
		e.cs.TouchPlayer(p)
	}
	e.log.Info().Str("game", g.ID).Int("players", len(players)).Int("rounds", cfg.Rounds).Msg("game starting")
	return e.endState(newStartingState(e))
}

type startingState struct{ baseState }

func newStartingState(e *Engine) *startingState {
	return &startingState{baseState{e: e, ph: PhaseGameStarting}}
}

func (s *startingState) postEnter() error {
	if !s.finish() {
		return nil
	}
	g := s.e.game
	s.e.rules.Startup.Apply(g, g.Players(), g.Parcels(), s.e.cs)
	return s.e.endState(newBuildState(s.e))
}

package engine

import (
	"waterwise.ai/internal/sim/events"
	"waterwise.ai/internal/sim/model"
)

// resettingState clears the game back to registration. It refuses every
// operation; a reset requested meanwhile is a no-op.
type resettingState struct{ baseState }

func newResettingState(e *Engine) *resettingState {
	return &resettingState{baseState{e: e, ph: PhaseGameResetting}}
}

func (s *resettingState) enter() error {
	e := s.e
	g := e.game
	e.timer.Stop()
	if err := g.ResetBoard(e.cs); err != nil {
		return err
	}
	e.rounds.Reset()
	g.Round = 0
	g.Rainfall = 0
	g.Activity = map[model.AssetKind]float64{}
	g.WaterForecast = model.Range{}
	g.EconomicForecast = map[model.AssetKind]model.Range{}
	g.Economy.Reset(0, 0)
	for _, p := range g.Players() {
		spec := e.cfg.Role(p.Role)
		p.Reset(spec.StartMoney, spec.CostOfLiving)
		e.cs.TouchPlayer(p)
	}
	e.emit(events.GameReset, "", "", events.ResetPayload{PreviousGameID: g.ID})
	return nil
}

func (s *resettingState) postEnter() error {
	if !s.finish() {
		return nil
	}
	return s.e.endState(newRegistrationState(s.e))
}

func (s *resettingState) resetGame() error { return nil }

func (s *resettingState) giveMoney(*model.Player, int) error { return s.unsupported("GiveMoney") }
func (s *resettingState) giveWater(*model.Player, int) error { return s.unsupported("GiveWater") }
func (s *resettingState) giveWaterRights(*model.Player, int) error {
	return s.unsupported("GiveWaterRights")
}
func (s *resettingState) changeBuyPointName(*model.Parcel, string) error {
	return s.unsupported("ChangeBuyPointName")
}
func (s *resettingState) refreshStatus() error { return s.unsupported("status refresh") }

package engine

import (
	"waterwise.ai/internal/sim/events"
	"waterwise.ai/internal/sim/lifecycle"
)

type revenueState struct{ baseState }

func newRevenueState(e *Engine) *revenueState {
	return &revenueState{baseState{e: e, ph: PhaseRevenue}}
}

// enter settles the turn for every player, records history, ages assets and
// clears per-turn state.
func (s *revenueState) enter() error {
	e := s.e
	g := e.game
	cs := e.cs
	players := g.Players()

	for _, p := range players {
		lifecycle.Settle(g, p, cs)
	}
	for _, p := range players {
		rec := p.RecordHistory(g.Round)
		e.emit(events.HistoryRecorded, p.ID, p.ID, events.HistoryPayload{
			PlayerID: p.ID,
			Role:     p.Role.String(),
			Round:    g.Round,
			Ledger:   *rec,
			Profit:   rec.Profit(p.Role),
			Money:    p.Money,
		})
	}
	dead, err := lifecycle.Age(g, cs)
	if err != nil {
		return err
	}
	if len(dead) > 0 {
		e.log.Debug().Int("round", g.Round).Int("expired", len(dead)).Msg("assets expired")
	}
	lifecycle.EndOfTurnReset(g, cs)
	for _, p := range players {
		p.ResetForNextTurn()
		cs.TouchPlayer(p)
	}
	return nil
}

// postEnter closes the round and either starts the next one or ends the game.
func (s *revenueState) postEnter() error {
	if !s.finish() {
		return nil
	}
	e := s.e
	g := e.game
	closed := events.RoundPayload{Round: g.Round, Date: g.Date, Rainfall: g.Rainfall, Total: g.TotalRounds}
	more := e.rounds.EndRound()
	if more {
		g.Date = e.rounds.AdvanceDate()
		g.Round = e.rounds.Round()
		g.Rainfall = 0
		closed.Next = g.Round
	}
	e.emit(events.RoundAdvanced, "", "", closed)
	if !more {
		return e.endState(newEndedState(e))
	}
	return e.endState(newBuildState(e))
}

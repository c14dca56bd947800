package engine

import (
	"sort"

	"waterwise.ai/internal/sim/model"
)

type endedState struct {
	baseState
	standings []model.PlayerView
}

func newEndedState(e *Engine) *endedState {
	return &endedState{baseState: baseState{e: e, ph: PhaseGameEnded}}
}

// enter ranks players by money.
func (s *endedState) enter() error {
	s.e.timer.Stop()
	players := s.e.game.Players()
	sort.SliceStable(players, func(i, j int) bool { return players[i].Money > players[j].Money })
	s.standings = make([]model.PlayerView, 0, len(players))
	for _, p := range players {
		s.standings = append(s.standings, model.ViewPlayer(p))
	}
	s.e.log.Info().Str("game", s.e.game.ID).Int("round", s.e.game.Round).Msg("game ended")
	return nil
}

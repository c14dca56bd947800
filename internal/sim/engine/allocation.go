package engine

import "waterwise.ai/internal/sim/lifecycle"

type allocationState struct{ baseState }

func newAllocationState(e *Engine) *allocationState {
	return &allocationState{baseState{e: e, ph: PhaseAllocation}}
}

// enter applies the rule strategies in order: economic activity, asset
// values, rainfall, then the split of rainfall between players.
func (s *allocationState) enter() error {
	e := s.e
	g := e.game
	cs := e.cs

	assets := g.Assets()
	g.Activity = e.rules.Economy.Activity(g.Round, assets)
	for _, a := range assets {
		if a.IsSoldToEconomy {
			continue
		}
		lifecycle.Revalue(a, e.rules.Values, e.activity(a.Kind))
		cs.TouchAsset(a)
	}

	g.Rainfall = e.rules.Rainfall.Rainfall(g.Round, g.Date)
	players, parcels := g.Players(), g.Parcels()
	dist := e.rules.Distributor.Distribute(g.Rainfall, players, parcels)
	for _, p := range players {
		lifecycle.ReceiveWater(p, dist.Players[p.ID], cs)
	}
	for _, bp := range parcels {
		if n := dist.Parcels[bp.ID]; n != bp.WaterAvailable {
			bp.WaterAvailable = n
			cs.TouchParcel(bp)
		}
	}
	e.log.Debug().Int("round", g.Round).Int("rainfall", g.Rainfall).Msg("water allocated")
	return nil
}

func (s *allocationState) postEnter() error {
	if !s.finish() {
		return nil
	}
	return s.e.endState(newWaterState(s.e))
}

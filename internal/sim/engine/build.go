package engine

import (
	"waterwise.ai/internal/sim/events"
	"waterwise.ai/internal/sim/lifecycle"
	"waterwise.ai/internal/sim/model"
)

type buildState struct{ interactiveState }

func newBuildState(e *Engine) *buildState {
	s := &buildState{}
	s.e = e
	s.ph = PhaseBuild
	s.barrier = newTurnBarrier()
	s.next = func() state { return newAllocationState(e) }
	return s
}

// enter publishes the forecast for the coming allocation and arms the stage
// deadline.
func (s *buildState) enter() error {
	e := s.e
	g := e.game
	g.WaterForecast = e.rules.WaterForecast.Forecast(g.Round)
	g.EconomicForecast = e.rules.EconomicForecast.Forecast(g.Round)
	byName := make(map[string]model.Range, len(g.EconomicForecast))
	for k, r := range g.EconomicForecast {
		byName[k.String()] = r
	}
	e.emit(events.Forecast, "", "", events.ForecastPayload{Round: g.Round, Water: g.WaterForecast, Economy: byName})
	e.armStage(s, e.cfg.BuildStage())
	return nil
}

func (s *buildState) buildGameAsset(p *model.Player, bp *model.Parcel, f *model.Field, kind model.AssetKind, level int) error {
	e := s.e
	t, err := e.template(kind, bp.Zone)
	if err != nil {
		return err
	}
	a, err := lifecycle.Build(e.game, p, bp, f, t, level, e.newID(), e.cs)
	if err != nil {
		return err
	}
	e.revalueIfBuilt(a)
	return nil
}

func (s *buildState) continueBuildingGameAsset(p *model.Player, a *model.Asset) error {
	if err := lifecycle.ContinueBuild(s.e.game, p, a, s.e.cs); err != nil {
		return err
	}
	s.e.revalueIfBuilt(a)
	return nil
}

func (s *buildState) upgradeGameAsset(p *model.Player, a *model.Asset, level int) error {
	return lifecycle.Upgrade(s.e.game, p, a, level, s.e.rules.Values, s.e.activity(a.Kind), s.e.cs)
}

func (s *buildState) sellGameAssetToEconomy(p *model.Player, a *model.Asset) error {
	return lifecycle.SellToEconomy(s.e.game, p, a, s.e.cs)
}

func (s *buildState) removeGameAsset(p *model.Player, a *model.Asset) error {
	return lifecycle.Remove(s.e.game, p, a, s.e.cs)
}

func (s *buildState) buyLandRights(p *model.Player, bp *model.Parcel) error {
	return lifecycle.BuyLandRights(bp, p, s.e.cs)
}

func (s *buildState) sellRights(seller, buyer *model.Player, bp *model.Parcel, kind lifecycle.RightsKind, price int) error {
	return lifecycle.SellRights(s.e.game, bp, seller, buyer, kind, price, s.e.cs)
}

func (s *buildState) sellWaterRights(seller, buyer *model.Player, amount, price int) error {
	return lifecycle.SellWaterRights(buyer, seller, amount, price, s.e.cs)
}

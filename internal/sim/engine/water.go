package engine

import (
	"waterwise.ai/internal/sim/lifecycle"
	"waterwise.ai/internal/sim/model"
)

type waterState struct{ interactiveState }

func newWaterState(e *Engine) *waterState {
	s := &waterState{}
	s.e = e
	s.ph = PhaseWater
	s.barrier = newTurnBarrier()
	s.next = func() state { return newRevenueState(e) }
	return s
}

func (s *waterState) enter() error {
	s.e.armStage(s, s.e.cfg.WaterStage())
	return nil
}

func (s *waterState) useWater(p *model.Player, a *model.Asset, amount int) error {
	return lifecycle.UseWater(s.e.game, p, a, amount, s.e.rules.Allocator, s.e.cs)
}

func (s *waterState) undoUseWater(p *model.Player, a *model.Asset) error {
	return lifecycle.UndoUseWater(s.e.game, p, a, s.e.rules.Allocator, s.e.cs)
}

func (s *waterState) sellWater(seller, buyer *model.Player, amount, price int) error {
	return lifecycle.SellWater(seller, buyer, amount, price, s.e.cs)
}

func (s *waterState) sellWaterRights(seller, buyer *model.Player, amount, price int) error {
	return lifecycle.SellWaterRights(buyer, seller, amount, price, s.e.cs)
}

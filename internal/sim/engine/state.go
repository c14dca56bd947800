package engine

import (
	"errors"
	"fmt"
	"sync/atomic"

	"waterwise.ai/internal/sim/lifecycle"
	"waterwise.ai/internal/sim/model"
)

// ErrUnsupported is returned for an operation the current phase does not
// offer. It is a contract error.
var ErrUnsupported = fmt.Errorf("%w: unsupported in phase", model.ErrContract)

// ErrStalePhase is returned when a caller ends a phase that is no longer
// current.
var ErrStalePhase = fmt.Errorf("%w: phase already over", ErrUnsupported)

// IsUnsupported reports whether err came from a phase refusing an operation.
func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }

// state is one phase. All methods run under the game transaction lock.
type state interface {
	phase() Phase
	enter() error
	postEnter() error

	addPlayer(id, name string, role model.Role) error
	registerBuyPoint(bp *model.Parcel) error
	startGame() error

	buildGameAsset(p *model.Player, bp *model.Parcel, f *model.Field, kind model.AssetKind, level int) error
	continueBuildingGameAsset(p *model.Player, a *model.Asset) error
	upgradeGameAsset(p *model.Player, a *model.Asset, level int) error
	sellGameAssetToEconomy(p *model.Player, a *model.Asset) error
	removeGameAsset(p *model.Player, a *model.Asset) error

	buyLandRights(p *model.Player, bp *model.Parcel) error
	sellRights(seller, buyer *model.Player, bp *model.Parcel, kind lifecycle.RightsKind, price int) error
	sellWaterRights(seller, buyer *model.Player, amount, price int) error
	useWater(p *model.Player, a *model.Asset, amount int) error
	undoUseWater(p *model.Player, a *model.Asset) error
	sellWater(seller, buyer *model.Player, amount, price int) error

	endTurn(p *model.Player) error
	endStage() error
	endGame() error
	resetGame() error

	giveMoney(p *model.Player, amount int) error
	giveWater(p *model.Player, amount int) error
	giveWaterRights(p *model.Player, amount int) error
	changeBuyPointName(bp *model.Parcel, name string) error
	refreshStatus() error

	turnEnded(playerID string) bool
}

// baseState refuses every game operation. Administrative grants, renames,
// status refreshes and resets work in every phase; the resetting phase
// refuses those too.
type baseState struct {
	e     *Engine
	ph    Phase
	ended atomic.Bool
}

func (s *baseState) phase() Phase     { return s.ph }
func (s *baseState) enter() error     { return nil }
func (s *baseState) postEnter() error { return nil }

func (s *baseState) unsupported(op string) error {
	return fmt.Errorf("%w: %s during %s", ErrUnsupported, op, s.ph)
}

// finish claims the right to end this phase instance. Only the first caller
// wins.
func (s *baseState) finish() bool { return s.ended.CompareAndSwap(false, true) }

func (s *baseState) addPlayer(string, string, model.Role) error {
	return s.unsupported("AddPlayer")
}
func (s *baseState) registerBuyPoint(*model.Parcel) error { return s.unsupported("RegisterBuyPoint") }
func (s *baseState) startGame() error                     { return s.unsupported("StartGame") }

func (s *baseState) buildGameAsset(*model.Player, *model.Parcel, *model.Field, model.AssetKind, int) error {
	return s.unsupported("BuildGameAsset")
}
func (s *baseState) continueBuildingGameAsset(*model.Player, *model.Asset) error {
	return s.unsupported("ContinueBuildingGameAsset")
}
func (s *baseState) upgradeGameAsset(*model.Player, *model.Asset, int) error {
	return s.unsupported("UpgradeGameAsset")
}
func (s *baseState) sellGameAssetToEconomy(*model.Player, *model.Asset) error {
	return s.unsupported("SellGameAssetToEconomy")
}
func (s *baseState) removeGameAsset(*model.Player, *model.Asset) error {
	return s.unsupported("RemoveGameAsset")
}
func (s *baseState) buyLandRights(*model.Player, *model.Parcel) error {
	return s.unsupported("BuyLandRights")
}
func (s *baseState) sellRights(*model.Player, *model.Player, *model.Parcel, lifecycle.RightsKind, int) error {
	return s.unsupported("SellRights")
}
func (s *baseState) sellWaterRights(*model.Player, *model.Player, int, int) error {
	return s.unsupported("SellWaterRights")
}
func (s *baseState) useWater(*model.Player, *model.Asset, int) error {
	return s.unsupported("UseWater")
}
func (s *baseState) undoUseWater(*model.Player, *model.Asset) error {
	return s.unsupported("UndoUseWater")
}
func (s *baseState) sellWater(*model.Player, *model.Player, int, int) error {
	return s.unsupported("SellWater")
}
func (s *baseState) endTurn(*model.Player) error { return s.unsupported("EndTurn") }
func (s *baseState) endStage() error             { return s.unsupported("EndStage") }
func (s *baseState) endGame() error              { return s.unsupported("EndGame") }

func (s *baseState) resetGame() error {
	return s.e.endState(newResettingState(s.e))
}

func (s *baseState) giveMoney(p *model.Player, amount int) error {
	return lifecycle.GiveMoney(p, amount, s.e.cs)
}

func (s *baseState) giveWater(p *model.Player, amount int) error {
	return lifecycle.GiveWater(p, amount, s.e.cs)
}

func (s *baseState) giveWaterRights(p *model.Player, amount int) error {
	return lifecycle.GiveWaterRights(p, amount, s.e.cs)
}

func (s *baseState) changeBuyPointName(bp *model.Parcel, name string) error {
	bp.Name = name
	s.e.cs.TouchParcel(bp)
	return nil
}

func (s *baseState) refreshStatus() error { return nil }

func (s *baseState) turnEnded(string) bool { return false }

// interactiveState is the shared part of Build and Water: the end-of-turn
// barrier and the stage deadline.
type interactiveState struct {
	baseState
	barrier *turnBarrier
	next    func() state
}

func (s *interactiveState) endTurn(p *model.Player) error {
	if p == s.e.game.Economy {
		return model.Contractf("the economy does not take turns")
	}
	if s.barrier.signal(p.ID, s.e.game.PlayerCount()) {
		return s.endStage()
	}
	return nil
}

func (s *interactiveState) turnEnded(playerID string) bool { return s.barrier.has(playerID) }

func (s *interactiveState) endStage() error {
	if !s.finish() {
		return nil
	}
	s.e.timer.Stop()
	return s.e.endState(s.next())
}

func (s *interactiveState) endGame() error {
	if !s.finish() {
		return nil
	}
	s.e.timer.Stop()
	return s.e.endState(newEndedState(s.e))
}

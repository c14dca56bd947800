package engine

import (
	"fmt"

	"waterwise.ai/internal/sim/lifecycle"
	"waterwise.ai/internal/sim/model"
)

// Registration

func (e *Engine) AddPlayer(id, name string, role model.Role) error {
	return e.do("AddPlayer", id, func(st state) error { return st.addPlayer(id, name, role) })
}

// RegisterBuyPoint adds a parcel to the board. Registering the same id twice
// is logged and ignored.
func (e *Engine) RegisterBuyPoint(bp *model.Parcel) error {
	if bp == nil {
		return model.Contractf("nil parcel")
	}
	return e.do("RegisterBuyPoint", "", func(st state) error { return st.registerBuyPoint(bp) })
}

func (e *Engine) StartGame() error {
	return e.do("StartGame", "", func(st state) error { return st.startGame() })
}

// Build phase

func (e *Engine) BuildGameAsset(playerID, parcelID, fieldID string, kind model.AssetKind, level int) error {
	return e.do("BuildGameAsset", playerID, func(st state) error {
		p, err := e.player(playerID)
		if err != nil {
			return err
		}
		bp, err := e.parcel(parcelID)
		if err != nil {
			return err
		}
		f := bp.Field(fieldID)
		if f == nil {
			return model.Contractf("unknown field %q on parcel %s", fieldID, parcelID)
		}
		return st.buildGameAsset(p, bp, f, kind, level)
	})
}

func (e *Engine) ContinueBuildingGameAsset(playerID, assetID string) error {
	return e.withAsset("ContinueBuildingGameAsset", playerID, assetID, func(st state, p *model.Player, a *model.Asset) error {
		return st.continueBuildingGameAsset(p, a)
	})
}

func (e *Engine) UpgradeGameAsset(playerID, assetID string, level int) error {
	return e.withAsset("UpgradeGameAsset", playerID, assetID, func(st state, p *model.Player, a *model.Asset) error {
		return st.upgradeGameAsset(p, a, level)
	})
}

func (e *Engine) SellGameAssetToEconomy(playerID, assetID string) error {
	return e.withAsset("SellGameAssetToEconomy", playerID, assetID, func(st state, p *model.Player, a *model.Asset) error {
		return st.sellGameAssetToEconomy(p, a)
	})
}

func (e *Engine) RemoveGameAsset(playerID, assetID string) error {
	return e.withAsset("RemoveGameAsset", playerID, assetID, func(st state, p *model.Player, a *model.Asset) error {
		return st.removeGameAsset(p, a)
	})
}

func (e *Engine) BuyLandRights(playerID, parcelID string) error {
	return e.do("BuyLandRights", playerID, func(st state) error {
		p, err := e.player(playerID)
		if err != nil {
			return err
		}
		bp, err := e.parcel(parcelID)
		if err != nil {
			return err
		}
		return st.buyLandRights(p, bp)
	})
}

func (e *Engine) SellRights(sellerID, buyerID, parcelID string, kind lifecycle.RightsKind, price int) error {
	return e.do("SellRights", sellerID, func(st state) error {
		seller, buyer, err := e.pair(sellerID, buyerID)
		if err != nil {
			return err
		}
		bp, err := e.parcel(parcelID)
		if err != nil {
			return err
		}
		return st.sellRights(seller, buyer, bp, kind, price)
	})
}

// SellWaterRights moves entitlement between players. It is offered in both
// interactive phases.
func (e *Engine) SellWaterRights(sellerID, buyerID string, amount, price int) error {
	return e.do("SellWaterRights", sellerID, func(st state) error {
		seller, buyer, err := e.pair(sellerID, buyerID)
		if err != nil {
			return err
		}
		return st.sellWaterRights(seller, buyer, amount, price)
	})
}

// Water phase

func (e *Engine) UseWater(playerID, assetID string, amount int) error {
	return e.withAsset("UseWater", playerID, assetID, func(st state, p *model.Player, a *model.Asset) error {
		return st.useWater(p, a, amount)
	})
}

func (e *Engine) UndoUseWater(playerID, assetID string) error {
	return e.withAsset("UndoUseWater", playerID, assetID, func(st state, p *model.Player, a *model.Asset) error {
		return st.undoUseWater(p, a)
	})
}

func (e *Engine) SellWater(sellerID, buyerID string, amount, price int) error {
	return e.do("SellWater", sellerID, func(st state) error {
		seller, buyer, err := e.pair(sellerID, buyerID)
		if err != nil {
			return err
		}
		return st.sellWater(seller, buyer, amount, price)
	})
}

// Turn control

// EndTurn marks the player done for the current interactive phase. The last
// registered player to do so ends the stage.
func (e *Engine) EndTurn(playerID string) error {
	return e.do("EndTurn", playerID, func(st state) error {
		p, err := e.player(playerID)
		if err != nil {
			return err
		}
		return st.endTurn(p)
	})
}

// EndStage ends the current interactive phase. Calling it again for the same
// phase does nothing.
func (e *Engine) EndStage() error {
	return e.do("EndStage", "", func(st state) error { return st.endStage() })
}

// EndStageIn ends the current phase only while it is still want, so a
// repeated request cannot end the phase that follows.
func (e *Engine) EndStageIn(want Phase) error {
	return e.do("EndStage", "", func(st state) error {
		if cur := st.phase(); cur != want {
			return fmt.Errorf("%w: expected %s, now %s", ErrStalePhase, want, cur)
		}
		return st.endStage()
	})
}

func (e *Engine) EndGame() error {
	return e.do("EndGame", "", func(st state) error { return st.endGame() })
}

func (e *Engine) ResetGame() error {
	return e.do("ResetGame", "", func(st state) error { return st.resetGame() })
}

// Administration

func (e *Engine) GiveMoney(playerID string, amount int) error {
	return e.withPlayer("GiveMoney", playerID, func(st state, p *model.Player) error {
		return st.giveMoney(p, amount)
	})
}

func (e *Engine) GiveWater(playerID string, amount int) error {
	return e.withPlayer("GiveWater", playerID, func(st state, p *model.Player) error {
		return st.giveWater(p, amount)
	})
}

func (e *Engine) GiveWaterRights(playerID string, amount int) error {
	return e.withPlayer("GiveWaterRights", playerID, func(st state, p *model.Player) error {
		return st.giveWaterRights(p, amount)
	})
}

func (e *Engine) ChangeBuyPointName(parcelID, name string) error {
	return e.do("ChangeBuyPointName", "", func(st state) error {
		bp, err := e.parcel(parcelID)
		if err != nil {
			return err
		}
		return st.changeBuyPointName(bp, name)
	})
}

func (e *Engine) withPlayer(op, playerID string, fn func(st state, p *model.Player) error) error {
	return e.do(op, playerID, func(st state) error {
		p, err := e.player(playerID)
		if err != nil {
			return err
		}
		return fn(st, p)
	})
}

func (e *Engine) withAsset(op, playerID, assetID string, fn func(st state, p *model.Player, a *model.Asset) error) error {
	return e.do(op, playerID, func(st state) error {
		p, err := e.player(playerID)
		if err != nil {
			return err
		}
		a, err := e.asset(assetID)
		if err != nil {
			return err
		}
		return fn(st, p, a)
	})
}

func (e *Engine) pair(sellerID, buyerID string) (*model.Player, *model.Player, error) {
	seller, err := e.player(sellerID)
	if err != nil {
		return nil, nil, err
	}
	buyer, err := e.player(buyerID)
	if err != nil {
		return nil, nil, err
	}
	return seller, buyer, nil
}

package lifecycle

import (
	"waterwise.ai/internal/protocol"
	"waterwise.ai/internal/sim/model"
	"waterwise.ai/internal/sim/rules"
)

func checkWaterTarget(g *model.Game, p *model.Player, a *model.Asset) error {
	bp, err := parcelOf(g, a)
	if err != nil {
		return err
	}
	if err := requireDevelopmentRights(p, bp); err != nil {
		return err
	}
	if !a.CanBeAllocatedWater() {
		return model.Domainf(protocol.ErrInvalidTarget, "%s does not take water", a.Kind)
	}
	if !a.IsBuilt() {
		return model.Domainf(protocol.ErrInvalidTarget, "%s is not built yet", a.Name)
	}
	return nil
}

// UseWater sets the water p gives asset a this turn to amount.
func UseWater(g *model.Game, p *model.Player, a *model.Asset, amount int, alloc rules.WaterAllocator, cs *model.ChangeSet) error {
	if err := checkWaterTarget(g, p, a); err != nil {
		return err
	}
	if err := alloc.Allocate(p, a, amount); err != nil {
		return err
	}
	cs.TouchAsset(a)
	cs.TouchPlayer(p)
	return nil
}

// UndoUseWater returns the water given to a to p.
func UndoUseWater(g *model.Game, p *model.Player, a *model.Asset, alloc rules.WaterAllocator, cs *model.ChangeSet) error {
	if err := checkWaterTarget(g, p, a); err != nil {
		return err
	}
	alloc.Undo(p, a)
	cs.TouchAsset(a)
	cs.TouchPlayer(p)
	return nil
}

// SellWater moves water in hand from seller to buyer for price.
func SellWater(seller, buyer *model.Player, amount, price int, cs *model.ChangeSet) error {
	if err := checkTrade(buyer, seller, amount, price); err != nil {
		return err
	}
	if seller.Water < amount {
		return model.Domainf(protocol.ErrNoResource, "%s has only %d water", seller.Name, seller.Water)
	}
	if !buyer.CanAfford(price) {
		return model.InsufficientFunds(buyer, price)
	}
	seller.Water -= amount
	buyer.Water += amount
	seller.Money += price
	buyer.Money -= price
	seller.Ledger.WaterRevenue += price
	buyer.Ledger.WaterCost += price

	cs.TouchPlayer(buyer)
	cs.TouchPlayer(seller)
	cs.AddTransaction(model.Transaction{Kind: model.TxSellWater, FromID: buyer.ID, ToID: seller.ID, Money: price, Water: amount})
	return nil
}

// ReceiveWater credits a player's share of the turn's rainfall.
func ReceiveWater(p *model.Player, amount int, cs *model.ChangeSet) {
	p.Water += amount
	p.Ledger.WaterReceived += amount
	cs.TouchPlayer(p)
}

package lifecycle

import (
	"waterwise.ai/internal/protocol"
	"waterwise.ai/internal/sim/model"
)

// GiveMoney, GiveWater and GiveWaterRights are operator grants. A negative
// amount takes away, but never below zero.

func GiveMoney(p *model.Player, amount int, cs *model.ChangeSet) error {
	if p.Money+amount < 0 {
		return model.Domainf(protocol.ErrBadRequest, "%s has only %d money", p.Name, p.Money)
	}
	p.Money += amount
	cs.TouchPlayer(p)
	cs.AddTransaction(model.Transaction{Kind: model.TxGiveMoney, ToID: p.ID, Money: amount})
	return nil
}

func GiveWater(p *model.Player, amount int, cs *model.ChangeSet) error {
	if p.Water+amount < 0 {
		return model.Domainf(protocol.ErrBadRequest, "%s has only %d water", p.Name, p.Water)
	}
	p.Water += amount
	cs.TouchPlayer(p)
	cs.AddTransaction(model.Transaction{Kind: model.TxGiveWater, ToID: p.ID, Water: amount})
	return nil
}

func GiveWaterRights(p *model.Player, amount int, cs *model.ChangeSet) error {
	if p.WaterEntitlement+amount < 0 {
		return model.Domainf(protocol.ErrBadRequest, "%s has only %d water rights", p.Name, p.WaterEntitlement)
	}
	p.WaterEntitlement += amount
	cs.TouchPlayer(p)
	cs.AddTransaction(model.Transaction{Kind: model.TxGiveWaterRights, ToID: p.ID, Rights: amount})
	return nil
}

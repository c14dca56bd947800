package lifecycle

import (
	"fmt"

	"waterwise.ai/internal/protocol"
	"waterwise.ai/internal/sim/model"
)

// RightsKind selects what SellRights transfers.
type RightsKind int

const (
	DevelopmentRights RightsKind = iota + 1
	WaterRights
	CombinedRights
)

func (k RightsKind) String() string {
	switch k {
	case DevelopmentRights:
		return "development"
	case WaterRights:
		return "water"
	case CombinedRights:
		return "combined"
	default:
		return fmt.Sprintf("RightsKind(%d)", int(k))
	}
}

func ParseRightsKind(s string) (RightsKind, error) {
	for _, k := range []RightsKind{DevelopmentRights, WaterRights, CombinedRights} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown rights kind %q", s)
}

// BuyLandRights buys both rights of an unowned parcel from the land office.
func BuyLandRights(bp *model.Parcel, buyer *model.Player, cs *model.ChangeSet) error {
	if bp.DevelopmentRightsOwner() != nil || bp.WaterRightsOwner() != nil {
		return model.Domainf(protocol.ErrConflict, "%s is already owned", bp.Name)
	}
	price := bp.DevelopmentRightsPrice + bp.WaterRightsPrice
	if !buyer.CanAfford(price) {
		return model.InsufficientFunds(buyer, price)
	}
	buyer.Money -= price
	buyer.Ledger.LandCost += bp.DevelopmentRightsPrice
	buyer.Ledger.WaterRightsCost += bp.WaterRightsPrice
	buyer.WaterEntitlement += bp.InitialWaterRights
	model.TransferDevelopmentRights(bp, buyer)
	model.TransferWaterRights(bp, buyer)
	respecialize(bp, cs)

	cs.TouchPlayer(buyer)
	cs.AddTransaction(model.Transaction{
		Kind:     model.TxBuyLandRights,
		FromID:   buyer.ID,
		Money:    price,
		Rights:   bp.InitialWaterRights,
		ParcelID: bp.ID,
	})
	return nil
}

// SellRights sells a parcel's rights from their current holder, seller, to
// buyer. Development rights change hands with the parcel cleared of assets;
// water rights carry the parcel's entitlement, as far as the seller still has
// it.
func SellRights(g *model.Game, bp *model.Parcel, seller, buyer *model.Player, kind RightsKind, price int, cs *model.ChangeSet) error {
	if price < 0 {
		return model.Domainf(protocol.ErrBadRequest, "price must not be negative")
	}
	if seller == buyer {
		return model.Domainf(protocol.ErrConflict, "%s already holds these rights", buyer.Name)
	}
	dev, water := bp.DevelopmentRightsOwner(), bp.WaterRightsOwner()
	switch kind {
	case DevelopmentRights:
		if dev != seller {
			return model.Domainf(protocol.ErrNoPermission, "%s does not hold the development rights of %s", seller.Name, bp.Name)
		}
	case WaterRights:
		if water != seller {
			return model.Domainf(protocol.ErrNoPermission, "%s does not hold the water rights of %s", seller.Name, bp.Name)
		}
	case CombinedRights:
		if dev != seller || water != seller {
			return model.Domainf(protocol.ErrNoPermission, "%s does not hold both rights of %s", seller.Name, bp.Name)
		}
	default:
		return model.Contractf("unknown rights kind %d", int(kind))
	}
	if !buyer.CanAfford(price) {
		return model.InsufficientFunds(buyer, price)
	}

	entitlement := 0
	if kind != DevelopmentRights {
		entitlement = min(seller.WaterEntitlement, bp.InitialWaterRights)
	}
	if kind != WaterRights {
		for _, a := range bp.Assets() {
			if err := Remove(g, nil, a, cs); err != nil {
				return err
			}
		}
	}

	buyer.Money -= price
	seller.Money += price
	switch kind {
	case WaterRights:
		buyer.Ledger.WaterRightsCost += price
		seller.Ledger.WaterRightsRevenue += price
	default:
		buyer.Ledger.LandCost += price
		seller.Ledger.LandRevenue += price
	}
	seller.WaterEntitlement -= entitlement
	buyer.WaterEntitlement += entitlement
	if kind != WaterRights {
		model.TransferDevelopmentRights(bp, buyer)
	}
	if kind != DevelopmentRights {
		model.TransferWaterRights(bp, buyer)
	}
	respecialize(bp, cs)

	cs.TouchPlayer(buyer)
	cs.TouchPlayer(seller)
	txKind := model.TxSellCombinedRights
	switch kind {
	case DevelopmentRights:
		txKind = model.TxSellDevelopment
	case WaterRights:
		txKind = model.TxSellWaterRightsLand
	}
	cs.AddTransaction(model.Transaction{
		Kind:     txKind,
		FromID:   buyer.ID,
		ToID:     seller.ID,
		Money:    price,
		Rights:   entitlement,
		ParcelID: bp.ID,
	})
	return nil
}

// SellWaterRights moves entitlement not tied to any parcel transfer.
func SellWaterRights(buyer, seller *model.Player, amount, price int, cs *model.ChangeSet) error {
	if err := checkTrade(buyer, seller, amount, price); err != nil {
		return err
	}
	if !buyer.CanAfford(price) {
		return model.InsufficientFunds(buyer, price)
	}
	if seller.WaterEntitlement < amount {
		return model.Domainf(protocol.ErrNoResource, "%s has only %d water rights", seller.Name, seller.WaterEntitlement)
	}
	buyer.Money -= price
	seller.Money += price
	buyer.WaterEntitlement += amount
	seller.WaterEntitlement -= amount
	buyer.Ledger.WaterRightsCost += price
	seller.Ledger.WaterRightsRevenue += price

	cs.TouchPlayer(buyer)
	cs.TouchPlayer(seller)
	cs.AddTransaction(model.Transaction{Kind: model.TxSellWaterRights, FromID: buyer.ID, ToID: seller.ID, Money: price, Rights: amount})
	return nil
}

func checkTrade(buyer, seller *model.Player, amount, price int) error {
	if buyer == seller {
		return model.Domainf(protocol.ErrBadRequest, "%s cannot trade with themselves", buyer.Name)
	}
	if amount <= 0 {
		return model.Domainf(protocol.ErrBadRequest, "amount must be positive, not %d", amount)
	}
	if price < 0 {
		return model.Domainf(protocol.ErrBadRequest, "price must not be negative")
	}
	return nil
}

func respecialize(bp *model.Parcel, cs *model.ChangeSet) {
	bp.Respecialize()
	cs.TouchParcel(bp)
	for _, f := range bp.Fields() {
		cs.TouchField(f)
	}
}

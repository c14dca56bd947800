// Package lifecycle implements asset construction, sale, removal and aging,
// and the money and water transactions between players. Every function
// validates before it mutates, so a returned error leaves the game unchanged.
// Callers hold the game transaction lock.
package lifecycle

import (
	"waterwise.ai/internal/protocol"
	"waterwise.ai/internal/sim/model"
	"waterwise.ai/internal/sim/rules"
)

func requireDevelopmentRights(p *model.Player, bp *model.Parcel) error {
	if bp.DevelopmentRightsOwner() != p {
		return model.Domainf(protocol.ErrNoPermission, "%s does not hold the development rights of %s", p.Name, bp.Name)
	}
	return nil
}

func parcelOf(g *model.Game, a *model.Asset) (*model.Parcel, error) {
	bp := g.Parcel(a.ParcelID)
	if bp == nil || bp.Asset(a.ID) != a {
		return nil, model.Contractf("asset %s is not on parcel %q", a.ID, a.ParcelID)
	}
	return bp, nil
}

func charge(p *model.Player, cost int) error {
	if !p.CanAfford(cost) {
		return model.InsufficientFunds(p, cost)
	}
	debit(p, cost)
	return nil
}

// debit books a construction payment the caller has already checked.
func debit(p *model.Player, cost int) {
	p.Money -= cost
	p.Ledger.BuildCost += cost
}

// Build starts asset t at level on field f of bp and pays for its first step.
func Build(g *model.Game, p *model.Player, bp *model.Parcel, f *model.Field, t *model.Template, level int, assetID string, cs *model.ChangeSet) (*model.Asset, error) {
	if f.Parcel() != bp {
		return nil, model.Contractf("field %s is not on parcel %s", f.ID, bp.ID)
	}
	if err := requireDevelopmentRights(p, bp); err != nil {
		return nil, err
	}
	if !p.Role.CanBuild(t.Kind) {
		return nil, model.Domainf(protocol.ErrNoPermission, "a %s cannot build %s", p.Role, t.Kind)
	}
	if k := bp.ChosenKind(); k != model.KindNone && k != t.Kind {
		return nil, model.Domainf(protocol.ErrConflict, "%s is already given over to %s", bp.Name, k)
	}
	a, err := model.NewAsset(assetID, t, f, level)
	if err != nil {
		return nil, err
	}
	if a.OwnerID == "" {
		a.OwnerID = p.ID
	}
	cost := a.ConstructionCostPerStep(level)
	if !p.CanAfford(cost) {
		return nil, model.InsufficientFunds(p, cost)
	}
	if err := g.AttachAsset(bp, f, a); err != nil {
		return nil, err
	}
	debit(p, cost)
	a.StepsBuilt = 1
	a.StepBuiltThisTurn = true

	cs.AddAsset(a)
	cs.RemoveField(f)
	cs.TouchParcel(bp)
	cs.TouchPlayer(p)
	cs.AddTransaction(model.Transaction{Kind: model.TxBuild, FromID: p.ID, Money: cost, ParcelID: bp.ID, AssetID: a.ID})
	return a, nil
}

// ContinueBuild pays for and adds one more construction step.
func ContinueBuild(g *model.Game, p *model.Player, a *model.Asset, cs *model.ChangeSet) error {
	bp, err := parcelOf(g, a)
	if err != nil {
		return err
	}
	if err := requireDevelopmentRights(p, bp); err != nil {
		return err
	}
	if a.IsBuilt() {
		return model.Domainf(protocol.ErrInvalidTarget, "%s is already built", a.Name)
	}
	cost := a.ConstructionCostPerStep(a.Level())
	if err := charge(p, cost); err != nil {
		return err
	}
	a.StepsBuilt++
	a.StepBuiltThisTurn = true

	cs.TouchAsset(a)
	cs.TouchPlayer(p)
	cs.AddTransaction(model.Transaction{Kind: model.TxBuild, FromID: p.ID, Money: cost, ParcelID: bp.ID, AssetID: a.ID})
	return nil
}

// Upgrade raises a built asset to level and revalues it at that level.
func Upgrade(g *model.Game, p *model.Player, a *model.Asset, level int, values rules.EconomicDistributor, activity float64, cs *model.ChangeSet) error {
	bp, err := parcelOf(g, a)
	if err != nil {
		return err
	}
	if err := requireDevelopmentRights(p, bp); err != nil {
		return err
	}
	if !a.CanUpgradeInPrinciple() {
		return model.Domainf(protocol.ErrInvalidTarget, "%s cannot be upgraded", a.Kind)
	}
	if !a.IsBuilt() {
		return model.Domainf(protocol.ErrInvalidTarget, "%s is not built yet", a.Name)
	}
	cur := a.Level()
	if level <= cur {
		return model.Domainf(protocol.ErrBadRequest, "%s is already level %d", a.Name, cur)
	}
	if level > a.MaxLevel() {
		return model.Domainf(protocol.ErrBadRequest, "%s cannot go beyond level %d", a.Name, a.MaxLevel())
	}
	if level >= len(a.Levels.StepsToBuild) {
		return model.Contractf("asset %s has no schedule for level %d", a.ID, level)
	}
	cost := a.ConstructionCost(level) - a.ConstructionCost(cur)
	if cost < 0 {
		cost = 0
	}
	if !p.CanAfford(cost) {
		return model.InsufficientFunds(p, cost)
	}
	if err := a.SetLevel(level); err != nil {
		return err
	}
	debit(p, cost)
	if a.StepsBuilt < a.StepsToBuild() {
		a.StepsBuilt = a.StepsToBuild()
	}
	Revalue(a, values, activity)

	cs.TouchAsset(a)
	cs.TouchPlayer(p)
	cs.AddTransaction(model.Transaction{Kind: model.TxUpgrade, FromID: p.ID, Money: cost, ParcelID: bp.ID, AssetID: a.ID})
	return nil
}

// Revalue sets an asset's market price or this turn's revenue from activity.
func Revalue(a *model.Asset, values rules.EconomicDistributor, activity float64) {
	v := values.Value(activity, a)
	if a.CanBeSoldToEconomy() {
		a.MarketPrice = v
		return
	}
	a.RevenueThisTurn = v
}

// SellToEconomy sells a built asset at its market price. The asset stays on
// the board, owned by the economy, and the seller gives up the entitlement the
// asset consumes.
func SellToEconomy(g *model.Game, p *model.Player, a *model.Asset, cs *model.ChangeSet) error {
	if _, err := parcelOf(g, a); err != nil {
		return err
	}
	if a.OwnerID != p.ID {
		return model.Domainf(protocol.ErrNoPermission, "%s does not own %s", p.Name, a.Name)
	}
	if !a.CanBeSoldToEconomy() {
		return model.Domainf(protocol.ErrInvalidTarget, "%s cannot be sold to the economy", a.Kind)
	}
	if a.IsSoldToEconomy {
		return model.Domainf(protocol.ErrInvalidTarget, "%s has already been sold", a.Name)
	}
	if !a.IsBuilt() {
		return model.Domainf(protocol.ErrInvalidTarget, "%s is not built yet", a.Name)
	}
	if p.WaterEntitlement < a.WaterUsage() {
		return model.Domainf(protocol.ErrNoResource, "%s has %d water rights but %s needs %d", p.Name, p.WaterEntitlement, a.Name, a.WaterUsage())
	}
	price := a.MarketPrice
	p.Money += price
	p.Ledger.BuildRevenue += price
	p.WaterEntitlement -= a.WaterUsage()
	a.IsSoldToEconomy = true
	a.OwnerID = g.Economy.ID

	cs.TouchAsset(a)
	cs.TouchPlayer(p)
	cs.AddTransaction(model.Transaction{
		Kind:     model.TxSellToEconomy,
		FromID:   g.Economy.ID,
		ToID:     p.ID,
		Money:    price,
		Rights:   a.WaterUsage(),
		ParcelID: a.ParcelID,
		AssetID:  a.ID,
	})
	return nil
}

// Remove demolishes an asset without refund and lays a fresh field in its
// place. A nil p skips the rights check.
func Remove(g *model.Game, p *model.Player, a *model.Asset, cs *model.ChangeSet) error {
	bp, err := parcelOf(g, a)
	if err != nil {
		return err
	}
	if p != nil {
		if err := requireDevelopmentRights(p, bp); err != nil {
			return err
		}
	}
	f, err := g.DetachAsset(a)
	if err != nil {
		return err
	}
	cs.RemoveAsset(a)
	cs.AddField(f)
	cs.TouchParcel(bp)
	return nil
}

// Age runs once per revenue phase over every asset, built or still being
// built. An asset dies when it depends on water and was given less than it
// needs, or when its finite time to live runs out. It returns the removed
// assets.
func Age(g *model.Game, cs *model.ChangeSet) ([]*model.Asset, error) {
	var dead []*model.Asset
	for _, bp := range g.Parcels() {
		for _, a := range bp.Assets() {
			expired := false
			if a.IsDependentOnWaterToExist() && a.WaterAllocated() < a.WaterUsage() {
				expired = true
			}
			if !a.IsImmortal() {
				a.TimeToLive--
				if a.TimeToLive <= 0 {
					expired = true
				}
				cs.TouchAsset(a)
			}
			if expired {
				dead = append(dead, a)
			}
		}
	}
	for _, a := range dead {
		if err := Remove(g, nil, a, cs); err != nil {
			return dead, err
		}
	}
	return dead, nil
}

// EndOfTurnReset drains parcel water and clears per-turn asset state.
func EndOfTurnReset(g *model.Game, cs *model.ChangeSet) {
	for _, bp := range g.Parcels() {
		if bp.WaterAvailable != 0 {
			bp.WaterAvailable = 0
			cs.TouchParcel(bp)
		}
	}
	for _, a := range g.Assets() {
		if a.StepBuiltThisTurn || a.WaterAllocated() != 0 {
			a.StepBuiltThisTurn = false
			_ = a.SetWaterAllocated(0)
			cs.TouchAsset(a)
		}
	}
}

// Settle closes a player's turn: operating revenue and maintenance of the
// built assets they own, less cost of living. Water in hand is lost. A
// developer's revenue was paid when the houses were sold and is only reported.
func Settle(g *model.Game, p *model.Player, cs *model.ChangeSet) {
	revenue, maintenance := 0, 0
	for _, a := range g.Assets() {
		if a.OwnerID != p.ID || !a.IsBuilt() {
			continue
		}
		maintenance += a.MaintenanceCost()
		a.AccruedMaintenanceCost += a.MaintenanceCost()
		if p.Role == model.RoleFarmer || p.Role == model.RoleManufacturer {
			revenue += a.ProjectedRevenue()
		}
		cs.TouchAsset(a)
	}
	p.Ledger.ProductRevenue += revenue
	p.Ledger.MaintenanceCost += maintenance
	p.Ledger.CostOfLiving += p.CostOfLiving
	p.Money += revenue - maintenance - p.CostOfLiving
	p.Water = 0
	cs.TouchPlayer(p)
	cs.AddTransaction(model.Transaction{Kind: model.TxRevenue, ToID: p.ID, Money: revenue - maintenance - p.CostOfLiving})
}

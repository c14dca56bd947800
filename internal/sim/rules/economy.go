package rules

import (
	"math"
	"math/rand"

	"waterwise.ai/internal/sim/model"
)

// RandomWalkEconomy walks each kind's activity from Start by at most Step per
// round, staying inside [Min, Max]. The walk for a given seed is fixed, so
// Activity is a function of round alone.
type RandomWalkEconomy struct {
	Seed  int64
	Start float64
	Min   float64
	Max   float64
	Step  float64
}

func (e RandomWalkEconomy) Activity(round int, _ []*model.Asset) map[model.AssetKind]float64 {
	out := make(map[model.AssetKind]float64, len(model.Kinds()))
	for _, k := range model.Kinds() {
		out[k] = e.at(k, round)
	}
	return out
}

func (e RandomWalkEconomy) at(k model.AssetKind, round int) float64 {
	rng := rand.New(rand.NewSource(e.Seed*31 + int64(k)))
	v := e.Start
	for i := 1; i <= round; i++ {
		v += (rng.Float64()*2 - 1) * e.Step
		v = math.Max(e.Min, math.Min(e.Max, v))
	}
	return v
}

// LevelScaledDistributor values an asset at its level's normal revenue scaled
// by activity.
type LevelScaledDistributor struct{}

func (LevelScaledDistributor) Value(activity float64, a *model.Asset) int {
	v := int(math.Round(float64(a.NormalRevenue()) * activity))
	if v < 0 {
		return 0
	}
	return v
}

type ActivityForecaster struct {
	Source RandomWalkEconomy
	Spread float64
}

func (f ActivityForecaster) Forecast(round int) map[model.AssetKind]model.Range {
	out := map[model.AssetKind]model.Range{}
	for k, v := range f.Source.Activity(round, nil) {
		out[k] = model.Range{Min: math.Max(0, v*(1-f.Spread)), Max: v * (1 + f.Spread)}
	}
	return out
}

// EntitlementFromWaterRights sets each player's entitlement to the initial
// rights of the parcels whose water rights they hold.
type EntitlementFromWaterRights struct{}

func (EntitlementFromWaterRights) Apply(_ *model.Game, players []*model.Player, _ []*model.Parcel, cs *model.ChangeSet) {
	for _, p := range players {
		total := 0
		for _, bp := range p.WaterRightsParcels() {
			total += bp.InitialWaterRights
		}
		if p.WaterEntitlement != total {
			p.WaterEntitlement = total
			cs.TouchPlayer(p)
		}
	}
}

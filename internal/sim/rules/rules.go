// Package rules holds the numeric rule strategies the engine consults. Each
// strategy is a pure function of the state the engine hands it.
package rules

import (
	"time"

	"waterwise.ai/internal/sim/model"
)

type RainfallGenerator interface {
	Rainfall(round int, date time.Time) int
}

// Distribution is how one turn's rainfall was split.
type Distribution struct {
	Players map[string]int
	Parcels map[string]int
}

type WaterDistributor interface {
	Distribute(total int, players []*model.Player, parcels []*model.Parcel) Distribution
}

type WaterAllocator interface {
	Allocate(p *model.Player, a *model.Asset, amount int) error
	Undo(p *model.Player, a *model.Asset)
}

type EconomicGenerator interface {
	Activity(round int, assets []*model.Asset) map[model.AssetKind]float64
}

// EconomicDistributor turns an activity signal into the revenue, or for
// sellable kinds the market price, of one asset at its current level.
type EconomicDistributor interface {
	Value(activity float64, a *model.Asset) int
}

type WaterForecaster interface {
	Forecast(round int) model.Range
}

type EconomicForecaster interface {
	Forecast(round int) map[model.AssetKind]model.Range
}

type StartupRule interface {
	Apply(g *model.Game, players []*model.Player, parcels []*model.Parcel, cs *model.ChangeSet)
}

type Set struct {
	Rainfall         RainfallGenerator
	Distributor      WaterDistributor
	Allocator        WaterAllocator
	Economy          EconomicGenerator
	Values           EconomicDistributor
	WaterForecast    WaterForecaster
	EconomicForecast EconomicForecaster
	Startup          StartupRule
}

// Default is the rule set built from Defaults().
func Default() Set {
	s, _ := Build(Defaults())
	return s
}

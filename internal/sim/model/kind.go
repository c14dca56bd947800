package model

import "fmt"

type AssetKind int

const (
	KindNone AssetKind = iota
	KindCrops
	KindFactory
	KindHouses
)

func (k AssetKind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindCrops:
		return "Crops"
	case KindFactory:
		return "Factory"
	case KindHouses:
		return "Houses"
	default:
		return fmt.Sprintf("AssetKind(%d)", int(k))
	}
}

func ParseKind(s string) (AssetKind, error) {
	for _, k := range Kinds() {
		if k.String() == s {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown asset kind %q", s)
}

func Kinds() []AssetKind { return []AssetKind{KindCrops, KindFactory, KindHouses} }

// ProfitFormula selects how an asset's profit is derived from its revenue.
type ProfitFormula int

const (
	// Projected revenue less construction and maintenance.
	ProfitRevenueLessConstruction ProfitFormula = iota + 1
	// Projected revenue less maintenance; construction is capital, not an
	// operating cost.
	ProfitRevenueOnly
	// Market price less construction and maintenance.
	ProfitPriceLessConstruction
)

type KindSpec struct {
	MinLevel int
	MaxLevel int

	CanBeAllocatedWater       bool
	CanPartiallyAllocateWater bool
	CanUpgradeInPrinciple     bool
	CanBeSoldToEconomy        bool
	IsDependentOnWaterToExist bool

	Profit ProfitFormula
}

// Per-kind behaviour. Crops and Houses charge construction against profit,
// Factory does not; keep the asymmetry.
var kindSpecs = map[AssetKind]KindSpec{
	KindCrops: {
		MinLevel:                  1,
		MaxLevel:                  3,
		CanBeAllocatedWater:       true,
		CanPartiallyAllocateWater: false,
		CanUpgradeInPrinciple:     false,
		CanBeSoldToEconomy:        false,
		IsDependentOnWaterToExist: true,
		Profit:                    ProfitRevenueLessConstruction,
	},
	KindFactory: {
		MinLevel:                  1,
		MaxLevel:                  3,
		CanBeAllocatedWater:       true,
		CanPartiallyAllocateWater: true,
		CanUpgradeInPrinciple:     true,
		CanBeSoldToEconomy:        false,
		IsDependentOnWaterToExist: false,
		Profit:                    ProfitRevenueOnly,
	},
	KindHouses: {
		MinLevel:                  1,
		MaxLevel:                  3,
		CanBeAllocatedWater:       false,
		CanPartiallyAllocateWater: false,
		CanUpgradeInPrinciple:     false,
		CanBeSoldToEconomy:        true,
		IsDependentOnWaterToExist: false,
		Profit:                    ProfitPriceLessConstruction,
	},
}

func SpecFor(k AssetKind) (KindSpec, bool) {
	s, ok := kindSpecs[k]
	return s, ok
}

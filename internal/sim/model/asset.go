package model

import "waterwise.ai/internal/protocol"

// Immortal is the time-to-live of an asset that never expires.
const Immortal = -1

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Levels holds per-level schedules. Index 0 is unused so level n reads slot n.
type Levels struct {
	CostPerStep     []int
	StepsToBuild    []int
	NormalRevenue   []int
	WaterUsage      []int
	MaintenanceCost []int
	TimeToLive      []int
}

func at(s []int, level int) int {
	if level < 0 || level >= len(s) {
		return 0
	}
	return s[level]
}

func (l Levels) clone() Levels {
	cp := func(s []int) []int { return append([]int(nil), s...) }
	return Levels{
		CostPerStep:     cp(l.CostPerStep),
		StepsToBuild:    cp(l.StepsToBuild),
		NormalRevenue:   cp(l.NormalRevenue),
		WaterUsage:      cp(l.WaterUsage),
		MaintenanceCost: cp(l.MaintenanceCost),
		TimeToLive:      cp(l.TimeToLive),
	}
}

// Template describes a buildable asset for one kind in one zone.
type Template struct {
	Kind   AssetKind
	Name   string
	Zone   string
	Levels Levels
}

func (t *Template) ConstructionCostPerStep(level int) int { return at(t.Levels.CostPerStep, level) }

type Asset struct {
	ID       string
	Name     string
	Kind     AssetKind
	Levels   Levels
	ParcelID string
	// FieldID is the field the asset was built on; removal restores it.
	FieldID  string
	Position Vec3i
	OwnerID  string

	level int

	StepsBuilt             int
	StepBuiltThisTurn      bool
	AccruedMaintenanceCost int
	TimeToLive             int
	RevenueThisTurn        int
	MarketPrice            int
	IsSoldToEconomy        bool

	waterAllocated int
}

// NewAsset instantiates t at level on field f. The asset is not attached to
// any parcel and has no build steps yet.
func NewAsset(id string, t *Template, f *Field, level int) (*Asset, error) {
	a := &Asset{
		ID:       id,
		Name:     t.Name,
		Kind:     t.Kind,
		Levels:   t.Levels.clone(),
		FieldID:  f.ID,
		Position: f.Position,
		OwnerID:  f.OwnerID,
	}
	if p := f.Parcel(); p != nil {
		a.ParcelID = p.ID
	}
	if _, ok := SpecFor(t.Kind); !ok {
		return nil, Contractf("no kind spec for %s", t.Kind)
	}
	if err := a.SetLevel(level); err != nil {
		return nil, err
	}
	a.TimeToLive = a.InitialTimeToLive()
	return a, nil
}

func (a *Asset) Spec() KindSpec {
	s, _ := SpecFor(a.Kind)
	return s
}

func (a *Asset) Level() int    { return a.level }
func (a *Asset) MinLevel() int { return a.Spec().MinLevel }
func (a *Asset) MaxLevel() int { return a.Spec().MaxLevel }

func (a *Asset) SetLevel(level int) error {
	if level < a.MinLevel() || level > a.MaxLevel() {
		return Contractf("asset %s level %d outside [%d,%d]", a.ID, level, a.MinLevel(), a.MaxLevel())
	}
	if level >= len(a.Levels.StepsToBuild) {
		return Contractf("asset %s has no schedule for level %d", a.ID, level)
	}
	a.level = level
	if a.waterAllocated > a.WaterUsage() {
		a.waterAllocated = a.WaterUsage()
	}
	return nil
}

func (a *Asset) StepsToBuild() int { return at(a.Levels.StepsToBuild, a.level) }
func (a *Asset) IsBuilt() bool     { return a.StepsBuilt >= a.StepsToBuild() }

func (a *Asset) ConstructionCostPerStep(level int) int { return at(a.Levels.CostPerStep, level) }
func (a *Asset) ConstructionCost(level int) int {
	return at(a.Levels.CostPerStep, level) * at(a.Levels.StepsToBuild, level)
}

func (a *Asset) NormalRevenue() int     { return at(a.Levels.NormalRevenue, a.level) }
func (a *Asset) WaterUsage() int        { return at(a.Levels.WaterUsage, a.level) }
func (a *Asset) MaintenanceCost() int   { return at(a.Levels.MaintenanceCost, a.level) }
func (a *Asset) InitialTimeToLive() int { return at(a.Levels.TimeToLive, a.level) }
func (a *Asset) IsImmortal() bool       { return a.TimeToLive < 0 }

func (a *Asset) CanBeAllocatedWater() bool       { return a.Spec().CanBeAllocatedWater }
func (a *Asset) CanPartiallyAllocateWater() bool { return a.Spec().CanPartiallyAllocateWater }
func (a *Asset) CanUpgradeInPrinciple() bool     { return a.Spec().CanUpgradeInPrinciple }
func (a *Asset) CanBeSoldToEconomy() bool        { return a.Spec().CanBeSoldToEconomy }
func (a *Asset) IsDependentOnWaterToExist() bool { return a.Spec().IsDependentOnWaterToExist }

// CanUpgrade reports whether an upgrade could be attempted right now.
func (a *Asset) CanUpgrade() bool {
	return a.CanUpgradeInPrinciple() && a.IsBuilt() && a.level < a.MaxLevel()
}

func (a *Asset) WaterAllocated() int { return a.waterAllocated }

// SetWaterAllocated enforces 0 <= n <= WaterUsage, and n in {0, WaterUsage}
// for assets that cannot be partially watered.
func (a *Asset) SetWaterAllocated(n int) error {
	usage := a.WaterUsage()
	if n < 0 || n > usage {
		return Domainf(protocol.ErrBadRequest, "%s needs between 0 and %d water, not %d", a.Name, usage, n)
	}
	if !a.CanPartiallyAllocateWater() && n != 0 && n != usage {
		return Domainf(protocol.ErrBadRequest, "%s must be given exactly %d water or none", a.Name, usage)
	}
	a.waterAllocated = n
	return nil
}

// ProjectedRevenue is the revenue the asset earns this turn given the water it
// has been allocated.
func (a *Asset) ProjectedRevenue() int {
	usage := a.WaterUsage()
	if usage <= 0 {
		return a.RevenueThisTurn
	}
	if a.CanPartiallyAllocateWater() {
		return a.RevenueThisTurn * a.waterAllocated / usage
	}
	if a.waterAllocated >= usage {
		return a.RevenueThisTurn
	}
	return 0
}

func (a *Asset) Profit() int { return a.profitFrom(a.ProjectedRevenue()) }

// NominalMaximumProfit is the profit the asset would make if fully watered.
func (a *Asset) NominalMaximumProfit() int { return a.profitFrom(a.RevenueThisTurn) }

func (a *Asset) profitFrom(revenue int) int {
	switch a.Spec().Profit {
	case ProfitRevenueOnly:
		return revenue - a.MaintenanceCost()
	case ProfitPriceLessConstruction:
		return a.MarketPrice - a.ConstructionCost(a.level) - a.MaintenanceCost()
	default:
		return revenue - a.ConstructionCost(a.level) - a.MaintenanceCost()
	}
}

package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"waterwise.ai/internal/sim/model"
)

func player(id string, entitlement int) *model.Player {
	p := model.NewPlayer(id, id, model.RoleFarmer)
	p.WaterEntitlement = entitlement
	return p
}

func TestSeededRainfallDeterministicAndBounded(t *testing.T) {
	r := SeededRainfall{Seed: 9, Min: 10, Max: 20}
	for round := 1; round <= 50; round++ {
		v := r.Rainfall(round, time.Time{})
		require.GreaterOrEqual(t, v, 10)
		require.LessOrEqual(t, v, 20)
		require.Equal(t, v, r.Rainfall(round, time.Now()))
	}
	require.Equal(t, 5, SeededRainfall{Min: 5, Max: 5}.Rainfall(3, time.Time{}))
}

func TestEntitlementDistributorRemainder(t *testing.T) {
	a, b, c := player("a", 1), player("b", 1), player("c", 2)
	d := EntitlementDistributor{}.Distribute(10, []*model.Player{a, b, c}, nil)
	// 10*1/4=2, 2, 10*2/4=5 -> 9; one left for c (largest entitlement).
	require.Equal(t, map[string]int{"a": 2, "b": 2, "c": 6}, d.Players)

	d = EntitlementDistributor{}.Distribute(3, []*model.Player{a, b}, nil)
	require.Equal(t, map[string]int{"a": 2, "b": 1}, d.Players)
}

func TestEntitlementDistributorNoEntitlement(t *testing.T) {
	d := EntitlementDistributor{}.Distribute(100, []*model.Player{player("a", 0)}, nil)
	require.Equal(t, 0, d.Players["a"])
}

func TestEqualDistributorConservesTotal(t *testing.T) {
	players := []*model.Player{player("a", 0), player("b", 9), player("c", 0)}
	d := EqualDistributor{}.Distribute(100, players, nil)
	sum := 0
	for _, n := range d.Players {
		sum += n
	}
	require.Equal(t, 100, sum)
	require.Equal(t, 34, d.Players["a"])
}

func TestDistributionAttributesParcels(t *testing.T) {
	p := player("p", 30)
	bp1, bp2 := model.NewParcel("bp1", "x"), model.NewParcel("bp2", "y")
	bp1.InitialWaterRights, bp2.InitialWaterRights = 10, 20
	model.TransferWaterRights(bp1, p)
	model.TransferWaterRights(bp2, p)
	free := model.NewParcel("bp3", "z")

	d := EntitlementDistributor{}.Distribute(60, []*model.Player{p}, []*model.Parcel{bp1, bp2, free})
	require.Equal(t, 60, d.Players["p"])
	require.Equal(t, 20, d.Parcels["bp1"])
	require.Equal(t, 40, d.Parcels["bp2"])
	require.Equal(t, 0, d.Parcels["bp3"])
}

func builtFactory(t *testing.T) *model.Asset {
	t.Helper()
	bp := model.NewParcel("bp", "x")
	f := model.NewField("f", model.Vec3i{})
	bp.AddField(f)
	a, err := model.NewAsset("a", &model.Template{
		Kind: model.KindFactory,
		Name: "Mill",
		Levels: model.Levels{
			CostPerStep:     []int{0, 10, 10, 10},
			StepsToBuild:    []int{0, 1, 1, 1},
			NormalRevenue:   []int{0, 100, 200, 300},
			WaterUsage:      []int{0, 10, 20, 30},
			MaintenanceCost: []int{0, 1, 2, 3},
			TimeToLive:      []int{0, -1, -1, -1},
		},
	}, f, 1)
	require.NoError(t, err)
	a.StepsBuilt = 1
	return a
}

func TestLedgerAllocatorMovesWater(t *testing.T) {
	p := player("p", 0)
	p.Water = 8
	a := builtFactory(t)

	err := LedgerAllocator{}.Allocate(p, a, 9)
	require.True(t, model.IsDomain(err))
	require.Equal(t, 8, p.Water)
	require.Equal(t, 0, a.WaterAllocated())

	require.NoError(t, LedgerAllocator{}.Allocate(p, a, 6))
	require.Equal(t, 2, p.Water)
	require.NoError(t, LedgerAllocator{}.Allocate(p, a, 4))
	require.Equal(t, 4, p.Water)

	err = LedgerAllocator{}.Allocate(p, a, -1)
	require.True(t, model.IsDomain(err))
	require.Equal(t, 4, p.Water)

	LedgerAllocator{}.Undo(p, a)
	require.Equal(t, 8, p.Water)
	require.Equal(t, 0, a.WaterAllocated())
}

func TestRandomWalkStaysInBounds(t *testing.T) {
	e := RandomWalkEconomy{Seed: 3, Start: 1, Min: 0.5, Max: 1.5, Step: 0.4}
	for round := 0; round < 40; round++ {
		act := e.Activity(round, nil)
		require.Len(t, act, 3)
		for _, v := range act {
			require.GreaterOrEqual(t, v, 0.5)
			require.LessOrEqual(t, v, 1.5)
		}
		require.Equal(t, act, e.Activity(round, nil))
	}
	require.Equal(t, 1.0, e.Activity(0, nil)[model.KindCrops])
}

func TestLevelScaledDistributor(t *testing.T) {
	a := builtFactory(t)
	require.Equal(t, 150, LevelScaledDistributor{}.Value(1.5, a))
	require.NoError(t, a.SetLevel(2))
	require.Equal(t, 100, LevelScaledDistributor{}.Value(0.5, a))
}

func TestForecastsBracketActual(t *testing.T) {
	rain := SeededRainfall{Seed: 4, Min: 50, Max: 100}
	wf := RainfallForecaster{Source: rain, Spread: 0.1}
	for round := 1; round < 10; round++ {
		r := wf.Forecast(round)
		v := float64(rain.Rainfall(round, time.Time{}))
		require.LessOrEqual(t, r.Min, v)
		require.GreaterOrEqual(t, r.Max, v)
	}
	ef := ActivityForecaster{Source: RandomWalkEconomy{Start: 1, Min: 0.5, Max: 2, Step: 0.1}, Spread: 0.5}
	require.Equal(t, model.Range{Min: 0.5, Max: 1.5}, ef.Forecast(0)[model.KindHouses])
}

func TestStartupEntitlement(t *testing.T) {
	p := player("p", 99)
	bp := model.NewParcel("bp", "x")
	bp.InitialWaterRights = 12
	model.TransferWaterRights(bp, p)
	cs := model.NewChangeSet()
	EntitlementFromWaterRights{}.Apply(nil, []*model.Player{p}, []*model.Parcel{bp}, cs)
	require.Equal(t, 12, p.WaterEntitlement)
	require.Len(t, cs.Players(), 1)
}

func TestParse(t *testing.T) {
	cfg, err := Parse("")
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)

	cfg, err = Parse("rainfall:\n  min: 1\n  max: 2\ndistribution:\n  mode: EQUAL\n")
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Rainfall.Min)
	require.Equal(t, "equal", cfg.Distribution.Mode)
	set, err := Build(cfg)
	require.NoError(t, err)
	require.IsType(t, EqualDistributor{}, set.Distributor)

	_, err = Parse("rainfall:\n  min: 5\n  max: 1\n")
	require.ErrorContains(t, err, "rules.yaml:")
	_, err = Parse("distribution:\n  mode: lottery\n")
	require.ErrorContains(t, err, "lottery")
	_, err = Parse("rainfall: [")
	require.ErrorContains(t, err, "rules.yaml:")
}

func TestLoadRepoConfig(t *testing.T) {
	cfg, err := Load("../../../configs/rules.yaml")
	require.NoError(t, err)
	_, err = Build(cfg)
	require.NoError(t, err)
}

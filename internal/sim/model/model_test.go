package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testTemplate(kind AssetKind) *Template {
	return &Template{
		Kind: kind,
		Name: kind.String(),
		Zone: "A",
		Levels: Levels{
			CostPerStep:     []int{0, 150, 200, 300},
			StepsToBuild:    []int{0, 2, 3, 4},
			NormalRevenue:   []int{0, 50, 80, 120},
			WaterUsage:      []int{0, 10, 15, 20},
			MaintenanceCost: []int{0, 5, 8, 10},
			TimeToLive:      []int{0, 3, 3, 3},
		},
	}
}

func testBoard(t *testing.T) (*Game, *Parcel, *Field) {
	t.Helper()
	g := NewGame("g1", "")
	bp := NewParcel("bp1", "North")
	f := NewField("f1", Vec3i{X: 1, Y: 64, Z: 2})
	bp.AddField(f)
	require.True(t, g.AddParcel(bp))
	return g, bp, f
}

func TestAssetLevelBounds(t *testing.T) {
	_, _, f := testBoard(t)
	a, err := NewAsset("a1", testTemplate(KindFactory), f, 1)
	require.NoError(t, err)

	for _, lvl := range []int{0, 4, -1} {
		err := a.SetLevel(lvl)
		require.Error(t, err)
		require.True(t, IsContract(err), "level %d", lvl)
		require.Equal(t, 1, a.Level())
	}
	require.NoError(t, a.SetLevel(3))
	require.Equal(t, 3, a.Level())

	_, err = NewAsset("a2", testTemplate(KindFactory), f, 5)
	require.True(t, IsContract(err))
}

func TestWaterAllocationBounds(t *testing.T) {
	_, _, f := testBoard(t)
	crops, err := NewAsset("c", testTemplate(KindCrops), f, 1)
	require.NoError(t, err)
	factory, err := NewAsset("f", testTemplate(KindFactory), f, 1)
	require.NoError(t, err)

	for n := -1; n <= 11; n++ {
		err := crops.SetWaterAllocated(n)
		if n == 0 || n == 10 {
			require.NoError(t, err)
		} else {
			require.True(t, IsDomain(err), "crops %d", n)
		}
		w := crops.WaterAllocated()
		require.True(t, w == 0 || w == crops.WaterUsage())

		err = factory.SetWaterAllocated(n)
		if n >= 0 && n <= 10 {
			require.NoError(t, err)
		} else {
			require.True(t, IsDomain(err), "factory %d", n)
		}
		require.GreaterOrEqual(t, factory.WaterAllocated(), 0)
		require.LessOrEqual(t, factory.WaterAllocated(), factory.WaterUsage())
	}
}

func TestSetLevelClampsWater(t *testing.T) {
	_, _, f := testBoard(t)
	tpl := testTemplate(KindFactory)
	a, err := NewAsset("a", tpl, f, 3)
	require.NoError(t, err)
	require.NoError(t, a.SetWaterAllocated(20))
	require.NoError(t, a.SetLevel(1))
	require.Equal(t, 10, a.WaterAllocated())
}

func TestIsBuiltAndConstructionCost(t *testing.T) {
	_, _, f := testBoard(t)
	a, err := NewAsset("a", testTemplate(KindHouses), f, 2)
	require.NoError(t, err)
	require.Equal(t, 600, a.ConstructionCost(2))
	for i := 0; i < 3; i++ {
		require.False(t, a.IsBuilt())
		a.StepsBuilt++
	}
	require.True(t, a.IsBuilt())
}

func TestProjectedRevenue(t *testing.T) {
	_, _, f := testBoard(t)
	crops, _ := NewAsset("c", testTemplate(KindCrops), f, 1)
	factory, _ := NewAsset("f", testTemplate(KindFactory), f, 1)
	crops.RevenueThisTurn = 50
	factory.RevenueThisTurn = 50

	require.Equal(t, 0, crops.ProjectedRevenue())
	require.NoError(t, crops.SetWaterAllocated(10))
	require.Equal(t, 50, crops.ProjectedRevenue())

	require.NoError(t, factory.SetWaterAllocated(4))
	require.Equal(t, 20, factory.ProjectedRevenue())
}

func TestProfitFormulaPerKind(t *testing.T) {
	_, _, f := testBoard(t)
	crops, _ := NewAsset("c", testTemplate(KindCrops), f, 1)
	factory, _ := NewAsset("f", testTemplate(KindFactory), f, 1)
	houses, _ := NewAsset("h", testTemplate(KindHouses), f, 1)
	for _, a := range []*Asset{crops, factory} {
		a.RevenueThisTurn = 400
		require.NoError(t, a.SetWaterAllocated(10))
	}
	houses.MarketPrice = 500

	// construction at level 1 is 150*2.
	require.Equal(t, 400-300-5, crops.Profit())
	require.Equal(t, 400-5, factory.Profit())
	require.Equal(t, 500-300-5, houses.Profit())

	require.NoError(t, factory.SetWaterAllocated(5))
	require.Equal(t, 200-5, factory.Profit())
	require.Equal(t, 400-5, factory.NominalMaximumProfit())
}

func TestLedgerProfitByRole(t *testing.T) {
	l := Ledger{
		WaterRevenue:    30,
		WaterCost:       10,
		MaintenanceCost: 5,
		CostOfLiving:    2,
		BuildRevenue:    100,
		BuildCost:       40,
		ProductRevenue:  50,
	}
	require.Equal(t, 13, l.Profit(RoleWaterMaster))
	require.Equal(t, 13+60, l.Profit(RoleDeveloper))
	require.Equal(t, 13+50, l.Profit(RoleManufacturer))
	require.Equal(t, 13+10, l.Profit(RoleFarmer))
}

func TestRecordHistoryAlignsWithRounds(t *testing.T) {
	p := NewPlayer("p1", "Ada", RoleFarmer)
	p.Reset(100, 2)
	require.Len(t, p.History, 1)
	require.Nil(t, p.History[0])

	p.Ledger.ProductRevenue = 50
	p.Money = 143
	rec := p.RecordHistory(1)
	require.Len(t, p.History, 2)
	require.Equal(t, 1, p.History[1].Round)
	require.Equal(t, 143, rec.EndMoney)

	p.ResetForNextTurn()
	require.Equal(t, 0, p.Ledger.ProductRevenue)
	require.Equal(t, 143, p.Ledger.StartMoney)
	require.Equal(t, 50, p.History[1].ProductRevenue)
}

func TestTransferRightsMaintainsBackReferences(t *testing.T) {
	bp := NewParcel("bp", "Lake")
	p1 := NewPlayer("p1", "A", RoleFarmer)
	p2 := NewPlayer("p2", "B", RoleDeveloper)

	require.Nil(t, TransferDevelopmentRights(bp, p1))
	require.Nil(t, TransferWaterRights(bp, p1))
	require.True(t, p1.OwnsDevelopmentRights(bp))
	require.True(t, p1.OwnsWaterRights(bp))

	require.Equal(t, p1, TransferDevelopmentRights(bp, p2))
	require.False(t, p1.OwnsDevelopmentRights(bp))
	require.True(t, p2.OwnsDevelopmentRights(bp))
	require.True(t, p1.OwnsWaterRights(bp))
	require.Equal(t, p2, bp.DevelopmentRightsOwner())

	require.Equal(t, p1, TransferWaterRights(bp, nil))
	require.Empty(t, p1.WaterRightsParcels())
	require.Nil(t, bp.WaterRightsOwner())
}

func TestAttachDetachKeepsIndex(t *testing.T) {
	g, bp, f := testBoard(t)
	owner := NewPlayer("p1", "A", RoleFarmer)
	TransferDevelopmentRights(bp, owner)
	bp.Respecialize()
	require.Equal(t, "p1", f.OwnerID)
	require.Equal(t, KindCrops, f.Kind)

	a, err := NewAsset("a1", testTemplate(KindCrops), f, 1)
	require.NoError(t, err)
	require.Equal(t, "p1", a.OwnerID)
	require.Equal(t, KindNone, bp.ChosenKind())

	require.NoError(t, g.AttachAsset(bp, f, a))
	require.Equal(t, KindCrops, bp.ChosenKind())
	require.Empty(t, bp.Fields())
	require.Nil(t, f.Parcel())
	require.Same(t, a, g.Asset("a1"))
	require.NoError(t, g.CheckIndex())

	other, err := NewAsset("a2", testTemplate(KindFactory), NewField("f2", Vec3i{}), 1)
	require.NoError(t, err)
	f2 := NewField("f2", Vec3i{})
	bp.AddField(f2)
	require.True(t, IsContract(g.AttachAsset(bp, f2, other)))

	restored, err := g.DetachAsset(a)
	require.NoError(t, err)
	require.Equal(t, "f1", restored.ID)
	require.Equal(t, f.Position, restored.Position)
	require.Same(t, bp, restored.Parcel())
	require.Equal(t, KindNone, bp.ChosenKind())
	require.Nil(t, g.Asset("a1"))
	require.NoError(t, g.CheckIndex())

	_, err = g.DetachAsset(a)
	require.True(t, IsContract(err))
}

func TestResetBoard(t *testing.T) {
	g, bp, f := testBoard(t)
	owner := NewPlayer("p1", "A", RoleFarmer)
	g.PutPlayer(owner)
	TransferDevelopmentRights(bp, owner)
	TransferWaterRights(bp, owner)
	bp.Respecialize()
	bp.WaterAvailable = 7
	a, _ := NewAsset("a1", testTemplate(KindCrops), f, 1)
	require.NoError(t, g.AttachAsset(bp, f, a))

	cs := NewChangeSet()
	require.NoError(t, g.ResetBoard(cs))
	require.Nil(t, bp.DevelopmentRightsOwner())
	require.Nil(t, bp.WaterRightsOwner())
	require.Empty(t, owner.DevelopmentRightsParcels())
	require.Equal(t, 0, bp.WaterAvailable)
	require.Len(t, bp.Fields(), 1)
	require.Equal(t, "", bp.Fields()[0].OwnerID)
	require.Empty(t, g.Assets())
	require.Len(t, cs.RemovedAssets(), 1)
	require.Contains(t, cs.Players(), owner)
	require.NoError(t, g.CheckIndex())
}

func TestDuplicateParcelIgnored(t *testing.T) {
	g, bp, _ := testBoard(t)
	dup := NewParcel(bp.ID, "Other")
	require.False(t, g.AddParcel(dup))
	require.Equal(t, "North", g.Parcel(bp.ID).Name)
}

func TestErrorClassification(t *testing.T) {
	p := NewPlayer("p", "Ada", RoleFarmer)
	p.Money = 100
	err := InsufficientFunds(p, 150)
	require.True(t, IsDomain(err))
	require.False(t, IsContract(err))
	require.Equal(t, "E_NO_RESOURCE", Code(err))
	require.Contains(t, err.Error(), "Ada has 100 but needs 150")

	err = Contractf("unknown parcel %q", "x")
	require.True(t, IsContract(err))
	require.Equal(t, "E_INTERNAL", Code(err))
}

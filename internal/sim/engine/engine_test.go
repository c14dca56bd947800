package engine

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"waterwise.ai/internal/protocol"
	"waterwise.ai/internal/sim/events"
	"waterwise.ai/internal/sim/lifecycle"
	"waterwise.ai/internal/sim/model"
	"waterwise.ai/internal/sim/rules"
)

const testGame = `
rounds: 2
start_date: "2030-01"
date_step_months: 12
build_stage_seconds: 60
water_stage_seconds: 30
roles:
  Farmer:       { start_money: 1000, cost_of_living: 2 }
  Manufacturer: { start_money: 1500, cost_of_living: 3 }
  Developer:    { start_money: 1200, cost_of_living: 4 }
assets:
  Crops:
    default:
      name: "Wheat"
      cost_per_step:    [10, 20, 30]
      steps_to_build:   [1, 1, 1]
      normal_revenue:   [50, 90, 120]
      water_usage:      [10, 15, 20]
      maintenance_cost: [5, 6, 7]
      time_to_live:     [3, 3, 3]
`

type fakeTimer struct {
	mu   sync.Mutex
	fire func()
	d    time.Duration
	arms int
}

func (t *fakeTimer) Arm(d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fire, t.d = fire, d
	t.arms++
}

func (t *fakeTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fire = nil
}

func (t *fakeTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fire == nil {
		return 0
	}
	return t.d
}

func (t *fakeTimer) armed() (func(), time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fire, t.d
}

type recordingDispatcher struct {
	StaticDispatcher
	mu            sync.Mutex
	assetsCreated []string
	assetsRemoved []string
	fieldsCreated []string
	fieldsRemoved []string
}

func (d *recordingDispatcher) AssetCreated(v model.AssetView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assetsCreated = append(d.assetsCreated, v.ID)
}

func (d *recordingDispatcher) AssetRemoved(v model.AssetView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assetsRemoved = append(d.assetsRemoved, v.ID)
}

func (d *recordingDispatcher) FieldCreated(v model.FieldView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fieldsCreated = append(d.fieldsCreated, v.ID)
}

func (d *recordingDispatcher) FieldRemoved(v model.FieldView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fieldsRemoved = append(d.fieldsRemoved, v.ID)
}

type fixedRain int

func (r fixedRain) Rainfall(int, time.Time) int { return int(r) }

type flatEconomy struct{}

func (flatEconomy) Activity(int, []*model.Asset) map[model.AssetKind]float64 {
	return map[model.AssetKind]float64{model.KindCrops: 1, model.KindFactory: 1, model.KindHouses: 1}
}

type harness struct {
	e     *Engine
	timer *fakeTimer
	disp  *recordingDispatcher
	sub   *events.Subscription
}

func newHarness(t *testing.T, gameYAML string, rain int) *harness {
	t.Helper()
	n := 0
	disp := &recordingDispatcher{StaticDispatcher: StaticDispatcher{Configs: map[string]string{ConfigGame: gameYAML}}}
	timer := &fakeTimer{}
	e, err := New(Options{
		Logger:     zerolog.Nop(),
		Dispatcher: disp,
		Timer:      timer,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
		Rules: func(s rules.Set) rules.Set {
			s.Rainfall = fixedRain(rain)
			s.Economy = flatEconomy{}
			s.Distributor = rules.EqualDistributor{}
			return s
		},
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	sub := e.Bus().Subscribe(4096)
	t.Cleanup(sub.Close)
	return &harness{e: e, timer: timer, disp: disp, sub: sub}
}

func testParcel(id string, fields int) *model.Parcel {
	bp := model.NewParcel(id, "Parcel "+id)
	bp.DevelopmentRightsPrice = 100
	bp.WaterRightsPrice = 100
	bp.InitialWaterRights = 10
	for i := 1; i <= fields; i++ {
		bp.AddField(model.NewField(fmt.Sprintf("%s-f%d", id, i), model.Vec3i{X: i}))
	}
	return bp
}

func (h *harness) drain() []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-h.sub.C():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func ofType(evs []events.Event, typ events.Type) []events.Event {
	var out []events.Event
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (h *harness) start(t *testing.T, players map[string]model.Role, parcels ...*model.Parcel) {
	t.Helper()
	for id, role := range players {
		require.NoError(t, h.e.AddPlayer(id, id, role))
	}
	for _, bp := range parcels {
		require.NoError(t, h.e.RegisterBuyPoint(bp))
	}
	require.NoError(t, h.e.StartGame())
	require.Equal(t, PhaseBuild, h.e.Phase())
}

func TestStartGameEntersBuild(t *testing.T) {
	h := newHarness(t, testGame, 10)
	h.start(t, map[string]model.Role{"p1": model.RoleFarmer}, testParcel("bp1", 2))

	g := h.e.Game()
	require.Equal(t, "id-2", g.ID)
	require.Equal(t, 1, g.Round)
	require.Equal(t, 2, g.TotalRounds)
	require.Equal(t, 1000, g.Player("p1").Money)
	require.Equal(t, 2, g.Player("p1").CostOfLiving)

	_, d := h.timer.armed()
	require.Equal(t, 60*time.Second, d)

	evs := h.drain()
	var seq uint64
	for _, ev := range evs {
		require.Greater(t, ev.Seq, seq)
		seq = ev.Seq
	}
	var started []string
	for _, ev := range ofType(evs, events.PhaseStarted) {
		var p events.PhasePayload
		require.NoError(t, ev.Decode(&p))
		started = append(started, p.Phase)
	}
	require.Equal(t, []string{"GameStarting", "Build"}, started)
	require.Len(t, ofType(evs, events.Forecast), 1)
	require.Equal(t, []string{"bp1-f1", "bp1-f2"}, h.disp.fieldsCreated)
}

func TestStartGameWithoutPlayers(t *testing.T) {
	h := newHarness(t, testGame, 10)
	err := h.e.StartGame()
	require.True(t, model.IsDomain(err))
	require.Equal(t, protocol.ErrBadRequest, model.Code(err))
	require.Equal(t, PhaseRegistration, h.e.Phase())
}

func TestStartGameRejectsBadConfig(t *testing.T) {
	h := newHarness(t, "rounds: 0\n", 10)
	require.NoError(t, h.e.AddPlayer("p1", "p1", model.RoleFarmer))
	err := h.e.StartGame()
	require.Equal(t, protocol.ErrBadRequest, model.Code(err))
	require.Contains(t, err.Error(), "game.yaml")
	require.Equal(t, PhaseRegistration, h.e.Phase())
}

func TestAddPlayerValidation(t *testing.T) {
	h := newHarness(t, testGame, 10)
	require.Equal(t, protocol.ErrBadRequest, model.Code(h.e.AddPlayer("", "x", model.RoleFarmer)))
	require.Equal(t, protocol.ErrBadRequest, model.Code(h.e.AddPlayer(model.EconomyID, "x", model.RoleFarmer)))
	require.Equal(t, protocol.ErrBadRequest, model.Code(h.e.AddPlayer("p1", "x", model.RoleEconomy)))

	require.NoError(t, h.e.AddPlayer("p1", "Ada", model.RoleFarmer))
	require.NoError(t, h.e.AddPlayer("p1", "Ada L.", model.RoleManufacturer))
	p := h.e.Game().Player("p1")
	require.Equal(t, "Ada L.", p.Name)
	require.Equal(t, model.RoleManufacturer, p.Role)
	require.Equal(t, 1, h.e.Game().PlayerCount())
}

func TestDuplicateBuyPointIgnored(t *testing.T) {
	h := newHarness(t, testGame, 10)
	require.NoError(t, h.e.RegisterBuyPoint(testParcel("bp1", 1)))
	h.drain()
	require.NoError(t, h.e.RegisterBuyPoint(testParcel("bp1", 3)))
	require.Len(t, h.e.Game().Parcels(), 1)
	require.Len(t, h.e.Game().Parcel("bp1").Fields(), 1)
	require.Empty(t, h.drain())
}

func TestEndTurnBarrier(t *testing.T) {
	h := newHarness(t, testGame, 30)
	h.start(t, map[string]model.Role{
		"p1": model.RoleFarmer,
		"p2": model.RoleManufacturer,
		"p3": model.RoleDeveloper,
	})

	require.NoError(t, h.e.EndTurn("p1"))
	require.NoError(t, h.e.EndTurn("p1"))
	require.NoError(t, h.e.EndTurn("p2"))
	require.Equal(t, PhaseBuild, h.e.Phase())
	require.True(t, h.e.TurnEnded("p1"))
	require.False(t, h.e.TurnEnded("p3"))

	require.NoError(t, h.e.EndTurn("p3"))
	require.Equal(t, PhaseWater, h.e.Phase())
	require.False(t, h.e.TurnEnded("p1"))
	require.Equal(t, 10, h.e.Game().Player("p1").Water)
}

func TestEndTurnUnknownPlayer(t *testing.T) {
	h := newHarness(t, testGame, 10)
	h.start(t, map[string]model.Role{"p1": model.RoleFarmer})
	err := h.e.EndTurn("ghost")
	require.True(t, model.IsContract(err))
	require.ErrorIs(t, h.e.EndTurn(model.EconomyID), model.ErrContract)
	require.Equal(t, PhaseBuild, h.e.Phase())
}

func TestEndStageIsIdempotentAndStaleTimersAreIgnored(t *testing.T) {
	h := newHarness(t, testGame, 10)
	h.start(t, map[string]model.Role{"p1": model.RoleFarmer, "p2": model.RoleFarmer})

	buildFire, _ := h.timer.armed()
	require.NotNil(t, buildFire)

	require.NoError(t, h.e.EndStage())
	require.Equal(t, PhaseWater, h.e.Phase())
	_, d := h.timer.armed()
	require.Equal(t, 30*time.Second, d)

	buildFire()
	require.Equal(t, PhaseWater, h.e.Phase())

	waterFire, _ := h.timer.armed()
	waterFire()
	require.Equal(t, PhaseBuild, h.e.Phase())
	require.Equal(t, 2, h.e.Game().Round)

	// The second firing of the same deadline finds a newer Build phase.
	waterFire()
	require.Equal(t, PhaseBuild, h.e.Phase())
	require.Equal(t, 2, h.e.Game().Round)
}

func TestUnsupportedOperationsAreContractErrors(t *testing.T) {
	h := newHarness(t, testGame, 10)
	err := h.e.EndStage()
	require.True(t, IsUnsupported(err))
	require.True(t, model.IsContract(err))

	h.start(t, map[string]model.Role{"p1": model.RoleFarmer}, testParcel("bp1", 1))
	h.drain()

	require.True(t, IsUnsupported(h.e.AddPlayer("p2", "p2", model.RoleFarmer)))
	require.True(t, IsUnsupported(h.e.StartGame()))
	require.True(t, IsUnsupported(h.e.SellWater("p1", model.EconomyID, 1, 1)))
	require.Empty(t, ofType(h.drain(), events.OperationRejected))

	require.NoError(t, h.e.EndStage())
	require.Equal(t, PhaseWater, h.e.Phase())
	require.True(t, IsUnsupported(h.e.BuyLandRights("p1", "bp1")))
}

func TestDomainErrorIsPublishedAndAtomic(t *testing.T) {
	h := newHarness(t, testGame, 10)
	bp := testParcel("bp1", 1)
	h.start(t, map[string]model.Role{"p1": model.RoleFarmer}, bp)
	require.NoError(t, h.e.GiveMoney("p1", -950))
	h.drain()

	err := h.e.BuyLandRights("p1", "bp1")
	require.Equal(t, protocol.ErrNoResource, model.Code(err))
	require.Equal(t, 50, h.e.Game().Player("p1").Money)
	require.Nil(t, bp.DevelopmentRightsOwner())

	rejected := ofType(h.drain(), events.OperationRejected)
	require.Len(t, rejected, 1)
	var p events.RejectionPayload
	require.NoError(t, rejected[0].Decode(&p))
	require.Equal(t, "BuyLandRights", p.Operation)
	require.Equal(t, "p1", p.PlayerID)
	require.Equal(t, protocol.ErrNoResource, p.Code)
}

func TestBuildRejectsWhenTooPoor(t *testing.T) {
	h := newHarness(t, testGame, 10)
	bp := testParcel("bp1", 1)
	h.start(t, map[string]model.Role{"p1": model.RoleFarmer}, bp)
	require.NoError(t, h.e.BuyLandRights("p1", "bp1"))
	require.NoError(t, h.e.GiveMoney("p1", -795))

	err := h.e.BuildGameAsset("p1", "bp1", "bp1-f1", model.KindCrops, 1)
	require.Equal(t, protocol.ErrNoResource, model.Code(err))
	require.Equal(t, 5, h.e.Game().Player("p1").Money)
	require.Zero(t, bp.AssetCount())
	require.NotNil(t, bp.Field("bp1-f1"))
}

func TestRevenueRound(t *testing.T) {
	h := newHarness(t, testGame, 10)
	bp := testParcel("bp1", 1)
	h.start(t, map[string]model.Role{"p1": model.RoleFarmer}, bp)
	g := h.e.Game()
	p := g.Player("p1")

	require.NoError(t, h.e.BuyLandRights("p1", "bp1"))
	require.Equal(t, 800, p.Money)
	require.NoError(t, h.e.BuildGameAsset("p1", "bp1", "bp1-f1", model.KindCrops, 1))
	require.Equal(t, 790, p.Money)
	require.Nil(t, bp.Field("bp1-f1"))
	assets := bp.Assets()
	require.Len(t, assets, 1)
	a := assets[0]
	require.True(t, a.IsBuilt())
	require.Equal(t, []string{a.ID}, h.disp.assetsCreated)
	require.Equal(t, []string{"bp1-f1"}, h.disp.fieldsRemoved)

	require.NoError(t, h.e.EndTurn("p1"))
	require.Equal(t, PhaseWater, h.e.Phase())
	require.Equal(t, 10, p.Water)
	require.Equal(t, 10, g.Rainfall)

	err := h.e.UseWater("p1", a.ID, 4)
	require.True(t, model.IsDomain(err))
	require.Zero(t, a.WaterAllocated())
	require.NoError(t, h.e.UseWater("p1", a.ID, 10))
	require.Equal(t, 10, a.WaterAllocated())
	require.Equal(t, 50, a.ProjectedRevenue())
	h.drain()

	require.NoError(t, h.e.EndTurn("p1"))
	require.Equal(t, PhaseBuild, h.e.Phase())
	require.Equal(t, 833, p.Money)
	require.Equal(t, 2, g.Round)
	require.Equal(t, 2031, g.Date.Year())

	require.Len(t, p.History, 2)
	rec := p.History[1]
	require.Equal(t, 1, rec.Round)
	require.Equal(t, 50, rec.ProductRevenue)
	require.Equal(t, 5, rec.MaintenanceCost)
	require.Equal(t, 2, rec.CostOfLiving)
	require.Equal(t, 833, rec.EndMoney)
	require.Zero(t, p.Water)

	require.Equal(t, 2, a.TimeToLive)
	require.Zero(t, a.WaterAllocated())
	require.Equal(t, 833, p.Ledger.StartMoney)

	evs := h.drain()
	hist := ofType(evs, events.HistoryRecorded)
	require.Len(t, hist, 1)
	var hp events.HistoryPayload
	require.NoError(t, hist[0].Decode(&hp))
	require.Equal(t, 833, hp.Money)
	require.Equal(t, 43, hp.Profit+rec.BuildCost)

	rounds := ofType(evs, events.RoundAdvanced)
	require.Len(t, rounds, 1)
	var rp events.RoundPayload
	require.NoError(t, rounds[0].Decode(&rp))
	require.Equal(t, 1, rp.Round)
	require.Equal(t, 2, rp.Next)
}

func TestUnderwateredCropsDie(t *testing.T) {
	h := newHarness(t, testGame, 10)
	bp := testParcel("bp1", 1)
	h.start(t, map[string]model.Role{"p1": model.RoleFarmer}, bp)
	require.NoError(t, h.e.BuyLandRights("p1", "bp1"))
	require.NoError(t, h.e.BuildGameAsset("p1", "bp1", "bp1-f1", model.KindCrops, 1))
	a := bp.Assets()[0]

	require.NoError(t, h.e.EndStage())
	require.NoError(t, h.e.EndStage())
	require.Equal(t, PhaseBuild, h.e.Phase())
	require.Nil(t, h.e.Game().Asset(a.ID))
	require.NotNil(t, bp.Field("bp1-f1"))
	require.Equal(t, []string{a.ID}, h.disp.assetsRemoved)
	require.Contains(t, h.disp.fieldsCreated, "bp1-f1")
}

const shortLivedMillGame = testGame + `  Factory:
    default:
      name: "Mill"
      cost_per_step:    [40, 60, 80]
      steps_to_build:   [3, 3, 3]
      normal_revenue:   [80, 140, 200]
      water_usage:      [5, 10, 15]
      maintenance_cost: [2, 3, 4]
      time_to_live:     [1, 1, 1]
`

func TestUnfinishedAssetExpiresAfterOneRevenuePhase(t *testing.T) {
	h := newHarness(t, shortLivedMillGame, 10)
	bp := testParcel("bp1", 1)
	h.start(t, map[string]model.Role{"m1": model.RoleManufacturer}, bp)
	require.NoError(t, h.e.BuyLandRights("m1", "bp1"))
	require.NoError(t, h.e.BuildGameAsset("m1", "bp1", "bp1-f1", model.KindFactory, 1))
	a := bp.Assets()[0]
	require.False(t, a.IsBuilt())
	require.Equal(t, 1, a.TimeToLive)
	h.drain()

	require.NoError(t, h.e.EndTurn("m1"))
	require.Equal(t, PhaseWater, h.e.Phase())
	require.Same(t, a, h.e.Game().Asset(a.ID))
	require.NoError(t, h.e.EndTurn("m1"))
	require.Equal(t, PhaseBuild, h.e.Phase())

	require.Nil(t, h.e.Game().Asset(a.ID))
	require.Zero(t, bp.AssetCount())
	require.NotNil(t, bp.Field("bp1-f1"))
	require.Equal(t, []string{a.ID}, h.disp.assetsRemoved)
	removed := ofType(h.drain(), events.AssetRemoved)
	require.Len(t, removed, 1)
	require.Equal(t, a.ID, removed[0].EntityID)
}

func TestEndStageExpectingPhase(t *testing.T) {
	h := newHarness(t, testGame, 10)
	h.start(t, map[string]model.Role{"p1": model.RoleFarmer})

	require.NoError(t, h.e.EndStageIn(PhaseBuild))
	require.Equal(t, PhaseWater, h.e.Phase())

	err := h.e.EndStageIn(PhaseBuild)
	require.ErrorIs(t, err, ErrStalePhase)
	require.True(t, IsUnsupported(err))
	require.Equal(t, PhaseWater, h.e.Phase())

	require.NoError(t, h.e.EndStageIn(PhaseWater))
	require.Equal(t, PhaseBuild, h.e.Phase())

	p, err := ParsePhase("Water")
	require.NoError(t, err)
	require.Equal(t, PhaseWater, p)
	_, err = ParsePhase("Dusk")
	require.Error(t, err)
}

func TestEmitWithoutEncodablePayloadIsLogged(t *testing.T) {
	h := newHarness(t, testGame, 10)
	var buf bytes.Buffer
	h.e.log = zerolog.New(&buf)
	h.drain()

	h.e.game.Lock()
	h.e.emit(events.AssetChanged, "a1", "p1", map[string]any{"bad": make(chan int)})
	h.e.game.Unlock()

	evs := h.drain()
	require.Len(t, evs, 1)
	require.Equal(t, events.AssetChanged, evs[0].Type)
	require.Empty(t, evs[0].Payload)
	require.Contains(t, buf.String(), `"type":"ASSET_CHANGED"`)
	require.Contains(t, buf.String(), "event published without payload")
}

func TestGameEndsAfterLastRound(t *testing.T) {
	h := newHarness(t, testGame, 10)
	h.start(t, map[string]model.Role{"p1": model.RoleFarmer, "p2": model.RoleManufacturer})
	for i := 0; i < 4; i++ {
		require.NoError(t, h.e.EndStage())
	}
	require.Equal(t, PhaseGameEnded, h.e.Phase())
	fire, _ := h.timer.armed()
	require.Nil(t, fire)

	var standings []model.PlayerView
	for _, ev := range ofType(h.drain(), events.PhaseStarted) {
		var p events.PhasePayload
		require.NoError(t, ev.Decode(&p))
		if p.Phase == "GameEnded" {
			standings = p.Standings
		}
	}
	require.Len(t, standings, 2)
	require.Equal(t, "p2", standings[0].ID)
	require.GreaterOrEqual(t, standings[0].Money, standings[1].Money)

	require.True(t, IsUnsupported(h.e.EndStage()))
	require.NoError(t, h.e.GiveMoney("p1", 5))
}

func TestEndGameFromWater(t *testing.T) {
	h := newHarness(t, testGame, 10)
	h.start(t, map[string]model.Role{"p1": model.RoleFarmer})
	require.NoError(t, h.e.EndStage())
	require.NoError(t, h.e.EndGame())
	require.Equal(t, PhaseGameEnded, h.e.Phase())
	require.True(t, IsUnsupported(h.e.EndGame()))
}

func TestResetReturnsToRegistration(t *testing.T) {
	h := newHarness(t, testGame, 10)
	bp := testParcel("bp1", 2)
	h.start(t, map[string]model.Role{"p1": model.RoleFarmer}, bp)
	g := h.e.Game()
	oldID := g.ID
	require.NoError(t, h.e.BuyLandRights("p1", "bp1"))
	require.NoError(t, h.e.BuildGameAsset("p1", "bp1", "bp1-f1", model.KindCrops, 1))
	h.drain()

	require.NoError(t, h.e.ResetGame())
	require.Equal(t, PhaseRegistration, h.e.Phase())
	require.Zero(t, bp.AssetCount())
	require.Len(t, bp.Fields(), 2)
	require.Nil(t, bp.DevelopmentRightsOwner())
	require.Nil(t, bp.WaterRightsOwner())
	require.NoError(t, g.CheckIndex())

	p := g.Player("p1")
	require.Equal(t, 1000, p.Money)
	require.Zero(t, p.WaterEntitlement)
	require.Empty(t, p.DevelopmentRightsParcels())
	require.Zero(t, g.Round)
	fire, _ := h.timer.armed()
	require.Nil(t, fire)

	resets := ofType(h.drain(), events.GameReset)
	require.Len(t, resets, 1)
	var rp events.ResetPayload
	require.NoError(t, resets[0].Decode(&rp))
	require.Equal(t, oldID, rp.PreviousGameID)

	require.NoError(t, h.e.StartGame())
	require.Equal(t, PhaseBuild, h.e.Phase())
	require.NotEqual(t, oldID, g.ID)
	require.Equal(t, 1, g.Round)
}

func TestResettingRefusesEverything(t *testing.T) {
	h := newHarness(t, testGame, 10)
	require.NoError(t, h.e.AddPlayer("p1", "p1", model.RoleFarmer))
	s := newResettingState(h.e)
	require.NoError(t, s.resetGame())
	require.True(t, IsUnsupported(s.giveMoney(nil, 1)))
	require.True(t, IsUnsupported(s.changeBuyPointName(nil, "x")))
	require.True(t, IsUnsupported(s.refreshStatus()))
	require.True(t, IsUnsupported(s.startGame()))
}

func TestSellRightsThroughEngine(t *testing.T) {
	h := newHarness(t, testGame, 10)
	bp := testParcel("bp1", 1)
	h.start(t, map[string]model.Role{"p1": model.RoleFarmer, "p2": model.RoleManufacturer}, bp)
	require.NoError(t, h.e.BuyLandRights("p1", "bp1"))
	p1, p2 := h.e.Game().Player("p1"), h.e.Game().Player("p2")
	total := p1.Money + p2.Money

	require.NoError(t, h.e.SellRights("p1", "p2", "bp1", lifecycle.CombinedRights, 250))
	require.Equal(t, p2, bp.DevelopmentRightsOwner())
	require.Equal(t, p2, bp.WaterRightsOwner())
	require.Equal(t, total, p1.Money+p2.Money)

	err := h.e.SellRights("p1", "p2", "bp1", lifecycle.CombinedRights, 250)
	require.Equal(t, protocol.ErrNoPermission, model.Code(err))
	require.True(t, model.IsContract(h.e.SellRights("p1", "p2", "nowhere", lifecycle.WaterRights, 1)))
}

func TestStatusQueries(t *testing.T) {
	h := newHarness(t, testGame, 10)
	bp := testParcel("bp1", 2)
	h.start(t, map[string]model.Role{"p1": model.RoleFarmer, "p2": model.RoleFarmer}, bp)
	require.NoError(t, h.e.EndTurn("p1"))

	st, err := h.e.HudStatus("p1")
	require.NoError(t, err)
	require.Equal(t, "Build", st.Game.Phase)
	require.True(t, st.TurnEnded)
	require.Equal(t, 60*time.Second, st.StageRemaining)
	require.Equal(t, 2, st.Players)
	_, err = h.e.HudStatus("ghost")
	require.True(t, model.IsContract(err))

	require.NoError(t, h.e.ChangeBuyPointName("bp1", "Low Meadow"))
	bs, err := h.e.BuyPointStatus("bp1")
	require.NoError(t, err)
	require.Equal(t, "Low Meadow", bs.Parcel.Name)
	require.Len(t, bs.Fields, 2)
	require.Empty(t, bs.Assets)

	h.drain()
	require.NoError(t, h.e.UpdateBuyPointStatus("bp1"))
	evs := h.drain()
	require.Len(t, ofType(evs, events.ParcelChanged), 1)
	require.Len(t, ofType(evs, events.FieldChanged), 2)

	require.NoError(t, h.e.UpdateHudStatus("p2"))
	changed := ofType(h.drain(), events.PlayerChanged)
	require.Len(t, changed, 1)
	require.Equal(t, "p2", changed[0].PlayerID)
}

func TestConcurrentEndTurnsAdvanceOnce(t *testing.T) {
	h := newHarness(t, testGame, 10)
	players := map[string]model.Role{}
	for i := 0; i < 8; i++ {
		players[fmt.Sprintf("p%d", i)] = model.RoleFarmer
	}
	h.start(t, players)
	h.drain()

	var wg sync.WaitGroup
	for id := range players {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = h.e.EndTurn(id)
		}(id)
	}
	wg.Wait()
	require.Equal(t, PhaseWater, h.e.Phase())

	var ended []string
	for _, ev := range ofType(h.drain(), events.PhaseEnded) {
		var p events.PhasePayload
		require.NoError(t, ev.Decode(&p))
		ended = append(ended, p.Phase)
	}
	require.Equal(t, []string{"Build", "Allocation"}, ended)
}

package tuning

import (
	"strings"
	"testing"
	"time"

	"waterwise.ai/internal/sim/model"
)

func TestLoad_GameYAML(t *testing.T) {
	g, err := Load("../../../configs/game.yaml")
	if err != nil {
		t.Fatalf("load game.yaml: %v", err)
	}
	if g.Rounds != 8 {
		t.Fatalf("expected 8 rounds, got %d", g.Rounds)
	}
	if got := g.Role(model.RoleManufacturer).StartMoney; got != 1500 {
		t.Fatalf("expected manufacturer start money 1500, got %d", got)
	}
	start, _ := g.Start()
	if !start.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start date %v", start)
	}
	if g.WaterStage() != 120*time.Second {
		t.Fatalf("expected 120s water stage, got %v", g.WaterStage())
	}
	zones := g.Zones(model.KindCrops)
	if len(zones) != 2 || zones[0] != DefaultZone || zones[1] != "valley" {
		t.Fatalf("unexpected crops zones %v", zones)
	}
}

func TestTemplatesIndexFromLevelOne(t *testing.T) {
	tpl := Defaults().Templates()[model.KindFactory][DefaultZone]
	if tpl == nil {
		t.Fatalf("expected a default factory template")
	}
	if tpl.Levels.CostPerStep[0] != 0 || tpl.Levels.CostPerStep[1] != 50 || len(tpl.Levels.CostPerStep) != 4 {
		t.Fatalf("unexpected cost schedule %v", tpl.Levels.CostPerStep)
	}
	if tpl.ConstructionCostPerStep(3) != 100 {
		t.Fatalf("expected level 3 step cost 100, got %d", tpl.ConstructionCostPerStep(3))
	}
}

func TestParseRejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"rounds":     "rounds: 0\n",
		"start_date": "start_date: tomorrow\n",
		"levels":     "assets:\n  Crops:\n    default:\n      cost_per_step: [1]\n",
		"kind":       "assets:\n  Castle:\n    default: {}\n",
		"role":       "roles:\n  Mayor: { start_money: 1 }\n",
	}
	for name, raw := range cases {
		_, err := Parse(raw)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !strings.HasPrefix(err.Error(), "game.yaml:") {
			t.Fatalf("%s: expected game.yaml prefix, got %v", name, err)
		}
	}
}

func TestParseEmptyIsDefaults(t *testing.T) {
	g, err := Parse("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if g.Rounds != Defaults().Rounds || g.EconomyName != "Economy" {
		t.Fatalf("expected defaults, got %+v", g)
	}
}

func TestLoadBoard(t *testing.T) {
	b, err := LoadBoard("../../../configs/board.yaml")
	if err != nil {
		t.Fatalf("load board.yaml: %v", err)
	}
	if len(b.Parcels) != 3 {
		t.Fatalf("expected 3 parcels, got %d", len(b.Parcels))
	}
	bp := b.Parcels[1].Parcel()
	if bp.Zone != DefaultZone {
		t.Fatalf("expected default zone, got %q", bp.Zone)
	}
	fields := bp.Fields()
	if len(fields) != 2 || fields[0].ID != "hillside-f1" {
		t.Fatalf("unexpected fields %+v", fields)
	}
	if b.Parcels[0].Position.X != 10 {
		t.Fatalf("expected position x 10, got %d", b.Parcels[0].Position.X)
	}
}

func TestBoardValidate(t *testing.T) {
	b := Board{Parcels: []ParcelSpec{
		{ID: "a", Fields: []model.Vec3i{{}}},
		{ID: "a", Fields: []model.Vec3i{{}}},
	}}
	if err := b.Validate(); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

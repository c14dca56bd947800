package tuning

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"waterwise.ai/internal/sim/model"
)

// DefaultZone is used for any zone without its own asset table.
const DefaultZone = "default"

type Game struct {
	Rounds         int    `yaml:"rounds"`
	StartDate      string `yaml:"start_date"`
	DateStepMonths int    `yaml:"date_step_months"`

	BuildStageSeconds int `yaml:"build_stage_seconds"`
	WaterStageSeconds int `yaml:"water_stage_seconds"`

	EconomyName string `yaml:"economy_name"`

	Roles  map[string]RoleSpec             `yaml:"roles"`
	Assets map[string]map[string]AssetSpec `yaml:"assets"`
}

type RoleSpec struct {
	StartMoney   int `yaml:"start_money"`
	CostOfLiving int `yaml:"cost_of_living"`
}

// AssetSpec lists per-level values starting at level 1.
type AssetSpec struct {
	Name            string `yaml:"name"`
	CostPerStep     []int  `yaml:"cost_per_step"`
	StepsToBuild    []int  `yaml:"steps_to_build"`
	NormalRevenue   []int  `yaml:"normal_revenue"`
	WaterUsage      []int  `yaml:"water_usage"`
	MaintenanceCost []int  `yaml:"maintenance_cost"`
	TimeToLive      []int  `yaml:"time_to_live"`
}

func Defaults() Game {
	return Game{
		Rounds:            10,
		StartDate:         "2030-01",
		DateStepMonths:    12,
		BuildStageSeconds: 300,
		WaterStageSeconds: 180,
		EconomyName:       "Economy",
		Roles: map[string]RoleSpec{
			"Developer":    {StartMoney: 1000, CostOfLiving: 20},
			"Farmer":       {StartMoney: 1000, CostOfLiving: 20},
			"Manufacturer": {StartMoney: 1000, CostOfLiving: 20},
			"WaterMaster":  {StartMoney: 1000, CostOfLiving: 20},
		},
		Assets: map[string]map[string]AssetSpec{
			"Crops": {DefaultZone: {
				Name:            "Wheat",
				CostPerStep:     []int{20, 30, 40},
				StepsToBuild:    []int{1, 1, 1},
				NormalRevenue:   []int{60, 90, 120},
				WaterUsage:      []int{10, 15, 20},
				MaintenanceCost: []int{2, 3, 4},
				TimeToLive:      []int{1, 1, 1},
			}},
			"Factory": {DefaultZone: {
				Name:            "Mill",
				CostPerStep:     []int{50, 75, 100},
				StepsToBuild:    []int{3, 3, 3},
				NormalRevenue:   []int{80, 140, 200},
				WaterUsage:      []int{20, 35, 50},
				MaintenanceCost: []int{10, 15, 20},
				TimeToLive:      []int{model.Immortal, model.Immortal, model.Immortal},
			}},
			"Houses": {DefaultZone: {
				Name:            "Terrace",
				CostPerStep:     []int{40, 60, 80},
				StepsToBuild:    []int{2, 3, 4},
				NormalRevenue:   []int{150, 280, 450},
				WaterUsage:      []int{5, 10, 15},
				MaintenanceCost: []int{1, 2, 3},
				TimeToLive:      []int{model.Immortal, model.Immortal, model.Immortal},
			}},
		},
	}
}

// Parse reads a game document over the defaults.
func Parse(raw string) (Game, error) {
	g := Defaults()
	if strings.TrimSpace(raw) != "" {
		if err := yaml.Unmarshal([]byte(raw), &g); err != nil {
			return g, fmt.Errorf("game.yaml: %w", err)
		}
	}
	g.Normalize()
	if err := g.Validate(); err != nil {
		return g, fmt.Errorf("game.yaml: %w", err)
	}
	return g, nil
}

func Load(path string) (Game, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), err
	}
	return Parse(string(raw))
}

func (g *Game) Normalize() {
	if g == nil {
		return
	}
	if g.DateStepMonths <= 0 {
		g.DateStepMonths = 12
	}
	if strings.TrimSpace(g.EconomyName) == "" {
		g.EconomyName = "Economy"
	}
	for kind, zones := range g.Assets {
		for zone, spec := range zones {
			if strings.TrimSpace(spec.Name) == "" {
				spec.Name = kind
				zones[zone] = spec
			}
		}
	}
}

func (g Game) Validate() error {
	if g.Rounds <= 0 {
		return fmt.Errorf("rounds must be > 0")
	}
	if _, err := g.Start(); err != nil {
		return err
	}
	if g.BuildStageSeconds < 0 || g.WaterStageSeconds < 0 {
		return fmt.Errorf("stage durations must be >= 0")
	}
	for name := range g.Roles {
		if _, err := model.ParseRole(name); err != nil {
			return err
		}
	}
	for kindName, zones := range g.Assets {
		kind, err := model.ParseKind(kindName)
		if err != nil {
			return err
		}
		spec, _ := model.SpecFor(kind)
		for zone, a := range zones {
			levels := spec.MaxLevel
			for field, s := range map[string][]int{
				"cost_per_step":    a.CostPerStep,
				"steps_to_build":   a.StepsToBuild,
				"normal_revenue":   a.NormalRevenue,
				"water_usage":      a.WaterUsage,
				"maintenance_cost": a.MaintenanceCost,
				"time_to_live":     a.TimeToLive,
			} {
				if len(s) != levels {
					return fmt.Errorf("assets.%s.%s.%s: want %d levels, got %d", kindName, zone, field, levels, len(s))
				}
			}
			for i, steps := range a.StepsToBuild {
				if steps <= 0 {
					return fmt.Errorf("assets.%s.%s.steps_to_build[%d] must be > 0", kindName, zone, i)
				}
			}
			for i, ttl := range a.TimeToLive {
				if ttl == 0 || ttl < model.Immortal {
					return fmt.Errorf("assets.%s.%s.time_to_live[%d] must be > 0 or %d", kindName, zone, i, model.Immortal)
				}
			}
		}
	}
	return nil
}

// Start is the in-game date of round one.
func (g Game) Start() (time.Time, error) {
	t, err := time.Parse("2006-01", g.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("start_date %q: want YYYY-MM", g.StartDate)
	}
	return t, nil
}

func (g Game) BuildStage() time.Duration { return time.Duration(g.BuildStageSeconds) * time.Second }
func (g Game) WaterStage() time.Duration { return time.Duration(g.WaterStageSeconds) * time.Second }

// Role returns the money settings for r; unconfigured roles start with nothing.
func (g Game) Role(r model.Role) RoleSpec { return g.Roles[r.String()] }

// Templates converts the asset tables into model templates keyed by kind and
// zone.
func (g Game) Templates() map[model.AssetKind]map[string]*model.Template {
	out := map[model.AssetKind]map[string]*model.Template{}
	for kindName, zones := range g.Assets {
		kind, err := model.ParseKind(kindName)
		if err != nil {
			continue
		}
		out[kind] = map[string]*model.Template{}
		for zone, a := range zones {
			out[kind][zone] = &model.Template{
				Kind: kind,
				Name: a.Name,
				Zone: zone,
				Levels: model.Levels{
					CostPerStep:     levels(a.CostPerStep),
					StepsToBuild:    levels(a.StepsToBuild),
					NormalRevenue:   levels(a.NormalRevenue),
					WaterUsage:      levels(a.WaterUsage),
					MaintenanceCost: levels(a.MaintenanceCost),
					TimeToLive:      levels(a.TimeToLive),
				},
			}
		}
	}
	return out
}

// Zones lists the zones configured for kind, default first.
func (g Game) Zones(kind model.AssetKind) []string {
	var zones []string
	for zone := range g.Assets[kind.String()] {
		if zone != DefaultZone {
			zones = append(zones, zone)
		}
	}
	sort.Strings(zones)
	if _, ok := g.Assets[kind.String()][DefaultZone]; ok {
		zones = append([]string{DefaultZone}, zones...)
	}
	return zones
}

func levels(s []int) []int {
	return append([]int{0}, s...)
}

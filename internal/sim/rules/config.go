package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Rainfall     RainfallConfig     `yaml:"rainfall"`
	Distribution DistributionConfig `yaml:"distribution"`
	Economy      EconomyConfig      `yaml:"economy"`
	Forecast     ForecastConfig     `yaml:"forecast"`
}

type RainfallConfig struct {
	Seed int64 `yaml:"seed"`
	Min  int   `yaml:"min"`
	Max  int   `yaml:"max"`
}

type DistributionConfig struct {
	// "entitlement" or "equal".
	Mode string `yaml:"mode"`
}

type EconomyConfig struct {
	Seed  int64   `yaml:"seed"`
	Start float64 `yaml:"start"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Step  float64 `yaml:"step"`
}

type ForecastConfig struct {
	WaterSpread    float64 `yaml:"water_spread"`
	EconomicSpread float64 `yaml:"economic_spread"`
}

func Defaults() Config {
	return Config{
		Rainfall:     RainfallConfig{Seed: 1, Min: 80, Max: 160},
		Distribution: DistributionConfig{Mode: "entitlement"},
		Economy:      EconomyConfig{Seed: 2, Start: 1.0, Min: 0.5, Max: 1.5, Step: 0.15},
		Forecast:     ForecastConfig{WaterSpread: 0.2, EconomicSpread: 0.2},
	}
}

// Parse reads a rules document. Keys it omits keep their defaults.
func Parse(raw string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(raw) == "" {
		return cfg, nil
	}
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, fmt.Errorf("rules.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("rules.yaml: %w", err)
	}
	return cfg, nil
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), err
	}
	return Parse(string(b))
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Distribution.Mode = strings.ToLower(strings.TrimSpace(c.Distribution.Mode))
	if c.Distribution.Mode == "" {
		c.Distribution.Mode = "entitlement"
	}
	if c.Economy.Start == 0 {
		c.Economy.Start = (c.Economy.Min + c.Economy.Max) / 2
	}
}

func (c Config) Validate() error {
	if c.Rainfall.Min < 0 || c.Rainfall.Max < c.Rainfall.Min {
		return fmt.Errorf("rainfall range [%d,%d] invalid", c.Rainfall.Min, c.Rainfall.Max)
	}
	switch c.Distribution.Mode {
	case "entitlement", "equal":
	default:
		return fmt.Errorf("unknown distribution mode %q", c.Distribution.Mode)
	}
	e := c.Economy
	if e.Min <= 0 || e.Max < e.Min {
		return fmt.Errorf("economy range [%g,%g] invalid", e.Min, e.Max)
	}
	if e.Start < e.Min || e.Start > e.Max {
		return fmt.Errorf("economy start %g outside [%g,%g]", e.Start, e.Min, e.Max)
	}
	if e.Step < 0 {
		return fmt.Errorf("economy step must be >= 0")
	}
	if c.Forecast.WaterSpread < 0 || c.Forecast.EconomicSpread < 0 {
		return fmt.Errorf("forecast spreads must be >= 0")
	}
	return nil
}

// Build assembles the default strategies configured by c.
func Build(c Config) (Set, error) {
	if err := c.Validate(); err != nil {
		return Set{}, err
	}
	rain := SeededRainfall{Seed: c.Rainfall.Seed, Min: c.Rainfall.Min, Max: c.Rainfall.Max}
	walk := RandomWalkEconomy{Seed: c.Economy.Seed, Start: c.Economy.Start, Min: c.Economy.Min, Max: c.Economy.Max, Step: c.Economy.Step}
	var dist WaterDistributor = EntitlementDistributor{}
	if c.Distribution.Mode == "equal" {
		dist = EqualDistributor{}
	}
	return Set{
		Rainfall:         rain,
		Distributor:      dist,
		Allocator:        LedgerAllocator{},
		Economy:          walk,
		Values:           LevelScaledDistributor{},
		WaterForecast:    RainfallForecaster{Source: rain, Spread: c.Forecast.WaterSpread},
		EconomicForecast: ActivityForecaster{Source: walk, Spread: c.Forecast.EconomicSpread},
		Startup:          EntitlementFromWaterRights{},
	}, nil
}

package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"waterwise.ai/internal/sim/model"
)

// Board is the set of parcels laid out before any game starts.
type Board struct {
	Parcels []ParcelSpec `yaml:"parcels"`
}

type ParcelSpec struct {
	ID                     string        `yaml:"id"`
	Name                   string        `yaml:"name"`
	Zone                   string        `yaml:"zone"`
	Position               model.Vec3i   `yaml:"position"`
	DevelopmentRightsPrice int           `yaml:"development_rights_price"`
	WaterRightsPrice       int           `yaml:"water_rights_price"`
	InitialWaterRights     int           `yaml:"initial_water_rights"`
	Fields                 []model.Vec3i `yaml:"fields"`
}

func LoadBoard(path string) (Board, error) {
	var b Board
	raw, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("board.yaml: %w", err)
	}
	if err := b.Validate(); err != nil {
		return b, fmt.Errorf("board.yaml: %w", err)
	}
	return b, nil
}

func (b Board) Validate() error {
	seen := map[string]bool{}
	for i, p := range b.Parcels {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("parcels[%d]: missing id", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("parcels[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		if p.DevelopmentRightsPrice < 0 || p.WaterRightsPrice < 0 || p.InitialWaterRights < 0 {
			return fmt.Errorf("parcels[%d]: prices and rights must be >= 0", i)
		}
		if len(p.Fields) == 0 {
			return fmt.Errorf("parcels[%d]: no fields", i)
		}
	}
	return nil
}

// Parcel builds a model parcel with its fields. Field ids are derived from the
// parcel id so they stay stable across restarts.
func (p ParcelSpec) Parcel() *model.Parcel {
	bp := model.NewParcel(p.ID, p.Name)
	bp.Zone = p.Zone
	if bp.Zone == "" {
		bp.Zone = DefaultZone
	}
	bp.Position = p.Position
	bp.DevelopmentRightsPrice = p.DevelopmentRightsPrice
	bp.WaterRightsPrice = p.WaterRightsPrice
	bp.InitialWaterRights = p.InitialWaterRights
	for i, pos := range p.Fields {
		bp.AddField(model.NewField(fmt.Sprintf("%s-f%d", p.ID, i+1), pos))
	}
	return bp
}

package model

import "time"

// Views are immutable copies of entity state, built under the game
// transaction lock and safe to hand to other goroutines.

type PlayerView struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Role              string   `json:"role"`
	Money             int      `json:"money"`
	Water             int      `json:"water"`
	WaterEntitlement  int      `json:"water_entitlement"`
	CostOfLiving      int      `json:"cost_of_living"`
	Profit            int      `json:"profit"`
	Ledger            Ledger   `json:"ledger"`
	DevelopmentRights []string `json:"development_rights"`
	WaterRights       []string `json:"water_rights"`
}

type ParcelView struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	Zone                   string `json:"zone"`
	Position               Vec3i  `json:"position"`
	DevelopmentRightsPrice int    `json:"development_rights_price"`
	WaterRightsPrice       int    `json:"water_rights_price"`
	InitialWaterRights     int    `json:"initial_water_rights"`
	WaterAvailable         int    `json:"water_available"`
	DevelopmentOwnerID     string `json:"development_owner_id,omitempty"`
	WaterOwnerID           string `json:"water_owner_id,omitempty"`
	ChosenKind             string `json:"chosen_kind,omitempty"`
	Fields                 int    `json:"fields"`
	Assets                 int    `json:"assets"`
}

type FieldView struct {
	ID       string `json:"id"`
	ParcelID string `json:"parcel_id"`
	Position Vec3i  `json:"position"`
	OwnerID  string `json:"owner_id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Removed  bool   `json:"removed,omitempty"`
}

type AssetView struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	Kind                   string `json:"kind"`
	ParcelID               string `json:"parcel_id"`
	FieldID                string `json:"field_id"`
	Position               Vec3i  `json:"position"`
	OwnerID                string `json:"owner_id"`
	Level                  int    `json:"level"`
	StepsBuilt             int    `json:"steps_built"`
	StepsToBuild           int    `json:"steps_to_build"`
	IsBuilt                bool   `json:"is_built"`
	WaterUsage             int    `json:"water_usage"`
	WaterAllocated         int    `json:"water_allocated"`
	TimeToLive             int    `json:"time_to_live"`
	RevenueThisTurn        int    `json:"revenue_this_turn"`
	ProjectedRevenue       int    `json:"projected_revenue"`
	MarketPrice            int    `json:"market_price"`
	MaintenanceCost        int    `json:"maintenance_cost"`
	Profit                 int    `json:"profit"`
	NominalMaximumProfit   int    `json:"nominal_maximum_profit"`
	IsSoldToEconomy        bool   `json:"is_sold_to_economy"`
	AccruedMaintenanceCost int    `json:"accrued_maintenance_cost"`
}

// GameView is the header of the HUD status.
type GameView struct {
	ID               string             `json:"id"`
	Phase            string             `json:"phase"`
	Round            int                `json:"round"`
	TotalRounds      int                `json:"total_rounds"`
	Date             time.Time          `json:"date"`
	Rainfall         int                `json:"rainfall"`
	WaterForecast    Range              `json:"water_forecast"`
	EconomicForecast map[string]Range   `json:"economic_forecast,omitempty"`
	Activity         map[string]float64 `json:"activity,omitempty"`
}

func ViewPlayer(p *Player) PlayerView {
	v := PlayerView{
		ID:               p.ID,
		Name:             p.Name,
		Role:             p.Role.String(),
		Money:            p.Money,
		Water:            p.Water,
		WaterEntitlement: p.WaterEntitlement,
		CostOfLiving:     p.CostOfLiving,
		Profit:           p.Profit(),
		Ledger:           p.Ledger,
	}
	for _, bp := range p.DevelopmentRightsParcels() {
		v.DevelopmentRights = append(v.DevelopmentRights, bp.ID)
	}
	for _, bp := range p.WaterRightsParcels() {
		v.WaterRights = append(v.WaterRights, bp.ID)
	}
	return v
}

func ViewParcel(bp *Parcel) ParcelView {
	v := ParcelView{
		ID:                     bp.ID,
		Name:                   bp.Name,
		Zone:                   bp.Zone,
		Position:               bp.Position,
		DevelopmentRightsPrice: bp.DevelopmentRightsPrice,
		WaterRightsPrice:       bp.WaterRightsPrice,
		InitialWaterRights:     bp.InitialWaterRights,
		WaterAvailable:         bp.WaterAvailable,
		Fields:                 len(bp.Fields()),
		Assets:                 bp.AssetCount(),
	}
	if o := bp.DevelopmentRightsOwner(); o != nil {
		v.DevelopmentOwnerID = o.ID
	}
	if o := bp.WaterRightsOwner(); o != nil {
		v.WaterOwnerID = o.ID
	}
	if k := bp.ChosenKind(); k != KindNone {
		v.ChosenKind = k.String()
	}
	return v
}

func ViewField(f *Field, removed bool) FieldView {
	v := FieldView{
		ID:       f.ID,
		ParcelID: f.ParcelID,
		Position: f.Position,
		OwnerID:  f.OwnerID,
		Removed:  removed,
	}
	if f.Kind != KindNone {
		v.Kind = f.Kind.String()
	}
	return v
}

func ViewAsset(a *Asset) AssetView {
	return AssetView{
		ID:                     a.ID,
		Name:                   a.Name,
		Kind:                   a.Kind.String(),
		ParcelID:               a.ParcelID,
		FieldID:                a.FieldID,
		Position:               a.Position,
		OwnerID:                a.OwnerID,
		Level:                  a.Level(),
		StepsBuilt:             a.StepsBuilt,
		StepsToBuild:           a.StepsToBuild(),
		IsBuilt:                a.IsBuilt(),
		WaterUsage:             a.WaterUsage(),
		WaterAllocated:         a.WaterAllocated(),
		TimeToLive:             a.TimeToLive,
		RevenueThisTurn:        a.RevenueThisTurn,
		ProjectedRevenue:       a.ProjectedRevenue(),
		MarketPrice:            a.MarketPrice,
		MaintenanceCost:        a.MaintenanceCost(),
		Profit:                 a.Profit(),
		NominalMaximumProfit:   a.NominalMaximumProfit(),
		IsSoldToEconomy:        a.IsSoldToEconomy,
		AccruedMaintenanceCost: a.AccruedMaintenanceCost,
	}
}

func ViewGame(g *Game) GameView {
	v := GameView{
		ID:            g.ID,
		Phase:         g.Phase,
		Round:         g.Round,
		TotalRounds:   g.TotalRounds,
		Date:          g.Date,
		Rainfall:      g.Rainfall,
		WaterForecast: g.WaterForecast,
	}
	if len(g.EconomicForecast) > 0 {
		v.EconomicForecast = map[string]Range{}
		for k, r := range g.EconomicForecast {
			v.EconomicForecast[k.String()] = r
		}
	}
	if len(g.Activity) > 0 {
		v.Activity = map[string]float64{}
		for k, a := range g.Activity {
			v.Activity[k.String()] = a
		}
	}
	return v
}

package model

// Ledger accumulates one player's money and water movements for one turn.
// Transactions write it as they execute.
type Ledger struct {
	Round      int `json:"round"`
	StartMoney int `json:"start_money"`
	EndMoney   int `json:"end_money"`

	LandRevenue        int `json:"land_revenue"`
	LandCost           int `json:"land_cost"`
	WaterRightsRevenue int `json:"water_rights_revenue"`
	WaterRightsCost    int `json:"water_rights_cost"`
	BuildRevenue       int `json:"build_revenue"`
	BuildCost          int `json:"build_cost"`
	WaterRevenue       int `json:"water_revenue"`
	WaterCost          int `json:"water_cost"`

	WaterReceived   int `json:"water_received"`
	ProductRevenue  int `json:"product_revenue"`
	MaintenanceCost int `json:"maintenance_cost"`
	CostOfLiving    int `json:"cost_of_living"`
}

// Profit is a read-only projection over the turn's categories. The base is
// role independent; the rest depends on what the role earns from.
func (l Ledger) Profit(role Role) int {
	profit := l.WaterRevenue - l.MaintenanceCost - l.WaterCost - l.CostOfLiving
	switch role {
	case RoleDeveloper:
		profit += l.BuildRevenue - l.BuildCost
	case RoleManufacturer:
		profit += l.ProductRevenue
	case RoleFarmer:
		profit += l.ProductRevenue - l.BuildCost
	}
	return profit
}

// OperatingRevenue is the revenue the role is judged on for the turn.
func (l Ledger) OperatingRevenue(role Role) int {
	switch role {
	case RoleFarmer, RoleManufacturer:
		return l.ProductRevenue
	case RoleDeveloper:
		return l.BuildRevenue
	default:
		return 0
	}
}

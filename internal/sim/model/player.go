package model

import "sort"

// Player balances, ledger and history are guarded by the game transaction lock.
type Player struct {
	ID   string
	Name string
	Role Role

	Money            int
	Water            int
	WaterEntitlement int
	CostOfLiving     int

	Ledger Ledger
	// History[n] is the ledger recorded at the end of round n; History[0] is
	// always nil.
	History []*Ledger

	devParcels   map[string]*Parcel
	waterParcels map[string]*Parcel
}

func NewPlayer(id, name string, role Role) *Player {
	return &Player{
		ID:           id,
		Name:         name,
		Role:         role,
		History:      []*Ledger{nil},
		devParcels:   map[string]*Parcel{},
		waterParcels: map[string]*Parcel{},
	}
}

// Reset returns the player to its pre-game state.
func (p *Player) Reset(startMoney, costOfLiving int) {
	p.Money = startMoney
	p.Water = 0
	p.WaterEntitlement = 0
	p.CostOfLiving = costOfLiving
	p.History = []*Ledger{nil}
	p.Ledger = Ledger{StartMoney: startMoney}
}

func (p *Player) CanAfford(amount int) bool { return p.Money >= amount }

// RecordHistory appends an immutable copy of the current ledger.
func (p *Player) RecordHistory(round int) *Ledger {
	if len(p.History) == 0 {
		p.History = []*Ledger{nil}
	}
	snap := p.Ledger
	snap.Round = round
	snap.EndMoney = p.Money
	p.History = append(p.History, &snap)
	return &snap
}

func (p *Player) ResetForNextTurn() {
	p.Ledger = Ledger{StartMoney: p.Money}
}

func (p *Player) Profit() int { return p.Ledger.Profit(p.Role) }

func (p *Player) DevelopmentRightsParcels() []*Parcel { return sortedParcels(p.devParcels) }
func (p *Player) WaterRightsParcels() []*Parcel       { return sortedParcels(p.waterParcels) }

func (p *Player) OwnsDevelopmentRights(bp *Parcel) bool {
	_, ok := p.devParcels[bp.ID]
	return ok
}

func (p *Player) OwnsWaterRights(bp *Parcel) bool {
	_, ok := p.waterParcels[bp.ID]
	return ok
}

func sortedParcels(m map[string]*Parcel) []*Parcel {
	out := make([]*Parcel, 0, len(m))
	for _, bp := range m {
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

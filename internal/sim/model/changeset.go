package model

import "sort"

// Transaction kinds.
const (
	TxBuyLandRights       = "BUY_LAND_RIGHTS"
	TxSellDevelopment     = "SELL_DEVELOPMENT_RIGHTS"
	TxSellWaterRightsLand = "SELL_PARCEL_WATER_RIGHTS"
	TxSellCombinedRights  = "SELL_COMBINED_RIGHTS"
	TxSellWaterRights     = "SELL_WATER_RIGHTS"
	TxSellWater           = "SELL_WATER"
	TxBuild               = "BUILD"
	TxUpgrade             = "UPGRADE"
	TxSellToEconomy       = "SELL_TO_ECONOMY"
	TxGiveMoney           = "GIVE_MONEY"
	TxGiveWater           = "GIVE_WATER"
	TxGiveWaterRights     = "GIVE_WATER_RIGHTS"
	TxRevenue             = "REVENUE"
)

// Transaction records a completed money or water movement.
type Transaction struct {
	Kind     string `json:"kind"`
	FromID   string `json:"from_id,omitempty"`
	ToID     string `json:"to_id,omitempty"`
	Money    int    `json:"money,omitempty"`
	Water    int    `json:"water,omitempty"`
	Rights   int    `json:"rights,omitempty"`
	ParcelID string `json:"parcel_id,omitempty"`
	AssetID  string `json:"asset_id,omitempty"`
}

// ChangeSet collects the entities an operation touched so that notifications
// can be derived once the operation completes.
type ChangeSet struct {
	players map[string]*Player
	parcels map[string]*Parcel
	fields  map[string]*Field
	assets  map[string]*Asset

	removedAssets map[string]*Asset
	removedFields map[string]*Field
	addedFields   map[string]*Field
	addedAssets   map[string]*Asset

	Transactions []Transaction
}

func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		players:       map[string]*Player{},
		parcels:       map[string]*Parcel{},
		fields:        map[string]*Field{},
		assets:        map[string]*Asset{},
		removedAssets: map[string]*Asset{},
		removedFields: map[string]*Field{},
		addedFields:   map[string]*Field{},
		addedAssets:   map[string]*Asset{},
	}
}

func (cs *ChangeSet) TouchPlayer(p *Player) {
	if p != nil {
		cs.players[p.ID] = p
	}
}

func (cs *ChangeSet) TouchParcel(bp *Parcel) {
	if bp != nil {
		cs.parcels[bp.ID] = bp
	}
}

func (cs *ChangeSet) TouchField(f *Field) {
	if f != nil {
		cs.fields[f.ID] = f
	}
}

func (cs *ChangeSet) TouchAsset(a *Asset) {
	if a == nil {
		return
	}
	if _, gone := cs.removedAssets[a.ID]; gone {
		return
	}
	cs.assets[a.ID] = a
}

// AddAsset records a newly attached asset.
func (cs *ChangeSet) AddAsset(a *Asset) {
	cs.addedAssets[a.ID] = a
	cs.TouchAsset(a)
}

// RemoveAsset records a detached asset. An asset added and removed within the
// same operation is reported only as removed.
func (cs *ChangeSet) RemoveAsset(a *Asset) {
	delete(cs.assets, a.ID)
	delete(cs.addedAssets, a.ID)
	cs.removedAssets[a.ID] = a
}

// AddField records a field laid on a parcel.
func (cs *ChangeSet) AddField(f *Field) {
	delete(cs.removedFields, f.ID)
	cs.addedFields[f.ID] = f
	cs.fields[f.ID] = f
}

// RemoveField records a field consumed by a build.
func (cs *ChangeSet) RemoveField(f *Field) {
	delete(cs.fields, f.ID)
	delete(cs.addedFields, f.ID)
	cs.removedFields[f.ID] = f
}

func (cs *ChangeSet) AddTransaction(t Transaction) {
	cs.Transactions = append(cs.Transactions, t)
}

func (cs *ChangeSet) Empty() bool {
	return len(cs.players) == 0 && len(cs.parcels) == 0 && len(cs.fields) == 0 &&
		len(cs.assets) == 0 && len(cs.removedAssets) == 0 && len(cs.removedFields) == 0 &&
		len(cs.Transactions) == 0
}

func (cs *ChangeSet) Players() []*Player {
	out := make([]*Player, 0, len(cs.players))
	for _, p := range cs.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (cs *ChangeSet) Parcels() []*Parcel { return sortedParcels(cs.parcels) }

func (cs *ChangeSet) Fields() []*Field        { return sortedFields(cs.fields) }
func (cs *ChangeSet) AddedFields() []*Field   { return sortedFields(cs.addedFields) }
func (cs *ChangeSet) RemovedFields() []*Field { return sortedFields(cs.removedFields) }
func (cs *ChangeSet) Assets() []*Asset        { return sortedAssets(cs.assets) }
func (cs *ChangeSet) AddedAssets() []*Asset   { return sortedAssets(cs.addedAssets) }
func (cs *ChangeSet) RemovedAssets() []*Asset { return sortedAssets(cs.removedAssets) }

func sortedFields(m map[string]*Field) []*Field {
	out := make([]*Field, 0, len(m))
	for _, f := range m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedAssets(m map[string]*Asset) []*Asset {
	out := make([]*Asset, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

package model

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Range is a forecast interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Game is the aggregate root.
//
// Locking: the players, parcels and asset index each have their own mutex and
// are only ever copied under it. Multi-entity mutations run inside the
// transaction lock (Lock/Unlock); every field below not guarded by a
// collection mutex belongs to it.
type Game struct {
	ID          string
	Phase       string
	Round       int
	TotalRounds int
	Date        time.Time

	Economy *Player

	Activity         map[AssetKind]float64
	Rainfall         int
	WaterForecast    Range
	EconomicForecast map[AssetKind]Range

	txMu sync.Mutex

	playersMu sync.Mutex
	players   map[string]*Player

	parcelsMu sync.Mutex
	parcels   map[string]*Parcel

	assetsMu sync.Mutex
	assets   map[string]*Asset
}

const EconomyID = "economy"

func NewGame(id, economyName string) *Game {
	if economyName == "" {
		economyName = "Economy"
	}
	return &Game{
		ID:               id,
		Economy:          NewPlayer(EconomyID, economyName, RoleEconomy),
		Activity:         map[AssetKind]float64{},
		EconomicForecast: map[AssetKind]Range{},
		players:          map[string]*Player{},
		parcels:          map[string]*Parcel{},
		assets:           map[string]*Asset{},
	}
}

func (g *Game) Lock()   { g.txMu.Lock() }
func (g *Game) Unlock() { g.txMu.Unlock() }

// PutPlayer registers p, replacing any player with the same id. It returns the
// replaced player, if any.
func (g *Game) PutPlayer(p *Player) *Player {
	g.playersMu.Lock()
	defer g.playersMu.Unlock()
	old := g.players[p.ID]
	g.players[p.ID] = p
	return old
}

// Player resolves id, including the economy pseudo-player.
func (g *Game) Player(id string) *Player {
	if id == EconomyID {
		return g.Economy
	}
	g.playersMu.Lock()
	defer g.playersMu.Unlock()
	return g.players[id]
}

// Players returns the registered players ordered by id. The economy is not
// among them.
func (g *Game) Players() []*Player {
	g.playersMu.Lock()
	out := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, p)
	}
	g.playersMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *Game) PlayerCount() int {
	g.playersMu.Lock()
	defer g.playersMu.Unlock()
	return len(g.players)
}

// AddParcel registers bp. It reports false, leaving the board untouched, when
// a parcel with the same id already exists.
func (g *Game) AddParcel(bp *Parcel) bool {
	g.parcelsMu.Lock()
	defer g.parcelsMu.Unlock()
	if _, ok := g.parcels[bp.ID]; ok {
		return false
	}
	g.parcels[bp.ID] = bp
	return true
}

func (g *Game) Parcel(id string) *Parcel {
	g.parcelsMu.Lock()
	defer g.parcelsMu.Unlock()
	return g.parcels[id]
}

func (g *Game) Parcels() []*Parcel {
	g.parcelsMu.Lock()
	out := make([]*Parcel, 0, len(g.parcels))
	for _, bp := range g.parcels {
		out = append(out, bp)
	}
	g.parcelsMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *Game) Asset(id string) *Asset {
	g.assetsMu.Lock()
	defer g.assetsMu.Unlock()
	return g.assets[id]
}

func (g *Game) Assets() []*Asset {
	g.assetsMu.Lock()
	out := make([]*Asset, 0, len(g.assets))
	for _, a := range g.assets {
		out = append(out, a)
	}
	g.assetsMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AttachAsset places a on bp in place of field f and indexes it.
func (g *Game) AttachAsset(bp *Parcel, f *Field, a *Asset) error {
	if f.Parcel() != bp {
		return Contractf("field %s is not on parcel %s", f.ID, bp.ID)
	}
	if err := bp.addAsset(a); err != nil {
		return err
	}
	f.Detach()
	g.assetsMu.Lock()
	g.assets[a.ID] = a
	g.assetsMu.Unlock()
	return nil
}

// DetachAsset removes a from its parcel and the index, and lays a fresh field
// where it stood. The field is attributed to the parcel's current development
// rights owner.
func (g *Game) DetachAsset(a *Asset) (*Field, error) {
	bp := g.Parcel(a.ParcelID)
	if bp == nil {
		return nil, Contractf("asset %s references unknown parcel %q", a.ID, a.ParcelID)
	}
	if !bp.removeAsset(a.ID) {
		return nil, Contractf("asset %s is not on parcel %s", a.ID, bp.ID)
	}
	g.assetsMu.Lock()
	delete(g.assets, a.ID)
	g.assetsMu.Unlock()

	f := NewField(a.FieldID, a.Position)
	if owner := bp.DevelopmentRightsOwner(); owner != nil {
		f.OwnerID = owner.ID
		f.Kind = owner.Role.FieldKind()
	}
	bp.AddField(f)
	return f, nil
}

// CheckIndex verifies that the asset index and the parcels hold the same
// assets.
func (g *Game) CheckIndex() error {
	seen := map[string]bool{}
	for _, bp := range g.Parcels() {
		for _, a := range bp.Assets() {
			if g.Asset(a.ID) != a {
				return fmt.Errorf("asset %s on parcel %s missing from index", a.ID, bp.ID)
			}
			if a.ParcelID != bp.ID {
				return fmt.Errorf("asset %s on parcel %s claims parcel %s", a.ID, bp.ID, a.ParcelID)
			}
			seen[a.ID] = true
		}
	}
	for _, a := range g.Assets() {
		if !seen[a.ID] {
			return fmt.Errorf("indexed asset %s is on no parcel", a.ID)
		}
	}
	return nil
}

// ResetBoard clears all game state from the parcels: assets are removed and
// their fields restored, rights are released and water is drained. Parcel
// identity, prices and fields survive.
func (g *Game) ResetBoard(cs *ChangeSet) error {
	for _, bp := range g.Parcels() {
		for _, a := range bp.Assets() {
			f, err := g.DetachAsset(a)
			if err != nil {
				return err
			}
			cs.RemoveAsset(a)
			cs.AddField(f)
		}
		if from := TransferDevelopmentRights(bp, nil); from != nil {
			cs.TouchPlayer(from)
		}
		if from := TransferWaterRights(bp, nil); from != nil {
			cs.TouchPlayer(from)
		}
		bp.WaterAvailable = 0
		bp.Respecialize()
		cs.TouchParcel(bp)
		for _, f := range bp.Fields() {
			cs.TouchField(f)
		}
	}
	return nil
}

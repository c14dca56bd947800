package model

import (
	"sort"
	"sync"
)

// Parcel is a buy point: land whose development and water rights are owned
// separately and which is subdivided into fields.
type Parcel struct {
	ID       string
	Name     string
	Zone     string
	Position Vec3i

	DevelopmentRightsPrice int
	WaterRightsPrice       int
	InitialWaterRights     int

	// Water that reached this parcel this turn.
	WaterAvailable int

	// Guarded by the game transaction lock.
	devOwner   *Player
	waterOwner *Player
	chosenKind AssetKind

	fieldsMu sync.Mutex
	fields   map[string]*Field

	assetsMu sync.Mutex
	assets   map[string]*Asset
}

func NewParcel(id, name string) *Parcel {
	return &Parcel{
		ID:     id,
		Name:   name,
		fields: map[string]*Field{},
		assets: map[string]*Asset{},
	}
}

func (p *Parcel) DevelopmentRightsOwner() *Player { return p.devOwner }
func (p *Parcel) WaterRightsOwner() *Player       { return p.waterOwner }

// ChosenKind is KindNone exactly when the parcel carries no assets.
func (p *Parcel) ChosenKind() AssetKind { return p.chosenKind }

func (p *Parcel) AddField(f *Field) {
	if f.parcel != nil && f.parcel != p {
		f.Detach()
	}
	f.parcel = p
	f.ParcelID = p.ID
	p.fieldsMu.Lock()
	p.fields[f.ID] = f
	p.fieldsMu.Unlock()
}

func (p *Parcel) Field(id string) *Field {
	p.fieldsMu.Lock()
	defer p.fieldsMu.Unlock()
	return p.fields[id]
}

// Fields returns a copy of the unoccupied fields ordered by id.
func (p *Parcel) Fields() []*Field {
	p.fieldsMu.Lock()
	out := make([]*Field, 0, len(p.fields))
	for _, f := range p.fields {
		out = append(out, f)
	}
	p.fieldsMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *Parcel) Asset(id string) *Asset {
	p.assetsMu.Lock()
	defer p.assetsMu.Unlock()
	return p.assets[id]
}

// Assets returns a copy of the built and building assets ordered by id.
func (p *Parcel) Assets() []*Asset {
	p.assetsMu.Lock()
	out := make([]*Asset, 0, len(p.assets))
	for _, a := range p.assets {
		out = append(out, a)
	}
	p.assetsMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *Parcel) AssetCount() int {
	p.assetsMu.Lock()
	defer p.assetsMu.Unlock()
	return len(p.assets)
}

func (p *Parcel) addAsset(a *Asset) error {
	p.assetsMu.Lock()
	defer p.assetsMu.Unlock()
	if p.chosenKind != KindNone && p.chosenKind != a.Kind {
		return Contractf("parcel %s is specialised to %s, cannot hold %s", p.ID, p.chosenKind, a.Kind)
	}
	p.assets[a.ID] = a
	p.chosenKind = a.Kind
	a.ParcelID = p.ID
	return nil
}

func (p *Parcel) removeAsset(id string) bool {
	p.assetsMu.Lock()
	defer p.assetsMu.Unlock()
	if _, ok := p.assets[id]; !ok {
		return false
	}
	delete(p.assets, id)
	if len(p.assets) == 0 {
		p.chosenKind = KindNone
	}
	return true
}

// Respecialize points every field at the current development rights owner and
// the kind that owner's role may build.
func (p *Parcel) Respecialize() {
	ownerID, kind := "", KindNone
	if p.devOwner != nil {
		ownerID, kind = p.devOwner.ID, p.devOwner.Role.FieldKind()
	}
	for _, f := range p.Fields() {
		f.OwnerID = ownerID
		f.Kind = kind
	}
}

package model

// Field is an empty buildable slot on a parcel.
type Field struct {
	ID       string
	Position Vec3i
	// ParcelID survives Detach so a consumed field can still be reported.
	ParcelID string
	// OwnerID is the development rights owner when the field was created or last
	// re-specialised; a field built on is attributed to this player.
	OwnerID string
	Kind    AssetKind

	parcel *Parcel
}

func NewField(id string, pos Vec3i) *Field {
	return &Field{ID: id, Position: pos}
}

func (f *Field) Parcel() *Parcel { return f.parcel }

// Detach removes the field from its parcel's field set.
func (f *Field) Detach() {
	p := f.parcel
	if p == nil {
		return
	}
	p.fieldsMu.Lock()
	delete(p.fields, f.ID)
	p.fieldsMu.Unlock()
	f.parcel = nil
}

package engine

import (
	"time"

	"waterwise.ai/internal/sim/model"
)

// HudStatus is what one player's heads-up display shows.
type HudStatus struct {
	Game           model.GameView   `json:"game"`
	Player         model.PlayerView `json:"player"`
	TurnEnded      bool             `json:"turn_ended"`
	StageRemaining time.Duration    `json:"stage_remaining"`
	Players        int              `json:"players"`
}

// BuyPointStatus is a parcel with everything standing on it.
type BuyPointStatus struct {
	Parcel model.ParcelView  `json:"parcel"`
	Fields []model.FieldView `json:"fields"`
	Assets []model.AssetView `json:"assets"`
}

func (e *Engine) HudStatus(playerID string) (HudStatus, error) {
	e.game.Lock()
	defer e.game.Unlock()
	p, err := e.player(playerID)
	if err != nil {
		return HudStatus{}, err
	}
	st := HudStatus{
		Game:      model.ViewGame(e.game),
		Player:    model.ViewPlayer(p),
		TurnEnded: e.state.turnEnded(playerID),
		Players:   e.game.PlayerCount(),
	}
	if e.state.phase().Interactive() {
		st.StageRemaining = e.timer.Remaining()
	}
	return st, nil
}

func (e *Engine) BuyPointStatus(parcelID string) (BuyPointStatus, error) {
	e.game.Lock()
	defer e.game.Unlock()
	bp, err := e.parcel(parcelID)
	if err != nil {
		return BuyPointStatus{}, err
	}
	out := BuyPointStatus{Parcel: model.ViewParcel(bp)}
	for _, f := range bp.Fields() {
		out.Fields = append(out.Fields, model.ViewField(f, false))
	}
	for _, a := range bp.Assets() {
		out.Assets = append(out.Assets, model.ViewAsset(a))
	}
	return out, nil
}

// UpdateHudStatus republishes the player's state so a presentation that lost
// track of it can resynchronize.
func (e *Engine) UpdateHudStatus(playerID string) error {
	return e.withPlayer("UpdateHudStatus", playerID, func(st state, p *model.Player) error {
		if err := st.refreshStatus(); err != nil {
			return err
		}
		e.cs.TouchPlayer(p)
		return nil
	})
}

// UpdateBuyPointStatus republishes a parcel, its fields and its assets.
func (e *Engine) UpdateBuyPointStatus(parcelID string) error {
	return e.do("UpdateBuyPointStatus", "", func(st state) error {
		bp, err := e.parcel(parcelID)
		if err != nil {
			return err
		}
		if err := st.refreshStatus(); err != nil {
			return err
		}
		e.cs.TouchParcel(bp)
		for _, f := range bp.Fields() {
			e.cs.TouchField(f)
		}
		for _, a := range bp.Assets() {
			e.cs.TouchAsset(a)
		}
		return nil
	})
}

// Overview is the whole board at a glance, for spectators.
type Overview struct {
	Game    model.GameView     `json:"game"`
	Players []model.PlayerView `json:"players"`
	Parcels []model.ParcelView `json:"parcels"`
}

func (e *Engine) Overview() Overview {
	e.game.Lock()
	defer e.game.Unlock()
	out := Overview{Game: model.ViewGame(e.game)}
	for _, p := range e.game.Players() {
		out.Players = append(out.Players, model.ViewPlayer(p))
	}
	for _, bp := range e.game.Parcels() {
		out.Parcels = append(out.Parcels, model.ViewParcel(bp))
	}
	return out
}

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"waterwise.ai/internal/persistence/archive"
	"waterwise.ai/internal/sim/engine"
	"waterwise.ai/internal/sim/model"
)

// adminGame is what the operator endpoints drive.
type adminGame interface {
	StartGame() error
	EndStage() error
	EndStageIn(want engine.Phase) error
	EndGame() error
	ResetGame() error
	GiveMoney(playerID string, amount int) error
	GiveWater(playerID string, amount int) error
	GiveWaterRights(playerID string, amount int) error
	ChangeBuyPointName(parcelID, name string) error
	UpdateHudStatus(playerID string) error
	UpdateBuyPointStatus(parcelID string) error
	HudStatus(playerID string) (engine.HudStatus, error)
	BuyPointStatus(parcelID string) (engine.BuyPointStatus, error)
	Overview() engine.Overview
}

type adminAPI struct {
	game    adminGame
	dataDir string
	log     zerolog.Logger
}

type grantRequest struct {
	PlayerID string `json:"player_id"`
	Amount   int    `json:"amount"`
}

type buyPointRequest struct {
	ParcelID string `json:"parcel_id"`
	Name     string `json:"name,omitempty"`
}

// stageRequest optionally names the phase being ended.
type stageRequest struct {
	Phase string `json:"phase,omitempty"`
}

type playerRequest struct {
	PlayerID string `json:"player_id"`
}

func (a *adminAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/game/start", a.post(func(*http.Request) error { return a.game.StartGame() }))
	mux.HandleFunc("/admin/v1/game/end_stage", a.post(a.endStage))
	mux.HandleFunc("/admin/v1/game/end", a.post(func(*http.Request) error { return a.game.EndGame() }))
	mux.HandleFunc("/admin/v1/game/reset", a.post(func(*http.Request) error { return a.game.ResetGame() }))

	mux.HandleFunc("/admin/v1/player/money", a.post(a.grant(a.game.GiveMoney)))
	mux.HandleFunc("/admin/v1/player/water", a.post(a.grant(a.game.GiveWater)))
	mux.HandleFunc("/admin/v1/player/water_rights", a.post(a.grant(a.game.GiveWaterRights)))
	mux.HandleFunc("/admin/v1/player/refresh", a.post(func(r *http.Request) error {
		var req playerRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		return a.game.UpdateHudStatus(req.PlayerID)
	}))
	mux.HandleFunc("/admin/v1/player/hud", a.get(func(r *http.Request) (any, error) {
		return a.game.HudStatus(r.URL.Query().Get("player_id"))
	}))

	mux.HandleFunc("/admin/v1/buy_point/name", a.post(func(r *http.Request) error {
		var req buyPointRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		return a.game.ChangeBuyPointName(req.ParcelID, req.Name)
	}))
	mux.HandleFunc("/admin/v1/buy_point/refresh", a.post(func(r *http.Request) error {
		var req buyPointRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		return a.game.UpdateBuyPointStatus(req.ParcelID)
	}))
	mux.HandleFunc("/admin/v1/buy_point", a.get(func(r *http.Request) (any, error) {
		return a.game.BuyPointStatus(r.URL.Query().Get("parcel_id"))
	}))

	mux.HandleFunc("/admin/v1/state", a.get(func(*http.Request) (any, error) {
		return a.game.Overview(), nil
	}))
	mux.HandleFunc("/admin/v1/archives", a.get(func(*http.Request) (any, error) {
		metas, err := archive.List(a.dataDir)
		if err != nil {
			return nil, err
		}
		if metas == nil {
			metas = []archive.Meta{}
		}
		return metas, nil
	}))
}

func (a *adminAPI) endStage(r *http.Request) error {
	var req stageRequest
	if err := decodeOptional(r, &req); err != nil {
		return err
	}
	if req.Phase == "" {
		return a.game.EndStage()
	}
	want, err := engine.ParsePhase(req.Phase)
	if err != nil {
		return errors.Join(errBadBody, err)
	}
	return a.game.EndStageIn(want)
}

func (a *adminAPI) grant(fn func(playerID string, amount int) error) func(*http.Request) error {
	return func(r *http.Request) error {
		var req grantRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		return fn(req.PlayerID, req.Amount)
	}
}

func (a *adminAPI) post(fn func(r *http.Request) error) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if err := fn(r); err != nil {
			a.fail(rw, r, err)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
	}
}

func (a *adminAPI) get(fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		v, err := fn(r)
		if err != nil {
			a.fail(rw, r, err)
			return
		}
		writeJSON(rw, http.StatusOK, v)
	}
}

func (a *adminAPI) fail(rw http.ResponseWriter, r *http.Request, err error) {
	status := adminStatus(err)
	if status == http.StatusInternalServerError {
		a.log.Error().Err(err).Str("path", r.URL.Path).Msg("admin request failed")
	}
	body := map[string]any{"ok": false, "error": err.Error()}
	if model.IsDomain(err) {
		body["code"] = model.Code(err)
	}
	writeJSON(rw, status, body)
}

var errBadBody = errors.New("bad request body")

func adminStatus(err error) int {
	switch {
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest
	case engine.IsUnsupported(err):
		return http.StatusConflict
	case model.IsDomain(err):
		return http.StatusUnprocessableEntity
	case model.IsContract(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadBody, err)
	}
	return nil
}

// decodeOptional is decode for endpoints whose body may be empty.
func decodeOptional(r *http.Request, v any) error {
	err := decode(r, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(strings.TrimSpace(remoteAddr))
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

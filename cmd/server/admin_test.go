package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"waterwise.ai/internal/sim/engine"
	"waterwise.ai/internal/sim/model"
	"waterwise.ai/internal/sim/tuning"
)

func newAdmin(t *testing.T) (*engine.Engine, *httptest.Server) {
	t.Helper()
	eng, err := engine.New(engine.Options{
		Logger:     zerolog.Nop(),
		Dispatcher: engine.DirDispatcher{Dir: filepath.Join("..", "..", "configs")},
	})
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	board, err := tuning.LoadBoard(filepath.Join("..", "..", "configs", "board.yaml"))
	require.NoError(t, err)
	for _, spec := range board.Parcels {
		require.NoError(t, eng.RegisterBuyPoint(spec.Parcel()))
	}

	mux := http.NewServeMux()
	api := &adminAPI{game: eng, dataDir: t.TempDir(), log: zerolog.Nop()}
	api.register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return eng, srv
}

func post(t *testing.T, srv *httptest.Server, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(srv.URL+path, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestAdminStartWithoutPlayers(t *testing.T) {
	_, srv := newAdmin(t)
	status, body := post(t, srv, "/admin/v1/game/start", nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, false, body["ok"])
	require.Equal(t, "E_BAD_REQUEST", body["code"])
}

func TestAdminGameFlow(t *testing.T) {
	eng, srv := newAdmin(t)
	require.NoError(t, eng.AddPlayer("p1", "Ada", model.RoleFarmer))

	status, _ := post(t, srv, "/admin/v1/player/money", grantRequest{PlayerID: "p1", Amount: 500})
	require.Equal(t, http.StatusOK, status)
	st, err := eng.HudStatus("p1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, st.Player.Money, 500)

	status, _ = post(t, srv, "/admin/v1/game/start", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, engine.PhaseBuild, eng.Phase())

	// Starting twice is a phase error.
	status, _ = post(t, srv, "/admin/v1/game/start", nil)
	require.Equal(t, http.StatusConflict, status)

	status, _ = post(t, srv, "/admin/v1/game/end_stage", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, engine.PhaseWater, eng.Phase())

	status, _ = post(t, srv, "/admin/v1/game/end", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, engine.PhaseGameEnded, eng.Phase())

	status, _ = post(t, srv, "/admin/v1/game/reset", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, engine.PhaseRegistration, eng.Phase())
}

func TestAdminBadRequests(t *testing.T) {
	_, srv := newAdmin(t)

	status, _ := post(t, srv, "/admin/v1/player/money", map[string]any{"player": "p1"})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = post(t, srv, "/admin/v1/player/water", grantRequest{PlayerID: "ghost", Amount: 1})
	require.Equal(t, http.StatusBadRequest, status)

	resp, err := http.Get(srv.URL + "/admin/v1/game/start")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAdminEndStageNamesPhase(t *testing.T) {
	eng, srv := newAdmin(t)
	require.NoError(t, eng.AddPlayer("p1", "Ada", model.RoleFarmer))
	require.NoError(t, eng.StartGame())

	status, _ := post(t, srv, "/admin/v1/game/end_stage", stageRequest{Phase: "Build"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, engine.PhaseWater, eng.Phase())

	// A repeated request for Build must not end Water.
	status, body := post(t, srv, "/admin/v1/game/end_stage", stageRequest{Phase: "Build"})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, false, body["ok"])
	require.Equal(t, engine.PhaseWater, eng.Phase())

	status, _ = post(t, srv, "/admin/v1/game/end_stage", stageRequest{Phase: "Dusk"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, engine.PhaseWater, eng.Phase())

	status, _ = post(t, srv, "/admin/v1/game/end_stage", stageRequest{Phase: "Water"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, engine.PhaseBuild, eng.Phase())
}

func TestAdminBuyPoint(t *testing.T) {
	_, srv := newAdmin(t)

	status, _ := post(t, srv, "/admin/v1/buy_point/name", buyPointRequest{ParcelID: "riverside", Name: "River Bend"})
	require.Equal(t, http.StatusOK, status)

	resp, err := http.Get(srv.URL + "/admin/v1/buy_point?parcel_id=riverside")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bp engine.BuyPointStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bp))
	require.Equal(t, "River Bend", bp.Parcel.Name)
	require.Len(t, bp.Fields, 3)

	status, _ = post(t, srv, "/admin/v1/buy_point/refresh", buyPointRequest{ParcelID: "riverside"})
	require.Equal(t, http.StatusOK, status)
}

func TestAdminStateAndArchives(t *testing.T) {
	eng, srv := newAdmin(t)
	require.NoError(t, eng.AddPlayer("p1", "Ada", model.RoleDeveloper))

	resp, err := http.Get(srv.URL + "/admin/v1/state")
	require.NoError(t, err)
	var ov engine.Overview
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ov))
	resp.Body.Close()
	require.Len(t, ov.Players, 1)
	require.NotEmpty(t, ov.Parcels)

	resp, err = http.Get(srv.URL + "/admin/v1/archives")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var metas []any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&metas))
	require.Empty(t, metas)
}

func TestIsLoopbackRemote(t *testing.T) {
	require.True(t, isLoopbackRemote("127.0.0.1:1"))
	require.False(t, isLoopbackRemote("192.168.1.4:1"))
}

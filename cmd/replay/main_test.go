package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"waterwise.ai/internal/sim/events"
	"waterwise.ai/internal/sim/model"
)

func stamped(seq uint64, game string, ev events.Event) events.Event {
	ev.Seq = seq
	ev.GameID = game
	return ev
}

func TestSummarize(t *testing.T) {
	p := model.NewPlayer("p1", "Ada", model.RoleFarmer)
	evs := []events.Event{
		stamped(1, "g1", events.New(events.HistoryRecorded, "p1", events.HistoryPayload{PlayerID: "p1", Round: 1, Profit: 40, Money: 1040})),
		stamped(2, "g1", events.New(events.RoundAdvanced, "", events.RoundPayload{Round: 1, Rainfall: 55, Next: 2, Total: 2})),
		stamped(3, "g1", events.New(events.OperationRejected, "", events.RejectionPayload{Operation: "UseWater", PlayerID: "p1"})),
		stamped(5, "g1", events.New(events.PhaseStarted, "", events.PhasePayload{Phase: "GameEnded", Standings: []model.PlayerView{model.ViewPlayer(p)}})),
		stamped(6, "g2", events.New(events.GameReset, "", events.ResetPayload{PreviousGameID: "g1"})),
	}

	games, gaps := summarize(evs)
	require.Len(t, games, 2)
	require.Equal(t, [][2]uint64{{3, 5}}, gaps)

	g := games[0]
	require.True(t, g.Ended)
	require.Equal(t, 4, g.Events)
	require.Equal(t, 1, g.Rejections)
	require.Equal(t, []string{"p1"}, g.Standings)
	require.Len(t, g.Rounds, 1)
	require.Equal(t, 55, g.Rounds[0].Rainfall)
	require.Equal(t, 40, g.Rounds[0].Profit["p1"])

	require.True(t, games[1].Reset)
}

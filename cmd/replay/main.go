package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	persistlog "waterwise.ai/internal/persistence/log"
	"waterwise.ai/internal/sim/events"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory holding events/")
		gameID  = flag.String("game", "", "only summarize this game (optional)")
		strict  = flag.Bool("strict", false, "exit non-zero when sequence gaps are found")
	)
	flag.Parse()

	evs, err := persistlog.ReadDir(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read events:", err)
		os.Exit(1)
	}
	if len(evs) == 0 {
		fmt.Println("no events recorded")
		return
	}

	games, gaps := summarize(evs)
	for _, g := range games {
		if *gameID != "" && g.ID != *gameID {
			continue
		}
		g.print()
	}
	for _, gap := range gaps {
		fmt.Printf("gap: seq %d -> %d\n", gap[0], gap[1])
	}
	if *strict && len(gaps) > 0 {
		os.Exit(1)
	}
}

type roundSummary struct {
	Round    int
	Rainfall int
	Profit   map[string]int
	Money    map[string]int
}

type gameSummary struct {
	ID         string
	Events     int
	Rejections int
	Ended      bool
	Reset      bool
	Rounds     []*roundSummary
	Standings  []string
}

func (g *gameSummary) round(n int) *roundSummary {
	for _, r := range g.Rounds {
		if r.Round == n {
			return r
		}
	}
	r := &roundSummary{Round: n, Profit: map[string]int{}, Money: map[string]int{}}
	g.Rounds = append(g.Rounds, r)
	sort.Slice(g.Rounds, func(i, j int) bool { return g.Rounds[i].Round < g.Rounds[j].Round })
	return r
}

// summarize folds recorded events into per-game round ledgers and reports
// discontinuities in the sequence numbers.
func summarize(evs []events.Event) ([]*gameSummary, [][2]uint64) {
	var (
		games []*gameSummary
		byID  = map[string]*gameSummary{}
		gaps  [][2]uint64
		last  uint64
	)
	for _, ev := range evs {
		if last != 0 && ev.Seq != last+1 {
			gaps = append(gaps, [2]uint64{last, ev.Seq})
		}
		last = ev.Seq

		g := byID[ev.GameID]
		if g == nil {
			g = &gameSummary{ID: ev.GameID}
			byID[ev.GameID] = g
			games = append(games, g)
		}
		g.Events++

		switch ev.Type {
		case events.OperationRejected:
			g.Rejections++
		case events.HistoryRecorded:
			var h events.HistoryPayload
			if ev.Decode(&h) != nil {
				continue
			}
			r := g.round(h.Round)
			r.Profit[h.PlayerID] = h.Profit
			r.Money[h.PlayerID] = h.Money
		case events.RoundAdvanced:
			var rp events.RoundPayload
			if ev.Decode(&rp) != nil {
				continue
			}
			g.round(rp.Round).Rainfall = rp.Rainfall
		case events.PhaseStarted:
			var pp events.PhasePayload
			if ev.Decode(&pp) != nil || pp.Phase != "GameEnded" {
				continue
			}
			g.Ended = true
			g.Standings = g.Standings[:0]
			for _, p := range pp.Standings {
				g.Standings = append(g.Standings, p.ID)
			}
		case events.GameReset:
			g.Reset = true
		}
	}
	return games, gaps
}

func (g *gameSummary) print() {
	status := "in progress"
	switch {
	case g.Ended:
		status = "ended"
	case g.Reset:
		status = "reset"
	}
	fmt.Printf("game %s: %s events=%d rejections=%d rounds=%d\n", g.ID, status, g.Events, g.Rejections, len(g.Rounds))
	for _, r := range g.Rounds {
		players := make([]string, 0, len(r.Profit))
		for id := range r.Profit {
			players = append(players, id)
		}
		sort.Strings(players)
		fmt.Printf("  round %d rainfall=%d\n", r.Round, r.Rainfall)
		for _, id := range players {
			fmt.Printf("    %-16s profit=%-8d money=%d\n", id, r.Profit[id], r.Money[id])
		}
	}
	for i, id := range g.Standings {
		fmt.Printf("  %d. %s\n", i+1, id)
	}
}

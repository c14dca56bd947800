package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"waterwise.ai/internal/persistence/archive"
	"waterwise.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "game":
			gameCmd(os.Args[2:])
			return
		case "give":
			giveCmd(os.Args[2:])
			return
		case "show":
			showCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints one line per archived game.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	metas, err := archive.List(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	if len(metas) == 0 {
		fmt.Println("no archived games")
		return
	}
	for _, m := range metas {
		fmt.Printf("%s rounds=%d players=%d winner=%s created=%s\n",
			m.GameID, m.Rounds, m.Players, m.Winner, m.CreatedAt)
	}
}

// showCmd prints the final standings of one archived game.
func showCmd(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	gameID := fs.String("game", "", "game id")
	_ = fs.Parse(args)

	if *gameID == "" {
		fmt.Fprintln(os.Stderr, "missing -game")
		os.Exit(2)
	}
	snap, err := snapshot.Read(filepath.Join(*dataDir, "archives", "game_"+*gameID, "final.snap.zst"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("game=%s rounds=%d ended=%s winner=%s\n",
		snap.Header.GameID, snap.Header.Rounds, snap.Header.EndedAt.Format("2006-01-02T15:04:05Z07:00"), snap.Winner())
	for i, p := range snap.Standings {
		fmt.Printf("%2d. %-16s %-12s money=%d\n", i+1, p.Name, p.Role, p.Money)
	}
}

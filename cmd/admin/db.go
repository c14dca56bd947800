package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"waterwise.ai/internal/persistence/indexdb"
)

// dbCmd runs a read-only query against the index:
// history|rounds|counts|rejections|config.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	gameID := fs.String("game", "", "game id (optional; defaults to the current game)")
	playerID := fs.String("player", "", "player_id filter (history, rejections)")
	limit := fs.Int("limit", 20, "result limit (rejections)")
	_ = fs.Parse(args)

	q := "history"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "game.sqlite")
	}
	r, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	game := strings.TrimSpace(*gameID)
	if game == "" && q != "rejections" && q != "config" {
		game, err = r.CurrentGame(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "current game:", err)
			os.Exit(1)
		}
		if game == "" {
			fmt.Fprintln(os.Stderr, "no game recorded")
			os.Exit(2)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	switch q {
	case "history":
		rows, err := r.History(ctx, game, *playerID)
		exitOn(err)
		for _, row := range rows {
			_ = enc.Encode(row)
		}
	case "rounds":
		rows, err := r.Rounds(ctx, game)
		exitOn(err)
		for _, row := range rows {
			_ = enc.Encode(row)
		}
	case "counts":
		counts, err := r.EventCounts(ctx, game)
		exitOn(err)
		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Printf("%-20s %d\n", t, counts[t])
		}
	case "rejections":
		rows, err := r.Rejections(ctx, *playerID, *limit)
		exitOn(err)
		for _, row := range rows {
			_ = enc.Encode(row)
		}
	case "config":
		for _, name := range []string{"game", "rules", "board"} {
			d, err := r.ConfigDigest(ctx, name)
			exitOn(err)
			fmt.Printf("%-6s %s\n", name, d)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		os.Exit(2)
	}
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	do(http.MethodGet, *baseURL, "/admin/v1/state", nil)
}

// gameCmd drives the phase machine: start, end_stage, end or reset.
func gameCmd(args []string) {
	fs := flag.NewFlagSet("game", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	phase := fs.String("phase", "", "end_stage only: the phase expected to end")
	_ = fs.Parse(args)

	action := strings.TrimSpace(fs.Arg(0))
	switch action {
	case "start", "end_stage", "end", "reset":
	default:
		fmt.Fprintln(os.Stderr, "usage: admin game [-url U] [-phase P] start|end_stage|end|reset")
		os.Exit(2)
	}
	var body []byte
	if action == "end_stage" && *phase != "" {
		body, _ = json.Marshal(map[string]string{"phase": *phase})
	}
	do(http.MethodPost, *baseURL, "/admin/v1/game/"+action, body)
}

func giveCmd(args []string) {
	fs := flag.NewFlagSet("give", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	player := fs.String("player", "", "player id")
	what := fs.String("what", "money", "money|water|water_rights")
	amount := fs.Int("amount", 0, "amount to grant")
	_ = fs.Parse(args)

	switch *what {
	case "money", "water", "water_rights":
	default:
		fmt.Fprintln(os.Stderr, "bad -what:", *what)
		os.Exit(2)
	}
	if *player == "" {
		fmt.Fprintln(os.Stderr, "missing -player")
		os.Exit(2)
	}
	body, _ := json.Marshal(map[string]any{"player_id": *player, "amount": *amount})
	do(http.MethodPost, *baseURL, "/admin/v1/player/"+*what, body)
}

func do(method, baseURL, path string, body []byte) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(2)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

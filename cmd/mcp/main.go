package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"waterwise.ai/internal/agent/bridge"
	"waterwise.ai/internal/agent/mcp"
)

func main() {
	var (
		listen     = flag.String("listen", "127.0.0.1:8090", "http listen address")
		gameWSURL  = flag.String("game-ws-url", "ws://127.0.0.1:8080/v1/ws", "waterwise ws url")
		hmacSecret = flag.String("hmac-secret", "", "hmac secret (or set WW_MCP_HMAC_SECRET)")
		stateFile  = flag.String("state-file", "./data/mcp/sessions.json", "path to persisted agent sessions")
		maxSess    = flag.Int("max-sessions", 256, "max concurrent sessions")
	)
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "waterwise-mcp").Logger()

	if strings.TrimSpace(*hmacSecret) == "" {
		*hmacSecret = strings.TrimSpace(os.Getenv("WW_MCP_HMAC_SECRET"))
	}
	requireHMAC := envBool("WW_MCP_REQUIRE_HMAC", defaultRequireHMAC())
	if requireHMAC && *hmacSecret == "" {
		logger.Fatal().Msg("hmac secret required (set -hmac-secret or WW_MCP_HMAC_SECRET)")
	}
	if *hmacSecret == "" && !isLoopbackListenAddress(*listen) {
		logger.Fatal().Str("listen", *listen).Msg("refusing unauthenticated MCP bind on a non-loopback address")
	}
	authMode := "hmac"
	if *hmacSecret == "" {
		authMode = "none(loopback-only)"
	}
	logger.Info().Str("auth_mode", authMode).Bool("require_hmac", requireHMAC).Msg("mcp auth")

	br, err := bridge.NewManager(bridge.Config{
		GameWSURL:   *gameWSURL,
		StateFile:   *stateFile,
		MaxSessions: *maxSess,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("bridge")
	}
	defer br.Close()

	srv, err := mcp.NewServer(mcp.Config{Bridge: br, HMACSecret: *hmacSecret, Logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("mcp")
	}

	httpSrv := &http.Server{
		Addr:              *listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("listen", *listen).Str("game_ws", *gameWSURL).Msg("listening")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("listen")
	}
}

func defaultRequireHMAC() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return true
	default:
		return false
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func isLoopbackListenAddress(addr string) bool {
	host := strings.TrimSpace(addr)
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(strings.TrimSpace(host), "[]"))
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

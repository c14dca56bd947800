package main

import (
	"context"
	"flag"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"waterwise.ai/internal/observability/metrics"
	"waterwise.ai/internal/persistence/archive"
	"waterwise.ai/internal/persistence/indexdb"
	persistlog "waterwise.ai/internal/persistence/log"
	"waterwise.ai/internal/sim/engine"
	"waterwise.ai/internal/sim/events"
	"waterwise.ai/internal/sim/tuning"
	"waterwise.ai/internal/transport/observer"
	"waterwise.ai/internal/transport/ws"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "http listen address")
		configDir = flag.String("configs", "./configs", "directory holding game.yaml, rules.yaml and board.yaml")
		dataDir   = flag.String("data", "./data", "runtime data directory")
		serverID  = flag.String("server_id", "waterwise-1", "server id reported to the remote index")
		disableDB = flag.Bool("disable_db", false, "disable the read-model index")
		logLevel  = flag.String("log_level", envString("WW_LOG_LEVEL", "info"), "debug|info|warn|error")
		logPretty = flag.Bool("log_pretty", envBool("WW_LOG_PRETTY", false), "human-readable console logs")
		wsRate    = flag.Float64("ws_rate", 20, "commands per second per player connection (0 = unlimited)")
		wsBurst   = flag.Int("ws_burst", 40, "command burst per player connection")
	)
	flag.Parse()

	logger := newLogger(*logLevel, *logPretty)
	ctx, cancel := signalContext()
	defer cancel()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", *dataDir).Msg("create data dir")
	}

	mirror, err := buildMirror(*dataDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("object storage mirror")
	}
	defer closeMirror(mirror)

	bus := events.NewBus()

	recorder := persistlog.NewRecorder(*dataDir, logger)
	if mirror != nil {
		recorder.OnFileClosed(mirror.Enqueue)
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Error().Err(err).Msg("close recorder")
		}
	}()

	idx, err := openRuntimeIndex(*dataDir, *serverID, *disableDB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open index")
	}
	if s, ok := idx.(*indexdb.SQLiteIndex); ok {
		s.UpsertConfigs(configDocs(*configDir))
	}
	archiver := archive.NewArchiver(*dataDir, logger)
	if mirror != nil {
		archiver.OnWrite(mirror.Enqueue)
	}
	store := persisters{index: idx, archiver: archiver}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("close persisters")
		}
	}()

	collector := metrics.NewCollector("waterwise", bus)
	if err := collector.Initialize(bus); err != nil {
		logger.Fatal().Err(err).Msg("metrics")
	}
	defer collector.Close()
	registerBackendMetrics(collector.Registry(), idx, mirror)

	eng, err := engine.New(engine.Options{
		Logger:     logger,
		Bus:        bus,
		Dispatcher: engine.DirDispatcher{Dir: *configDir},
		Persister:  store,
		Recorder:   recorder,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("engine")
	}
	defer eng.Close()

	board, err := tuning.LoadBoard(filepath.Join(*configDir, "board.yaml"))
	if err != nil {
		logger.Fatal().Err(err).Msg("load board")
	}
	for _, spec := range board.Parcels {
		if err := eng.RegisterBuyPoint(spec.Parcel()); err != nil {
			logger.Fatal().Err(err).Str("parcel_id", spec.ID).Msg("register buy point")
		}
	}
	logger.Info().Int("buy_points", len(board.Parcels)).Str("game_id", eng.Game().ID).Msg("game ready for registration")

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", collector.Handler())

	if envBool("WW_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Loopback only.
		api := &adminAPI{game: eng, dataDir: *dataDir, log: logger.With().Str("component", "admin").Logger()}
		api.register(mux)

		obsSrv := observer.NewServer(eng, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Info().Msg("admin endpoints disabled (WW_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("WW_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(eng, ws.Options{Logger: logger, Rate: *wsRate, Burst: *wsBurst}).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info().Str("addr", *addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("listen")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

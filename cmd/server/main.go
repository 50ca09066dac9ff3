package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/memed/arena/internal/app"
	"github.com/memed/arena/internal/server"
	"github.com/memed/arena/pkg/config"
	"github.com/memed/arena/pkg/logger"
	"github.com/memed/arena/pkg/pinata"
	"github.com/memed/arena/pkg/shutdown"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", os.Getenv("ARENA_CONFIG"), "YAML config file (optional)")
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides server.listen)")
		debugAddr  = flag.String("debug-listen", "", "metrics/pprof listen address, e.g. 127.0.0.1:6060")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.Listen = *listenAddr
	}
	if cfg.Log.OutputFile == "" {
		cfg.Log.OutputFile = "logs/arena-server.log"
	}
	if err := logger.Init(cfg.Log); err != nil {
		logger.Errorf("init logger: %v", err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Errorf("init failed: %v", err)
		os.Exit(1)
	}

	deps := server.Deps{Battles: a.Service, Metrics: a.Metrics, Limits: a.Limits}
	if cfg.Pinata.JWT != "" {
		deps.Pinner = pinata.NewClient(pinata.Options{
			APIURL:  cfg.Pinata.APIURL,
			JWT:     cfg.Pinata.JWT,
			Gateway: cfg.Pinata.Gateway,
			Timeout: cfg.Pinata.Timeout,
		})
	} else {
		logger.Warn("pinata.jwt not set, /upload is disabled")
	}
	srv, err := server.New(cfg.Server, deps)
	if err != nil {
		logger.Errorf("init server failed: %v", err)
		os.Exit(1)
	}

	if *debugAddr != "" {
		addr, err := a.Metrics.StartDebugServer(ctx, *debugAddr)
		if err != nil {
			logger.Warnf("debug server: %v", err)
		} else {
			logger.Infof("debug server on %s", addr)
		}
	}

	go func() {
		if err := a.Refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnf("refresher stopped: %v", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("arena api listening on %s", cfg.Server.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server error: %v", err)
			cancel()
		}
	}()

	sd := shutdown.NewManager()
	sd.OnShutdown("http", httpSrv.Shutdown)
	sd.OnShutdown("refresher", func(context.Context) error {
		cancel()
		return nil
	})

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	select {
	case <-stopCh:
	case <-ctx.Done():
	}

	sd.Shutdown(10 * time.Second)
	// the store and service outlive in-flight requests
	_ = srv.Close()
	a.Close()
	logger.Info("server stopped")
}

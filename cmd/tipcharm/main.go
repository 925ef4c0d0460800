package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/danhigham/tipcharm/internal/config"
	"github.com/danhigham/tipcharm/internal/dedupe"
	"github.com/danhigham/tipcharm/internal/metrics"
	"github.com/danhigham/tipcharm/internal/overlay"
	"github.com/danhigham/tipcharm/internal/state"
	"github.com/danhigham/tipcharm/internal/ui"
)

func main() {
	cfgDir := config.Dir()
	cfgPath := filepath.Join(cfgDir, "config.yaml")

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config from %s: %v\n", cfgPath, err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfgDir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", cfgDir, err)
		os.Exit(1)
	}

	// Setup logging to file; the terminal belongs to the TUI.
	logPath := filepath.Join(cfgDir, "tipcharm.log")
	logCfg := zap.NewDevelopmentConfig()
	logCfg.OutputPaths = []string{logPath}
	logCfg.ErrorOutputPaths = []string{logPath}
	if lvl, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		logCfg.Level = lvl
	}
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	seen, err := dedupe.New(cfg.Dedupe.Store(), logger.Named("dedupe"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open dedupe store: %v\n", err)
		os.Exit(1)
	}

	m := metrics.New()
	store := state.New(nil)
	stage := ui.NewStage()

	source := overlay.New(overlay.Options{
		Config:  cfg,
		Store:   store,
		Media:   stage.Media,
		Text:    stage.Text,
		Dedupe:  seen,
		Metrics: m,
		Logger:  logger,
	})
	defer source.Destroy()

	app := ui.NewApp(source, stage, logger.Named("ui"))
	store.SetDrawFunc(app.DrawFunc())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	watcher := config.NewWatcher(cfgPath, logger.Named("config"), func(c *config.Config) {
		source.Update(c)
		app.DrawFunc()()
	})
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Warn("Config watcher stopped", zap.Error(err))
		}
	}()

	if cfg.Metrics.Listen != "" {
		srv := metrics.NewServer(metrics.ServerOptions{
			Addr:       cfg.Metrics.Listen,
			Metrics:    m,
			Logger:     logger.Named("metrics"),
			Status:     func() any { return source.Snapshot() },
			Properties: func() any { return source.Properties() },
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("Metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	go func() {
		if err := source.StartClient(); err != nil {
			logger.Warn("Telegram not started", zap.Error(err))
		}
	}()

	// Run TUI (blocks until quit)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

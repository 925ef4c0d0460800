// Command tipcharmd runs the tip alert pipeline without a terminal UI:
// alerts are logged, metrics are served over HTTP and readiness is
// reported to systemd.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/danhigham/tipcharm/internal/alert"
	"github.com/danhigham/tipcharm/internal/config"
	"github.com/danhigham/tipcharm/internal/dedupe"
	"github.com/danhigham/tipcharm/internal/domain"
	"github.com/danhigham/tipcharm/internal/metrics"
	"github.com/danhigham/tipcharm/internal/overlay"
	"github.com/danhigham/tipcharm/internal/state"
	"github.com/danhigham/tipcharm/internal/telegram"
)

const tickInterval = 50 * time.Millisecond

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", filepath.Join(config.Dir(), "config.yaml"), "path to config yaml")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	logCfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		logCfg.Level = lvl
	}
	logger, err := logCfg.Build()
	if err != nil {
		return errors.Wrap(err, "create logger")
	}
	defer func() { _ = logger.Sync() }()

	seen, err := dedupe.New(cfg.Dedupe.Store(), logger.Named("dedupe"))
	if err != nil {
		return errors.Wrap(err, "open dedupe store")
	}

	m := metrics.New()
	source := overlay.New(overlay.Options{
		Config:  cfg,
		Store:   state.New(nil),
		Media:   &alert.LogMedia{Logger: logger.Named("media")},
		Text:    &alert.LogText{Logger: logger.Named("text")},
		Dedupe:  seen,
		Metrics: m,
		Logger:  logger,
		OnAuthState: func(st domain.AuthState) {
			notify(logger, "STATUS="+telegram.StatusLine(st))
			if st == domain.AuthStateReady {
				notify(logger, daemon.SdNotifyReady)
			}
		},
	})
	defer source.Destroy()

	// Prune runs on the cron spec; an empty spec disables it.
	var c *cron.Cron
	if cfg.Dedupe.Prune != "" {
		c = cron.New()
		if _, err := c.AddFunc(cfg.Dedupe.Prune, func() {
			pctx, pcancel := context.WithTimeout(ctx, 30*time.Second)
			defer pcancel()
			if err := source.PruneDedupe(pctx); err != nil {
				logger.Warn("Prune dedupe store", zap.Error(err))
			}
		}); err != nil {
			return errors.Wrapf(err, "dedupe prune spec %q", cfg.Dedupe.Prune)
		}
		c.Start()
		defer c.Stop()
	}

	if cfg.Metrics.Listen != "" {
		srv := metrics.NewServer(metrics.ServerOptions{
			Addr:       cfg.Metrics.Listen,
			Metrics:    m,
			Logger:     logger.Named("metrics"),
			Status:     func() any { return source.Snapshot() },
			Properties: func() any { return source.Properties() },
		})
		go func() {
			logger.Info("Serving metrics", zap.String("addr", cfg.Metrics.Listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	watcher := config.NewWatcher(cfgPath, logger.Named("config"), func(c *config.Config) {
		source.Update(c)
		if err := source.StartClient(); err != nil {
			logger.Warn("Telegram not started after reload", zap.Error(err))
		}
	})
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Warn("Config watcher stopped", zap.Error(err))
		}
	}()

	if err := source.StartClient(); err != nil {
		// A config reload retries; keep serving metrics meanwhile.
		logger.Error("Telegram not started", zap.Error(err))
		notify(logger, "STATUS="+source.Store().Status())
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			notify(logger, daemon.SdNotifyStopping)
			return nil
		case now := <-ticker.C:
			source.Tick(now.Sub(last).Seconds())
			last = now
		}
	}
}

func notify(logger *zap.Logger, state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		logger.Debug("sd_notify", zap.Error(err))
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexjbarnes/media-sync/internal/api"
	"github.com/alexjbarnes/media-sync/internal/config"
	apperrors "github.com/alexjbarnes/media-sync/internal/errors"
	"github.com/alexjbarnes/media-sync/internal/logging"
	"github.com/alexjbarnes/media-sync/internal/mediasync"
	"github.com/alexjbarnes/media-sync/internal/state"
	"golang.org/x/sync/errgroup"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	logger.Info("media-sync starting",
		slog.String("version", Version),
		slog.String("device", cfg.DeviceName),
		slog.Bool("watch", cfg.Watch),
	)

	appState, err := state.Load()
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	defer appState.Close()

	settings, err := appState.Settings()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	changed, err := config.ApplySettingsOverrides(&settings)
	if err != nil {
		return fmt.Errorf("applying settings overrides: %w", err)
	}
	if changed {
		if err := appState.SetSettings(settings); err != nil {
			logger.Warn("failed to persist settings", slog.String("error", err.Error()))
		}
	}

	source, err := mediasync.ParseKind(settings.Source)
	if err != nil {
		return err
	}

	policy, err := mediasync.ParseConflictPolicy(settings.ConflictPolicy)
	if err != nil {
		return err
	}

	if cfg.AuthToken != "" && cfg.AuthToken != appState.Token() {
		if err := appState.SetToken(cfg.AuthToken); err != nil {
			logger.Warn("failed to cache token", slog.String("error", err.Error()))
		}
	}

	client := api.NewClient(cfg.ServerURL, func() string {
		if cfg.AuthToken != "" {
			return cfg.AuthToken
		}
		return appState.Token()
	}, nil)

	var library mediasync.MediaLibrary
	if source == mediasync.KindCamera {
		if settings.CameraDir == "" {
			return fmt.Errorf("camera source selected but CAMERA_DIR is not set")
		}
		library = mediasync.NewDirMediaLibrary(settings.CameraDir)
	}

	engine := mediasync.NewEngine(mediasync.Config{
		Server:         client,
		DestRoot:       settings.DestRoot,
		BasePath:       settings.BasePath,
		Source:         source,
		LocalFolder:    settings.LocalFolder,
		Library:        library,
		IncludeVideos:  settings.IncludeVideos,
		MirrorDelete:   settings.MirrorDelete,
		ConflictPolicy: policy,
		OnProgress:     progressLogger(logger),
		Logger:         logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// First signal requests a cooperative stop at the next checkpoint;
	// the context still aborts in-flight requests on process teardown.
	go func() {
		<-ctx.Done()
		engine.Cancel()
	}()

	if _, err := engine.Run(ctx); err != nil {
		return err
	}

	if !cfg.Watch || source != mediasync.KindFolder {
		return nil
	}

	// Watch mode: re-sync whenever the folder changes and goes quiet.
	watcher := mediasync.NewWatcher(settings.LocalFolder, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Watch(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-watcher.Triggers():
				if _, err := engine.Run(gctx); err != nil {
					if errors.Is(err, apperrors.ErrSyncInProgress) {
						continue
					}
					logger.Error("watch-triggered sync failed", slog.String("error", err.Error()))
				}
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// progressLogger logs stage transitions and the final run summary.
// Per-chunk updates are deliberately not logged; the engine already logs
// one line per uploaded file.
func progressLogger(logger *slog.Logger) func(mediasync.Progress) {
	var lastStage mediasync.Stage

	return func(p mediasync.Progress) {
		if p.Stage == lastStage {
			return
		}
		lastStage = p.Stage

		logger.Info("sync stage",
			slog.String("run_id", p.RunID),
			slog.String("stage", string(p.Stage)),
			slog.String("message", p.Message),
		)
	}
}

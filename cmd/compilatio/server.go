package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/compilatio/internal/server"
	"github.com/hyperjump/compilatio/internal/submission"
	"github.com/hyperjump/compilatio/internal/watcher"
	"github.com/hyperjump/compilatio/pkg/utils"
)

func runServer(args []string, out io.Writer) error {
	fs, o := newFlagSet("server", "server [flags]", out)
	if err := parseArgs(fs, args, 0); err != nil {
		return err
	}

	cfg, resolvedConfigPath, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	debugMode := cfg.Debug || o.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return err
	}
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.Bool("compilatio_configured", cfg.Compilatio.Configured()),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize components", zap.Error(err))
		return err
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Compilatio.Configured() {
		prepareRemote(ctx, components)
	}

	srv := server.NewServer(
		components.Client,
		components.Submissions,
		components.Privacy,
		components.Storage,
		cfg,
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	if cfg.Watch.Inbox != "" {
		subs := components.Submissions
		w := watcher.NewWatcher(cfg.Watch.Inbox, cfg.Watch.Extensions,
			func(ctx context.Context, d watcher.Drop) error {
				_, err := subs.SubmitFile(ctx, d.Path, d.CM, d.UserID, cfg.Watch.Extensions)
				return err
			},
			watcher.WithLogger(logger),
		)
		g.Go(func() error { return w.Run(gctx) })
	}
	if cfg.Compilatio.Configured() && cfg.Analysis.SyncInterval > 0 {
		g.Go(func() error {
			syncLoop(gctx, components.Submissions, cfg.Analysis.SyncInterval, logger)
			return nil
		})
	}
	return g.Wait()
}

// prepareRemote reports the deployment to the service and restricts uploads to the
// accepted file types. Failures only disable those features.
func prepareRemote(ctx context.Context, c *Components) {
	if err := c.Client.PostConfiguration(ctx, pluginConfiguration(c.Config)); err != nil {
		c.Logger.Warn("failed to report configuration", zap.Error(err))
	}
	types, err := c.Client.GetAllowedFileTypes(ctx)
	if err != nil {
		c.Logger.Warn("failed to load allowed file types", zap.Error(err))
		return
	}
	c.Submissions = submission.NewService(c.Client, c.Storage,
		submissionOptions(c.Config, c.Logger, submission.WithFileTypes(types))...)
}

// syncLoop refreshes pending submissions every interval until ctx is done.
func syncLoop(ctx context.Context, subs *submission.Service, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := subs.SyncPending(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("sync failed", zap.String("run_id", result.RunID), zap.Error(err))
				}
				continue
			}
			if result.Checked > 0 {
				logger.Info("sync finished",
					zap.String("run_id", result.RunID),
					zap.Int("checked", result.Checked),
					zap.Int("completed", result.Completed),
					zap.Int("failed", result.Failed),
				)
			}
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/unihub/realtime/internal/api"
	"github.com/unihub/realtime/internal/auth"
	"github.com/unihub/realtime/internal/config"
	"github.com/unihub/realtime/internal/connection"
	"github.com/unihub/realtime/internal/dashboard"
	"github.com/unihub/realtime/internal/database"
	"github.com/unihub/realtime/internal/model"
	"github.com/unihub/realtime/internal/notify"
	"github.com/unihub/realtime/internal/session"
	"github.com/unihub/realtime/internal/version"
	"github.com/unihub/realtime/internal/writer"
)

func newListenCommand() *cobra.Command {
	var (
		configPath  string
		retryFailed time.Duration
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run a realtime session and log every notification and dashboard change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return runListen(cmd.Context(), configPath, retryFailed, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "synctap.yaml", "path to config file")
	cmd.Flags().DurationVar(&retryFailed, "retry-failed", time.Minute, "how often to reopen a failed channel (0 disables)")
	return cmd
}

func runListen(ctx context.Context, configPath string, retryFailed time.Duration, logger *slog.Logger) error {
	logger.Info("starting synctap",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
	)

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	role, err := model.ParseRole(cfg.Session.Role)
	if err != nil {
		return err
	}
	token, err := cfg.Session.ResolveToken()
	if err != nil {
		return err
	}
	cred, err := auth.NewCredential(token, role, cfg.Session.UserID)
	if err != nil {
		return fmt.Errorf("credential: %w", err)
	}

	logger.Info("configuration loaded",
		"credential", cred.String(),
		"rest_url", cfg.API.RestURL,
		"ws_url", cfg.API.WSURL,
	)

	apiClient := api.NewClient(
		cfg.API.RestURL,
		cred,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	opts := []session.Option{
		session.WithNotificationHook(func(n notify.Notification) {
			logger.Info("notification",
				"type", n.Type,
				"title", n.Title,
				"message", n.Message,
				"priority", n.Priority,
			)
		}),
		session.WithDashboardHook(func(role model.Role, s dashboard.Slice) {
			logger.Info("dashboard updated",
				"role", role,
				"keys", len(s.Data),
				"type", s.Data["type"],
			)
		}),
	}

	if cfg.Recorder.Enabled {
		logger.Info("connecting to recorder database",
			"host", cfg.Recorder.Database.Host,
			"port", cfg.Recorder.Database.Port,
			"database", cfg.Recorder.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Recorder.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		queue := writer.NewQueue[writer.EventRow](cfg.Recorder.BatchSize, cfg.Recorder.BufferSize)
		recorder := writer.NewEventWriter(writer.WriterConfig{
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval,
		}, queue, pool, logger)
		opts = append(opts, session.WithRecorder(recorder))
	}

	sess, err := session.New(cfg, cred, apiClient, logger, opts...)
	if err != nil {
		return err
	}

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
		Handler:           newHealthHandler(cfg.Health.Path, sess),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port, "path", cfg.Health.Path)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", "error", err)
		}
	}()

	// A failed initial connect is not fatal: the fallback poller and the
	// health endpoint keep reporting until shutdown.
	if err := sess.Start(ctx); err != nil {
		logger.Warn("session started without realtime channel", "error", err)
	}

	logger.Info("listening - press Ctrl+C to stop",
		"state", sess.ConnectionState(),
		"rooms", sess.Rooms(),
	)

	if retryFailed > 0 {
		go retryWhenFailed(ctx, sess, retryFailed, logger)
	}

	<-ctx.Done()

	logger.Info("shutting down...")

	sess.End()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown", "error", err)
	}

	logger.Info("synctap stopped")
	return nil
}

// reconnector is the part of a session retryWhenFailed drives.
type reconnector interface {
	ConnectionState() connection.State
	Reconnect(ctx context.Context) error
}

// retryWhenFailed reopens the channel every interval while it is settled in
// StateFailed. The manager's own retry loop covers every other state.
func retryWhenFailed(ctx context.Context, sess reconnector, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sess.ConnectionState() != connection.StateFailed {
				continue
			}
			if err := sess.Reconnect(ctx); err != nil {
				logger.Warn("reconnect failed", "error", err)
				continue
			}
			logger.Info("realtime channel restored")
		}
	}
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/api"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/config"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/database"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/llm"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/queue"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/store"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/stream"
	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/version"
)

// newServeCmd runs the evaluation service: HTTP API plus the run worker pool.
func newServeCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the evaluation service (HTTP API and run workers)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *configDir)
		},
	}
}

func serve(ctx context.Context, configDir string) error {
	httpPort := getEnv("HTTP_PORT", "8080")
	podID := resolvePodID()

	slog.Info("starting aresim service",
		"version", version.Full(),
		"http_port", httpPort,
		"pod_id", podID,
		"config_dir", configDir)

	cfg, err := config.Initialize(configDir)
	if err != nil {
		return err
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to postgresql")

	runStore := store.New(dbClient.DB())
	publisher := stream.NewPublisher(dbClient.DB())

	// Operational tail of run lifecycle transitions.
	listener := stream.NewListener(dbClient.DSN(), func(channel string, payload []byte) {
		slog.Debug("run notification", "channel", channel, "payload", string(payload))
	})
	if err := listener.Start(ctx); err != nil {
		return err
	}
	defer listener.Stop(ctx)
	if err := listener.Subscribe(ctx, stream.GlobalRunChannel); err != nil {
		return err
	}

	var engine llm.Engine
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewClient(llm.Config{
			Model:   cfg.LLM.Model,
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
		})
		if err != nil {
			return err
		}
		engine = client
		slog.Info("llm engine initialized", "model", cfg.LLM.Model)
	} else {
		slog.Warn("no llm api key configured; soft checkers and the in-context judge are unavailable")
	}

	executor := queue.NewSimExecutor(cfg, engine, slog.Default())
	pool := queue.NewWorkerPool(podID, runStore, &cfg.Queue, executor, publisher)
	if err := pool.Start(ctx); err != nil {
		return err
	}

	server := api.NewServer(runStore, dbClient.DB(), pool)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(":" + httpPort); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("aresim service started",
		"pod_id", podID,
		"workers", cfg.Queue.WorkerCount)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("server error triggered shutdown", "error", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("worker pool stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("shutdown timeout exceeded; incomplete runs will be orphan-recovered")
	}

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

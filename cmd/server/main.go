package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docscope/internal/analyzer"
	"github.com/dgallion1/docscope/internal/api"
	"github.com/dgallion1/docscope/internal/config"
	"github.com/dgallion1/docscope/internal/gate"
	"github.com/dgallion1/docscope/internal/progress"
	"github.com/dgallion1/docscope/internal/render"
	"github.com/dgallion1/docscope/internal/session"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.SlogLevel()
	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	client, err := analyzer.NewClient(cfg, log)
	if err != nil {
		log.Error("failed to create analyzer client", "error", err)
		os.Exit(1)
	}
	renderer, err := render.New(log)
	if err != nil {
		log.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	if err := client.Health(ctx); err != nil {
		log.Warn("analysis service not reachable at startup", "url", cfg.AnalyzerURL, "error", err)
	}

	// Initialize sessions.
	sessions := session.NewManager(session.Deps{
		Gate:     gate.New(cfg.AcceptedMediaType, cfg.MaxUploadBytes),
		Analyzer: client,
		Progress: progress.New(cfg.ProgressStepDelay),
		Renderer: renderer,
	}, cfg.SessionTTL, cfg.MaxSessions, log)
	sessions.Start(ctx)

	// Initialize HTTP server.
	srv, err := api.NewServer(sessions, client, log, cfg)
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		sessions.Stop()
		client.Close()
	}()

	log.Info("starting docscope",
		"port", cfg.Port,
		"analyzer_url", cfg.AnalyzerURL,
		"max_upload", cfg.MaxUploadBytes,
		"field_naming", cfg.FieldNaming,
		"max_sessions", cfg.MaxSessions,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/waterdrop26651/FormulaAI/internal/airules"
	"github.com/waterdrop26651/FormulaAI/internal/api"
	"github.com/waterdrop26651/FormulaAI/internal/config"
	"github.com/waterdrop26651/FormulaAI/internal/history"
	"github.com/waterdrop26651/FormulaAI/internal/pipeline"
	"github.com/waterdrop26651/FormulaAI/internal/template"
)

func main() {
	// Local .env is optional; real deployments set the environment directly.
	godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	templates, err := template.NewStore(cfg.TemplatesDir, log)
	if err != nil {
		log.Error("load templates", "error", err)
		os.Exit(1)
	}

	hist, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		log.Error("open history db", "error", err)
		os.Exit(1)
	}

	// AI rule derivation is optional: without a key, intent requests are
	// rejected but template and override formatting still work.
	var aiClient *airules.Client
	var ai pipeline.RuleCompleter
	if cfg.AIAPIKey != "" {
		aiClient = airules.NewClient(cfg.AIEndpoint, cfg.AIAPIKey, cfg.AIModel)
		ai = aiClient
	} else {
		log.Warn("AI_API_KEY not set, intent-based formatting disabled")
	}

	orch := pipeline.NewOrchestrator(cfg, ai, templates, hist, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if aiClient != nil {
			aiClient.Close()
		}
		hist.Close()
	}()

	log.Info("starting formulaai", "port", cfg.Port, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

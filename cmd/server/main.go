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

	"github.com/finlens/finlens/internal/api"
	"github.com/finlens/finlens/internal/config"
	"github.com/finlens/finlens/internal/extractor"
	"github.com/finlens/finlens/internal/llm"
	"github.com/finlens/finlens/internal/market"
	"github.com/finlens/finlens/internal/session"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	_ = godotenv.Load() // .env is optional

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the LLM binding.
	var client llm.Client
	switch cfg.Provider {
	case config.ProviderGemini:
		var err error
		client, err = llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Error("gemini client", "error", err)
			os.Exit(1)
		}
	default:
		client = llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMTimeout)
	}
	stats := llm.NewStats(time.Hour)

	ext := extractor.New()
	store := session.NewStore(cfg.SessionTTL, cfg.MaxSessions)
	gateway := market.NewGateway(cfg.EODHDAPIKey, cfg.MarketTimeout)

	// Evict idle sessions in the background.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				store.Cleanup()
			}
		}
	}()

	srv := api.NewServer(ext, store, client, stats, gateway, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		client.Close()
		cancel()
	}()

	log.Info("starting finlens", "port", cfg.Port, "provider", cfg.Provider)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

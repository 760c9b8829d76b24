package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talkdigest/talkdigest/internal/api"
	"github.com/talkdigest/talkdigest/internal/chat"
	"github.com/talkdigest/talkdigest/internal/config"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	llm := chat.NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.SystemPrompt)
	convs := chat.NewConversationStore(cfg.ConversationTTL, cfg.MaxHistoryTurns)
	stats := chat.NewLLMStats(time.Hour)

	srv := api.NewServer(llm, convs, stats, log, cfg)
	srv.StartCleanup(ctx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
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

		llm.Close()
		cancel()
	}()

	log.Info("starting chatd", "port", cfg.Port, "model", cfg.OllamaModel, "upstream", cfg.OllamaBaseURL)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

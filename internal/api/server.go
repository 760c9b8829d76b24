package api

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/talkdigest/talkdigest/internal/chat"
	"github.com/talkdigest/talkdigest/internal/config"
	"github.com/talkdigest/talkdigest/internal/pipeline"
)

//go:embed ui
var uiFS embed.FS

// Completer is the upstream chat model. *chat.OllamaClient satisfies this.
type Completer interface {
	Complete(ctx context.Context, history []chat.Message) (string, error)
	Model() string
}

// Server is the HTTP server for the chat front-end.
type Server struct {
	router chi.Router
	convs  *chat.ConversationStore
	llm    Completer
	stats  *chat.LLMStats
	log    *slog.Logger
	cfg    config.Config

	backoff func(attempt int) time.Duration
}

// NewServer creates and configures the HTTP server.
func NewServer(llm Completer, convs *chat.ConversationStore, stats *chat.LLMStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		convs:   convs,
		llm:     llm,
		stats:   stats,
		log:     log,
		cfg:     cfg,
		backoff: pipeline.Backoff,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	ui, err := fs.Sub(uiFS, "ui")
	if err != nil {
		// The ui directory is embedded at compile time.
		panic(err)
	}
	r.Handle("/*", http.FileServer(http.FS(ui)))

	// Authenticated endpoints. Auth is optional for local use: with no key
	// configured the routes are open.
	r.Group(func(r chi.Router) {
		if s.cfg.ChatAPIKey != "" {
			r.Use(AuthMiddleware(s.cfg.ChatAPIKey, s.log))
		}

		r.Post("/api/chat", s.handleChat)
		r.Delete("/api/chat/{convID}", s.handleDeleteConversation)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// StartCleanup evicts idle conversations until ctx is cancelled.
func (s *Server) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.convs.Cleanup()
			}
		}
	}()
}

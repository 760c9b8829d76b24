package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/talkdigest/talkdigest/internal/chat"
	"github.com/talkdigest/talkdigest/internal/pipeline"
)

const unreachableReply = "The language model is not responding. " +
	"Make sure the Ollama server is running and the model has been pulled."

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type chatResponse struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
	ReplyHTML      string `json:"reply_html,omitempty"`
	Model          string `json:"model"`
	Error          string `json:"error,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		jsonError(w, "message is required", http.StatusBadRequest)
		return
	}

	conv := s.convs.GetOrCreate(req.ConversationID)
	conv.Append("user", req.Message)

	reply, err := s.complete(r.Context(), conv.History())
	if err != nil {
		s.log.Error("chat completion failed", "conversation_id", conv.ID, "error", err)
		// Surface the failure as an assistant-style message so the UI can
		// show something useful, with a gateway status for API callers.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(chatResponse{
			ConversationID: conv.ID,
			Reply:          unreachableReply,
			Model:          s.llm.Model(),
			Error:          err.Error(),
		})
		return
	}

	conv.Append("assistant", reply)

	html, err := chat.RenderMarkdown(reply)
	if err != nil {
		s.log.Warn("markdown render failed", "conversation_id", conv.ID, "error", err)
		html = ""
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		ConversationID: conv.ID,
		Reply:          reply,
		ReplyHTML:      html,
		Model:          s.llm.Model(),
	})
}

// complete calls the model, retrying transient upstream failures and
// recording latency for the stats endpoint.
func (s *Server) complete(ctx context.Context, history []chat.Message) (string, error) {
	var lastErr error
	for attempt := 0; attempt < pipeline.MaxRetries; attempt++ {
		start := time.Now()
		reply, err := s.llm.Complete(ctx, history)
		s.stats.Record(time.Since(start).Milliseconds())
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !chat.IsRetryable(err) {
			return "", err
		}
		s.log.Warn("upstream retry", "attempt", attempt, "error", err)
		select {
		case <-time.After(s.backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	convID := chi.URLParam(r, "convID")
	if !s.convs.Delete(convID) {
		jsonError(w, "conversation not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"deleted": convID})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

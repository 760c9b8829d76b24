package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOllamaClientComplete(t *testing.T) {
	var gotReq chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  Hello there.  "}},
			},
		})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL+"/v1", "llama2", "be brief")
	defer client.Close()

	reply, err := client.Complete(context.Background(), []Message{
		{Role: "user", Content: "hi"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "Hello there." {
		t.Errorf("expected trimmed reply, got %q", reply)
	}

	if gotReq.Model != "llama2" {
		t.Errorf("expected model llama2, got %q", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("expected stream=false")
	}
	if len(gotReq.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[0].Content != "be brief" {
		t.Errorf("expected system prompt first, got %+v", gotReq.Messages[0])
	}
	if gotReq.Messages[1].Role != "user" {
		t.Errorf("expected user turn second, got %+v", gotReq.Messages[1])
	}
}

func TestOllamaClientNoSystemPrompt(t *testing.T) {
	var gotReq chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL+"/v1", "llama2", "")
	defer client.Close()
	if _, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(gotReq.Messages) != 1 {
		t.Fatalf("expected 1 message without system prompt, got %d", len(gotReq.Messages))
	}
}

func TestOllamaClientRetryableStatuses(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", status)
		}))

		client := NewOllamaClient(srv.URL+"/v1", "llama2", "")
		_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
		if !IsRetryable(err) {
			t.Errorf("status %d: expected retryable error, got %v", status, err)
		}
		client.Close()
		srv.Close()
	}
}

func TestOllamaClientClientErrorNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL+"/v1", "nosuchmodel", "")
	defer client.Close()
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRetryable(err) {
		t.Errorf("expected non-retryable error, got %v", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestOllamaClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL+"/v1", "llama2", "")
	defer client.Close()
	if _, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestConversationAppendCapsHistory(t *testing.T) {
	store := NewConversationStore(time.Hour, 4)
	conv := store.Create()
	for i := 0; i < 6; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		conv.Append(role, "turn")
	}
	hist := conv.History()
	if len(hist) != 4 {
		t.Fatalf("expected history capped at 4, got %d", len(hist))
	}
	// The oldest turns are the ones dropped.
	if hist[0].Role != "user" {
		t.Errorf("expected capped history to start with a user turn, got %q", hist[0].Role)
	}
}

func TestConversationStoreGetOrCreate(t *testing.T) {
	store := NewConversationStore(time.Hour, 0)

	conv := store.GetOrCreate("")
	if conv == nil || conv.ID == "" {
		t.Fatal("expected fresh conversation with ID")
	}
	if got := store.GetOrCreate(conv.ID); got != conv {
		t.Error("expected same conversation for known ID")
	}
	if got := store.GetOrCreate("unknown-id"); got == conv {
		t.Error("expected new conversation for unknown ID")
	}
}

func TestConversationStoreDelete(t *testing.T) {
	store := NewConversationStore(time.Hour, 0)
	conv := store.Create()
	if !store.Delete(conv.ID) {
		t.Error("expected delete to report existing conversation")
	}
	if store.Delete(conv.ID) {
		t.Error("expected second delete to report missing conversation")
	}
	if store.Get(conv.ID) != nil {
		t.Error("expected conversation gone after delete")
	}
}

func TestConversationStoreCleanup(t *testing.T) {
	store := NewConversationStore(20*time.Millisecond, 0)
	stale := store.Create()
	time.Sleep(40 * time.Millisecond)
	fresh := store.Create()

	store.Cleanup()

	if store.Get(stale.ID) != nil {
		t.Error("expected idle conversation evicted")
	}
	if store.Get(fresh.ID) == nil {
		t.Error("expected fresh conversation kept")
	}
}

func TestRenderMarkdown(t *testing.T) {
	html, err := RenderMarkdown("**bold** and `code`")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "<strong>bold</strong>") {
		t.Errorf("expected bold markup, got %q", html)
	}
	if !strings.Contains(html, "<code>code</code>") {
		t.Errorf("expected code markup, got %q", html)
	}
}

package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"manifold/internal/llm"
)

func TestChatClient_Chat_SendsAuthAndDecodesResponse(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req chatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotBody = req.Model
		_ = json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "the answer"}}},
		})
	}))
	defer srv.Close()

	client := NewChatClient(srv.URL, "secret-key")
	msg, err := client.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, nil, "test-model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Content != "the answer" || msg.Role != "assistant" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("expected Authorization header to be set, got %q", gotAuth)
	}
	if gotBody != "test-model" {
		t.Fatalf("expected model to round-trip, got %q", gotBody)
	}
}

func TestChatClient_Chat_NoAPIKeyOmitsAuthHeader(t *testing.T) {
	var gotAuth string
	seenAuth := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth, seenAuth = r.Header.Get("Authorization"), r.Header.Get("Authorization") != ""
		_ = json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "ok"}}},
		})
	}))
	defer srv.Close()

	client := NewChatClient(srv.URL, "")
	if _, err := client.Chat(context.Background(), nil, nil, "m"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seenAuth {
		t.Fatalf("expected no Authorization header, got %q", gotAuth)
	}
}

func TestChatClient_Chat_NonOKStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	client := NewChatClient(srv.URL, "")
	if _, err := client.Chat(context.Background(), nil, nil, "m"); err == nil {
		t.Fatalf("expected an error on non-200 status")
	}
}

func TestChatClient_ChatStream_ReplaysWholeContentAsOneDelta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "full reply"}}},
		})
	}))
	defer srv.Close()

	client := NewChatClient(srv.URL, "")
	h := &recordingHandler{}
	if err := client.ChatStream(context.Background(), nil, nil, "m", h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.deltas) != 1 || h.deltas[0] != "full reply" {
		t.Fatalf("expected a single delta with the full reply, got %v", h.deltas)
	}
}

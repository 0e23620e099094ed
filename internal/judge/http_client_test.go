package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestScoreSendsPassagesAndReturnsRawContent(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: "[7, 3]"}}},
		})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "key", "judge-model")
	raw, err := p.Score(context.Background(), "what is raft", []string{"passage one", "passage two"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if raw != "[7, 3]" {
		t.Errorf("raw response = %q", raw)
	}

	if len(gotBody.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(gotBody.Messages))
	}
	user := gotBody.Messages[1].Content
	if !strings.Contains(user, "what is raft") {
		t.Errorf("query missing from user message")
	}
	if !strings.Contains(user, "[1] passage one") || !strings.Contains(user, "[2] passage two") {
		t.Errorf("passages not numbered in user message: %q", user)
	}
	if gotBody.Temperature != 0 {
		t.Errorf("temperature = %f, want 0", gotBody.Temperature)
	}
}

func TestScoreBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", "judge-model")
	if _, err := p.Score(context.Background(), "q", []string{"p"}); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestScoreNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", "judge-model")
	if _, err := p.Score(context.Background(), "q", []string{"p"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

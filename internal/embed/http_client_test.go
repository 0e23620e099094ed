package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func embeddingsServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPProviderEmbed(t *testing.T) {
	var gotAuth string
	srv := embeddingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Input) != 2 {
			t.Errorf("expected 2 inputs, got %d", len(req.Input))
		}
		_ = json.NewEncoder(w).Encode(embeddingsResponse{
			Data: []embeddingData{
				{Embedding: []float64{0.1, 0.2, 0.3}},
				{Embedding: []float64{0.4, 0.5, 0.6}},
			},
		})
	})

	p := NewHTTPProvider(srv.URL, "secret", "test-embed", 3)
	vectors, err := p.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 3 {
		t.Fatalf("unexpected shape: %d vectors", len(vectors))
	}
	if vectors[1][2] != float32(0.6) {
		t.Errorf("vector value mismatch: %v", vectors[1])
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestHTTPProviderRejectsWrongSize(t *testing.T) {
	srv := embeddingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embeddingsResponse{
			Data: []embeddingData{{Embedding: []float64{0.1, 0.2}}},
		})
	})

	p := NewHTTPProvider(srv.URL, "", "test-embed", 3)
	if _, err := p.Embed(context.Background(), []string{"one"}); err == nil {
		t.Fatal("expected error for wrong vector size")
	}
}

func TestHTTPProviderRejectsCountMismatch(t *testing.T) {
	srv := embeddingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embeddingsResponse{
			Data: []embeddingData{{Embedding: []float64{1, 2, 3}}},
		})
	})

	p := NewHTTPProvider(srv.URL, "", "test-embed", 3)
	if _, err := p.Embed(context.Background(), []string{"one", "two"}); err == nil {
		t.Fatal("expected error for embedding count mismatch")
	}
}

func TestHTTPProviderBadStatus(t *testing.T) {
	srv := embeddingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	p := NewHTTPProvider(srv.URL, "", "test-embed", 3)
	if _, err := p.Embed(context.Background(), []string{"one"}); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestHTTPProviderEmptyInput(t *testing.T) {
	p := NewHTTPProvider("http://unused", "", "test-embed", 3)
	if _, err := p.Embed(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestModelID(t *testing.T) {
	p := NewHTTPProvider("http://unused", "", "nomic-embed-text", 768)
	if got := p.ModelID(); got != "nomic-embed-text:768" {
		t.Errorf("ModelID = %q", got)
	}
}

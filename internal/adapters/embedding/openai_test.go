package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIAdapter_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %s", got)
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "embed-test" || len(req.Input) != 2 {
			t.Errorf("unexpected request: %+v", req)
		}

		// reversed on purpose; the adapter orders by index
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{0.2}},
				{"object": "embedding", "index": 0, "embedding": []float32{0.1}},
			},
		})
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter("sk-test", server.URL, "embed-test", 0)
	vecs, err := adapter.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 0.1 || vecs[1][0] != 0.2 {
		t.Errorf("unexpected vectors: %v", vecs)
	}
}

func TestOpenAIAdapter_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad key"}})
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter("bad", server.URL, "", 0)
	if _, err := adapter.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error")
	}
}

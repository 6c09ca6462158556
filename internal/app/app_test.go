package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
	"github.com/0xcro3dile/courserag/internal/infrastructure/config"
)

const mcpCourse = `Course Title: Building MCP Servers
Course Link: https://example.com/mcp
Course Instructor: Ada Lovelace

Lesson 1: Introduction
Lesson Link: https://example.com/mcp/1
The Model Context Protocol lets a model call tools exposed by a server.
Servers describe their tools with JSON schemas.
`

// fakeOllama answers /api/embed with letter-frequency vectors and /api/chat
// with one search tool call followed by a final answer.
type fakeOllama struct {
	mu        sync.Mutex
	chatCalls int
	toolText  string
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/embed":
		var req struct {
			Input any `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		var inputs []string
		switch v := req.Input.(type) {
		case string:
			inputs = []string{v}
		case []any:
			for _, s := range v {
				inputs = append(inputs, s.(string))
			}
		}
		out := make([][]float32, len(inputs))
		for i, s := range inputs {
			out[i] = letterVector(s)
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": out})

	case "/api/chat":
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Tools []any `json:"tools"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		f.chatCalls++
		f.mu.Unlock()

		if len(req.Tools) > 0 {
			json.NewEncoder(w).Encode(map[string]any{
				"done": true,
				"message": map[string]any{
					"role":    "assistant",
					"content": "",
					"tool_calls": []any{map[string]any{
						"function": map[string]any{
							"name":      "search_course_content",
							"arguments": map[string]any{"query": "what is MCP", "course_name": "MCP"},
						},
					}},
				},
			})
			return
		}

		for _, m := range req.Messages {
			if m.Role == "tool" {
				f.mu.Lock()
				f.toolText = m.Content
				f.mu.Unlock()
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"done":    true,
			"message": map[string]any{"role": "assistant", "content": "MCP lets models call server tools."},
		})

	default:
		http.NotFound(w, r)
	}
}

func letterVector(s string) []float32 {
	v := make([]float32, 27)
	v[26] = 1
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

func testConfig(t *testing.T, ollamaURL string) *config.Config {
	t.Helper()
	docs := t.TempDir()
	if err := os.WriteFile(filepath.Join(docs, "mcp.txt"), []byte(mcpCourse), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.BaseURL = ollamaURL
	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.BaseURL = ollamaURL
	cfg.Store.Path = t.TempDir()
	cfg.Documents.Dir = docs
	return cfg
}

func TestApp_IngestAndAnswer(t *testing.T) {
	fake := &fakeOllama{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	a, err := New(ctx, testConfig(t, srv.URL))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	stats, err := a.IngestDocuments(ctx, false)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if stats.Courses != 1 || stats.Chunks == 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if n, ok := a.ChunkCount(ctx); !ok || n != stats.Chunks {
		t.Errorf("chunk count %d (%v) does not match ingested %d", n, ok, stats.Chunks)
	}

	// Second pass finds the course already stored.
	again, _ := a.IngestDocuments(ctx, false)
	if again.Courses != 0 {
		t.Errorf("re-ingest should skip existing course, got %+v", again)
	}

	resp, err := a.Query.Query(ctx, &entities.ChatRequest{Query: "What is MCP?"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if resp.Answer != "MCP lets models call server tools." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if resp.SessionID == "" {
		t.Error("expected a session id")
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Text != "Building MCP Servers - Lesson 1" {
		t.Fatalf("unexpected sources: %+v", resp.Sources)
	}
	if resp.Sources[0].URL == nil || *resp.Sources[0].URL != "https://example.com/mcp/1" {
		t.Errorf("expected lesson link, got %v", resp.Sources[0].URL)
	}
	if !strings.Contains(fake.toolText, "[Building MCP Servers - Lesson 1]") {
		t.Errorf("tool result not passed to the model: %q", fake.toolText)
	}
	if fake.chatCalls != 2 {
		t.Errorf("expected exactly 2 model calls, got %d", fake.chatCalls)
	}

	analytics, err := a.Catalog.Analytics(ctx)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if analytics.TotalCourses != 1 || analytics.CourseTitles[0] != "Building MCP Servers" {
		t.Errorf("unexpected analytics: %+v", analytics)
	}
}

func TestApp_MissingDocsFolder(t *testing.T) {
	srv := httptest.NewServer(&fakeOllama{})
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Store.Backend = "memory"
	cfg.Documents.Dir = filepath.Join(t.TempDir(), "absent")

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	stats, err := a.IngestDocuments(context.Background(), false)
	if err != nil || stats.Courses != 0 {
		t.Errorf("missing folder should be skipped, got %+v %v", stats, err)
	}
}

func TestApp_RedisSessions(t *testing.T) {
	srv := httptest.NewServer(&fakeOllama{})
	defer srv.Close()
	mr := miniredis.RunT(t)

	cfg := testConfig(t, srv.URL)
	cfg.Store.Backend = "memory"
	cfg.Session.Backend = "redis"
	cfg.Session.Redis.Addr = mr.Addr()

	ctx := context.Background()
	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	resp, err := a.Query.Query(ctx, &entities.ChatRequest{Query: "hello"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !mr.Exists(cfg.Session.Redis.KeyPrefix + resp.SessionID) {
		t.Error("exchange should be stored in redis")
	}
}

func TestApp_UnknownProviders(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "memory"
	cfg.LLM.Provider = "anthropic"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown llm provider")
	}

	cfg = config.Default()
	cfg.Store.Backend = "memory"
	cfg.Embedding.Provider = "onnx"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown embedding provider")
	}
}

func TestApp_UnreachableRedis(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = t.TempDir()
	cfg.Session.Backend = "redis"
	cfg.Session.Redis.Addr = "127.0.0.1:1"

	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("expected redis connection error")
	}
}

// Package app assembles the course assistant from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/0xcro3dile/courserag/internal/adapters/embedding"
	"github.com/0xcro3dile/courserag/internal/adapters/filewatcher"
	"github.com/0xcro3dile/courserag/internal/adapters/llm"
	"github.com/0xcro3dile/courserag/internal/adapters/loader"
	"github.com/0xcro3dile/courserag/internal/adapters/metrics"
	"github.com/0xcro3dile/courserag/internal/adapters/parser"
	"github.com/0xcro3dile/courserag/internal/adapters/session"
	"github.com/0xcro3dile/courserag/internal/adapters/vectordb"
	"github.com/0xcro3dile/courserag/internal/domain/entities"
	"github.com/0xcro3dile/courserag/internal/domain/ports"
	"github.com/0xcro3dile/courserag/internal/domain/usecases"
	"github.com/0xcro3dile/courserag/internal/infrastructure/config"
)

// App holds the wired use cases and owns every resource they need.
type App struct {
	Config  *config.Config
	Query   *usecases.QueryUseCase
	Ingest  *usecases.IngestUseCase
	Catalog *usecases.CatalogUseCase
	Metrics *metrics.Prometheus

	loader  ports.DocumentLoader
	store   ports.CourseStore
	closers []func() error
}

type chunkCounter interface {
	ChunkCount(ctx context.Context) (int, error)
}

// New builds every adapter named by cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.NewPrometheus()}

	model, err := newChatModel(cfg.LLM)
	if err != nil {
		return nil, err
	}
	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	a.store, err = a.newStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	sessions, err := a.newSessions(ctx, cfg.Session)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.loader, err = a.newLoader(ctx, cfg.Documents)
	if err != nil {
		a.Close()
		return nil, err
	}

	retriever := usecases.NewRetriever(embedder, a.store, cfg.Search.MaxResults)
	registry := usecases.NewToolRegistry(a.Metrics)
	if err := registry.Register(usecases.NewCourseSearchTool(retriever)); err != nil {
		a.Close()
		return nil, err
	}
	generator := usecases.NewAnswerGenerator(model, cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	chunker := usecases.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)

	a.Query = usecases.NewQueryUseCase(generator, registry, sessions, a.Metrics)
	a.Ingest = usecases.NewIngestUseCase(a.loader, retriever, chunker, a.Metrics)
	a.Catalog = usecases.NewCatalogUseCase(retriever)
	return a, nil
}

func newChatModel(cfg config.LLMConfig) (ports.ChatModel, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			log.Printf("[WARN] llm.api_key is empty; OpenAI requests will be rejected")
		}
		return llm.NewOpenAIChatModel(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "ollama":
		return llm.NewOllamaChatModel(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func newEmbedder(cfg config.EmbeddingConfig) (ports.EmbeddingService, error) {
	switch cfg.Provider {
	case "ollama":
		return embedding.NewOllamaAdapter(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "openai":
		return embedding.NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func (a *App) newStore(cfg config.StoreConfig) (ports.CourseStore, error) {
	switch cfg.Backend {
	case "memory":
		return vectordb.NewInMemoryStore(), nil
	case "sqlite":
		st, err := vectordb.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening course store: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func (a *App) newSessions(ctx context.Context, cfg config.SessionConfig) (ports.SessionStore, error) {
	switch cfg.Backend {
	case "memory":
		return session.NewMemoryStore(cfg.MaxHistory), nil
	case "redis":
		st, err := session.NewRedisStore(ctx, session.RedisOptions{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			KeyPrefix:  cfg.Redis.KeyPrefix,
			MaxHistory: cfg.MaxHistory,
			TTL:        cfg.Redis.TTL,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// newLoader always reads text files; PDF and DOCX need the extraction service.
func (a *App) newLoader(ctx context.Context, cfg config.DocumentsConfig) (ports.DocumentLoader, error) {
	loaders := []ports.DocumentLoader{loader.NewTextLoader()}
	if cfg.PDFServiceURL == "" && cfg.PDFServiceScript == "" {
		return loader.NewMultiLoader(loaders...), nil
	}

	p := parser.NewPythonDocParser(cfg.PDFServiceURL, 0)
	if cfg.PDFServiceScript != "" {
		stop, err := p.StartService(ctx, cfg.PDFServiceScript)
		if err != nil {
			return nil, fmt.Errorf("starting document service: %w", err)
		}
		a.closers = append(a.closers, func() error { stop(); return nil })
	} else if !p.IsServiceHealthy(ctx) {
		log.Printf("[WARN] Document service at %s is not reachable; PDF and DOCX files will fail to load", cfg.PDFServiceURL)
	}
	loaders = append(loaders, loader.NewParsedLoader(p))
	return loader.NewMultiLoader(loaders...), nil
}

// IngestDocuments loads the configured docs folder, skipping courses already
// stored. A missing folder is logged and ignored.
func (a *App) IngestDocuments(ctx context.Context, clearExisting bool) (entities.FolderStats, error) {
	dir := a.Config.Documents.Dir
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] Documents folder %s does not exist, skipping ingestion", dir)
		return entities.FolderStats{}, nil
	}
	stats, err := a.Ingest.AddCourseFolder(ctx, dir, clearExisting)
	if err != nil {
		return stats, err
	}
	log.Printf("[INFO] Loaded %d new courses with %d chunks from %s", stats.Courses, stats.Chunks, dir)
	if n, ok := a.ChunkCount(ctx); ok {
		log.Printf("[INFO] Store now holds %d chunks", n)
	}
	return stats, nil
}

// Watch follows the docs folder until ctx ends.
func (a *App) Watch(ctx context.Context) error {
	w, err := filewatcher.NewFSNotifyWatcher(a.loader.SupportedExtensions(), filewatcher.DefaultDebounce)
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer w.Stop()

	err = a.Ingest.Watch(ctx, w, a.Config.Documents.Dir)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ChunkCount reports the stored chunk total when the backend can count.
func (a *App) ChunkCount(ctx context.Context) (int, bool) {
	c, ok := a.store.(chunkCounter)
	if !ok {
		return 0, false
	}
	n, err := c.ChunkCount(ctx)
	if err != nil {
		log.Printf("[WARN] Counting chunks: %v", err)
		return 0, false
	}
	return n, true
}

// Close releases stores, connections and child processes in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

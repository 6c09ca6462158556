// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions, not concrete implementations.
// Adapters implement these interfaces.
package ports

import (
	"context"
	"time"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionRequest is one call to the language model.
// A request without Tools must produce a natural-language answer.
type CompletionRequest struct {
	System      string
	Messages    []entities.ChatMessage
	Tools       []entities.ToolDefinition
	Temperature float64
	MaxTokens   int
}

// Completion is the model's reply: text, tool calls, or both.
type Completion struct {
	Text      string
	ToolCalls []entities.ToolCall
}

// ChatModel is a language model that may request tool invocations.
type ChatModel interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CourseStore persists course metadata and chunk embeddings and answers
// nearest-neighbor queries. It holds two logical collections: the course
// catalog (one entry per title) and the chunk content.
type CourseStore interface {
	// UpsertCourse stores course metadata keyed by title.
	UpsertCourse(ctx context.Context, course entities.Course, embedding []float32) error

	// UpsertChunks stores chunks with their embeddings, keyed by chunk ID.
	UpsertChunks(ctx context.Context, chunks []entities.Chunk) error

	// SearchChunks returns the closest chunks, ascending by distance.
	SearchChunks(ctx context.Context, embedding []float32, filter entities.SearchFilter, limit int) (entities.SearchResults, error)

	// NearestCourse returns the catalog title closest to the embedding.
	// ok is false when the catalog is empty.
	NearestCourse(ctx context.Context, embedding []float32) (title string, ok bool, err error)

	// Course returns stored metadata, or nil when the title is unknown.
	Course(ctx context.Context, title string) (*entities.Course, error)

	// CourseTitles lists every stored course title.
	CourseTitles(ctx context.Context) ([]string, error)

	// DeleteCourse removes a course and all of its chunks.
	DeleteCourse(ctx context.Context, title string) error

	// Clear removes all data from both collections.
	Clear(ctx context.Context) error
}

// Tool is a callable unit offered to the language model.
type Tool interface {
	Definition() entities.ToolDefinition
	Invoke(ctx context.Context, args map[string]any) (entities.ToolResult, error)
}

// SessionStore keeps a bounded conversation history per session.
type SessionStore interface {
	CreateSession(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, sessionID, role, content string) error
	AddExchange(ctx context.Context, sessionID, userMessage, assistantMessage string) error

	// History returns "User: ..." / "Assistant: ..." lines, or "" when empty.
	History(ctx context.Context, sessionID string) (string, error)
	Clear(ctx context.Context, sessionID string) error
}

// DocumentLoader reads and parses documents from various formats.
type DocumentLoader interface {
	// Load reads a document from the given path.
	Load(ctx context.Context, path string) (*entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// DocumentParser extracts text from binary document formats (PDF, DOCX, etc).
type DocumentParser interface {
	// Parse extracts text content from document bytes.
	Parse(ctx context.Context, data []byte, filename string) (string, error)

	// SupportedFormats returns formats this parser handles (e.g., "pdf", "docx").
	SupportedFormats() []string
}

// Metrics records service-level counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveQuery(outcome string, elapsed time.Duration)
	ObserveToolCall(tool string)
	ObserveIngest(courses, chunks int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ObserveQuery(string, time.Duration) {}
func (NopMetrics) ObserveToolCall(string)             {}
func (NopMetrics) ObserveIngest(int, int)             {}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

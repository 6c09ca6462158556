package usecases

import (
	"context"
	"fmt"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
	"github.com/0xcro3dile/courserag/internal/domain/ports"
)

// Retriever embeds text and talks to the course store. Every failure of the
// embedder or the store comes back as an *entities.TransportError.
type Retriever struct {
	embedder   ports.EmbeddingService
	store      ports.CourseStore
	maxResults int
}

// NewRetriever creates a Retriever returning at most maxResults chunks per query.
func NewRetriever(embedder ports.EmbeddingService, store ports.CourseStore, maxResults int) *Retriever {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Retriever{
		embedder:   embedder,
		store:      store,
		maxResults: maxResults,
	}
}

// UpsertCourseMetadata stores the course in the catalog, embedded by title.
func (r *Retriever) UpsertCourseMetadata(ctx context.Context, course entities.Course) error {
	embedding, err := r.embedder.Embed(ctx, course.Title)
	if err != nil {
		return transport("embedding course title", err)
	}
	if err := r.store.UpsertCourse(ctx, course, embedding); err != nil {
		return transport("storing course metadata", err)
	}
	return nil
}

// UpsertChunks embeds and stores chunk content. An empty slice is a no-op.
func (r *Retriever) UpsertChunks(ctx context.Context, chunks []entities.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return transport("embedding chunks", err)
	}
	if len(embeddings) != len(chunks) {
		return transport("embedding chunks", fmt.Errorf("got %d embeddings for %d chunks", len(embeddings), len(chunks)))
	}

	stored := make([]entities.Chunk, len(chunks))
	for i := range chunks {
		stored[i] = chunks[i]
		stored[i].Embedding = embeddings[i]
	}
	if err := r.store.UpsertChunks(ctx, stored); err != nil {
		return transport("storing chunks", err)
	}
	return nil
}

// QueryChunks returns up to maxResults chunks closest to text.
func (r *Retriever) QueryChunks(ctx context.Context, text string, filter entities.SearchFilter) (entities.SearchResults, error) {
	embedding, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return entities.SearchResults{}, transport("embedding query", err)
	}
	results, err := r.store.SearchChunks(ctx, embedding, filter, r.maxResults)
	if err != nil {
		return entities.SearchResults{}, transport("searching chunks", err)
	}
	return results, nil
}

// ResolveCourseName maps a partial or approximate course name to the closest
// stored title. It returns entities.ErrCourseNotFound when the catalog is empty.
func (r *Retriever) ResolveCourseName(ctx context.Context, name string) (string, error) {
	embedding, err := r.embedder.Embed(ctx, name)
	if err != nil {
		return "", transport("embedding course name", err)
	}
	title, ok, err := r.store.NearestCourse(ctx, embedding)
	if err != nil {
		return "", transport("resolving course name", err)
	}
	if !ok {
		return "", entities.ErrCourseNotFound
	}
	return title, nil
}

// Course returns stored metadata for title, or nil if it is unknown.
func (r *Retriever) Course(ctx context.Context, title string) (*entities.Course, error) {
	course, err := r.store.Course(ctx, title)
	if err != nil {
		return nil, transport("loading course metadata", err)
	}
	return course, nil
}

// CourseTitles lists the catalog.
func (r *Retriever) CourseTitles(ctx context.Context) ([]string, error) {
	titles, err := r.store.CourseTitles(ctx)
	if err != nil {
		return nil, transport("listing courses", err)
	}
	return titles, nil
}

// DeleteCourse drops a course and its chunks.
func (r *Retriever) DeleteCourse(ctx context.Context, title string) error {
	if err := r.store.DeleteCourse(ctx, title); err != nil {
		return transport("deleting course", err)
	}
	return nil
}

// Clear empties both collections.
func (r *Retriever) Clear(ctx context.Context) error {
	if err := r.store.Clear(ctx); err != nil {
		return transport("clearing store", err)
	}
	return nil
}

func transport(op string, err error) error {
	if entities.IsTransport(err) {
		return err
	}
	return &entities.TransportError{Op: op, Err: err}
}

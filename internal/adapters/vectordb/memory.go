// Package vectordb provides course store adapters.
// Clean Architecture: Adapters implementing ports.CourseStore.
// The in-memory store suits tests and throwaway runs; SQLiteStore persists.
package vectordb

import (
	"context"
	"slices"
	"sync"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
)

type courseEntry struct {
	course    entities.Course
	embedding []float32
}

// InMemoryStore keeps the catalog and chunk collections in maps.
type InMemoryStore struct {
	mu      sync.RWMutex
	courses map[string]courseEntry    // title -> metadata
	titles  []string                  // insertion order
	chunks  map[string]entities.Chunk // chunkID -> chunk
}

// NewInMemoryStore creates a new in-memory course store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		courses: make(map[string]courseEntry),
		chunks:  make(map[string]entities.Chunk),
	}
}

// UpsertCourse stores course metadata keyed by title.
func (s *InMemoryStore) UpsertCourse(ctx context.Context, course entities.Course, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[course.Title]; !ok {
		s.titles = append(s.titles, course.Title)
	}
	course.Lessons = slices.Clone(course.Lessons)
	s.courses[course.Title] = courseEntry{course: course, embedding: embedding}
	return nil
}

// UpsertChunks saves chunks with their embeddings.
func (s *InMemoryStore) UpsertChunks(ctx context.Context, chunks []entities.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// SearchChunks finds the chunks closest to a query embedding.
func (s *InMemoryStore) SearchChunks(ctx context.Context, embedding []float32, filter entities.SearchFilter, limit int) (entities.SearchResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []entities.SearchResult
	for _, chunk := range s.chunks {
		if !matches(chunk, filter) {
			continue
		}
		results = append(results, entities.SearchResult{
			Chunk:    chunk,
			Distance: cosineDistance(embedding, chunk.Embedding),
		})
	}
	return topK(results, limit), nil
}

// NearestCourse returns the title whose embedding is closest.
func (s *InMemoryStore) NearestCourse(ctx context.Context, embedding []float32) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best, found := "", false
	bestDist := 0.0
	for _, title := range s.titles {
		d := cosineDistance(embedding, s.courses[title].embedding)
		if !found || d < bestDist {
			best, bestDist, found = title, d, true
		}
	}
	return best, found, nil
}

// Course returns stored metadata, or nil if the title is unknown.
func (s *InMemoryStore) Course(ctx context.Context, title string) (*entities.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.courses[title]
	if !ok {
		return nil, nil
	}
	course := entry.course
	course.Lessons = slices.Clone(course.Lessons)
	return &course, nil
}

// CourseTitles lists titles in insertion order.
func (s *InMemoryStore) CourseTitles(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.titles), nil
}

// DeleteCourse removes a course and all of its chunks.
func (s *InMemoryStore) DeleteCourse(ctx context.Context, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.courses, title)
	s.titles = slices.DeleteFunc(s.titles, func(t string) bool { return t == title })
	for id, chunk := range s.chunks {
		if chunk.CourseTitle == title {
			delete(s.chunks, id)
		}
	}
	return nil
}

// Clear removes all data from the store.
func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.courses = make(map[string]courseEntry)
	s.titles = nil
	s.chunks = make(map[string]entities.Chunk)
	return nil
}

// ChunkCount returns the number of stored chunks.
func (s *InMemoryStore) ChunkCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

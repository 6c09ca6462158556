// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
// They contain NO framework code, NO external dependencies - just pure business logic.
package usecases

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
	"github.com/0xcro3dile/courserag/internal/domain/ports"
)

// IngestUseCase turns course documents into stored metadata and chunks.
// Single Responsibility: Only ingestion logic.
type IngestUseCase struct {
	loader    ports.DocumentLoader
	retriever *Retriever
	chunker   *Chunker
	metrics   ports.Metrics

	mu    sync.Mutex
	paths map[string]string // file path -> course title, for watch-mode deletes
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
// Dependency Injection: Adapters are passed in, not created here.
func NewIngestUseCase(
	loader ports.DocumentLoader,
	retriever *Retriever,
	chunker *Chunker,
	metrics ports.Metrics,
) *IngestUseCase {
	if chunker == nil {
		chunker = NewChunker(defaultChunkSize, defaultChunkOverlap)
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &IngestUseCase{
		loader:    loader,
		retriever: retriever,
		chunker:   chunker,
		metrics:   metrics,
		paths:     make(map[string]string),
	}
}

// preparedCourse is a parsed and chunked document not yet stored.
type preparedCourse struct {
	course entities.Course
	chunks []entities.Chunk
}

// prepare loads, parses and chunks one file.
func (uc *IngestUseCase) prepare(ctx context.Context, path string) (*preparedCourse, error) {
	doc, err := uc.loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	parsed, err := ParseCourseDocument(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &preparedCourse{
		course: parsed.Course,
		chunks: uc.chunker.ChunkCourse(parsed),
	}, nil
}

// store writes metadata first, then chunks. A chunk failure leaves the
// metadata in place.
func (uc *IngestUseCase) store(ctx context.Context, path string, pc *preparedCourse) error {
	if err := uc.retriever.UpsertCourseMetadata(ctx, pc.course); err != nil {
		return fmt.Errorf("storing course %q: %w", pc.course.Title, err)
	}
	if err := uc.retriever.UpsertChunks(ctx, pc.chunks); err != nil {
		return fmt.Errorf("storing chunks of %q: %w", pc.course.Title, err)
	}

	uc.mu.Lock()
	uc.paths[path] = pc.course.Title
	uc.mu.Unlock()

	uc.metrics.ObserveIngest(1, len(pc.chunks))
	return nil
}

// AddCourseDocument ingests a single file. It never skips an existing course
// title: the stored course is dropped and re-added with freshly generated
// chunks.
func (uc *IngestUseCase) AddCourseDocument(ctx context.Context, path string) (*entities.Course, int, error) {
	pc, err := uc.prepare(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	if err := uc.retriever.DeleteCourse(ctx, pc.course.Title); err != nil {
		return nil, 0, fmt.Errorf("dropping stale chunks of %q: %w", pc.course.Title, err)
	}
	if err := uc.store(ctx, path, pc); err != nil {
		return nil, 0, err
	}
	log.Printf("[INFO] Added course %q (%d chunks)", pc.course.Title, len(pc.chunks))
	return &pc.course, len(pc.chunks), nil
}

// AddCourseFolder ingests every supported file in dir, skipping courses whose
// title is already stored. A failing file is logged and skipped.
func (uc *IngestUseCase) AddCourseFolder(ctx context.Context, dir string, clearExisting bool) (entities.FolderStats, error) {
	var stats entities.FolderStats

	info, err := os.Stat(dir)
	if err != nil {
		return stats, fmt.Errorf("course folder %s: %w", dir, err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("course folder %s: not a directory", dir)
	}

	if clearExisting {
		if err := uc.Clear(ctx); err != nil {
			return stats, err
		}
	}

	titles, err := uc.retriever.CourseTitles(ctx)
	if err != nil {
		return stats, err
	}
	existing := make(map[string]bool, len(titles))
	for _, t := range titles {
		existing[t] = true
	}

	files, err := uc.courseFiles(dir)
	if err != nil {
		return stats, err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pc, err := uc.prepare(ctx, path)
		if err != nil {
			log.Printf("[WARN] Skipping %s: %v", path, err)
			continue
		}
		if existing[pc.course.Title] {
			log.Printf("[INFO] Course already exists: %s - skipping", pc.course.Title)
			continue
		}
		if err := uc.store(ctx, path, pc); err != nil {
			log.Printf("[ERROR] Ingesting %s: %v", path, err)
			continue
		}

		existing[pc.course.Title] = true
		stats.Courses++
		stats.Chunks += len(pc.chunks)
		log.Printf("[INFO] Added new course: %s (%d chunks)", pc.course.Title, len(pc.chunks))
	}

	return stats, nil
}

// Clear removes every stored course and forgets which files produced them.
func (uc *IngestUseCase) Clear(ctx context.Context) error {
	log.Printf("[INFO] Clearing existing course data")
	if err := uc.retriever.Clear(ctx); err != nil {
		return err
	}
	uc.mu.Lock()
	clear(uc.paths)
	uc.mu.Unlock()
	return nil
}

// ReplaceCourseDocument re-ingests a file, dropping the stored course of the
// same title first so its chunks are regenerated wholesale.
func (uc *IngestUseCase) ReplaceCourseDocument(ctx context.Context, path string) (*entities.Course, int, error) {
	pc, err := uc.prepare(ctx, path)
	if err != nil {
		return nil, 0, err
	}

	uc.mu.Lock()
	previous, known := uc.paths[path]
	uc.mu.Unlock()
	if known && previous != pc.course.Title {
		if err := uc.retriever.DeleteCourse(ctx, previous); err != nil {
			return nil, 0, err
		}
	}
	if err := uc.retriever.DeleteCourse(ctx, pc.course.Title); err != nil {
		return nil, 0, err
	}

	if err := uc.store(ctx, path, pc); err != nil {
		return nil, 0, err
	}
	log.Printf("[INFO] Replaced course %q (%d chunks)", pc.course.Title, len(pc.chunks))
	return &pc.course, len(pc.chunks), nil
}

// RemoveCourseDocument drops the course last ingested from path. Unknown paths
// are ignored.
func (uc *IngestUseCase) RemoveCourseDocument(ctx context.Context, path string) error {
	uc.mu.Lock()
	title, ok := uc.paths[path]
	delete(uc.paths, path)
	uc.mu.Unlock()
	if !ok {
		return nil
	}
	if err := uc.retriever.DeleteCourse(ctx, title); err != nil {
		return err
	}
	log.Printf("[INFO] Removed course %q", title)
	return nil
}

// courseFiles lists regular files with a supported extension, sorted by name.
func (uc *IngestUseCase) courseFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	supported := uc.loader.SupportedExtensions()
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !slices.Contains(supported, ext) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}

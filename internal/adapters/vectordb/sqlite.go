package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/courserag/internal/domain/entities"
)

// SQLiteStore implements ports.CourseStore with SQLite persistence.
// Similarity is computed brute force over the candidate rows, which is fine
// for a course catalog of a few thousand chunks.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	dataPath string
}

// NewSQLiteStore opens (or creates) courses.db under dataPath.
func NewSQLiteStore(dataPath string) (*SQLiteStore, error) {
	if dataPath == "" {
		dataPath = "./data"
	}

	// Ensure data directory exists
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "courses.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{
		db:       db,
		dataPath: dataPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// initSchema creates the catalog and chunk tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS courses (
		title TEXT PRIMARY KEY,
		link TEXT NOT NULL DEFAULT '',
		instructor TEXT NOT NULL DEFAULT '',
		lessons TEXT NOT NULL DEFAULT '[]',
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		course_title TEXT NOT NULL,
		lesson_number INTEGER,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_course ON chunks(course_title, lesson_number);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertCourse stores course metadata keyed by title. Updating keeps the
// course's position in the catalog.
func (s *SQLiteStore) UpsertCourse(ctx context.Context, course entities.Course, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lessons := course.Lessons
	if lessons == nil {
		lessons = []entities.Lesson{}
	}
	lessonsJSON, err := json.Marshal(lessons)
	if err != nil {
		return fmt.Errorf("encoding lessons: %w", err)
	}
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("encoding embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO courses (title, link, instructor, lessons, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			link = excluded.link,
			instructor = excluded.instructor,
			lessons = excluded.lessons,
			embedding = excluded.embedding
	`, course.Title, course.Link, course.Instructor, string(lessonsJSON), embeddingJSON)
	if err != nil {
		return fmt.Errorf("upserting course: %w", err)
	}
	return nil
}

// UpsertChunks saves chunks with their embeddings in one transaction.
func (s *SQLiteStore) UpsertChunks(ctx context.Context, chunks []entities.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, course_title, lesson_number, chunk_index, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}

		var lesson sql.NullInt64
		if chunk.LessonNumber != nil {
			lesson = sql.NullInt64{Int64: int64(*chunk.LessonNumber), Valid: true}
		}

		_, err = stmt.ExecContext(ctx,
			chunk.ID,
			chunk.CourseTitle,
			lesson,
			chunk.Index,
			chunk.Content,
			embeddingJSON,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}

	return tx.Commit()
}

// SearchChunks finds the chunks closest to a query embedding. The filter is
// applied in SQL before scoring.
func (s *SQLiteStore) SearchChunks(ctx context.Context, embedding []float32, filter entities.SearchFilter, limit int) (entities.SearchResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, course_title, lesson_number, chunk_index, content, embedding FROM chunks`
	var (
		where []string
		args  []any
	)
	if filter.CourseTitle != "" {
		where = append(where, "course_title = ?")
		args = append(args, filter.CourseTitle)
	}
	if filter.LessonNumber != nil {
		where = append(where, "lesson_number = ?")
		args = append(args, *filter.LessonNumber)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return entities.SearchResults{}, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []entities.SearchResult
	for rows.Next() {
		var (
			chunk         entities.Chunk
			lesson        sql.NullInt64
			embeddingJSON []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.CourseTitle, &lesson, &chunk.Index, &chunk.Content, &embeddingJSON); err != nil {
			return entities.SearchResults{}, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal(embeddingJSON, &chunk.Embedding); err != nil {
			continue // Skip corrupted embeddings
		}
		if lesson.Valid {
			n := int(lesson.Int64)
			chunk.LessonNumber = &n
		}
		results = append(results, entities.SearchResult{
			Chunk:    chunk,
			Distance: cosineDistance(embedding, chunk.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return entities.SearchResults{}, fmt.Errorf("reading chunks: %w", err)
	}

	return topK(results, limit), nil
}

// NearestCourse returns the catalog title closest to the embedding.
func (s *SQLiteStore) NearestCourse(ctx context.Context, embedding []float32) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT title, embedding FROM courses ORDER BY rowid`)
	if err != nil {
		return "", false, fmt.Errorf("querying courses: %w", err)
	}
	defer rows.Close()

	best, found := "", false
	bestDist := 0.0
	for rows.Next() {
		var (
			title         string
			embeddingJSON []byte
			courseVec     []float32
		)
		if err := rows.Scan(&title, &embeddingJSON); err != nil {
			return "", false, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal(embeddingJSON, &courseVec); err != nil {
			continue
		}
		if d := cosineDistance(embedding, courseVec); !found || d < bestDist {
			best, bestDist, found = title, d, true
		}
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("reading courses: %w", err)
	}
	return best, found, nil
}

// Course returns stored metadata, or nil if the title is unknown.
func (s *SQLiteStore) Course(ctx context.Context, title string) (*entities.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	course := entities.Course{Title: title}
	var lessonsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT link, instructor, lessons FROM courses WHERE title = ?`, title,
	).Scan(&course.Link, &course.Instructor, &lessonsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading course: %w", err)
	}
	if err := json.Unmarshal([]byte(lessonsJSON), &course.Lessons); err != nil {
		return nil, fmt.Errorf("decoding lessons: %w", err)
	}
	return &course, nil
}

// CourseTitles lists titles in insertion order.
func (s *SQLiteStore) CourseTitles(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT title FROM courses ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// DeleteCourse removes a course and all of its chunks.
func (s *SQLiteStore) DeleteCourse(ctx context.Context, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE course_title = ?", title); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM courses WHERE title = ?", title); err != nil {
		return fmt.Errorf("deleting course: %w", err)
	}
	return tx.Commit()
}

// Clear removes all data from the store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks; DELETE FROM courses;")
	return err
}

// ChunkCount returns the number of stored chunks.
func (s *SQLiteStore) ChunkCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

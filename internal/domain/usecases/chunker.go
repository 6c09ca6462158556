package usecases

import (
	"fmt"
	"log"
	"unicode"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
)

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 100
)

// Chunker splits lesson text into overlapping windows that prefer to end on
// a sentence boundary.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker. Sizes are in characters; the overlap is kept
// below half the window so every step advances.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if limit := max(size/2-1, 0); overlap > limit {
		log.Printf("[WARN] Chunk overlap %d too large for size %d, using %d", overlap, size, limit)
		overlap = limit
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the window size in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the effective overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts normalized text into chunk bodies of at most Size characters.
// Adjacent bodies share exactly Overlap characters.
func (c *Chunker) Split(text string) []string {
	runes := []rune(normalizeWhitespace(text))
	n := len(runes)
	if n == 0 {
		return nil
	}

	var bodies []string
	start := 0
	for {
		end := start + c.size
		if end >= n {
			bodies = append(bodies, string(runes[start:]))
			return bodies
		}

		cut := c.sentenceCut(runes, start, end)
		bodies = append(bodies, string(runes[start:cut]))

		next := cut - c.overlap
		if next <= start {
			next = cut
		}
		start = next
	}
}

// sentenceCut finds the last sentence end in the back half of the window,
// falling back to a hard cut at end.
func (c *Chunker) sentenceCut(runes []rune, start, end int) int {
	floor := start + c.size/2
	for i := end - 1; i >= floor; i-- {
		if isSentenceEnd(runes[i]) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// ChunkCourse chunks every lesson of a parsed course. Indexes run across the
// whole course, and each chunk carries its course/lesson locator.
func (c *Chunker) ChunkCourse(parsed *ParsedCourse) []entities.Chunk {
	title := parsed.Course.Title
	var chunks []entities.Chunk
	index := 0
	for _, lt := range parsed.Lessons {
		number := lt.Lesson.Number
		for _, body := range c.Split(lt.Text) {
			chunks = append(chunks, entities.Chunk{
				ID:           entities.ChunkID(title, index),
				CourseTitle:  title,
				LessonNumber: &number,
				Index:        index,
				Content:      LocatorPrefix(title, number) + body,
			})
			index++
		}
	}
	return chunks
}

// LocatorPrefix is prepended to every stored chunk so it cites itself.
func LocatorPrefix(courseTitle string, lessonNumber int) string {
	return fmt.Sprintf("Course %s Lesson %d content: ", courseTitle, lessonNumber)
}

// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import (
	"fmt"
	"time"
)

// Document is a raw course document as read from disk.
type Document struct {
	ID        string
	Name      string
	Path      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Lesson is one lesson header inside a course document.
// Number is whatever the document declares; it need not be contiguous.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course is the metadata of one ingested document. Title is its identity.
type Course struct {
	Title      string
	Link       string
	Instructor string
	Lessons    []Lesson // document order
}

// LessonLink returns the link of the lesson with the given number, or "".
func (c *Course) LessonLink(number int) string {
	for _, l := range c.Lessons {
		if l.Number == number {
			return l.Link
		}
	}
	return ""
}

// Chunk is a bounded piece of lesson text prepared for embedding.
// Content already carries the "Course X Lesson N content: " locator.
type Chunk struct {
	ID           string
	CourseTitle  string
	LessonNumber *int
	Index        int       // position within the course ingestion pass
	Content      string
	Embedding    []float32 // populated by the embedding adapter
}

// ChunkID builds the stable store identifier of a course chunk.
func ChunkID(courseTitle string, index int) string {
	return fmt.Sprintf("%s_%d", courseTitle, index)
}

// SearchFilter narrows a chunk search. Zero values mean "no filter".
type SearchFilter struct {
	CourseTitle  string
	LessonNumber *int
}

// SearchResult is one chunk returned by a similarity search.
type SearchResult struct {
	Chunk    Chunk
	Distance float64 // smaller is more similar
}

// SearchResults is the ordered outcome of a chunk search (ascending distance).
type SearchResults struct {
	Results []SearchResult
}

// IsEmpty reports whether the search found nothing.
func (r SearchResults) IsEmpty() bool {
	return len(r.Results) == 0
}

// Source is a citation attached to an answer.
type Source struct {
	Text string  `json:"text"`
	URL  *string `json:"url"`
}

// Chat roles understood by the language model adapters.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage represents a conversation turn.
type ChatMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // assistant turns that requested tools
	ToolCallID string     // tool turns answering a call
}

// ToolCall is a model-issued request to run a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolDefinition describes a tool to the language model.
// Parameters is a JSON schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolResult is what a tool hands back: text for the model, sources for the caller.
type ToolResult struct {
	Text    string
	Sources []Source
}

// ChatRequest represents a query with its optional session.
type ChatRequest struct {
	Query     string
	SessionID string
}

// ChatResponse represents the LLM's answer with sources.
type ChatResponse struct {
	Answer    string
	Sources   []Source
	SessionID string
}

// CourseAnalytics summarizes the catalog.
type CourseAnalytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// FolderStats counts what a folder ingestion added.
type FolderStats struct {
	Courses int
	Chunks  int
}

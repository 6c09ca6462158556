package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
)

// SearchToolName is the name the language model uses to call the search tool.
const SearchToolName = "search_course_content"

// courseSearcher is the slice of Retriever the search tool needs.
type courseSearcher interface {
	ResolveCourseName(ctx context.Context, name string) (string, error)
	QueryChunks(ctx context.Context, text string, filter entities.SearchFilter) (entities.SearchResults, error)
	Course(ctx context.Context, title string) (*entities.Course, error)
}

// CourseSearchTool searches course content with optional course and lesson
// filters and formats hits for the model.
type CourseSearchTool struct {
	searcher courseSearcher
}

// NewCourseSearchTool creates the search tool.
func NewCourseSearchTool(searcher courseSearcher) *CourseSearchTool {
	return &CourseSearchTool{searcher: searcher}
}

// Definition describes the tool to the language model.
func (t *CourseSearchTool) Definition() entities.ToolDefinition {
	return entities.ToolDefinition{
		Name:        SearchToolName,
		Description: "Search course materials with smart course name matching and lesson filtering",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to search for in the course content",
				},
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": map[string]any{
					"type":        "integer",
					"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			"required": []string{"query"},
		},
	}
}

// Invoke runs a search. Domain outcomes (no match, no results) are returned as
// text; only transport failures are errors.
func (t *CourseSearchTool) Invoke(ctx context.Context, args map[string]any) (entities.ToolResult, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return entities.ToolResult{Text: "Missing required parameter 'query'"}, nil
	}
	courseName, _ := args["course_name"].(string)
	courseName = strings.TrimSpace(courseName)
	lesson, hasLesson := lessonArg(args["lesson_number"])

	var filter entities.SearchFilter
	if courseName != "" {
		title, err := t.searcher.ResolveCourseName(ctx, courseName)
		if errors.Is(err, entities.ErrCourseNotFound) {
			return entities.ToolResult{Text: fmt.Sprintf("No course found matching '%s'", courseName)}, nil
		}
		if err != nil {
			return entities.ToolResult{}, err
		}
		filter.CourseTitle = title
	}
	if hasLesson {
		filter.LessonNumber = &lesson
	}

	results, err := t.searcher.QueryChunks(ctx, query, filter)
	if err != nil {
		return entities.ToolResult{}, err
	}
	if results.IsEmpty() {
		return entities.ToolResult{Text: emptyResultText(courseName, lesson, hasLesson)}, nil
	}
	return t.format(ctx, results)
}

func emptyResultText(courseName string, lesson int, hasLesson bool) string {
	var sb strings.Builder
	sb.WriteString("No relevant content found")
	if courseName != "" {
		fmt.Fprintf(&sb, " in course '%s'", courseName)
	}
	if hasLesson {
		fmt.Fprintf(&sb, " in lesson %d", lesson)
	}
	sb.WriteString(".")
	return sb.String()
}

// format renders hits as "[Course - Lesson N]\n<content>" blocks and collects
// one source per distinct label.
func (t *CourseSearchTool) format(ctx context.Context, results entities.SearchResults) (entities.ToolResult, error) {
	courses := make(map[string]*entities.Course)
	seen := make(map[string]bool)

	blocks := make([]string, 0, len(results.Results))
	var sources []entities.Source
	for _, r := range results.Results {
		label := r.Chunk.CourseTitle
		if r.Chunk.LessonNumber != nil {
			label = fmt.Sprintf("%s - Lesson %d", label, *r.Chunk.LessonNumber)
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", label, r.Chunk.Content))

		if seen[label] {
			continue
		}
		seen[label] = true

		course, ok := courses[r.Chunk.CourseTitle]
		if !ok {
			var err error
			course, err = t.searcher.Course(ctx, r.Chunk.CourseTitle)
			if err != nil {
				return entities.ToolResult{}, err
			}
			courses[r.Chunk.CourseTitle] = course
		}
		sources = append(sources, entities.Source{Text: label, URL: sourceURL(course, r.Chunk.LessonNumber)})
	}

	return entities.ToolResult{
		Text:    strings.Join(blocks, "\n\n"),
		Sources: sources,
	}, nil
}

// sourceURL prefers the lesson link, then the course link.
func sourceURL(course *entities.Course, lesson *int) *string {
	if course == nil {
		return nil
	}
	if lesson != nil {
		if link := course.LessonLink(*lesson); link != "" {
			return &link
		}
	}
	if course.Link != "" {
		link := course.Link
		return &link
	}
	return nil
}

// lessonArg accepts the shapes a decoded JSON argument may take.
func lessonArg(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

package usecases

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
)

var (
	courseTitleRe      = regexp.MustCompile(`(?i)^course title:\s*(.*)$`)
	courseLinkRe       = regexp.MustCompile(`(?i)^course link:\s*(.*)$`)
	courseInstructorRe = regexp.MustCompile(`(?i)^course instructor:\s*(.*)$`)
	lessonMarkerRe     = regexp.MustCompile(`(?i)^lesson\s+(\d+):\s*(.*)$`)
	lessonLinkRe       = regexp.MustCompile(`(?i)^lesson link:\s*(.*)$`)
)

// headerLines is how many leading lines may carry course metadata.
const headerLines = 3

// LessonText pairs a lesson header with its normalized body text.
type LessonText struct {
	Lesson entities.Lesson
	Text   string
}

// ParsedCourse is the result of parsing one course document.
type ParsedCourse struct {
	Course  entities.Course
	Lessons []LessonText
}

// ParseCourseDocument extracts course metadata and lesson bodies from raw text.
// A document without lesson markers yields a course with no lessons.
func ParseCourseDocument(raw string) (*ParsedCourse, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	var course entities.Course
	for i := 0; i < headerLines && i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if m := courseTitleRe.FindStringSubmatch(line); m != nil {
			course.Title = strings.TrimSpace(m[1])
		} else if m := courseLinkRe.FindStringSubmatch(line); m != nil {
			course.Link = strings.TrimSpace(m[1])
		} else if m := courseInstructorRe.FindStringSubmatch(line); m != nil {
			course.Instructor = strings.TrimSpace(m[1])
		}
	}
	if course.Title == "" {
		return nil, fmt.Errorf("%w: no course title line", entities.ErrMalformedDocument)
	}

	parsed := &ParsedCourse{}
	var (
		current   *LessonText
		body      []string
		expectURL bool
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Text = normalizeWhitespace(strings.Join(body, "\n"))
		parsed.Lessons = append(parsed.Lessons, *current)
		course.Lessons = append(course.Lessons, current.Lesson)
		current, body = nil, nil
	}

	for _, rawLine := range lines {
		line := strings.TrimSpace(rawLine)

		if m := lessonMarkerRe.FindStringSubmatch(line); m != nil {
			if number, err := strconv.Atoi(m[1]); err == nil {
				flush()
				current = &LessonText{Lesson: entities.Lesson{Number: number, Title: strings.TrimSpace(m[2])}}
				expectURL = true
				continue
			}
		}
		if current == nil {
			continue // text before the first lesson is not indexed
		}
		if expectURL && line != "" {
			expectURL = false
			if m := lessonLinkRe.FindStringSubmatch(line); m != nil {
				current.Lesson.Link = strings.TrimSpace(m[1])
				continue
			}
		}
		body = append(body, line)
	}
	flush()

	parsed.Course = course
	return parsed, nil
}

// normalizeWhitespace collapses every whitespace run to one space.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

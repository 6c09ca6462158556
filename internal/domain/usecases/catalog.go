package usecases

import (
	"context"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
)

// CatalogUseCase reports what has been ingested.
type CatalogUseCase struct {
	retriever *Retriever
}

// NewCatalogUseCase creates a CatalogUseCase.
func NewCatalogUseCase(retriever *Retriever) *CatalogUseCase {
	return &CatalogUseCase{retriever: retriever}
}

// Analytics returns the course count and titles.
func (uc *CatalogUseCase) Analytics(ctx context.Context) (*entities.CourseAnalytics, error) {
	titles, err := uc.retriever.CourseTitles(ctx)
	if err != nil {
		return nil, err
	}
	if titles == nil {
		titles = []string{}
	}
	return &entities.CourseAnalytics{
		TotalCourses: len(titles),
		CourseTitles: titles,
	}, nil
}

// Package usecases - query.go answers questions over the course catalog.
package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
	"github.com/0xcro3dile/courserag/internal/domain/ports"
)

// QueryUseCase handles one user question end to end.
// Single Responsibility: session bookkeeping around answer generation.
type QueryUseCase struct {
	generator *AnswerGenerator
	registry  *ToolRegistry
	sessions  ports.SessionStore
	metrics   ports.Metrics
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(
	generator *AnswerGenerator,
	registry *ToolRegistry,
	sessions ports.SessionStore,
	metrics ports.Metrics,
) *QueryUseCase {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &QueryUseCase{
		generator: generator,
		registry:  registry,
		sessions:  sessions,
		metrics:   metrics,
	}
}

// Query answers req.Query, creating a session when req.SessionID is empty.
func (uc *QueryUseCase) Query(ctx context.Context, req *entities.ChatRequest) (*entities.ChatResponse, error) {
	start := time.Now()
	resp, err := uc.query(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	uc.metrics.ObserveQuery(outcome, time.Since(start))
	return resp, err
}

func (uc *QueryUseCase) query(ctx context.Context, req *entities.ChatRequest) (*entities.ChatResponse, error) {
	// 1. Resolve the session
	sessionID := req.SessionID
	if sessionID == "" {
		id, err := uc.sessions.CreateSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating session: %w", err)
		}
		sessionID = id
	}

	history, err := uc.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	// 2. Generate with a fresh tool scope
	calls := uc.registry.Begin()
	answer, err := uc.generator.Generate(ctx, GenerateInput{
		Query:   buildQueryPrompt(req.Query),
		History: history,
		Tools:   uc.registry.Definitions(),
		Calls:   calls,
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	sources := calls.DrainSources()
	if sources == nil {
		sources = []entities.Source{}
	}

	// 3. Record the exchange with the raw question
	if err := uc.sessions.AddExchange(ctx, sessionID, req.Query, answer); err != nil {
		return nil, fmt.Errorf("recording exchange: %w", err)
	}

	return &entities.ChatResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	}, nil
}

// ClearSession forgets a session's history.
func (uc *QueryUseCase) ClearSession(ctx context.Context, sessionID string) error {
	return uc.sessions.Clear(ctx, sessionID)
}

func buildQueryPrompt(query string) string {
	return "Answer this question about course materials: " + query
}

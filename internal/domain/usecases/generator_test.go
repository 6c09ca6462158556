package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
	"github.com/0xcro3dile/courserag/internal/domain/ports"
)

// mockChatModel implements ports.ChatModel for testing
type mockChatModel struct {
	responses []*ports.Completion
	err       error
	errOnCall int // 1-based; 0 fails every call when err is set
	requests  []ports.CompletionRequest
}

func (m *mockChatModel) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.Completion, error) {
	m.requests = append(m.requests, req)
	if m.err != nil && (m.errOnCall == 0 || m.errOnCall == len(m.requests)) {
		return nil, m.err
	}
	i := len(m.requests) - 1
	if i >= len(m.responses) {
		return &ports.Completion{Text: "fallback"}, nil
	}
	return m.responses[i], nil
}

// mockTool implements ports.Tool for testing
type mockTool struct {
	name   string
	result entities.ToolResult
	err    error
	calls  []map[string]any
}

func (m *mockTool) Definition() entities.ToolDefinition {
	return entities.ToolDefinition{Name: m.name, Description: "test tool"}
}

func (m *mockTool) Invoke(ctx context.Context, args map[string]any) (entities.ToolResult, error) {
	m.calls = append(m.calls, args)
	return m.result, m.err
}

func newRegistryWith(t *testing.T, tools ...*mockTool) *ToolRegistry {
	t.Helper()
	r := NewToolRegistry(nil)
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return r
}

func toolCall(id, name string, args map[string]any) entities.ToolCall {
	return entities.ToolCall{ID: id, Name: name, Arguments: args}
}

func TestAnswerGenerator_DirectAnswer(t *testing.T) {
	model := &mockChatModel{responses: []*ports.Completion{{Text: "4"}}}
	tool := &mockTool{name: "search"}
	registry := newRegistryWith(t, tool)

	gen := NewAnswerGenerator(model, 0, 800)
	answer, err := gen.Generate(context.Background(), GenerateInput{
		Query: "What is 2+2?",
		Tools: registry.Definitions(),
		Calls: registry.Begin(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "4" {
		t.Errorf("unexpected answer: %s", answer)
	}
	if len(model.requests) != 1 {
		t.Errorf("expected one model call, got %d", len(model.requests))
	}
	if len(tool.calls) != 0 {
		t.Error("tool should not run")
	}
}

func TestAnswerGenerator_RequestShape(t *testing.T) {
	model := &mockChatModel{responses: []*ports.Completion{{Text: "ok"}}}
	gen := NewAnswerGenerator(model, 0, 800)

	_, err := gen.Generate(context.Background(), GenerateInput{Query: "q", History: "User: hi\nAssistant: hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := model.requests[0]
	if !strings.Contains(req.System, "AI assistant specialized in course materials") {
		t.Error("system prompt should carry the static instructions")
	}
	if !strings.Contains(req.System, "Previous conversation:\nUser: hi\nAssistant: hello") {
		t.Errorf("system prompt should include history, got %q", req.System)
	}
	if req.Temperature != 0 || req.MaxTokens != 800 {
		t.Errorf("unexpected sampling settings: %v %d", req.Temperature, req.MaxTokens)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != entities.RoleUser || req.Messages[0].Content != "q" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
	if len(req.Tools) != 0 {
		t.Error("no tools should be offered without a registry scope")
	}
}

func TestAnswerGenerator_NoHistoryNoPreamble(t *testing.T) {
	model := &mockChatModel{}
	gen := NewAnswerGenerator(model, 0, 800)

	if _, err := gen.Generate(context.Background(), GenerateInput{Query: "q"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(model.requests[0].System, "Previous conversation:") {
		t.Error("empty history should not add a conversation section")
	}
}

func TestAnswerGenerator_ToolRound(t *testing.T) {
	args := map[string]any{"query": "goroutines"}
	model := &mockChatModel{responses: []*ports.Completion{
		{ToolCalls: []entities.ToolCall{toolCall("call_0", "search", args)}},
		{Text: "Goroutines are lightweight threads."},
	}}
	tool := &mockTool{name: "search", result: entities.ToolResult{
		Text:    "[Go - Lesson 1]\ngoroutines...",
		Sources: []entities.Source{{Text: "Go - Lesson 1"}},
	}}
	registry := newRegistryWith(t, tool)
	calls := registry.Begin()

	gen := NewAnswerGenerator(model, 0, 800)
	answer, err := gen.Generate(context.Background(), GenerateInput{
		Query: "q",
		Tools: registry.Definitions(),
		Calls: calls,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Goroutines are lightweight threads." {
		t.Errorf("unexpected answer: %s", answer)
	}
	if len(tool.calls) != 1 || tool.calls[0]["query"] != "goroutines" {
		t.Errorf("tool should run once with model arguments, got %v", tool.calls)
	}

	if len(model.requests) != 2 {
		t.Fatalf("expected two model calls, got %d", len(model.requests))
	}
	final := model.requests[1]
	if len(final.Tools) != 0 {
		t.Error("final request must not offer tools")
	}
	if len(final.Messages) != 3 {
		t.Fatalf("expected user, assistant, tool messages, got %d", len(final.Messages))
	}
	if final.Messages[1].Role != entities.RoleAssistant || len(final.Messages[1].ToolCalls) != 1 {
		t.Errorf("second message should be the tool request: %+v", final.Messages[1])
	}
	if final.Messages[2].Role != entities.RoleTool || final.Messages[2].ToolCallID != "call_0" {
		t.Errorf("third message should answer call_0: %+v", final.Messages[2])
	}
	if len(calls.DrainSources()) != 1 {
		t.Error("sources should accumulate in the scope")
	}
}

func TestAnswerGenerator_ExecutesEveryInitialToolCall(t *testing.T) {
	model := &mockChatModel{responses: []*ports.Completion{
		{ToolCalls: []entities.ToolCall{
			toolCall("a", "search", map[string]any{"query": "one"}),
			toolCall("b", "search", map[string]any{"query": "two"}),
		}},
		{Text: "both"},
	}}
	tool := &mockTool{name: "search", result: entities.ToolResult{Text: "hit"}}
	registry := newRegistryWith(t, tool)

	gen := NewAnswerGenerator(model, 0, 800)
	if _, err := gen.Generate(context.Background(), GenerateInput{Query: "q", Tools: registry.Definitions(), Calls: registry.Begin()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tool.calls) != 2 {
		t.Errorf("expected 2 tool runs, got %d", len(tool.calls))
	}
	if got := len(model.requests[1].Messages); got != 4 {
		t.Errorf("expected 4 messages in final request, got %d", got)
	}
}

func TestAnswerGenerator_IgnoresSecondToolRequest(t *testing.T) {
	model := &mockChatModel{responses: []*ports.Completion{
		{ToolCalls: []entities.ToolCall{toolCall("a", "search", nil)}},
		{Text: "final", ToolCalls: []entities.ToolCall{toolCall("b", "search", nil)}},
	}}
	tool := &mockTool{name: "search"}
	registry := newRegistryWith(t, tool)

	gen := NewAnswerGenerator(model, 0, 800)
	answer, err := gen.Generate(context.Background(), GenerateInput{Query: "q", Tools: registry.Definitions(), Calls: registry.Begin()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "final" {
		t.Errorf("unexpected answer: %s", answer)
	}
	if len(tool.calls) != 1 || len(model.requests) != 2 {
		t.Errorf("only one tool round allowed: %d tool runs, %d model calls", len(tool.calls), len(model.requests))
	}
}

func TestAnswerGenerator_UnknownToolIsReportedToModel(t *testing.T) {
	model := &mockChatModel{responses: []*ports.Completion{
		{ToolCalls: []entities.ToolCall{toolCall("a", "missing", nil)}},
		{Text: "sorry"},
	}}
	registry := newRegistryWith(t, &mockTool{name: "search"})

	gen := NewAnswerGenerator(model, 0, 800)
	if _, err := gen.Generate(context.Background(), GenerateInput{Query: "q", Tools: registry.Definitions(), Calls: registry.Begin()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := model.requests[1].Messages[2].Content; got != "Tool 'missing' not found" {
		t.Errorf("unexpected tool message: %s", got)
	}
}

func TestAnswerGenerator_ModelFailureIsTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	for _, failOn := range []int{1, 2} {
		model := &mockChatModel{
			responses: []*ports.Completion{{ToolCalls: []entities.ToolCall{toolCall("a", "search", nil)}}},
			err:       cause,
			errOnCall: failOn,
		}
		registry := newRegistryWith(t, &mockTool{name: "search"})

		gen := NewAnswerGenerator(model, 0, 800)
		_, err := gen.Generate(context.Background(), GenerateInput{Query: "q", Tools: registry.Definitions(), Calls: registry.Begin()})
		if !entities.IsTransport(err) || !errors.Is(err, cause) {
			t.Errorf("call %d: expected transport error wrapping cause, got %v", failOn, err)
		}
		if len(model.requests) != failOn {
			t.Errorf("call %d: failures must not be retried, got %d calls", failOn, len(model.requests))
		}
	}
}

func TestAnswerGenerator_ToolFailurePropagates(t *testing.T) {
	cause := &entities.TransportError{Op: "searching chunks", Err: errors.New("db down")}
	model := &mockChatModel{responses: []*ports.Completion{
		{ToolCalls: []entities.ToolCall{toolCall("a", "search", nil)}},
	}}
	registry := newRegistryWith(t, &mockTool{name: "search", err: cause})

	gen := NewAnswerGenerator(model, 0, 800)
	_, err := gen.Generate(context.Background(), GenerateInput{Query: "q", Tools: registry.Definitions(), Calls: registry.Begin()})
	if !entities.IsTransport(err) {
		t.Errorf("expected transport error, got %v", err)
	}
	if len(model.requests) != 1 {
		t.Error("no final call after a failed tool")
	}
}

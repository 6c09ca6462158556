package usecases

import (
	"context"
	"fmt"
	"slices"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
	"github.com/0xcro3dile/courserag/internal/domain/ports"
)

const systemPrompt = `You are an AI assistant specialized in course materials and educational content, with access to a search tool for course information.

Search Tool Usage:
- Use the search tool only for questions about specific course content or detailed educational materials
- Search at most once per query
- Synthesize search results into accurate, fact-based answers
- If the search yields no results, say so clearly and do not make things up

Response Protocol:
- General knowledge questions: answer from existing knowledge without searching
- Course-specific questions: search first, then answer
- Do not mention the search itself, your reasoning process, or the format of the results

Every answer must be:
1. Brief and focused on the question
2. Educational, explaining the ideas clearly
3. Supported by examples when they help understanding

Provide only the direct answer to what was asked.`

// generatorState is a step of a single answer generation.
type generatorState int

const (
	stateAwaitInitial generatorState = iota
	stateExecutingTool
	stateAwaitFinal
	stateDone
)

// AnswerGenerator drives the language model through at most one tool round.
type AnswerGenerator struct {
	model       ports.ChatModel
	temperature float64
	maxTokens   int
}

// NewAnswerGenerator creates an AnswerGenerator.
func NewAnswerGenerator(model ports.ChatModel, temperature float64, maxTokens int) *AnswerGenerator {
	if maxTokens <= 0 {
		maxTokens = 800
	}
	return &AnswerGenerator{
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// GenerateInput is one generation request. Tools are offered only when both
// Tools and Calls are set.
type GenerateInput struct {
	Query   string
	History string
	Tools   []entities.ToolDefinition
	Calls   *ToolCalls
}

// Generate returns the model's answer. When the first completion asks for
// tools, every requested call runs and a second completion, offered no tools,
// produces the answer. Tool calls in that second completion are ignored.
func (g *AnswerGenerator) Generate(ctx context.Context, in GenerateInput) (string, error) {
	system := buildSystemPrompt(in.History)
	messages := []entities.ChatMessage{{Role: entities.RoleUser, Content: in.Query}}
	offerTools := len(in.Tools) > 0 && in.Calls != nil

	var (
		state   = stateAwaitInitial
		pending []entities.ToolCall
		answer  string
	)
	for state != stateDone {
		switch state {
		case stateAwaitInitial:
			req := ports.CompletionRequest{
				System:      system,
				Messages:    slices.Clone(messages),
				Temperature: g.temperature,
				MaxTokens:   g.maxTokens,
			}
			if offerTools {
				req.Tools = in.Tools
			}
			resp, err := g.model.Complete(ctx, req)
			if err != nil {
				return "", transport("initial completion", err)
			}
			if !offerTools || len(resp.ToolCalls) == 0 {
				answer = resp.Text
				state = stateDone
				continue
			}
			messages = append(messages, entities.ChatMessage{
				Role:      entities.RoleAssistant,
				Content:   resp.Text,
				ToolCalls: resp.ToolCalls,
			})
			pending = resp.ToolCalls
			state = stateExecutingTool

		case stateExecutingTool:
			for _, call := range pending {
				out, err := in.Calls.Execute(ctx, call.Name, call.Arguments)
				if err != nil {
					return "", fmt.Errorf("running tool %s: %w", call.Name, err)
				}
				messages = append(messages, entities.ChatMessage{
					Role:       entities.RoleTool,
					Content:    out,
					ToolCallID: call.ID,
				})
			}
			state = stateAwaitFinal

		case stateAwaitFinal:
			resp, err := g.model.Complete(ctx, ports.CompletionRequest{
				System:      system,
				Messages:    slices.Clone(messages),
				Temperature: g.temperature,
				MaxTokens:   g.maxTokens,
			})
			if err != nil {
				return "", transport("final completion", err)
			}
			answer = resp.Text
			state = stateDone
		}
	}
	return answer, nil
}

func buildSystemPrompt(history string) string {
	if history == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\nPrevious conversation:\n" + history
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
	"github.com/0xcro3dile/courserag/internal/domain/ports"
)

// OpenAIChatModel implements ports.ChatModel with an OpenAI-compatible chat
// completions endpoint.
type OpenAIChatModel struct {
	client *openai.Client
	model  string
}

// NewOpenAIChatModel creates an OpenAI chat adapter. An empty baseURL uses the
// public OpenAI API.
func NewOpenAIChatModel(apiKey, baseURL, model string, timeout time.Duration) *OpenAIChatModel {
	if model == "" {
		model = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIChatModel{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete sends one chat completion request.
func (a *OpenAIChatModel) Complete(ctx context.Context, creq ports.CompletionRequest) (*ports.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    toOpenAIMessages(creq),
		Temperature: openAITemperature(creq.Temperature),
		MaxTokens:   creq.MaxTokens,
	}
	for _, def := range creq.Tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	msg := resp.Choices[0].Message
	out := &ports.Completion{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				log.Printf("[WARN] Tool %s sent invalid arguments: %v", tc.Function.Name, err)
				args = map[string]any{}
			}
		}
		out.ToolCalls = append(out.ToolCalls, entities.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

// openAITemperature keeps an explicit zero from being dropped by omitempty,
// which would make the API fall back to its default of 1.
func openAITemperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func toOpenAIMessages(creq ports.CompletionRequest) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(creq.Messages)+1)
	if creq.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: creq.System})
	}
	for _, m := range creq.Messages {
		om := openai.ChatCompletionMessage{Content: m.Content}
		switch m.Role {
		case entities.RoleAssistant:
			om.Role = openai.ChatMessageRoleAssistant
		case entities.RoleTool:
			om.Role = openai.ChatMessageRoleTool
			om.ToolCallID = m.ToolCallID
		default:
			om.Role = openai.ChatMessageRoleUser
		}
		for _, tc := range m.ToolCalls {
			args := []byte("{}")
			if tc.Arguments != nil {
				args, _ = json.Marshal(tc.Arguments)
			}
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		msgs = append(msgs, om)
	}
	return msgs
}

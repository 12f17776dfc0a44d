package provider

import (
	"context"

	"github.com/aumai/agentci/model"
	"github.com/tmc/langchaingo/llms"
)

// LLM adapts a Simulated provider to the langchaingo llms.Model
// interface, so agent code written against a real provider can be
// pointed at the mock without touching the network.
type LLM struct {
	sim  *Simulated
	seed *int64
}

var _ llms.Model = (*LLM)(nil)

// NewLLM wraps sim. When seed is non-nil every call uses it for the
// failure draw, keeping adapter-driven runs reproducible.
func NewLLM(sim *Simulated, seed *int64) *LLM {
	return &LLM{sim: sim, seed: seed}
}

// GenerateContent serves the next round-robin response as a single
// content choice. Token usage and latency ride along in GenerationInfo.
func (l *LLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	converted := make([]model.Message, 0, len(messages))
	for _, mc := range messages {
		content := ""
		for _, part := range mc.Parts {
			if text, ok := part.(llms.TextContent); ok {
				content += text.Text
			}
		}
		converted = append(converted, model.Message{Role: string(mc.Role), Content: content})
	}

	response, err := l.sim.Respond(converted, l.seed)
	if err != nil {
		return nil, err
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:    response.Content,
				StopReason: response.FinishReason,
				GenerationInfo: map[string]any{
					"tokens_used": response.TokensUsed,
					"latency_ms":  response.LatencyMs,
					"model":       response.Model,
				},
			},
		},
	}, nil
}

// Call implements the legacy single-prompt entry point.
func (l *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	response, err := l.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, options...)
	if err != nil {
		return "", err
	}
	return response.Choices[0].Content, nil
}

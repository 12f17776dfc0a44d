// Package provider implements the deterministic simulated LLM provider:
// a round-robin response dispatcher with seeded failure injection and no
// network dependency.
package provider

import (
	"fmt"
	"math/rand"

	"github.com/aumai/agentci/model"
)

// FailureError is the simulated API failure injected according to the
// configured failure rate. It is contained to the failing call; the
// provider's call counter still advances.
type FailureError struct {
	FailureRate float64
	CallNumber  int
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("simulated LLM API failure (failure_rate=%.2f, call #%d)", e.FailureRate, e.CallNumber)
}

// Simulated serves configured responses in strict round-robin order. The
// configuration is read-only and may be shared between instances; the
// call counter and cursor are the only mutable state. A Simulated is not
// safe for concurrent use — parallel runners construct one per worker.
type Simulated struct {
	config    model.ProviderConfig
	cursor    int
	callCount int
}

func New(config model.ProviderConfig) *Simulated {
	return &Simulated{config: config}
}

// Respond returns the next response in the round-robin sequence. The
// messages mirror a real chat API call shape and are not interpreted.
// When seed is non-nil the failure draw comes from a fresh generator
// seeded with it, so the same seed always yields the same outcome;
// otherwise a non-deterministic draw is used. Failed calls still count.
func (s *Simulated) Respond(messages []model.Message, seed *int64) (*model.Response, error) {
	_ = messages
	s.callCount++

	var draw func() float64
	if seed != nil {
		rng := rand.New(rand.NewSource(*seed))
		draw = rng.Float64
	} else {
		draw = rand.Float64
	}

	if s.config.FailureRate > 0 && draw() < s.config.FailureRate {
		return nil, &FailureError{FailureRate: s.config.FailureRate, CallNumber: s.callCount}
	}

	if len(s.config.Responses) == 0 {
		return &model.Response{
			Content:      "",
			Model:        s.config.ModelName,
			TokensUsed:   0,
			LatencyMs:    s.config.DefaultLatencyMs,
			FinishReason: "stop",
		}, nil
	}

	response := &s.config.Responses[s.cursor%len(s.config.Responses)]
	s.cursor++
	return response, nil
}

// CallCount reports total invocations, including failed ones.
func (s *Simulated) CallCount() int {
	return s.callCount
}

// Reset zeroes the call counter and rewinds the round-robin cursor so
// the first configured response is served next.
func (s *Simulated) Reset() {
	s.cursor = 0
	s.callCount = 0
}

// Config returns the provider's read-only configuration.
func (s *Simulated) Config() model.ProviderConfig {
	return s.config
}

// ============================================================================
// PRE-BUILT CONFIGURATIONS
// ============================================================================

// Option overrides part of a pre-built provider configuration.
type Option func(*model.ProviderConfig)

// WithResponses replaces the default response list. An explicit empty
// slice yields a provider that synthesizes empty responses.
func WithResponses(responses []model.Response) Option {
	return func(c *model.ProviderConfig) {
		c.Responses = responses
	}
}

// WithFailureRate sets the fraction of calls that fail with FailureError.
func WithFailureRate(rate float64) Option {
	return func(c *model.ProviderConfig) {
		c.FailureRate = rate
	}
}

// NewOpenAIStyle returns a provider pre-loaded with three responses
// mimicking common GPT-4o output shapes: a plain text reply, a JSON
// reply and an OpenAI tool_calls reply.
func NewOpenAIStyle(opts ...Option) *Simulated {
	const modelName = "gpt-4o"
	config := model.ProviderConfig{
		ModelName:        modelName,
		DefaultLatencyMs: 350.0,
		Responses: []model.Response{
			{
				Content:      "I understand your request. Here is my response.",
				Model:        modelName,
				TokensUsed:   28,
				LatencyMs:    320.0,
				FinishReason: "stop",
			},
			{
				Content:      `{"answer": "42", "confidence": 0.95, "reasoning": "computed"}`,
				Model:        modelName,
				TokensUsed:   42,
				LatencyMs:    410.0,
				FinishReason: "stop",
			},
			{
				Content:      `{"tool_calls": [{"id": "call_abc", "type": "function", "function": {"name": "search_web", "arguments": "{\"query\": \"latest news\"}"}}]}`,
				Model:        modelName,
				TokensUsed:   55,
				LatencyMs:    280.0,
				FinishReason: "tool_calls",
			},
		},
	}
	for _, opt := range opts {
		opt(&config)
	}
	return New(config)
}

// NewAnthropicStyle returns a provider pre-loaded with three responses
// mimicking Claude messages-API output shapes: a plain reply, a JSON
// reply and a tool_use block.
func NewAnthropicStyle(opts ...Option) *Simulated {
	const modelName = "claude-sonnet-4-5"
	config := model.ProviderConfig{
		ModelName:        modelName,
		DefaultLatencyMs: 320.0,
		Responses: []model.Response{
			{
				Content:      "I'd be happy to help with that. Based on the information provided, here is my analysis.",
				Model:        modelName,
				TokensUsed:   35,
				LatencyMs:    290.0,
				FinishReason: "end_turn",
			},
			{
				Content:      `{"status": "success", "data": {"result": "processed"}}`,
				Model:        modelName,
				TokensUsed:   48,
				LatencyMs:    375.0,
				FinishReason: "end_turn",
			},
			{
				Content:      `{"type": "tool_use", "id": "toolu_01", "name": "calculator", "input": {"expression": "2 + 2"}}`,
				Model:        modelName,
				TokensUsed:   62,
				LatencyMs:    310.0,
				FinishReason: "tool_use",
			},
		},
	}
	for _, opt := range opts {
		opt(&config)
	}
	return New(config)
}

// DefaultConfig is the built-in single-response configuration used when
// a run supplies no provider config of its own.
func DefaultConfig() model.ProviderConfig {
	return model.ProviderConfig{
		ModelName:        "mock-model",
		DefaultLatencyMs: 50.0,
		Responses: []model.Response{
			{
				Content:      "Mock response: task completed successfully.",
				Model:        "mock-model",
				TokensUsed:   12,
				LatencyMs:    10.0,
				FinishReason: "stop",
			},
		},
	}
}

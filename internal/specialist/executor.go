// Package specialist executes routed conversations against persona
// specialists and assesses the quality of their responses. The GenAI-backed
// executor gates every provider call through the admission controller; a
// rejection is returned to the caller as a RateLimitError and is never
// retried here.
package specialist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PathwayLabs/CareerPilot/internal/admission"
	"github.com/PathwayLabs/CareerPilot/internal/genai"
	"github.com/PathwayLabs/CareerPilot/internal/models"
	"github.com/PathwayLabs/CareerPilot/internal/routing"
)

// Result is what a specialist produced for one routed message.
type Result struct {
	Content    string   `json:"content"`
	ToolsUsed  []string `json:"tools_used,omitempty"`
	Confidence float64  `json:"confidence"`
	TokensUsed int      `json:"tokens_used"`
}

// Executor runs a specialist against a user message.
type Executor interface {
	Execute(ctx context.Context, specialistID, message string, state *models.ConversationState) (*Result, error)
}

// tokenOverhead approximates the prompt scaffolding cost added to every call.
const tokenOverhead = 200

// GenAIExecutor executes specialists through the GenAI client, with every
// call admitted by the shared admission controller first.
type GenAIExecutor struct {
	engine     *routing.Engine
	client     genai.ClientInterface
	controller *admission.Controller
	provider   string
}

// NewGenAIExecutor creates a specialist executor for the given provider id.
func NewGenAIExecutor(engine *routing.Engine, client genai.ClientInterface, controller *admission.Controller, provider string) *GenAIExecutor {
	slog.Debug("NewGenAIExecutor: creating executor",
		"provider", provider, "hasEngine", engine != nil, "hasClient", client != nil, "hasController", controller != nil)
	return &GenAIExecutor{
		engine:     engine,
		client:     client,
		controller: controller,
		provider:   provider,
	}
}

// EstimateTokens approximates the token cost of a message plus scaffolding.
func EstimateTokens(message string) int {
	return len(message)/4 + tokenOverhead
}

// Execute runs the named specialist. The admission check happens before the
// provider call; on rejection the typed RateLimitError carries the wait-time
// hint and the caller owns any retry. A context cancellation releases the
// reserved budget instead of committing it.
func (e *GenAIExecutor) Execute(ctx context.Context, specialistID, message string, state *models.ConversationState) (*Result, error) {
	spec, ok := e.engine.SpecialistByID(specialistID)
	if !ok {
		return nil, fmt.Errorf("unknown specialist %q", specialistID)
	}

	estimated := EstimateTokens(message)
	check := e.controller.CheckRateLimit(e.provider, estimated)
	if !check.Allowed {
		return nil, &models.RateLimitError{
			Provider: e.provider,
			Reason:   check.Reason,
			WaitTime: check.WaitTime,
			Strategy: check.Strategy,
		}
	}

	start := time.Now()
	content, err := e.client.Generate(ctx, spec.SystemPrompt, buildUserPrompt(message, state))
	latency := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			// Cancelled before the provider consumed the budget.
			e.controller.Release(e.provider)
			slog.Warn("GenAIExecutor.Execute: call cancelled, reservation released",
				"specialist", specialistID, "provider", e.provider, "error", ctx.Err())
			return nil, fmt.Errorf("specialist execution cancelled: %w", ctx.Err())
		}
		e.controller.RecordResult(e.provider, 0, false, latency)
		slog.Error("GenAIExecutor.Execute: generation failed",
			"specialist", specialistID, "provider", e.provider, "error", err, "latency", latency)
		return nil, fmt.Errorf("specialist %s execution failed: %w", specialistID, err)
	}

	tokensUsed := estimated + len(content)/4
	e.controller.RecordResult(e.provider, tokensUsed, true, latency)

	slog.Info("GenAIExecutor.Execute: specialist responded",
		"specialist", specialistID, "provider", e.provider,
		"tokensUsed", tokensUsed, "latency", latency, "responseLength", len(content))
	return &Result{
		Content:    content,
		ToolsUsed:  spec.ToolSet,
		Confidence: responseConfidence(content),
		TokensUsed: tokensUsed,
	}, nil
}

// buildUserPrompt prepends recent conversation context to the message.
func buildUserPrompt(message string, state *models.ConversationState) string {
	if state == nil || len(state.History) < 2 {
		return message
	}
	const maxContextTurns = 6
	turns := state.History
	if len(turns) > maxContextTurns {
		turns = turns[len(turns)-maxContextTurns:]
	}
	prompt := "Recent conversation:\n"
	for _, t := range turns {
		prompt += fmt.Sprintf("[%s] %s\n", t.Role, t.Content)
	}
	return prompt + "\nCurrent message: " + message
}

// responseConfidence derives a coarse confidence from the response shape.
// Empty or truncated-looking output scores low; substantive output high.
func responseConfidence(content string) float64 {
	switch {
	case len(content) == 0:
		return 0
	case len(content) < 40:
		return 0.4
	default:
		return 0.85
	}
}

package specialist

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PathwayLabs/CareerPilot/internal/admission"
	"github.com/PathwayLabs/CareerPilot/internal/models"
	"github.com/PathwayLabs/CareerPilot/internal/routing"
)

// mockGenAI returns canned responses and records the prompts it received.
type mockGenAI struct {
	response   string
	err        error
	systemSeen string
	userSeen   string
	callCount  int
}

func (m *mockGenAI) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.callCount++
	m.systemSeen = systemPrompt
	m.userSeen = userPrompt
	if m.err != nil {
		return "", m.err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return m.response, nil
}

func newTestExecutor(client *mockGenAI, limits models.ProviderLimits) *GenAIExecutor {
	engine := routing.NewEngine(routing.DefaultSpecialists())
	controller := admission.NewController(admission.WithProviderLimits("openai", limits))
	return NewGenAIExecutor(engine, client, controller, "openai")
}

func generousLimits() models.ProviderLimits {
	return models.ProviderLimits{
		RequestsPerMinute: 1000,
		TokensPerMinute:   1000000,
		BurstLimit:        1000,
		Cooldown:          time.Minute,
		ErrorThreshold:    1000,
	}
}

func TestExecute_Success(t *testing.T) {
	client := &mockGenAI{response: "Start by translating your MOS into civilian terms. You can use the skills translator."}
	e := newTestExecutor(client, generousLimits())

	result, err := e.Execute(context.Background(), "marcus", "I'm a Navy veteran looking for work", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != client.response {
		t.Errorf("unexpected content %q", result.Content)
	}
	if !strings.Contains(client.systemSeen, "Marcus") {
		t.Errorf("expected marcus system prompt, got %q", client.systemSeen)
	}
	if result.TokensUsed <= 0 {
		t.Errorf("expected positive token usage, got %d", result.TokensUsed)
	}
	if result.Confidence != 0.85 {
		t.Errorf("expected confidence 0.85 for a substantive reply, got %v", result.Confidence)
	}
	if len(result.ToolsUsed) == 0 {
		t.Error("expected marcus tool set in result")
	}
}

func TestExecute_UnknownSpecialist(t *testing.T) {
	client := &mockGenAI{response: "hello"}
	e := newTestExecutor(client, generousLimits())

	_, err := e.Execute(context.Background(), "nobody", "message", nil)
	if err == nil {
		t.Fatal("expected error for unknown specialist")
	}
	if client.callCount != 0 {
		t.Error("no provider call should happen for an unknown specialist")
	}
}

func TestExecute_AdmissionRejectionIsTyped(t *testing.T) {
	client := &mockGenAI{response: "hello"}
	limits := generousLimits()
	limits.RequestsPerMinute = 1
	limits.BurstLimit = 1
	e := newTestExecutor(client, limits)

	if _, err := e.Execute(context.Background(), "marcus", "first message", nil); err != nil {
		t.Fatalf("first call: unexpected error: %v", err)
	}

	_, err := e.Execute(context.Background(), "marcus", "second message", nil)
	if err == nil {
		t.Fatal("expected rate-limit rejection on the second call")
	}
	var rle *models.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if rle.Provider != "openai" {
		t.Errorf("expected provider openai, got %q", rle.Provider)
	}
	if rle.WaitTime <= 0 {
		t.Errorf("expected a wait-time hint, got %v", rle.WaitTime)
	}
	// The rejection never reached the provider.
	if client.callCount != 1 {
		t.Errorf("expected exactly 1 provider call, got %d", client.callCount)
	}
}

func TestExecute_FailureRecordedNotRetried(t *testing.T) {
	client := &mockGenAI{err: errors.New("upstream unavailable")}
	limits := generousLimits()
	limits.ErrorThreshold = 1
	e := newTestExecutor(client, limits)

	_, err := e.Execute(context.Background(), "marcus", "message", nil)
	if err == nil {
		t.Fatal("expected execution error")
	}
	if client.callCount != 1 {
		t.Errorf("expected exactly 1 provider call (no retry), got %d", client.callCount)
	}

	// The recorded failure trips the error threshold on the next admission.
	_, err = e.Execute(context.Background(), "marcus", "message", nil)
	var rle *models.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError after threshold trip, got %T: %v", err, err)
	}
	if rle.Reason != models.ReasonErrorThresholdTripped {
		t.Errorf("expected reason %q, got %q", models.ReasonErrorThresholdTripped, rle.Reason)
	}
}

func TestExecute_CancellationReleasesBudget(t *testing.T) {
	client := &mockGenAI{response: "hello"}
	limits := generousLimits()
	limits.RequestsPerMinute = 1
	limits.BurstLimit = 1
	e := newTestExecutor(client, limits)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Execute(ctx, "marcus", "message", nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped context.Canceled, got %v", err)
	}

	// The reservation was released, so the single slot is free again.
	if _, err := e.Execute(context.Background(), "marcus", "message", nil); err != nil {
		t.Errorf("expected admission after release, got %v", err)
	}
}

func TestExecute_HistoryInPrompt(t *testing.T) {
	client := &mockGenAI{response: "follow-up answer with plenty of substance here"}
	e := newTestExecutor(client, generousLimits())

	state := &models.ConversationState{
		ConversationID: "conv1",
		History: []models.ConversationTurn{
			{Role: "user", Content: "I'm a Navy veteran"},
			{Role: "assistant", Content: "Tell me more about your service"},
		},
	}
	if _, err := e.Execute(context.Background(), "marcus", "I was an electrician's mate", state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(client.userSeen, "Navy veteran") {
		t.Errorf("expected history in prompt, got %q", client.userSeen)
	}
	if !strings.Contains(client.userSeen, "electrician's mate") {
		t.Errorf("expected current message in prompt, got %q", client.userSeen)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 200 {
		t.Errorf("expected overhead-only estimate 200, got %d", got)
	}
	if got := EstimateTokens(strings.Repeat("a", 400)); got != 300 {
		t.Errorf("expected 300, got %d", got)
	}
}

package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/PathwayLabs/CareerPilot/internal/models"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// smsSender is the minimal Twilio surface used by the notifier; it allows a
// mock client in tests.
type smsSender interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioOpts holds configuration options for the Twilio reviewer notifier.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	From       string
	ReviewerTo string
}

// TwilioOption defines a configuration option for the Twilio notifier.
type TwilioOption func(*TwilioOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number.
func WithFromNumber(from string) TwilioOption {
	return func(o *TwilioOpts) { o.From = from }
}

// WithReviewerNumber sets the on-call reviewer phone number.
func WithReviewerNumber(to string) TwilioOption {
	return func(o *TwilioOpts) { o.ReviewerTo = to }
}

// TwilioNotifier is a ReviewerChannel that pages the on-call reviewer over
// SMS when a review request is submitted.
type TwilioNotifier struct {
	client     smsSender
	from       string
	reviewerTo string
}

// NewTwilioNotifier creates a Twilio-backed reviewer channel. Options fall
// back to the TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER, and
// REVIEWER_PHONE_NUMBER environment variables.
func NewTwilioNotifier(opts ...TwilioOption) (*TwilioNotifier, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.ReviewerTo == "" {
		cfg.ReviewerTo = os.Getenv("REVIEWER_PHONE_NUMBER")
	}

	slog.Debug("TwilioNotifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "",
		"ReviewerTo_set", cfg.ReviewerTo != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" || cfg.ReviewerTo == "" {
		return nil, fmt.Errorf("from and reviewer numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioNotifier{
		client:     client.Api,
		from:       cfg.From,
		reviewerTo: cfg.ReviewerTo,
	}, nil
}

// SubmitReview sends an SMS page for the review request.
func (n *TwilioNotifier) SubmitReview(ctx context.Context, req models.HumanReviewRequest) error {
	body := fmt.Sprintf("[CareerPilot %s] %s review %s\nConversation %s\n%s",
		req.Priority, req.Type, req.ID, req.ConversationID, req.ConversationSummary)
	// Twilio caps single-segment bodies; long summaries are truncated rather
	// than split across messages.
	const maxBody = 1500
	if len(body) > maxBody {
		body = body[:maxBody-3] + "..."
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.reviewerTo)
	params.SetFrom(n.from)
	params.SetBody(body)

	_, err := n.client.CreateMessage(params)
	if err != nil {
		slog.Error("TwilioNotifier.SubmitReview: failed to send reviewer page",
			"error", err, "reviewID", req.ID, "conversationID", req.ConversationID)
		return fmt.Errorf("failed to send reviewer notification: %w", err)
	}

	slog.Info("TwilioNotifier.SubmitReview: reviewer paged",
		"reviewID", req.ID, "conversationID", req.ConversationID, "priority", req.Priority)
	return nil
}

package session

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Subscription tiers the portal sells. The one-minute tier exists for
// demoing the lapse behavior end to end.
const (
	TierOneMinute = "1 minute"
	TierFiveDays  = "5 days"
	TierTenDays   = "10 days"
)

// TierPrice returns the price of a subscription tier.
func TierPrice(tier string) (int, bool) {
	switch tier {
	case TierOneMinute:
		return 1, true
	case TierFiveDays:
		return 50, true
	case TierTenDays:
		return 90, true
	default:
		return 0, false
	}
}

// CompletePurchaseMessage carries a subscription purchase
type CompletePurchaseMessage struct {
	SubscriptionDuration string `json:"subscriptionDuration"`
	OnResponse           func(resp *CompletePurchaseResponse)
}

func (e CompletePurchaseMessage) Type() string { return "session.subscription_purchase" }

// Validate will validate the message
func (e CompletePurchaseMessage) Validate() error {
	return validation.Validate(e.SubscriptionDuration,
		validation.Required,
		validation.In(TierOneMinute, TierFiveDays, TierTenDays),
	)
}

type CompletePurchaseResponse struct {
	Session Session
	Message string
	Success bool
}

// CompletePurchaseHandler processes the payment and reconciles the returned
// entitlement into the live Session. Failure leaves the prior Session
// untouched.
type CompletePurchaseHandler struct {
	client   *Client
	sessions *Manager
}

func NewCompletePurchaseHandler(client *Client, sessions *Manager) *CompletePurchaseHandler {
	return &CompletePurchaseHandler{client: client, sessions: sessions}
}

func (h *CompletePurchaseHandler) Execute(ctx context.Context, event CompletePurchaseMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during subscription purchase",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CompletePurchaseHandler) execute(ctx context.Context, event CompletePurchaseMessage) error {
	if !h.sessions.IsAuthenticated() {
		return ErrAnonymousSession
	}

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid subscription tier").
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	updated, message, err := h.client.ProcessPayment(ctx, event.SubscriptionDuration)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "subscription purchase failed")
	}

	h.sessions.Merge(*updated)

	if event.OnResponse != nil {
		event.OnResponse(&CompletePurchaseResponse{
			Session: h.sessions.Current().Session,
			Message: message,
			Success: true,
		})
	}

	return nil
}

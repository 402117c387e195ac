package session

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// UpdateProfileMessage carries a profile mutation
type UpdateProfileMessage struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	OnResponse  func(resp *UpdateProfileResponse)
}

func (e UpdateProfileMessage) Type() string { return "session.profile_update" }

type UpdateProfileResponse struct {
	Session Session
	Message string
	Success bool
}

// UpdateProfileHandler submits the changed fields and reconciles the
// server's echo into the live Session. Failure leaves the prior Session
// untouched.
type UpdateProfileHandler struct {
	client   *Client
	sessions *Manager
}

func NewUpdateProfileHandler(client *Client, sessions *Manager) *UpdateProfileHandler {
	return &UpdateProfileHandler{client: client, sessions: sessions}
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	if !h.sessions.IsAuthenticated() {
		return ErrAnonymousSession
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	payload := ProfileUpdate{
		DisplayName: event.DisplayName,
		PhotoURL:    event.PhotoURL,
	}

	updated, message, err := h.client.UpdateProfile(ctx, payload)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile update failed")
	}

	// Merge, not replace: only the fields the server returned move, so the
	// rest of the Session survives without a re-authentication round trip.
	h.sessions.Merge(*updated)

	if event.OnResponse != nil {
		event.OnResponse(&UpdateProfileResponse{
			Session: h.sessions.Current().Session,
			Message: message,
			Success: true,
		})
	}

	return nil
}

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// API routes, versioned under the configured base URL
const (
	routeRegister       = "/auth/register"
	routeLogin          = "/auth/login"
	routeGoogleSignin   = "/auth/google-signin"
	routeProfile        = "/auth/profile"
	routePayments       = "/payments/process"
	routePaymentHistory = "/payments/history"
	routeStatistics     = "/users/statistics"
)

// Client translates high-level session intents into REST calls and
// normalizes the heterogeneous responses into Session records. The bearer
// credential rides on the transport, not on individual call sites.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     Logger
}

var _ AccountSource = (*Client)(nil)

// NewClient returns a Client bound to cfg's base URL whose outbound requests
// carry the credential persisted in store.
func NewClient(cfg Config, store Store) *Client {
	timeout := 10 * time.Second
	if cfg.GetHTTPTimeout() > 0 {
		timeout = time.Duration(cfg.GetHTTPTimeout()) * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetBaseURL(), "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: NewBearerTransport(store, nil),
		},
		logger: defLogger{},
	}
}

func (c *Client) WithLogger(logger Logger) *Client {
	c.logger = logger
	return c
}

// WithHTTPClient overrides the underlying HTTP client. The caller is
// responsible for wiring a BearerTransport if credentials should still be
// attached automatically.
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.httpClient = client
	return c
}

// RegisterPayload carries a registration request
type RegisterPayload struct {
	Email       string `json:"email" form:"email"`
	Password    string `json:"password" form:"password"`
	DisplayName string `json:"displayName" form:"display_name"`
	PhotoURL    string `json:"photoURL,omitempty" form:"photo_url"`
}

// Validate will validate the payload
func (p RegisterPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&p.DisplayName, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Password, validation.Required, validation.By(validatePasswordRule)),
		validation.Field(&p.PhotoURL, validation.Length(0, 2048)),
	)
}

// LoginPayload carries a credential login request. Only presence is checked
// locally; strength is the register-time concern.
type LoginPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will validate the payload
func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required),
		validation.Field(&p.Password, validation.Required),
	)
}

// ProfileUpdate carries the mutable profile fields. Empty fields are left
// untouched by the server.
type ProfileUpdate struct {
	DisplayName string `json:"displayName,omitempty" form:"display_name"`
	PhotoURL    string `json:"photoURL,omitempty" form:"photo_url"`
}

// Validate will validate the payload
func (p ProfileUpdate) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DisplayName, validation.Length(1, 200)),
		validation.Field(&p.PhotoURL, validation.Length(0, 2048)),
	)
}

// AuthResult is the normalized outcome of the login family
type AuthResult struct {
	Token   string
	Session Session
	Message string
}

// Payment is one entry of the principal's payment history
type Payment struct {
	ID                   string    `json:"id"`
	SubscriptionDuration string    `json:"subscriptionDuration"`
	Amount               int       `json:"amount"`
	PaidAt               time.Time `json:"paidAt"`
}

// UserStatistics is the admin-only usage counters resource
type UserStatistics struct {
	TotalUsers   int `json:"totalUsers"`
	NormalUsers  int `json:"normalUsers"`
	PremiumUsers int `json:"premiumUsers"`
}

type authEnvelope struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    *Session `json:"user"`
}

type profileEnvelope struct {
	Message string   `json:"message"`
	User    *Session `json:"user"`
}

type historyEnvelope struct {
	Payments []Payment `json:"payments"`
}

// Register validates locally first so policy failures never reach the wire,
// then exchanges the payload for a token and Session.
func (c *Client) Register(ctx context.Context, payload RegisterPayload) (*AuthResult, error) {
	if err := ValidatePassword(payload.Password); err != nil {
		c.logger.Debug("register rejected by local password policy")
		return nil, err
	}

	if err := payload.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload").
			WithCode(goerrors.CodeBadRequest)
	}

	return c.authenticate(ctx, routeRegister, payload)
}

// Login exchanges credentials for a token and Session.
func (c *Client) Login(ctx context.Context, payload LoginPayload) (*AuthResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "missing credentials").
			WithCode(goerrors.CodeBadRequest)
	}

	return c.authenticate(ctx, routeLogin, payload)
}

// ExchangeIdentityProof trades a provider-issued identity proof for an
// app-issued token. The proof is never trusted directly for authorization.
func (c *Client) ExchangeIdentityProof(ctx context.Context, proof string) (*AuthResult, error) {
	if proof == "" {
		return nil, ErrExchangeFailed
	}

	result, err := c.authenticate(ctx, routeGoogleSignin, map[string]string{"idToken": proof})
	if err != nil {
		if IsUnauthorized(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "identity proof exchange failed").
				WithTextCode(TextCodeExchangeFailed).
				WithCode(goerrors.CodeUnauthorized)
		}
		return nil, err
	}

	return result, nil
}

// FetchProfile validates the persisted credential and returns the Session it
// represents. A 401 surfaces as an auth error the caller turns into an
// anonymous Session.
func (c *Client) FetchProfile(ctx context.Context) (*Session, error) {
	out := profileEnvelope{}
	if err := c.do(ctx, http.MethodGet, routeProfile, nil, &out); err != nil {
		return nil, err
	}

	if out.User == nil {
		return nil, goerrors.New("profile response missing user", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal)
	}

	sess := normalizeSession(*out.User)
	return &sess, nil
}

// UpdateProfile submits changed fields and returns the user object the
// server echoed back, for reconciliation into the live Session.
func (c *Client) UpdateProfile(ctx context.Context, payload ProfileUpdate) (*Session, string, error) {
	if err := payload.Validate(); err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid profile payload").
			WithCode(goerrors.CodeBadRequest)
	}

	out := profileEnvelope{}
	if err := c.do(ctx, http.MethodPut, routeProfile, payload, &out); err != nil {
		return nil, "", err
	}

	if out.User == nil {
		return nil, "", goerrors.New("profile response missing user", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal)
	}

	sess := normalizeSession(*out.User)
	return &sess, out.Message, nil
}

// ProcessPayment purchases a subscription tier and returns the user object
// carrying the new entitlement.
func (c *Client) ProcessPayment(ctx context.Context, subscriptionDuration string) (*Session, string, error) {
	payload := map[string]string{"subscriptionDuration": subscriptionDuration}

	out := profileEnvelope{}
	if err := c.do(ctx, http.MethodPost, routePayments, payload, &out); err != nil {
		return nil, "", err
	}

	if out.User == nil {
		return nil, "", goerrors.New("payment response missing user", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal)
	}

	sess := normalizeSession(*out.User)
	return &sess, out.Message, nil
}

// PaymentHistory returns the principal's past payments.
func (c *Client) PaymentHistory(ctx context.Context) ([]Payment, error) {
	out := historyEnvelope{}
	if err := c.do(ctx, http.MethodGet, routePaymentHistory, nil, &out); err != nil {
		return nil, err
	}
	return out.Payments, nil
}

// UserStatistics returns the admin usage counters.
func (c *Client) UserStatistics(ctx context.Context) (*UserStatistics, error) {
	out := UserStatistics{}
	if err := c.do(ctx, http.MethodGet, routeStatistics, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) authenticate(ctx context.Context, route string, payload any) (*AuthResult, error) {
	out := authEnvelope{}
	if err := c.do(ctx, http.MethodPost, route, payload, &out); err != nil {
		return nil, err
	}

	if out.Token == "" || out.User == nil {
		return nil, goerrors.New("auth response missing token or user", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal)
	}

	return &AuthResult{
		Token:   out.Token,
		Session: normalizeSession(*out.User),
		Message: out.Message,
	}, nil
}

func (c *Client) do(ctx context.Context, method, route string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+route, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("request failed: %s %s: %v", method, route, err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "request failed").
			WithMetadata(map[string]any{"route": route})
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return c.apiError(res, route)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "malformed response body").
			WithMetadata(map[string]any{"route": route})
	}

	return nil
}

// apiError maps an API failure status to a categorized error carrying the
// server's message verbatim.
func (c *Client) apiError(res *http.Response, route string) error {
	envelope := struct {
		Message string `json:"message"`
	}{}
	_ = json.NewDecoder(res.Body).Decode(&envelope)

	message := envelope.Message
	if message == "" {
		message = http.StatusText(res.StatusCode)
	}

	meta := map[string]any{
		"route":  route,
		"status": res.StatusCode,
	}

	switch res.StatusCode {
	case http.StatusUnauthorized:
		return goerrors.New(message, goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithMetadata(meta)
	case http.StatusForbidden:
		return goerrors.New(message, goerrors.CategoryAuthz).
			WithCode(goerrors.CodeForbidden).
			WithMetadata(meta)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return goerrors.New(message, goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(meta)
	case http.StatusNotFound:
		return goerrors.New(message, goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(meta)
	case http.StatusConflict:
		return goerrors.New(message, goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict).
			WithMetadata(meta)
	default:
		return goerrors.New(message, goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal).
			WithMetadata(meta)
	}
}

// normalizeSession re-parses server-issued fields that gate authorization so
// unknown wire values degrade instead of escalating.
func normalizeSession(s Session) Session {
	if s.Role != "" {
		role, ok := ParseRole(s.Role)
		if !ok {
			role = RoleNormal
		}
		s.Role = role
	}
	return s
}

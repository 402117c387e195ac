// Package google runs the interactive Google sign-in flow and yields the
// short-lived identity proof (the Google ID token). The proof is never used
// as the app credential; the session Manager exchanges it against the API.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	session "github.com/newsportal/go-session"
)

const (
	defaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL = "https://oauth2.googleapis.com/token"

	defaultListenAddr   = "127.0.0.1:8910"
	defaultCallbackPath = "/oauth/callback"
	defaultFlowTimeout  = 3 * time.Minute
)

// Config holds Google OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string

	// ListenAddr and CallbackPath form the loopback redirect target the
	// interactive flow listens on.
	ListenAddr   string
	CallbackPath string

	AuthURL  string
	TokenURL string

	// OpenBrowser hands the consent URL to the user. The default just logs
	// it so headless hosts can copy it by hand.
	OpenBrowser func(url string) error

	// FlowTimeout bounds how long the flow waits for the user. Running out
	// of it is treated as a cancelled flow, not an error.
	FlowTimeout time.Duration

	HTTPClient *http.Client
	Logger     session.Logger
}

// DefaultScopes returns the default Google scopes.
func DefaultScopes() []string {
	return []string{"openid", "email", "profile"}
}

// Provider implements session.IdentityProvider for Google.
type Provider struct {
	config     Config
	httpClient *http.Client
	logger     session.Logger
}

var _ session.IdentityProvider = (*Provider)(nil)

// New creates a new Google provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = defaultCallbackPath
	}
	if cfg.FlowTimeout == 0 {
		cfg.FlowTimeout = defaultFlowTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopBrowserLogger{}
	}

	p := &Provider{
		config:     cfg,
		httpClient: client,
		logger:     logger,
	}

	if p.config.OpenBrowser == nil {
		p.config.OpenBrowser = func(consentURL string) error {
			p.logger.Info("open this URL to continue sign-in: %s", consentURL)
			return nil
		}
	}

	return p
}

// Name implements session.IdentityProvider.
func (p *Provider) Name() string {
	return "google"
}

// AuthCodeURL builds the consent URL carrying state.
func (p *Provider) AuthCodeURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.redirectURI()},
		"response_type": {"code"},
		"scope":         {strings.Join(p.config.Scopes, " ")},
		"state":         {state},
		"access_type":   {"online"},
		"prompt":        {"select_account"},
	}

	return p.config.AuthURL + "?" + params.Encode()
}

// Token is the provider token response.
type Token struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// Exchange trades an authorization code for provider tokens.
func (p *Provider) Exchange(ctx context.Context, code string) (*Token, error) {
	data := url.Values{
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"code":          {code},
		"redirect_uri":  {p.redirectURI()},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "token request failed")
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, goerrors.New("provider token exchange failed", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithMetadata(map[string]any{
				"status": res.StatusCode,
				"body":   string(body),
			})
	}

	token := &Token{}
	if err := json.NewDecoder(res.Body).Decode(token); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "malformed token response")
	}

	if token.IDToken == "" {
		return nil, goerrors.New("provider response missing id_token", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	return token, nil
}

type callbackResult struct {
	code string
	err  error
}

// IdentityProof implements session.IdentityProvider: serve the loopback
// callback, hand the consent URL to the user, wait for the redirect and
// exchange the code. A denied consent screen, a cancelled context or the
// user walking away all resolve to session.ErrFlowCancelled.
func (p *Provider) IdentityProof(ctx context.Context) (string, error) {
	state := uuid.NewString()

	listener, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to bind loopback listener").
			WithMetadata(map[string]any{"addr": p.config.ListenAddr})
	}

	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(p.config.CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		if errCode := query.Get("error"); errCode != "" {
			// access_denied is the popup-closed/consent-declined analog
			if errCode == "access_denied" {
				results <- callbackResult{err: session.ErrFlowCancelled}
			} else {
				results <- callbackResult{err: goerrors.New("provider returned an error", goerrors.CategoryAuth).
					WithCode(goerrors.CodeUnauthorized).
					WithMetadata(map[string]any{"provider_error": errCode})}
			}
			writeCallbackPage(w, "Sign-in was not completed. You can close this tab.")
			return
		}

		if query.Get("state") != state {
			results <- callbackResult{err: goerrors.New("state mismatch on callback", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized)}
			writeCallbackPage(w, "Sign-in was not completed. You can close this tab.")
			return
		}

		results <- callbackResult{code: query.Get("code")}
		writeCallbackPage(w, "Signed in. You can close this tab and return to the app.")
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			results <- callbackResult{err: goerrors.Wrap(err, goerrors.CategoryInternal, "callback server failed")}
		}
	}()
	defer server.Close()

	if err := p.config.OpenBrowser(p.AuthCodeURL(state)); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open the consent URL")
	}

	var result callbackResult
	select {
	case result = <-results:
	case <-ctx.Done():
		return "", session.ErrFlowCancelled
	case <-time.After(p.config.FlowTimeout):
		return "", session.ErrFlowCancelled
	}

	if result.err != nil {
		return "", result.err
	}

	token, err := p.Exchange(ctx, result.code)
	if err != nil {
		return "", err
	}

	return token.IDToken, nil
}

func (p *Provider) redirectURI() string {
	return "http://" + p.config.ListenAddr + p.config.CallbackPath
}

func writeCallbackPage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, "<html><body><p>"+message+"</p></body></html>")
}

type noopBrowserLogger struct{}

func (noopBrowserLogger) Debug(string, ...any) {}
func (noopBrowserLogger) Info(string, ...any)  {}
func (noopBrowserLogger) Warn(string, ...any)  {}
func (noopBrowserLogger) Error(string, ...any) {}

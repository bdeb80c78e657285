package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	pkgerrs "github.com/redclient/go-reddit/pkg/errors"
)

// RenewalSkew is how close to expiry a token may get before the next
// request triggers a fresh exchange. A returned token is therefore always
// valid for at least this long.
const RenewalSkew = 5 * time.Second

// Authenticator owns the credentials, the current bearer token, and its
// expiry instant. It performs the OAuth password-grant exchange on demand.
type Authenticator struct {
	client       *http.Client
	clientID     string
	clientSecret string
	userAgent    string
	tokenURL     *url.URL
	formData     url.Values
	logger       *slog.Logger

	// now is swappable so tests can steer the clock.
	now func() time.Time

	// mu serializes the check-then-renew sequence so concurrent callers
	// trigger at most one exchange and never observe a torn token/expiry
	// pair.
	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewAuthenticator creates an authenticator for the password grant flow.
func NewAuthenticator(httpClient *http.Client, username, password, clientID, clientSecret, userAgent, tokenURL string, logger *slog.Logger) (*Authenticator, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(tokenURL)
	if err != nil {
		return nil, &pkgerrs.LoginError{Err: fmt.Errorf("failed to parse token URL: %w", err)}
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)

	return &Authenticator{
		client:       httpClient,
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		tokenURL:     parsedURL,
		formData:     form,
		logger:       logger,
		now:          time.Now,
	}, nil
}

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int             `json:"expires_in"`
	Scope       string          `json:"scope"`
	Error       json.RawMessage `json:"error"`
}

// Token returns a bearer token guaranteed valid for at least RenewalSkew.
// It performs a fresh exchange only when no token is held yet or the held
// token expires within the skew.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.expiry.Sub(a.now()) > RenewalSkew {
		return a.token, nil
	}

	token, expiresIn, err := a.exchange(ctx)
	if err != nil {
		return "", err
	}

	a.token = token
	a.expiry = a.now().Add(time.Duration(expiresIn) * time.Second)

	if a.logger != nil {
		a.logger.Debug("obtained access token", "expires_in", expiresIn)
	}

	return a.token, nil
}

// exchange performs one password-grant round trip. Caller holds a.mu.
func (a *Authenticator) exchange(ctx context.Context) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL.String(), strings.NewReader(a.formData.Encode()))
	if err != nil {
		return "", 0, &pkgerrs.LoginError{Err: fmt.Errorf("failed to create token request: %w", err)}
	}

	req.SetBasicAuth(a.clientID, a.clientSecret)
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", 0, &pkgerrs.LoginError{Err: fmt.Errorf("failed to execute token request: %w", err)}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, &pkgerrs.LoginError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read token response body: %w", err),
		}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(bodyBytes, &tokenResp); err != nil {
		return "", 0, &pkgerrs.LoginError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to unmarshal token response: %w", err),
		}
	}

	// The endpoint reports failure either through the status code or a
	// non-null "error" field in an otherwise 200 body.
	if resp.StatusCode != http.StatusOK || errorFieldSet(tokenResp.Error) {
		return "", 0, &pkgerrs.LoginError{
			StatusCode: resp.StatusCode,
			Message:    errorFieldText(tokenResp.Error),
		}
	}

	if tokenResp.AccessToken == "" {
		return "", 0, &pkgerrs.LoginError{
			StatusCode: resp.StatusCode,
			Message:    "access token was empty in response",
		}
	}

	return tokenResp.AccessToken, tokenResp.ExpiresIn, nil
}

func errorFieldSet(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// errorFieldText renders the "error" field, which is usually a string like
// "invalid_grant" but occasionally a bare numeric code.
func errorFieldText(raw json.RawMessage) string {
	if !errorFieldSet(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

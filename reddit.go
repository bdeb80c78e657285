// Package reddit is a stateful client for the Reddit REST+OAuth API.
//
// A Session owns the credentials, the bearer token and its expiry, and the
// dispatcher every request funnels through. Entities (Post, Comment,
// Redditor, Subreddit, Message) hold a non-owning reference back to the
// Session that created them and use it for further actions; the Session
// must outlive the entities it hands out.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/redclient/go-reddit/internal"
	pkgerrs "github.com/redclient/go-reddit/pkg/errors"
)

const (
	// DefaultBaseURL is the authenticated API host.
	DefaultBaseURL = "https://oauth.reddit.com"
	// DefaultPublicURL is the read-only host used by anonymous sessions.
	DefaultPublicURL = "https://api.reddit.com"
	// DefaultTokenURL is the OAuth token endpoint.
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second
)

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 60 if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to 10 if zero.
	Burst int
}

// MediaUploadFunc uploads a local media file and returns the URL it is
// hosted at. The encoding and upload protocol are outside this client.
type MediaUploadFunc func(ctx context.Context, path string) (string, error)

// Config holds the configuration for a Session.
//
// For an authenticated session, provide all of Username, Password,
// ClientID and ClientSecret. Leave all four empty for an anonymous,
// read-only session. UserAgent is mandatory either way.
type Config struct {
	// Username and Password of the account, for the password grant flow.
	Username string
	Password string

	// ClientID and ClientSecret of the registered API application.
	ClientID     string
	ClientSecret string

	// UserAgent identifies the application. Must be non-empty.
	UserAgent string

	// BaseURL overrides the authenticated API host. Defaults to DefaultBaseURL.
	BaseURL string

	// PublicURL overrides the anonymous read-only host. Defaults to DefaultPublicURL.
	PublicURL string

	// TokenURL overrides the OAuth token endpoint. Defaults to DefaultTokenURL.
	TokenURL string

	// HTTPClient to use for requests. Defaults to a client with
	// DefaultTimeout and TLS pinned to 1.2 or newer.
	HTTPClient *http.Client

	// Logger for structured diagnostics. Optional.
	Logger *slog.Logger

	// RateLimit overrides the default request throttling.
	RateLimit *RateLimitConfig

	// MediaUploader handles media uploads for Session.UploadMedia. Optional.
	MediaUploader MediaUploadFunc
}

// Session represents one logical client: credentials (or none), the token
// state, and the dispatcher. All operations are synchronous; a call blocks
// until the HTTP round trip completes or ctx is done.
type Session struct {
	http          *internal.Client
	check         *internal.Validator
	username      string
	authenticated bool
	logger        *slog.Logger
	uploadMedia   MediaUploadFunc
}

// NewSession creates a Session from cfg. The credentials are not checked
// until the first request; the token is fetched lazily and renewed
// transparently when it is within five seconds of expiry.
func NewSession(cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, &pkgerrs.ArgumentError{Name: "cfg", Message: "config cannot be nil"}
	}

	check := internal.NewValidator()
	if err := check.ValidateUserAgent(cfg.UserAgent); err != nil {
		return nil, err
	}

	provided := 0
	for _, field := range []string{cfg.Username, cfg.Password, cfg.ClientID, cfg.ClientSecret} {
		if field != "" {
			provided++
		}
	}
	if provided != 0 && provided != 4 {
		return nil, &pkgerrs.ArgumentError{
			Name:    "credentials",
			Message: "username, password, client id and client secret must all be set, or none of them",
		}
	}
	authenticated := provided == 4

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = DefaultPublicURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = internal.NewHTTPClient(DefaultTimeout)
	}

	var tokens internal.TokenSource
	if authenticated {
		auth, err := internal.NewAuthenticator(httpClient, cfg.Username, cfg.Password, cfg.ClientID, cfg.ClientSecret, cfg.UserAgent, tokenURL, cfg.Logger)
		if err != nil {
			return nil, err
		}
		tokens = auth
	}

	var rateCfg *internal.RateLimitConfig
	if cfg.RateLimit != nil {
		rateCfg = &internal.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		}
	}

	client, err := internal.NewClient(httpClient, tokens, baseURL, publicURL, cfg.UserAgent, rateCfg, cfg.Logger)
	if err != nil {
		return nil, err
	}

	return &Session{
		http:          client,
		check:         check,
		username:      cfg.Username,
		authenticated: authenticated,
		logger:        cfg.Logger,
		uploadMedia:   cfg.MediaUploader,
	}, nil
}

// NewAnonymousSession creates a read-only session identified only by a
// user agent string.
func NewAnonymousSession(userAgent string) (*Session, error) {
	return NewSession(&Config{UserAgent: userAgent})
}

// Authenticated reports whether the session carries credentials.
func (s *Session) Authenticated() bool { return s.authenticated }

// Username returns the account name, empty for anonymous sessions.
func (s *Session) Username() string { return s.username }

// Me returns a Redditor for the account this session is logged in as.
func (s *Session) Me(ctx context.Context) (*Redditor, error) {
	if !s.authenticated {
		return nil, &pkgerrs.NotLoggedInError{Action: `determine who "me" is`}
	}
	return s.Redditor(ctx, s.username)
}

// SearchOptions controls SearchSubreddits.
type SearchOptions struct {
	// Exact restricts results to exact name matches.
	Exact bool
	// NSFW includes over-18 communities.
	NSFW bool
	// Autocomplete uses the fuzzy autocomplete endpoint instead of the
	// exact-name search.
	Autocomplete bool
	// Limit caps the number of results, between 0 and 10.
	Limit int
}

// DefaultSearchOptions returns the defaults: autocomplete with 5 results.
func DefaultSearchOptions() *SearchOptions {
	return &SearchOptions{Autocomplete: true, Limit: 5}
}

// SearchSubreddits returns community names matching query. Duplicate names
// are preserved as returned by the server: the result is a multiset, not a
// set, because a name may appear more than once across result sources.
func (s *Session) SearchSubreddits(ctx context.Context, query string, opts *SearchOptions) ([]string, error) {
	if opts == nil {
		opts = DefaultSearchOptions()
	}
	if err := s.check.ValidateSearchLimit(opts.Limit); err != nil {
		return nil, err
	}

	endpoint := "/api/search_reddit_names"
	if opts.Autocomplete {
		endpoint = "/api/subreddit_autocomplete_v2"
	}

	q := url.Values{}
	q.Set("exact", strconv.FormatBool(opts.Exact))
	q.Set("include_over_18", strconv.FormatBool(opts.NSFW))
	q.Set("include_unadvertisable", "true")
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(opts.Limit))

	res, err := s.get(ctx, endpoint, q)
	if err != nil {
		return nil, err
	}

	var names []string
	if opts.Autocomplete {
		for _, child := range res.Get("data.children").Array() {
			names = append(names, child.Get("data.display_name").String())
		}
	} else {
		for _, name := range res.Get("names").Array() {
			names = append(names, name.String())
		}
	}
	return names, nil
}

// get issues a GET through the dispatcher.
func (s *Session) get(ctx context.Context, path string, query url.Values) (gjson.Result, error) {
	return s.http.Do(ctx, &internal.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
}

// postForm issues a POST with a URL-encoded body.
func (s *Session) postForm(ctx context.Context, path string, form url.Values, query url.Values) (gjson.Result, error) {
	return s.http.Do(ctx, &internal.Request{
		Method: http.MethodPost,
		Path:   path,
		Form:   form,
		Query:  query,
	})
}

// postJSON issues a POST with body marshalled as raw JSON text.
func (s *Session) postJSON(ctx context.Context, path string, body any) (gjson.Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}, &pkgerrs.ArgumentError{
			Name:    "body",
			Message: "request body cannot be marshalled as JSON: " + err.Error(),
		}
	}
	return s.http.Do(ctx, &internal.Request{
		Method: http.MethodPost,
		Path:   path,
		JSON:   payload,
	})
}

// requireAuth returns a NotLoggedInError naming action when the session is
// anonymous.
func (s *Session) requireAuth(action string) error {
	if s.authenticated {
		return nil
	}
	return &pkgerrs.NotLoggedInError{Action: action}
}

// rewrapFetch swaps the context message on 404/403 failures while keeping
// the error kind; any other error passes through unmodified.
func rewrapFetch(err error, notFound, unauthorised string) error {
	var nf *pkgerrs.NotFoundError
	if errors.As(err, &nf) {
		return &pkgerrs.NotFoundError{Resource: notFound}
	}
	var ua *pkgerrs.UnauthorisedError
	if errors.As(err, &ua) {
		return &pkgerrs.UnauthorisedError{Resource: unauthorised}
	}
	return err
}

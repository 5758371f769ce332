// Spotify API implementation of the listening history provider
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/get-recently-played
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playlog/internal/models"
	"github.com/desertthunder/playlog/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// DefaultRedirectURI matches the callback served by the auth command.
	DefaultRedirectURI = "http://127.0.0.1:8888/callback"

	scopeRecentlyPlayed = "user-read-recently-played"
)

// DefaultRateLimit is the request rate used when none is configured, in requests per second.
const DefaultRateLimit = 5.0

// SpotifyCursors is the cursor pair of a recently-played page. Values are unix milliseconds.
type SpotifyCursors struct {
	After  string `json:"after"`
	Before string `json:"before"`
}

// SpotifyRecentlyPlayed is the cursor-paged response of GET /me/player/recently-played.
type SpotifyRecentlyPlayed struct {
	Items   []models.PlayItem `json:"items"`
	Next    *string           `json:"next"`
	Cursors *SpotifyCursors   `json:"cursors"`
	Limit   int               `json:"limit"`
	Href    string            `json:"href"`
}

// SpotifyOpts contains optional settings for [NewSpotifyService].
type SpotifyOpts struct {
	BaseURL    string       // API root, defaults to the public Web API
	TokenURL   string       // token endpoint, defaults to Spotify accounts
	HTTPClient *http.Client // base client for API and token requests
	RateLimit  float64      // requests per second; non-positive uses [DefaultRateLimit]
	Logger     *log.Logger
}

// SpotifyService reads listening history from the Spotify Web API.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	baseClient     *http.Client
	httpClient     *http.Client
	baseURL        string
	limiter        *rate.Limiter
	logger         *log.Logger
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a Spotify service from the configured client credentials.
//
// The service cannot make requests until a token is installed with [SpotifyService.OAuthenticate].
func NewSpotifyService(cfg shared.SpotifyConfig, opts SpotifyOpts) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	baseClient := opts.HTTPClient
	if baseClient == nil {
		baseClient = &http.Client{Timeout: 30 * time.Second}
	}

	limit := opts.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{scopeRecentlyPlayed},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: tokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		baseClient: baseClient,
		httpClient: baseClient,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
		logger:     logger,
	}, nil
}

// Name returns the provider name.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the OAuth2 configuration for token exchange.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers fn to receive every refreshed token.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// OAuthenticate installs token and builds an HTTP client that refreshes it when it expires.
//
// The token must carry an access or refresh token.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: %w: no saved token, run the auth command first", shared.ErrProvider, shared.ErrNotAuthenticated)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: func(t *oauth2.Token) {
			if s.onTokenRefresh != nil {
				s.onTokenRefresh(t)
			}
		},
		last: token.AccessToken,
	}

	s.token = token
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

// refreshableTokenSource wraps a token source and reports tokens whose access token changed.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	mu       sync.Mutex
	last     string
}

// Token implements [oauth2.TokenSource].
func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.notify(token)
	}

	return token, nil
}

func (r *refreshableTokenSource) notify(token *oauth2.Token) {
	defer func() { _ = recover() }()
	r.callback(token)
}

// RecentlyPlayed returns up to limit of the user's most recently played tracks, newest first.
//
// A limit outside 1..50 is clamped. When after is non-zero only plays after that instant are returned.
func (s *SpotifyService) RecentlyPlayed(ctx context.Context, limit int, after time.Time) ([]models.PlayItem, error) {
	if limit <= 0 || limit > MaxRecentlyPlayed {
		limit = MaxRecentlyPlayed
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if !after.IsZero() {
		query.Set("after", strconv.FormatInt(after.UnixMilli(), 10))
	}

	var page SpotifyRecentlyPlayed
	if err := s.doRequest(ctx, http.MethodGet, "/me/player/recently-played", query, &page); err != nil {
		return nil, err
	}

	s.logger.Debug("fetched recently played", "items", len(page.Items), "limit", limit)

	if page.Items == nil {
		return []models.PlayItem{}, nil
	}
	return page.Items, nil
}

// doRequest performs a rate-limited, authenticated request and decodes the JSON body into result.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, query url.Values, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: %w: call OAuthenticate first", shared.ErrProvider, shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", shared.ErrProvider, err)
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", shared.ErrProvider, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: %w: token refresh rejected: %v", shared.ErrProvider, shared.ErrTokenExpired, retrieveErr)
		}
		return fmt.Errorf("%w: request failed: %v", shared.ErrProvider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w: spotify API returned 401", shared.ErrProvider, shared.ErrTokenExpired)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limited, retry after %ss", shared.ErrProvider, resp.Header.Get("Retry-After"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: spotify API error: status %d: %s", shared.ErrProvider, resp.StatusCode, body)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrProvider, err)
		}
	}

	return nil
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/playlog/internal/shared"
	tu "github.com/desertthunder/playlog/internal/testing"
	"golang.org/x/oauth2"
)

const recentlyPlayedBody = `{
  "items": [
    {
      "played_at": "2024-01-01T10:00:00.000Z",
      "track": {
        "id": "T1",
        "name": "Song A",
        "duration_ms": 200000,
        "album": {"name": "Album X"},
        "artists": [{"id": "A1", "name": "Artist One"}, {"id": "A2", "name": "Artist Two"}]
      }
    },
    {
      "played_at": "2024-01-01T09:00:00.000Z",
      "track": {
        "id": "T2",
        "name": "Song B",
        "album": {"name": "Album Y"},
        "artists": [{"id": "A1", "name": "Artist One"}]
      }
    }
  ],
  "next": null,
  "cursors": {"after": "1704103200000", "before": "1704099600000"},
  "limit": 50
}`

func testCredentials() shared.SpotifyConfig {
	return shared.SpotifyConfig{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
	}
}

// newTestService points a service at srv with an installed access token.
func newTestService(t *testing.T, srv *httptest.Server) *SpotifyService {
	t.Helper()

	svc, err := NewSpotifyService(testCredentials(), SpotifyOpts{
		BaseURL:    srv.URL,
		TokenURL:   srv.URL + "/token",
		HTTPClient: srv.Client(),
		RateLimit:  1000,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	token := &oauth2.Token{AccessToken: "test_access_token", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	if err := svc.OAuthenticate(context.Background(), token); err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}
	return svc
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials(), SpotifyOpts{})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if len(srv.config.Scopes) != 1 || srv.config.Scopes[0] != "user-read-recently-played" {
				t.Errorf("unexpected scopes %v", srv.config.Scopes)
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(shared.SpotifyConfig{ClientSecret: "secret"}, SpotifyOpts{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(shared.SpotifyConfig{ClientID: "id"}, SpotifyOpts{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials(), SpotifyOpts{})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.config.RedirectURL != DefaultRedirectURI {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})
	})

	t.Run("Get AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials(), SpotifyOpts{})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.GetAuthURL("test_state")

		for _, want := range []string{"accounts.spotify.com", "test_client_id", "test_state", "user-read-recently-played"} {
			if !strings.Contains(authURL, want) {
				t.Errorf("auth URL should contain %q: %s", want, authURL)
			}
		}
	})

	t.Run("OAuthService Interface", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials(), SpotifyOpts{})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		var _ OAuthService = srv
	})

	t.Run("OAuthenticate", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials(), SpotifyOpts{})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("WithAccessToken", func(t *testing.T) {
			if err := srv.OAuthenticate(context.Background(), &oauth2.Token{AccessToken: "abc"}); err != nil {
				t.Errorf("expected no error with access token, got %v", err)
			}
			if srv.token == nil || srv.token.AccessToken != "abc" {
				t.Error("expected token to be set")
			}
		})

		t.Run("Missing Token", func(t *testing.T) {
			for _, token := range []*oauth2.Token{nil, {}} {
				if err := srv.OAuthenticate(context.Background(), token); !errors.Is(err, shared.ErrNotAuthenticated) {
					t.Errorf("expected ErrNotAuthenticated, got %v", err)
				}
			}
		})
	})

	t.Run("SetTokenRefreshCallback", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials(), SpotifyOpts{})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		srv.SetTokenRefreshCallback(func(token *oauth2.Token) {})
		if srv.onTokenRefresh == nil {
			t.Error("expected callback to be set")
		}

		srv.SetTokenRefreshCallback(nil)
		if srv.onTokenRefresh != nil {
			t.Error("expected callback to be nil")
		}
	})
}

func TestRecentlyPlayed(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes items", func(t *testing.T) {
		var gotQuery, gotAuth, gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(recentlyPlayedBody))
		}))
		defer srv.Close()

		svc := newTestService(t, srv)
		items, err := svc.RecentlyPlayed(ctx, 50, time.Time{})
		if err != nil {
			t.Fatalf("RecentlyPlayed() error = %v", err)
		}

		if gotPath != "/me/player/recently-played" {
			t.Errorf("unexpected path %s", gotPath)
		}
		if gotQuery != "limit=50" {
			t.Errorf("unexpected query %s", gotQuery)
		}
		if gotAuth != "Bearer test_access_token" {
			t.Errorf("unexpected authorization header %q", gotAuth)
		}

		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		if items[0].Track.ID != "T1" || items[0].Track.PrimaryArtist().ID != "A1" {
			t.Errorf("unexpected first item %+v", items[0].Track)
		}
		if items[0].Track.DurationMS == nil || *items[0].Track.DurationMS != 200000 {
			t.Error("expected duration to be decoded")
		}
		if items[1].Track.DurationMS != nil {
			t.Error("expected missing duration to stay nil")
		}
	})

	t.Run("after cursor and limit clamp", func(t *testing.T) {
		var gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`{"items": []}`))
		}))
		defer srv.Close()

		svc := newTestService(t, srv)
		after := time.UnixMilli(1704103200000)

		items, err := svc.RecentlyPlayed(ctx, 500, after)
		if err != nil {
			t.Fatalf("RecentlyPlayed() error = %v", err)
		}
		if len(items) != 0 || items == nil {
			t.Errorf("expected empty non-nil slice, got %#v", items)
		}
		if gotQuery != "after=1704103200000&limit=50" {
			t.Errorf("unexpected query %s", gotQuery)
		}
	})

	t.Run("error mapping", func(t *testing.T) {
		tt := []struct {
			name   string
			status int
			body   string
			want   error
		}{
			{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"status":401}}`, want: shared.ErrTokenExpired},
			{name: "rate limited", status: http.StatusTooManyRequests, want: shared.ErrProvider},
			{name: "server error", status: http.StatusBadGateway, body: "bad gateway", want: shared.ErrProvider},
			{name: "undecodable body", status: http.StatusOK, body: "not json", want: shared.ErrProvider},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tc.status)
					w.Write([]byte(tc.body))
				}))
				defer srv.Close()

				_, err := newTestService(t, srv).RecentlyPlayed(ctx, 10, time.Time{})
				if !errors.Is(err, tc.want) {
					t.Errorf("expected %v, got %v", tc.want, err)
				}
				if !errors.Is(err, shared.ErrProvider) {
					t.Errorf("expected every upstream failure to wrap ErrProvider, got %v", err)
				}
			})
		}
	})

	t.Run("unreachable provider", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		svc := newTestService(t, srv)
		srv.Close()

		if _, err := svc.RecentlyPlayed(ctx, 10, time.Time{}); !errors.Is(err, shared.ErrProvider) {
			t.Errorf("expected ErrProvider, got %v", err)
		}
	})

	t.Run("unreadable body", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: &tu.FCloser{}}
		svc, err := NewSpotifyService(testCredentials(), SpotifyOpts{
			BaseURL:    "http://spotify.test/v1",
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)},
			RateLimit:  1000,
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}
		if err := svc.OAuthenticate(ctx, &oauth2.Token{AccessToken: "access"}); err != nil {
			t.Fatalf("OAuthenticate() error = %v", err)
		}

		_, err = svc.RecentlyPlayed(ctx, 10, time.Time{})
		if !errors.Is(err, shared.ErrProvider) || !strings.Contains(err.Error(), "decode") {
			t.Errorf("expected ErrProvider decode failure, got %v", err)
		}
	})

	t.Run("not authenticated", func(t *testing.T) {
		svc, err := NewSpotifyService(testCredentials(), SpotifyOpts{})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		_, err = svc.RecentlyPlayed(ctx, 10, time.Time{})
		if !errors.Is(err, shared.ErrNotAuthenticated) || !errors.Is(err, shared.ErrProvider) {
			t.Errorf("expected ErrNotAuthenticated and ErrProvider, got %v", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items": []}`))
		}))
		defer srv.Close()

		svc := newTestService(t, srv)
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := svc.RecentlyPlayed(canceled, 10, time.Time{}); !errors.Is(err, shared.ErrProvider) {
			t.Errorf("expected ErrProvider, got %v", err)
		}
	})

	t.Run("expired token is refreshed and reported", func(t *testing.T) {
		var refreshes atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/token" {
				refreshes.Add(1)
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"access_token": "refreshed_token",
					"token_type":   "Bearer",
					"expires_in":   3600,
				})
				return
			}
			if r.Header.Get("Authorization") != "Bearer refreshed_token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(recentlyPlayedBody))
		}))
		defer srv.Close()

		svc, err := NewSpotifyService(testCredentials(), SpotifyOpts{
			BaseURL:    srv.URL,
			TokenURL:   srv.URL + "/token",
			HTTPClient: srv.Client(),
			RateLimit:  1000,
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		var reported *oauth2.Token
		svc.SetTokenRefreshCallback(func(token *oauth2.Token) { reported = token })

		expired := &oauth2.Token{
			AccessToken:  "stale_token",
			RefreshToken: "refresh_token",
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(-time.Hour),
		}
		if err := svc.OAuthenticate(ctx, expired); err != nil {
			t.Fatalf("OAuthenticate() error = %v", err)
		}

		items, err := svc.RecentlyPlayed(ctx, 50, time.Time{})
		if err != nil {
			t.Fatalf("RecentlyPlayed() error = %v", err)
		}
		if len(items) != 2 {
			t.Errorf("expected 2 items, got %d", len(items))
		}
		if refreshes.Load() != 1 {
			t.Errorf("expected one refresh, got %d", refreshes.Load())
		}
		if reported == nil || reported.AccessToken != "refreshed_token" {
			t.Errorf("expected refreshed token to be reported, got %+v", reported)
		}
	})

	t.Run("rejected refresh", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
		}))
		defer srv.Close()

		svc, err := NewSpotifyService(testCredentials(), SpotifyOpts{
			BaseURL:    srv.URL,
			TokenURL:   srv.URL + "/token",
			HTTPClient: srv.Client(),
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		expired := &oauth2.Token{RefreshToken: "revoked", Expiry: time.Now().Add(-time.Hour)}
		if err := svc.OAuthenticate(ctx, expired); err != nil {
			t.Fatalf("OAuthenticate() error = %v", err)
		}

		_, err = svc.RecentlyPlayed(ctx, 10, time.Time{})
		if !errors.Is(err, shared.ErrTokenExpired) || !errors.Is(err, shared.ErrProvider) {
			t.Errorf("expected ErrTokenExpired and ErrProvider, got %v", err)
		}
	})
}

func TestRefreshableTokenSource(t *testing.T) {
	t.Run("calls callback on first token fetch", func(t *testing.T) {
		var captured *oauth2.Token
		source := &refreshableTokenSource{
			source:   &mockTokenSource{token: &oauth2.Token{AccessToken: "test_token"}},
			callback: func(token *oauth2.Token) { captured = token },
		}

		token, err := source.Token()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if captured == nil || captured.AccessToken != "test_token" {
			t.Errorf("expected callback with test_token, got %+v", captured)
		}
		if token.AccessToken != "test_token" {
			t.Errorf("expected returned token to be 'test_token', got %s", token.AccessToken)
		}
	})

	t.Run("calls callback only when token changes", func(t *testing.T) {
		callCount := 0
		mockSource := &mockTokenSource{token: &oauth2.Token{AccessToken: "token1"}}
		source := &refreshableTokenSource{
			source:   mockSource,
			callback: func(token *oauth2.Token) { callCount++ },
			last:     "token1",
		}

		source.Token()
		source.Token()
		if callCount != 0 {
			t.Errorf("expected no callback for the installed token, got %d", callCount)
		}

		mockSource.token = &oauth2.Token{AccessToken: "token2"}
		source.Token()
		source.Token()
		if callCount != 1 {
			t.Errorf("expected callback called once, got %d", callCount)
		}
	})

	t.Run("handles nil callback gracefully", func(t *testing.T) {
		source := &refreshableTokenSource{source: &mockTokenSource{token: &oauth2.Token{AccessToken: "test_token"}}}

		token, err := source.Token()
		if err != nil {
			t.Fatalf("expected no error with nil callback, got %v", err)
		}
		if token.AccessToken != "test_token" {
			t.Error("expected token to be returned despite nil callback")
		}
	})

	t.Run("propagates source errors", func(t *testing.T) {
		source := &refreshableTokenSource{
			source: &mockTokenSource{err: errors.New("token source error")},
			callback: func(token *oauth2.Token) {
				t.Error("callback should not be called on error")
			},
		}

		token, err := source.Token()
		if err == nil || !strings.Contains(err.Error(), "token source error") {
			t.Errorf("expected source error, got %v", err)
		}
		if token != nil {
			t.Error("expected nil token on error")
		}
	})

	t.Run("contains callback panic", func(t *testing.T) {
		source := &refreshableTokenSource{
			source:   &mockTokenSource{token: &oauth2.Token{AccessToken: "test_token"}},
			callback: func(token *oauth2.Token) { panic("callback panic") },
		}

		token, err := source.Token()
		if err != nil || token == nil {
			t.Errorf("expected token despite callback panic, got %v, %v", token, err)
		}
	})
}

// mockTokenSource implements [oauth2.TokenSource] for testing
type mockTokenSource struct {
	token *oauth2.Token
	err   error
}

func (m *mockTokenSource) Token() (*oauth2.Token, error) {
	return m.token, m.err
}

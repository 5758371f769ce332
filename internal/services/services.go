// package services contains HTTP clients for listening history providers
package services

import (
	"context"

	"golang.org/x/oauth2"
)

// MaxRecentlyPlayed is the largest page the recently-played endpoint returns.
const MaxRecentlyPlayed = 50

// OAuthService is implemented by providers that authorize through the OAuth2 authorization code flow.
type OAuthService interface {
	// GetAuthURL returns the URL the user visits to grant access.
	GetAuthURL(state string) string

	// GetOAuthConfig returns the config used to exchange the callback code for a token.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate installs token for subsequent requests.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}

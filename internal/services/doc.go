// Package services talks to the music provider that supplies listening history.
//
// # Spotify
//
// [SpotifyService] reads the authorized user's recently played tracks from the Spotify Web API.
// Authentication uses OAuth2 with the single scope user-read-recently-played.
//
// A saved token is installed with [SpotifyService.OAuthenticate]. The [oauth2] client refreshes it
// when it expires; [SpotifyService.SetTokenRefreshCallback] reports each new token so the caller
// can persist it.
//
// Every request waits on a [rate.Limiter] before it is sent.
//
// # Error Handling
//
// Every request failure wraps [shared.ErrProvider]. Auth failures also wrap a more specific sentinel:
//   - [shared.ErrNotAuthenticated] : no token installed
//   - [shared.ErrTokenExpired] : the API answered 401 or the refresh was rejected
package services

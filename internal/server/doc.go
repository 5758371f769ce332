// Package server provides the local HTTP server that completes the OAuth2 authorization code flow.
//
// # Router
//
// [BasicRouter] implements [Router] on top of [http.ServeMux] with method filtering and
// [Middleware] support. [RequestLogger] logs each callback at debug level.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves /callback. It checks the state parameter, exchanges the authorization
// code for a token, and sends exactly one [OAuthResult] on its result channel. Repeat callbacks
// are rejected.
//
// # Callback Server
//
// [CallbackServer] binds the configured host and port when the auth command starts, serves
// until [AwaitToken] returns, and is then shut down.
package server

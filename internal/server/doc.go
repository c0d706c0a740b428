// Package server runs the short-lived local HTTP listener that receives the Spotify OAuth redirect.
//
// `crossfade auth spotify` mounts an [OAuthHandler] on a [BasicRouter] at the configured host and
// port (127.0.0.1:8888 by default), opens the authorization URL and waits for one callback. The
// handler checks the state parameter, exchanges the code and delivers the token or error on
// [OAuthHandler.Result]. Later callbacks are rejected.
//
// [RequestLogger] and [Recoverer] are the only middleware. The request logger never writes the
// query string because it carries the authorization code.
package server

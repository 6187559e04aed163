// Package server provides the temporary local HTTP server used to complete browser sign-in flows.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Callback Handlers
//
// Each provider completes sign-in differently, so each gets a [CallbackHandler]:
//   - [CodeHandler]: authorization code callbacks, exchanged through an [ExchangeFunc] (Spotify PKCE)
//   - [FragmentHandler]: implicit grant callbacks, where the token is in the URL fragment (Google)
//   - [MusicKitHandler]: serves a MusicKit JS page and receives the Music User Token by POST (Apple Music)
//
// All handlers validate the state parameter through a [VerifyFunc] and only process one callback.
//
// # Serving
//
// [Serve] binds the configured address, calls the [ReadyFunc] (which opens the browser), waits for the
// handler's result and shuts the server down.
package server

// Package services defines the [Service] interface for music streaming providers and implements it
// for Spotify, YouTube and Apple Music.
//
// # Service Interface
//
// All providers implement a common abstraction so the transfer pipeline works uniformly across
// them. A [Registry] keyed by [models.ProviderID] selects the adapter at runtime.
//
// # Session
//
// Tokens live in a process-wide [Session] persisted through a key/value [Store]. Adapters never
// hold tokens: each reads through [Session.TokenSource], wrapped in an [oauth2.Transport].
// Subscribers receive [SessionEvent] values when a provider signs in, signs out or expires.
// [HealthMonitor] polls [Service.IsAuthenticated] as a fallback and expires rejected sessions.
//
// # Spotify
//
// [SpotifyService] wraps the zmb3/spotify client. Sign-in is the authorization code flow with PKCE;
// refresh tokens are exchanged through the oauth2 config and written back to the session.
//
// # YouTube
//
// [YouTubeService] wraps the YouTube Data API client. Sign-in is the implicit grant; the token
// arrives in the redirect fragment and cannot be refreshed. Searches are restricted to videos in
// the Music category, and tracks are inserted one per request.
//
// # Apple Music
//
// [AppleMusicService] calls the REST API directly with a developer token minted by
// [DeveloperTokenMinter] and the MusicKit user token from the session. New playlists are given a
// settle delay before tracks are added.
//
// # Pacing
//
// Pages, searches and batches are spaced by [golang.org/x/time/rate] limiters allowing one event
// per configured delay, so waits end as soon as the context is cancelled.
//
// # Error Handling
//
// Provider errors are mapped to the shared sentinels:
//   - [shared.ErrNotAuthenticated]: HTTP 401 or no stored token
//   - [shared.ErrTokenExpired]: stored token expired and cannot be refreshed
//   - [shared.ErrRateLimited]: HTTP 429 (and YouTube quota errors)
//   - [shared.ErrPlaylistNotFound]: HTTP 404
//   - [shared.ErrAPIRequest]: anything else
package services

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/server"
	"github.com/desertthunder/mixtape/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// healthTimeout bounds a single session check.
const healthTimeout = 5 * time.Second

//go:generate mockgen -destination=mocks/service.go -package=mocks github.com/desertthunder/mixtape/internal/services Service

// SessionChecker is implemented by adapters that can tell a rejected session apart from a
// provider that is only unreachable. [HealthMonitor] prefers it over [Service.IsAuthenticated].
type SessionChecker interface {
	// CheckSession calls the provider with the current session token. It returns nil when the
	// token is accepted and an error matching [IsAuthError] when the provider rejects it.
	CheckSession(ctx context.Context) error
}

// IsAuthError reports whether err means the provider no longer accepts the session, as opposed
// to a transient failure such as a timeout, a 5xx or rate limiting.
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrTokenExpired)
}

// Service is the uniform capability set the transfer pipeline needs from a streaming provider.
type Service interface {
	// ID returns the registry key of the provider.
	ID() models.ProviderID

	// Name returns a display name (e.g., "Spotify", "YouTube", "Apple Music").
	Name() string

	// IsAuthenticated calls the provider with the current session token.
	IsAuthenticated(ctx context.Context) bool

	// SignIn runs the provider's browser round trip and stores the resulting token in the session.
	// Blocks until the redirect arrives or ctx is done.
	SignIn(ctx context.Context) error

	// SignOut clears the provider session.
	SignOut(ctx context.Context) error

	// Profile returns the signed-in user.
	Profile(ctx context.Context) (*models.Profile, error)

	// ListPlaylists returns the user's addressable playlists, excluding provider pseudo-playlists.
	ListPlaylists(ctx context.Context) ([]models.Playlist, error)

	// GetPlaylist returns one playlist by id.
	GetPlaylist(ctx context.Context, id string) (*models.Playlist, error)

	// ListPlaylistTracks pages through every track of a playlist with a fixed delay between pages.
	// A playlist the provider reports as missing is returned as empty.
	ListPlaylistTracks(ctx context.Context, id string) ([]models.Track, error)

	// SearchTracks returns up to the configured number of ranked candidates for a free-text query.
	SearchTracks(ctx context.Context, query string) ([]models.Track, error)

	// CreatePlaylist creates an empty private playlist and returns its id.
	CreatePlaylist(ctx context.Context, playlist models.Playlist) (string, error)

	// AddTracksToPlaylist adds trackIDs in provider-safe batches, calling progress with the
	// cumulative number added after each batch. A failed batch stops the remaining ones.
	AddTracksToPlaylist(ctx context.Context, id string, trackIDs []string, progress func(added int)) (string, error)
}

// Registry selects a [Service] by provider id at runtime.
type Registry struct {
	mu       sync.RWMutex
	services map[models.ProviderID]Service
}

// NewRegistry creates a Registry holding the given services.
func NewRegistry(svcs ...Service) *Registry {
	r := &Registry{services: make(map[models.ProviderID]Service)}
	for _, s := range svcs {
		r.Register(s)
	}
	return r
}

// Register adds or replaces the service for its provider id.
func (r *Registry) Register(s Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.ID()] = s
}

// Get returns the service registered for id.
func (r *Registry) Get(id models.ProviderID) (Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownProvider, id)
	}
	return s, nil
}

// IDs returns the registered provider ids in sorted order.
func (r *Registry) IDs() []models.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]models.ProviderID, 0, len(r.services))
	for id := range r.services {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Options carries what every adapter shares: the session, the base HTTP client, pacing and batching.
type Options struct {
	Session     *Session
	HTTPClient  *http.Client
	Logger      *log.Logger
	Browser     shared.BrowserFunc
	ServerAddr  string
	PageDelay   time.Duration
	BatchDelay  time.Duration
	SettleDelay time.Duration
	BatchSize   int
	SearchLimit int
}

// NewOptions builds adapter options from the application config.
func NewOptions(cfg *shared.Config, session *Session, logger *log.Logger) Options {
	return Options{
		Session:     session,
		HTTPClient:  &http.Client{Timeout: cfg.HTTP.Timeout},
		Logger:      logger,
		Browser:     shared.OpenBrowser,
		ServerAddr:  cfg.Server.Addr(),
		PageDelay:   cfg.Transfer.PageDelay,
		BatchDelay:  cfg.Transfer.BatchDelay,
		SettleDelay: cfg.Transfer.SettleDelay,
		BatchSize:   cfg.Transfer.BatchSize,
		SearchLimit: cfg.Transfer.SearchLimit,
	}
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
	if o.Browser == nil {
		o.Browser = shared.OpenBrowser
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = 5
	}
	return o
}

// authorizedClient returns an HTTP client that reads the provider's bearer token from the session on every request.
func (o Options) authorizedClient(p models.ProviderID, conf *oauth2.Config) *http.Client {
	base := o.HTTPClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Timeout:   o.HTTPClient.Timeout,
		Transport: &oauth2.Transport{Source: o.Session.TokenSource(p, conf), Base: base},
	}
}

// awaitRedirect starts the local redirect server, opens the browser at startURL and waits for the handler's token.
func (o Options) awaitRedirect(ctx context.Context, startURL string, h server.CallbackHandler) (*oauth2.Token, error) {
	return server.Serve(ctx, o.ServerAddr, h, o.Logger, func(string) error {
		o.Logger.Info("opening browser for sign-in", "url", startURL)
		if err := o.Browser(startURL); err != nil {
			o.Logger.Warn("could not open a browser, open the URL manually", "url", startURL, "error", err)
		}
		return nil
	})
}

// newPacer returns a limiter that lets one request through per delay. The first request is not delayed.
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// chunk splits ids into consecutive slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

// addInBatches calls add for each chunk of ids, pacing chunks by delay and reporting cumulative progress.
func addInBatches(ctx context.Context, ids []string, size int, delay time.Duration, progress func(int), add func(context.Context, []string) error) error {
	pace := newPacer(delay)
	added := 0
	for _, batch := range chunk(ids, size) {
		if err := pace.Wait(ctx); err != nil {
			return err
		}
		if err := add(ctx, batch); err != nil {
			return fmt.Errorf("batch %d-%d: %w", added+1, added+len(batch), err)
		}
		added += len(batch)
		if progress != nil {
			progress(added)
		}
	}
	return nil
}

// apiError maps an HTTP status from a provider to the shared error taxonomy.
func apiError(provider models.ProviderID, op string, status int, err error) error {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s %s: %v", shared.ErrNotAuthenticated, provider, op, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s %s: %v", shared.ErrRateLimited, provider, op, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s %s: %v", shared.ErrPlaylistNotFound, provider, op, err)
	}
	return fmt.Errorf("%w: %s %s: %w", shared.ErrAPIRequest, provider, op, err)
}

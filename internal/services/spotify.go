package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/server"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	spotifyPageSize     = 50
	spotifyMaxBatchSize = 100
	defaultRedirectURI  = "http://127.0.0.1:3000/callback"
)

var spotifyScopes = []string{
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopeUserLibraryModify,
}

// SpotifyConfig holds the public client credentials for the PKCE flow.
type SpotifyConfig struct {
	ClientID    string
	RedirectURI string

	// ClientOptions are passed to [spotify.New] (e.g., [spotify.WithBaseURL] in tests).
	ClientOptions []spotify.ClientOption
}

// SpotifyService implements [Service] for Spotify using the Web API client.
type SpotifyService struct {
	opts   Options
	config *oauth2.Config
	client *spotify.Client
}

// NewSpotifyService creates a Spotify adapter reading its token from opts.Session.
func NewSpotifyService(cfg SpotifyConfig, opts Options) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingCredentials)
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = defaultRedirectURI
	}
	opts = opts.withDefaults()
	opts.Logger = shared.WithLogger(opts.Logger, "provider", models.Spotify)

	config := &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Scopes:      spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   spotifyauth.AuthURL,
			TokenURL:  spotifyauth.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	return &SpotifyService{
		opts:   opts,
		config: config,
		client: spotify.New(opts.authorizedClient(models.Spotify, config), cfg.ClientOptions...),
	}, nil
}

func (s *SpotifyService) ID() models.ProviderID { return models.Spotify }

func (s *SpotifyService) Name() string { return "Spotify" }

// AuthURL returns the authorization URL for the given state and PKCE verifier.
func (s *SpotifyService) AuthURL(state, verifier string) string {
	return s.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// SignIn runs the authorization code flow with PKCE through the local redirect server.
func (s *SpotifyService) SignIn(ctx context.Context) error {
	state, err := shared.GenerateState()
	if err != nil {
		return err
	}
	if err := s.opts.Session.SaveState(ctx, models.Spotify, state); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	verifier := oauth2.GenerateVerifier()
	exchange := func(ctx context.Context, code string) (*oauth2.Token, error) {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.opts.HTTPClient)
		return s.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	}
	verify := func(got string) error { return s.opts.Session.VerifyState(ctx, models.Spotify, got) }

	token, err := s.opts.awaitRedirect(ctx, s.AuthURL(state, verifier), server.NewCodeHandler(exchange, verify))
	if err != nil {
		return err
	}
	return s.opts.Session.SetToken(ctx, models.Spotify, token)
}

func (s *SpotifyService) SignOut(ctx context.Context) error {
	return s.opts.Session.Clear(ctx, models.Spotify)
}

func (s *SpotifyService) IsAuthenticated(ctx context.Context) bool {
	return s.CheckSession(ctx) == nil
}

// CheckSession fetches the current user. A 401 or a token that can no longer be refreshed is an
// authentication error; anything else is reported as an API error.
func (s *SpotifyService) CheckSession(ctx context.Context) error {
	if !s.opts.Session.Has(ctx, models.Spotify) {
		return fmt.Errorf("%w: spotify", shared.ErrNotAuthenticated)
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if _, err := s.client.CurrentUser(ctx); err != nil {
		return spotifyError("check session", err)
	}
	return nil
}

func (s *SpotifyService) Profile(ctx context.Context) (*models.Profile, error) {
	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		return nil, spotifyError("profile", err)
	}
	p := &models.Profile{ID: user.ID, Name: user.DisplayName, Email: user.Email}
	if len(user.Images) > 0 {
		p.Image = user.Images[0].URL
	}
	return p, nil
}

func (s *SpotifyService) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	pace := newPacer(s.opts.PageDelay)
	var playlists []models.Playlist
	for offset := 0; ; {
		if err := pace.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := s.client.CurrentUsersPlaylists(ctx, spotify.Limit(spotifyPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, spotifyError("list playlists", err)
		}
		for _, p := range page.Playlists {
			playlists = append(playlists, toSpotifyPlaylist(p))
		}

		offset += len(page.Playlists)
		if len(page.Playlists) == 0 || offset >= int(page.Total) {
			return playlists, nil
		}
	}
}

func (s *SpotifyService) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	full, err := s.client.GetPlaylist(ctx, spotify.ID(id))
	if err != nil {
		return nil, spotifyError("get playlist", err)
	}
	p := toSpotifyPlaylist(full.SimplePlaylist)
	p.TrackCount = int(full.Tracks.Total)
	return &p, nil
}

func (s *SpotifyService) ListPlaylistTracks(ctx context.Context, id string) ([]models.Track, error) {
	pace := newPacer(s.opts.PageDelay)
	var tracks []models.Track
	for offset := 0; ; {
		if err := pace.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := s.client.GetPlaylistItems(ctx, spotify.ID(id), spotify.Limit(spotifyPageSize), spotify.Offset(offset))
		if err != nil {
			err = spotifyError("list playlist tracks", err)
			if errors.Is(err, shared.ErrPlaylistNotFound) {
				s.opts.Logger.Debug("playlist not found, treating as empty", "playlist", id)
				return []models.Track{}, nil
			}
			return nil, err
		}

		for _, item := range page.Items {
			// Episodes and unavailable local files have no track.
			if item.Track.Track == nil {
				continue
			}
			tracks = append(tracks, toSpotifyTrack(*item.Track.Track))
		}

		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= int(page.Total) {
			return tracks, nil
		}
	}
}

func (s *SpotifyService) SearchTracks(ctx context.Context, query string) ([]models.Track, error) {
	res, err := s.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(s.opts.SearchLimit))
	if err != nil {
		return nil, spotifyError("search", err)
	}
	if res.Tracks == nil {
		return nil, nil
	}

	tracks := make([]models.Track, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		tracks = append(tracks, toSpotifyTrack(t))
	}
	return tracks, nil
}

func (s *SpotifyService) CreatePlaylist(ctx context.Context, playlist models.Playlist) (string, error) {
	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		return "", spotifyError("create playlist", err)
	}

	created, err := s.client.CreatePlaylistForUser(ctx, user.ID, playlist.Name, playlist.Description, false, false)
	if err != nil {
		return "", spotifyError("create playlist", err)
	}
	return string(created.ID), nil
}

func (s *SpotifyService) AddTracksToPlaylist(ctx context.Context, id string, trackIDs []string, progress func(int)) (string, error) {
	size := min(s.opts.BatchSize, spotifyMaxBatchSize)
	err := addInBatches(ctx, trackIDs, size, s.opts.BatchDelay, progress, func(ctx context.Context, batch []string) error {
		ids := make([]spotify.ID, len(batch))
		for i, tid := range batch {
			ids[i] = spotify.ID(tid)
		}
		if _, err := s.client.AddTracksToPlaylist(ctx, spotify.ID(id), ids...); err != nil {
			return spotifyError("add tracks", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func toSpotifyPlaylist(p spotify.SimplePlaylist) models.Playlist {
	playlist := models.Playlist{
		ID:          string(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Link:        p.ExternalURLs["spotify"],
		TrackCount:  int(p.Tracks.Total),
	}
	if len(p.Images) > 0 {
		playlist.Image = p.Images[0].URL
	}
	return playlist
}

func toSpotifyTrack(t spotify.FullTrack) models.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.Track{ID: string(t.ID), Name: t.Name, Artists: artists}
}

// spotifyError maps a client error onto the shared error taxonomy using the response status.
func spotifyError(op string, err error) error {
	var se spotify.Error
	if errors.As(err, &se) {
		return apiError(models.Spotify, op, se.Status, err)
	}
	var sp *spotify.Error
	if errors.As(err, &sp) {
		return apiError(models.Spotify, op, sp.Status, err)
	}
	return apiError(models.Spotify, op, 0, err)
}

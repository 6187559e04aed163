package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/server"
	"github.com/desertthunder/mixtape/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	youtubePageSize        = 50
	youtubeMusicCategoryID = "10"
	defaultIdentityURL     = "https://www.googleapis.com"
)

var (
	youtubeScopes      = []string{"openid", "email", "profile", youtube.YoutubeForceSslScope}
	youtubeListParts   = []string{"snippet", "contentDetails"}
	youtubeInsertParts = []string{"snippet", "status"}
)

// GoogleConfig holds the public client id for the implicit grant flow.
type GoogleConfig struct {
	ClientID    string
	RedirectURI string

	// IdentityURL is the base of the tokeninfo and userinfo endpoints.
	IdentityURL string

	// APIOptions are appended when building the YouTube client (e.g., [option.WithEndpoint] in tests).
	APIOptions []option.ClientOption
}

// YouTubeService implements [Service] for YouTube playlists using the YouTube Data API.
type YouTubeService struct {
	opts        Options
	config      *oauth2.Config
	api         *youtube.Service
	http        *http.Client
	identityURL string
}

// NewYouTubeService creates a YouTube adapter reading its token from opts.Session.
//
// Implicit grant tokens cannot be refreshed: once expired, the session publishes [Expired] and the
// user signs in again.
func NewYouTubeService(ctx context.Context, cfg GoogleConfig, opts Options) (*YouTubeService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: google client_id", shared.ErrMissingCredentials)
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = defaultRedirectURI
	}
	if cfg.IdentityURL == "" {
		cfg.IdentityURL = defaultIdentityURL
	}
	opts = opts.withDefaults()
	opts.Logger = shared.WithLogger(opts.Logger, "provider", models.Google)

	client := opts.authorizedClient(models.Google, nil)
	apiOpts := append([]option.ClientOption{option.WithHTTPClient(client)}, cfg.APIOptions...)
	api, err := youtube.NewService(ctx, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}

	return &YouTubeService{
		opts: opts,
		config: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      youtubeScopes,
			Endpoint:    google.Endpoint,
		},
		api:         api,
		http:        client,
		identityURL: strings.TrimSuffix(cfg.IdentityURL, "/"),
	}, nil
}

func (y *YouTubeService) ID() models.ProviderID { return models.Google }

func (y *YouTubeService) Name() string { return "YouTube" }

// AuthURL returns the implicit grant authorization URL for state.
func (y *YouTubeService) AuthURL(state string) string {
	return y.config.AuthCodeURL(state, oauth2.SetAuthURLParam("response_type", "token"))
}

// SignIn runs the implicit grant flow. The token is returned in the redirect fragment and relayed
// to the local server by the callback page.
func (y *YouTubeService) SignIn(ctx context.Context) error {
	state, err := shared.GenerateState()
	if err != nil {
		return err
	}
	if err := y.opts.Session.SaveState(ctx, models.Google, state); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	verify := func(got string) error { return y.opts.Session.VerifyState(ctx, models.Google, got) }
	token, err := y.opts.awaitRedirect(ctx, y.AuthURL(state), server.NewFragmentHandler(verify))
	if err != nil {
		return err
	}
	return y.opts.Session.SetToken(ctx, models.Google, token)
}

func (y *YouTubeService) SignOut(ctx context.Context) error {
	return y.opts.Session.Clear(ctx, models.Google)
}

// IsAuthenticated asks the tokeninfo endpoint whether the stored access token is still valid.
func (y *YouTubeService) IsAuthenticated(ctx context.Context) bool {
	return y.CheckSession(ctx) == nil
}

// CheckSession asks the tokeninfo endpoint about the stored access token. Tokeninfo answers 400
// for a token it does not recognize.
func (y *YouTubeService) CheckSession(ctx context.Context) error {
	tok, err := y.opts.Session.Token(ctx, models.Google)
	if err != nil {
		return err
	}
	if !tok.Valid() {
		return fmt.Errorf("%w: google", shared.ErrTokenExpired)
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	endpoint := y.identityURL + "/oauth2/v3/tokeninfo?access_token=" + url.QueryEscape(tok.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := y.opts.HTTPClient.Do(req)
	if err != nil {
		return apiError(models.Google, "check session", 0, err)
	}
	defer resp.Body.Close()

	switch status := resp.StatusCode; {
	case status == http.StatusOK:
		return nil
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		return apiError(models.Google, "check session", http.StatusUnauthorized, fmt.Errorf("tokeninfo status %d", status))
	default:
		return apiError(models.Google, "check session", status, fmt.Errorf("tokeninfo status %d", status))
	}
}

func (y *YouTubeService) Profile(ctx context.Context) (*models.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.identityURL+"/oauth2/v3/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := y.http.Do(req)
	if err != nil {
		return nil, apiError(models.Google, "profile", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(models.Google, "profile", resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode))
	}

	var info struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &models.Profile{ID: info.Sub, Name: info.Name, Email: info.Email, Image: info.Picture}, nil
}

func (y *YouTubeService) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	pace := newPacer(y.opts.PageDelay)
	var playlists []models.Playlist
	pageToken := ""
	for {
		if err := pace.Wait(ctx); err != nil {
			return nil, err
		}
		call := y.api.Playlists.List(youtubeListParts).Mine(true).MaxResults(youtubePageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, youtubeError("list playlists", err)
		}
		for _, p := range res.Items {
			playlists = append(playlists, toYouTubePlaylist(p))
		}

		if pageToken = res.NextPageToken; pageToken == "" {
			return playlists, nil
		}
	}
}

func (y *YouTubeService) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	res, err := y.api.Playlists.List(youtubeListParts).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, youtubeError("get playlist", err)
	}
	if len(res.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	p := toYouTubePlaylist(res.Items[0])
	return &p, nil
}

func (y *YouTubeService) ListPlaylistTracks(ctx context.Context, id string) ([]models.Track, error) {
	pace := newPacer(y.opts.PageDelay)
	var tracks []models.Track
	pageToken := ""
	for {
		if err := pace.Wait(ctx); err != nil {
			return nil, err
		}
		call := y.api.PlaylistItems.List(youtubeListParts).PlaylistId(id).MaxResults(youtubePageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			err = youtubeError("list playlist tracks", err)
			if errors.Is(err, shared.ErrPlaylistNotFound) {
				y.opts.Logger.Debug("playlist not found, treating as empty", "playlist", id)
				return []models.Track{}, nil
			}
			return nil, err
		}

		for _, item := range res.Items {
			if t, ok := toYouTubeTrack(item); ok {
				tracks = append(tracks, t)
			}
		}

		if pageToken = res.NextPageToken; pageToken == "" {
			return tracks, nil
		}
	}
}

// SearchTracks searches videos in the Music category.
func (y *YouTubeService) SearchTracks(ctx context.Context, query string) ([]models.Track, error) {
	res, err := y.api.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		VideoCategoryId(youtubeMusicCategoryID).
		MaxResults(int64(y.opts.SearchLimit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, youtubeError("search", err)
	}

	tracks := make([]models.Track, 0, len(res.Items))
	for _, r := range res.Items {
		if r.Id == nil || r.Id.VideoId == "" || r.Snippet == nil {
			continue
		}
		tracks = append(tracks, models.Track{
			ID:      r.Id.VideoId,
			Name:    html.UnescapeString(r.Snippet.Title),
			Artists: []string{channelArtist(r.Snippet.ChannelTitle)},
		})
	}
	return tracks, nil
}

func (y *YouTubeService) CreatePlaylist(ctx context.Context, playlist models.Playlist) (string, error) {
	created, err := y.api.Playlists.Insert(youtubeInsertParts, &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{Title: playlist.Name, Description: playlist.Description},
		Status:  &youtube.PlaylistStatus{PrivacyStatus: "private"},
	}).Context(ctx).Do()
	if err != nil {
		return "", youtubeError("create playlist", err)
	}
	return created.Id, nil
}

// AddTracksToPlaylist inserts one video per request; the API has no bulk insert.
func (y *YouTubeService) AddTracksToPlaylist(ctx context.Context, id string, trackIDs []string, progress func(int)) (string, error) {
	err := addInBatches(ctx, trackIDs, 1, y.opts.BatchDelay, progress, func(ctx context.Context, batch []string) error {
		item := &youtube.PlaylistItem{
			Snippet: &youtube.PlaylistItemSnippet{
				PlaylistId: id,
				ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: batch[0]},
			},
		}
		if _, err := y.api.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
			return youtubeError("add tracks", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func toYouTubePlaylist(p *youtube.Playlist) models.Playlist {
	playlist := models.Playlist{ID: p.Id, Link: "https://www.youtube.com/playlist?list=" + p.Id}
	if p.Snippet != nil {
		playlist.Name = p.Snippet.Title
		playlist.Description = p.Snippet.Description
		if th := p.Snippet.Thumbnails; th != nil && th.Default != nil {
			playlist.Image = th.Default.Url
		}
	}
	if p.ContentDetails != nil {
		playlist.TrackCount = int(p.ContentDetails.ItemCount)
	}
	return playlist
}

func toYouTubeTrack(item *youtube.PlaylistItem) (models.Track, bool) {
	if item.Snippet == nil {
		return models.Track{}, false
	}
	videoID := ""
	if item.ContentDetails != nil {
		videoID = item.ContentDetails.VideoId
	}
	if videoID == "" && item.Snippet.ResourceId != nil {
		videoID = item.Snippet.ResourceId.VideoId
	}
	if videoID == "" {
		return models.Track{}, false
	}
	return models.Track{
		ID:      videoID,
		Name:    html.UnescapeString(item.Snippet.Title),
		Artists: []string{channelArtist(item.Snippet.VideoOwnerChannelTitle)},
	}, true
}

// channelArtist strips the suffix of auto-generated artist channels ("Artist - Topic").
func channelArtist(channel string) string {
	return strings.TrimSuffix(channel, " - Topic")
}

// youtubeError maps a Google API error onto the shared error taxonomy.
// Quota exhaustion is reported as 403 and is treated as rate limiting.
func youtubeError(op string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return apiError(models.Google, op, 0, err)
	}
	status := gerr.Code
	if status == http.StatusForbidden {
		for _, item := range gerr.Errors {
			if item.Reason == "quotaExceeded" || item.Reason == "rateLimitExceeded" {
				status = http.StatusTooManyRequests
			}
		}
	}
	return apiError(models.Google, op, status, err)
}

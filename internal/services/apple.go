package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/server"
	"github.com/desertthunder/mixtape/internal/shared"
)

const (
	appleBaseURL       = "https://api.music.apple.com"
	applePageSize      = 100
	appleMaxBatchSize  = 100
	appleMaxSearchSize = 25
	appleArtworkSize   = "300"
)

// Pseudo-playlists Apple Music lists in the library but which cannot be edited.
var appleExcludedPlaylists = map[string]bool{
	"Favourite Songs": true,
	"Favorite Songs":  true,
}

// AppleConfig holds the developer credentials for Apple Music.
type AppleConfig struct {
	TeamID     string
	KeyID      string
	PrivateKey []byte

	// Storefront is the catalog searched for matches. When empty it is read from the user's account.
	Storefront string

	BaseURL string
}

type appleArtwork struct {
	URL string `json:"url"`
}

type appleDescription struct {
	Standard string `json:"standard"`
}

type applePlayParams struct {
	ID        string `json:"id"`
	CatalogID string `json:"catalogId"`
}

type appleAttributes struct {
	Name        string            `json:"name"`
	ArtistName  string            `json:"artistName"`
	Description *appleDescription `json:"description,omitempty"`
	Artwork     *appleArtwork     `json:"artwork,omitempty"`
	PlayParams  *applePlayParams  `json:"playParams,omitempty"`
	URL         string            `json:"url,omitempty"`
}

// AppleResource is a resource object of the Apple Music API.
type AppleResource struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Attributes appleAttributes `json:"attributes"`
}

// AppleDocument is a paginated response document.
type AppleDocument struct {
	Data []AppleResource `json:"data"`
	Next string          `json:"next,omitempty"`
}

type appleSearchDocument struct {
	Results struct {
		Songs *AppleDocument `json:"songs,omitempty"`
	} `json:"results"`
}

type appleResourceRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// AppleMusicService implements [Service] for Apple Music using the REST API with a developer token
// and a MusicKit user token.
type AppleMusicService struct {
	opts       Options
	minter     *DeveloperTokenMinter
	baseURL    string
	storefront string
}

// NewAppleMusicService creates an Apple Music adapter. The user token is read from opts.Session.
func NewAppleMusicService(cfg AppleConfig, opts Options) (*AppleMusicService, error) {
	minter, err := NewDeveloperTokenMinter(cfg.TeamID, cfg.KeyID, cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = appleBaseURL
	}
	opts = opts.withDefaults()
	opts.Logger = shared.WithLogger(opts.Logger, "provider", models.Apple)

	return &AppleMusicService{
		opts:       opts,
		minter:     minter,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		storefront: cfg.Storefront,
	}, nil
}

func (a *AppleMusicService) ID() models.ProviderID { return models.Apple }

func (a *AppleMusicService) Name() string { return "Apple Music" }

// DeveloperToken returns the cached developer token.
func (a *AppleMusicService) DeveloperToken() (string, error) {
	return a.minter.Token()
}

// SignIn serves the MusicKit authorization page and waits for the Music User Token.
func (a *AppleMusicService) SignIn(ctx context.Context) error {
	devToken, err := a.minter.Token()
	if err != nil {
		return err
	}
	state, err := shared.GenerateState()
	if err != nil {
		return err
	}
	if err := a.opts.Session.SaveState(ctx, models.Apple, state); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	verify := func(got string) error { return a.opts.Session.VerifyState(ctx, models.Apple, got) }
	startURL := "http://" + a.opts.ServerAddr + "/musickit?state=" + url.QueryEscape(state)

	token, err := a.opts.awaitRedirect(ctx, startURL, server.NewMusicKitHandler(devToken, verify))
	if err != nil {
		return err
	}
	return a.opts.Session.SetToken(ctx, models.Apple, token)
}

func (a *AppleMusicService) SignOut(ctx context.Context) error {
	return a.opts.Session.Clear(ctx, models.Apple)
}

func (a *AppleMusicService) IsAuthenticated(ctx context.Context) bool {
	return a.CheckSession(ctx) == nil
}

// CheckSession reads the user's storefront with the Music User Token.
func (a *AppleMusicService) CheckSession(ctx context.Context) error {
	if !a.opts.Session.Has(ctx, models.Apple) {
		return fmt.Errorf("%w: apple", shared.ErrNotAuthenticated)
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	_, err := a.userStorefront(ctx)
	return err
}

// Profile returns the user's storefront; Apple Music exposes no user profile.
func (a *AppleMusicService) Profile(ctx context.Context) (*models.Profile, error) {
	sf, err := a.userStorefront(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Profile{ID: sf.ID, Name: "Apple Music (" + sf.Attributes.Name + ")"}, nil
}

func (a *AppleMusicService) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	resources, err := a.collect(ctx, fmt.Sprintf("/v1/me/library/playlists?limit=%d", applePageSize), "list playlists")
	if err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(resources))
	for _, r := range resources {
		p := toApplePlaylist(r)
		if appleExcludedPlaylists[p.Name] {
			continue
		}
		playlists = append(playlists, p)
	}
	return playlists, nil
}

func (a *AppleMusicService) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	var doc AppleDocument
	if err := a.doRequest(ctx, http.MethodGet, "/v1/me/library/playlists/"+url.PathEscape(id), true, nil, &doc); err != nil {
		return nil, fmt.Errorf("get playlist: %w", err)
	}
	if len(doc.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	p := toApplePlaylist(doc.Data[0])
	return &p, nil
}

// ListPlaylistTracks follows next links. Apple reports an empty playlist as 404.
func (a *AppleMusicService) ListPlaylistTracks(ctx context.Context, id string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("/v1/me/library/playlists/%s/tracks?limit=%d", url.PathEscape(id), applePageSize)
	resources, err := a.collect(ctx, endpoint, "list playlist tracks")
	if errors.Is(err, shared.ErrPlaylistNotFound) {
		return []models.Track{}, nil
	}
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(resources))
	for _, r := range resources {
		tracks = append(tracks, toAppleTrack(r))
	}
	return tracks, nil
}

func (a *AppleMusicService) SearchTracks(ctx context.Context, query string) ([]models.Track, error) {
	sf, err := a.catalogStorefront(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("term", query)
	params.Set("limit", fmt.Sprint(min(a.opts.SearchLimit, appleMaxSearchSize)))
	params.Set("types", "songs")

	var doc appleSearchDocument
	endpoint := "/v1/catalog/" + url.PathEscape(sf) + "/search?" + params.Encode()
	if err := a.doRequest(ctx, http.MethodGet, endpoint, false, nil, &doc); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if doc.Results.Songs == nil {
		return nil, nil
	}

	tracks := make([]models.Track, 0, len(doc.Results.Songs.Data))
	for _, r := range doc.Results.Songs.Data {
		tracks = append(tracks, models.Track{ID: r.ID, Name: r.Attributes.Name, Artists: []string{r.Attributes.ArtistName}})
	}
	return tracks, nil
}

// CreatePlaylist creates a library playlist and waits for the settle delay, since the new playlist
// does not accept tracks immediately.
func (a *AppleMusicService) CreatePlaylist(ctx context.Context, playlist models.Playlist) (string, error) {
	body := map[string]any{
		"attributes": map[string]string{
			"name":        playlist.Name,
			"description": playlist.Description,
		},
	}

	var doc AppleDocument
	if err := a.doRequest(ctx, http.MethodPost, "/v1/me/library/playlists", true, body, &doc); err != nil {
		return "", fmt.Errorf("create playlist: %w", err)
	}
	if len(doc.Data) == 0 {
		return "", fmt.Errorf("%w: apple create playlist returned no playlist", shared.ErrAPIRequest)
	}

	a.opts.Logger.Debug("waiting for new playlist to settle", "playlist", doc.Data[0].ID, "delay", a.opts.SettleDelay)
	if err := shared.Sleep(ctx, a.opts.SettleDelay); err != nil {
		return "", err
	}
	return doc.Data[0].ID, nil
}

func (a *AppleMusicService) AddTracksToPlaylist(ctx context.Context, id string, trackIDs []string, progress func(int)) (string, error) {
	endpoint := "/v1/me/library/playlists/" + url.PathEscape(id) + "/tracks"
	size := min(a.opts.BatchSize, appleMaxBatchSize)
	err := addInBatches(ctx, trackIDs, size, a.opts.BatchDelay, progress, func(ctx context.Context, batch []string) error {
		refs := make([]appleResourceRef, len(batch))
		for i, tid := range batch {
			refs[i] = appleResourceRef{ID: tid, Type: "songs"}
		}
		if err := a.doRequest(ctx, http.MethodPost, endpoint, true, map[string]any{"data": refs}, nil); err != nil {
			return fmt.Errorf("add tracks: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// collect follows next links from endpoint, pacing pages by the page delay.
func (a *AppleMusicService) collect(ctx context.Context, endpoint, op string) ([]AppleResource, error) {
	pace := newPacer(a.opts.PageDelay)
	var all []AppleResource
	for endpoint != "" {
		if err := pace.Wait(ctx); err != nil {
			return nil, err
		}
		var doc AppleDocument
		if err := a.doRequest(ctx, http.MethodGet, endpoint, true, nil, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		all = append(all, doc.Data...)
		endpoint = doc.Next
	}
	return all, nil
}

func (a *AppleMusicService) userStorefront(ctx context.Context) (*AppleResource, error) {
	var doc AppleDocument
	if err := a.doRequest(ctx, http.MethodGet, "/v1/me/storefront", true, nil, &doc); err != nil {
		return nil, fmt.Errorf("storefront: %w", err)
	}
	if len(doc.Data) == 0 {
		return nil, fmt.Errorf("%w: apple storefront missing", shared.ErrAPIRequest)
	}
	return &doc.Data[0], nil
}

func (a *AppleMusicService) catalogStorefront(ctx context.Context) (string, error) {
	if a.storefront != "" {
		return a.storefront, nil
	}
	sf, err := a.userStorefront(ctx)
	if err != nil {
		return "", err
	}
	a.storefront = sf.ID
	return a.storefront, nil
}

// doRequest performs a request against the Apple Music API. User-scoped requests carry the Music
// User Token; a 401 on one expires the session.
func (a *AppleMusicService) doRequest(ctx context.Context, method, endpoint string, userScoped bool, body, result any) error {
	devToken, err := a.minter.Token()
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	apiURL := endpoint
	if strings.HasPrefix(endpoint, "/") {
		apiURL = a.baseURL + endpoint
	}
	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+devToken)
	req.Header.Set("Content-Type", "application/json")

	if userScoped {
		tok, err := a.opts.Session.Token(ctx, models.Apple)
		if err != nil {
			return err
		}
		req.Header.Set("Music-User-Token", tok.AccessToken)
	}

	resp, err := a.opts.HTTPClient.Do(req)
	if err != nil {
		return apiError(models.Apple, method+" "+endpoint, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 403 also covers a lapsed subscription or a restricted storefront, so only 401 ends the session.
		if userScoped && resp.StatusCode == http.StatusUnauthorized {
			a.opts.Session.Expire(ctx, models.Apple)
		}
		return apiError(models.Apple, method+" "+endpoint, resp.StatusCode, appleStatusError(resp))
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// appleStatusError describes a failed response using the first entry of Apple's error document when present.
func appleStatusError(resp *http.Response) error {
	var doc struct {
		Errors []struct {
			Code   string `json:"code"`
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&doc); err != nil || len(doc.Errors) == 0 {
		return fmt.Errorf("apple music API error: status %d", resp.StatusCode)
	}
	e := doc.Errors[0]
	msg := e.Title
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return fmt.Errorf("apple music API error: status %d (%s): %s", resp.StatusCode, e.Code, msg)
}

func toApplePlaylist(r AppleResource) models.Playlist {
	p := models.Playlist{ID: r.ID, Name: r.Attributes.Name, Link: r.Attributes.URL}
	if p.Name == "" {
		p.Name = "Untitled"
	}
	if r.Attributes.Description != nil {
		p.Description = r.Attributes.Description.Standard
	}
	if r.Attributes.Artwork != nil {
		p.Image = artworkURL(r.Attributes.Artwork.URL)
	}
	return p
}

// toAppleTrack uses the catalog id so library tracks compare equal to catalog search results.
func toAppleTrack(r AppleResource) models.Track {
	id := r.ID
	if pp := r.Attributes.PlayParams; pp != nil && pp.CatalogID != "" {
		id = pp.CatalogID
	}
	return models.Track{ID: id, Name: r.Attributes.Name, Artists: []string{r.Attributes.ArtistName}}
}

// artworkURL fills the size placeholders of an artwork URL template.
func artworkURL(template string) string {
	return strings.NewReplacer("{w}", appleArtworkSize, "{h}", appleArtworkSize).Replace(template)
}

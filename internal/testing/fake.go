package testing

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

// FakeService is an in-memory [services.Service] with a searchable catalog, call counters and
// injectable failures.
type FakeService struct {
	Provider      models.ProviderID
	DisplayName   string
	Authenticated bool
	BatchSize     int // Tracks per AddTracksToPlaylist batch; defaults to 100
	SearchLimit   int // Candidates per search; defaults to 5

	mu        sync.Mutex
	playlists []models.Playlist
	tracks    map[string][]models.Track
	catalog   []models.Track
	calls     map[string]int
	failures  map[string][]error
	batches   []int
	nextID    int
}

// NewFakeService returns a signed-in fake for provider p.
func NewFakeService(p models.ProviderID, name string) *FakeService {
	return &FakeService{
		Provider:      p,
		DisplayName:   name,
		Authenticated: true,
		tracks:        make(map[string][]models.Track),
		calls:         make(map[string]int),
		failures:      make(map[string][]error),
	}
}

// AddPlaylist stores pl with tracks and returns the fake for chaining.
func (f *FakeService) AddPlaylist(pl models.Playlist, tracks ...models.Track) *FakeService {
	f.mu.Lock()
	defer f.mu.Unlock()
	pl.TrackCount = len(tracks)
	f.playlists = append(f.playlists, pl)
	f.tracks[pl.ID] = append([]models.Track(nil), tracks...)
	return f
}

// AddCatalog makes tracks searchable.
func (f *FakeService) AddCatalog(tracks ...models.Track) *FakeService {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalog = append(f.catalog, tracks...)
	return f
}

// Fail makes the next calls of method return errs, one per call. A nil entry lets that call succeed.
// For AddTracksToPlaylist the entries apply per batch.
func (f *FakeService) Fail(method string, errs ...error) *FakeService {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], errs...)
	return f
}

// Calls returns how many times method was invoked.
func (f *FakeService) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Batches returns the sizes of every AddTracksToPlaylist batch.
func (f *FakeService) Batches() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.batches...)
}

// Tracks returns a copy of the tracks stored in playlist id.
func (f *FakeService) Tracks(id string) []models.Track {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Track(nil), f.tracks[id]...)
}

// Playlists returns a copy of the stored playlists.
func (f *FakeService) Playlists() []models.Playlist {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Playlist(nil), f.playlists...)
}

// enter counts a call and pops an injected failure. The caller must hold f.mu.
func (f *FakeService) enter(method string) error {
	f.calls[method]++
	if errs := f.failures[method]; len(errs) > 0 {
		f.failures[method] = errs[1:]
		return errs[0]
	}
	return nil
}

func (f *FakeService) ID() models.ProviderID { return f.Provider }
func (f *FakeService) Name() string          { return f.DisplayName }

func (f *FakeService) IsAuthenticated(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enter("IsAuthenticated") == nil && f.Authenticated
}

func (f *FakeService) SignIn(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SignIn"); err != nil {
		return err
	}
	f.Authenticated = true
	return nil
}

func (f *FakeService) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SignOut"); err != nil {
		return err
	}
	f.Authenticated = false
	return nil
}

func (f *FakeService) Profile(ctx context.Context) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Profile"); err != nil {
		return nil, err
	}
	if !f.Authenticated {
		return nil, shared.ErrNotAuthenticated
	}
	return &models.Profile{ID: string(f.Provider) + "-user", Name: f.DisplayName + " User"}, nil
}

func (f *FakeService) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListPlaylists"); err != nil {
		return nil, err
	}
	out := make([]models.Playlist, 0, len(f.playlists))
	for _, pl := range f.playlists {
		pl.TrackCount = len(f.tracks[pl.ID])
		out = append(out, pl)
	}
	return out, nil
}

func (f *FakeService) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetPlaylist"); err != nil {
		return nil, err
	}
	for _, pl := range f.playlists {
		if pl.ID == id {
			pl.TrackCount = len(f.tracks[pl.ID])
			return &pl, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
}

// ListPlaylistTracks returns the stored tracks; an unknown playlist is empty.
func (f *FakeService) ListPlaylistTracks(ctx context.Context, id string) ([]models.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListPlaylistTracks"); err != nil {
		return nil, err
	}
	return append([]models.Track{}, f.tracks[id]...), nil
}

// SearchTracks returns catalog tracks sharing at least one word with query, most shared words
// first, the way a provider's relevance ranking surfaces near misses alongside the real hit.
func (f *FakeService) SearchTracks(ctx context.Context, query string) ([]models.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SearchTracks"); err != nil {
		return nil, err
	}
	limit := f.SearchLimit
	if limit <= 0 {
		limit = 5
	}

	terms := words(query)
	type hit struct {
		track  models.Track
		shared int
	}
	var hits []hit
	for _, t := range f.catalog {
		n := 0
		for _, w := range words(t.Name + " " + strings.Join(t.Artists, " ")) {
			if terms[w] {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, hit{track: t, shared: n})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return b.shared - a.shared })

	out := make([]models.Track, 0, min(limit, len(hits)))
	for _, h := range hits[:min(limit, len(hits))] {
		out = append(out, h.track)
	}
	return out, nil
}

// words returns the distinct lowercase words of s.
func words(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[w] = true
	}
	return out
}

func (f *FakeService) CreatePlaylist(ctx context.Context, pl models.Playlist) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreatePlaylist"); err != nil {
		return "", err
	}
	f.nextID++
	pl.ID = fmt.Sprintf("%s-new-%d", f.Provider, f.nextID)
	f.playlists = append(f.playlists, pl)
	f.tracks[pl.ID] = nil
	return pl.ID, nil
}

// AddTracksToPlaylist appends catalog tracks by id in batches. An injected failure fails the
// batch it pops on, keeping earlier batches.
func (f *FakeService) AddTracksToPlaylist(ctx context.Context, id string, trackIDs []string, progress func(int)) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["AddTracksToPlaylist"]++

	size := f.BatchSize
	if size <= 0 {
		size = 100
	}

	added := 0
	for start := 0; start < len(trackIDs); start += size {
		if err := ctx.Err(); err != nil {
			return id, err
		}
		if errs := f.failures["AddTracksToPlaylist"]; len(errs) > 0 {
			f.failures["AddTracksToPlaylist"] = errs[1:]
			if errs[0] != nil {
				return id, errs[0]
			}
		}

		batch := trackIDs[start:min(start+size, len(trackIDs))]
		for _, tid := range batch {
			f.tracks[id] = append(f.tracks[id], f.lookup(tid))
		}
		f.batches = append(f.batches, len(batch))
		added += len(batch)
		if progress != nil {
			progress(added)
		}
	}
	return id, nil
}

func (f *FakeService) lookup(id string) models.Track {
	for _, t := range f.catalog {
		if t.ID == id {
			return t
		}
	}
	return models.Track{ID: id}
}

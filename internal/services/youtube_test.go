package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"google.golang.org/api/option"
)

// fakeYouTube serves the Data API and identity endpoints used by [YouTubeService].
type fakeYouTube struct {
	mu          sync.Mutex
	tracks      int
	pageTokens  []string
	inserted    []string
	created     []string
	searchQuery url.Values
	quota       bool
}

func (f *fakeYouTube) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/oauth2/v3/tokeninfo":
		if r.URL.Query().Get("access_token") != "google-token" {
			writeTestJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_token"})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]any{"aud": "client", "expires_in": "3000"})
	case r.URL.Path == "/oauth2/v3/userinfo":
		writeTestJSON(w, http.StatusOK, map[string]any{"sub": "g1", "name": "Tube User", "email": "t@example.com"})
	case f.quota:
		writeTestJSON(w, http.StatusForbidden, map[string]any{"error": map[string]any{
			"code":    403,
			"message": "quota exceeded",
			"errors":  []map[string]any{{"reason": "quotaExceeded", "message": "quota exceeded"}},
		}})
	case r.URL.Path == "/youtube/v3/playlistItems" && r.Method == http.MethodGet:
		if r.URL.Query().Get("playlistId") == "missing" {
			writeTestJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"code": 404, "message": "playlistNotFound"}})
			return
		}
		token := r.URL.Query().Get("pageToken")
		f.pageTokens = append(f.pageTokens, token)
		start, _ := strconv.Atoi(strings.TrimPrefix(token, "p"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))

		var items []map[string]any
		for i := start; i < min(start+limit, f.tracks); i++ {
			items = append(items, map[string]any{
				"snippet":        map[string]any{"title": fmt.Sprintf("Song %d &amp; Co", i), "videoOwnerChannelTitle": "Artist - Topic"},
				"contentDetails": map[string]any{"videoId": fmt.Sprintf("v%03d", i)},
			})
		}
		res := map[string]any{"items": items}
		if start+limit < f.tracks {
			res["nextPageToken"] = fmt.Sprintf("p%d", start+limit)
		}
		writeTestJSON(w, http.StatusOK, res)
	case r.URL.Path == "/youtube/v3/playlistItems" && r.Method == http.MethodPost:
		var body struct {
			Snippet struct {
				ResourceID struct {
					VideoID string `json:"videoId"`
				} `json:"resourceId"`
			} `json:"snippet"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.inserted = append(f.inserted, body.Snippet.ResourceID.VideoID)
		writeTestJSON(w, http.StatusOK, map[string]any{"id": "item"})
	case r.URL.Path == "/youtube/v3/playlists" && r.Method == http.MethodPost:
		var body struct {
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
			Status struct {
				PrivacyStatus string `json:"privacyStatus"`
			} `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.created = append(f.created, body.Snippet.Title+"|"+body.Status.PrivacyStatus)
		writeTestJSON(w, http.StatusOK, map[string]any{"id": "yt-new"})
	case r.URL.Path == "/youtube/v3/playlists":
		writeTestJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{
			{"id": "y1", "snippet": map[string]any{"title": "Road Trip"}, "contentDetails": map[string]any{"itemCount": 3}},
		}})
	case r.URL.Path == "/youtube/v3/search":
		f.searchQuery = r.URL.Query()
		writeTestJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{
			{"id": map[string]any{"kind": "youtube#video", "videoId": "hj1"}, "snippet": map[string]any{"title": "Hey Jude (Remastered 2015)", "channelTitle": "The Beatles - Topic"}},
		}})
	default:
		http.NotFound(w, r)
	}
}

func newTestYouTube(t *testing.T, fake *fakeYouTube, providers ...models.ProviderID) *YouTubeService {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := NewYouTubeService(context.Background(), GoogleConfig{
		ClientID:    "client",
		IdentityURL: srv.URL,
		APIOptions:  []option.ClientOption{option.WithEndpoint(srv.URL + "/")},
	}, testOptions(t, providers...))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func TestYouTubeService(t *testing.T) {
	ctx := context.Background()

	t.Run("AuthURL Requests Implicit Grant", func(t *testing.T) {
		svc := newTestYouTube(t, &fakeYouTube{})
		authURL := svc.AuthURL("st")
		u, err := url.Parse(authURL)
		if err != nil {
			t.Fatalf("invalid URL: %v", err)
		}
		q := u.Query()
		if q.Get("response_type") != "token" {
			t.Errorf("expected response_type=token, got %q", q.Get("response_type"))
		}
		if q.Get("state") != "st" {
			t.Errorf("expected state st, got %q", q.Get("state"))
		}
		if !strings.Contains(q.Get("scope"), "youtube.force-ssl") {
			t.Errorf("expected youtube scope, got %q", q.Get("scope"))
		}
	})

	t.Run("Pagination Completeness", func(t *testing.T) {
		fake := &fakeYouTube{tracks: 120}
		svc := newTestYouTube(t, fake, models.Google)

		tracks, err := svc.ListPlaylistTracks(ctx, "y1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 120 {
			t.Fatalf("expected 120 tracks, got %d", len(tracks))
		}
		if fmt.Sprint(fake.pageTokens) != "[ p50 p100]" {
			t.Errorf("expected 3 page requests following tokens, got %q", fake.pageTokens)
		}
		for i, tr := range tracks {
			if want := fmt.Sprintf("v%03d", i); tr.ID != want {
				t.Errorf("track %d: expected %s, got %s", i, want, tr.ID)
			}
		}
		if tracks[0].Name != "Song 0 & Co" {
			t.Errorf("expected unescaped title, got %q", tracks[0].Name)
		}
		if tracks[0].PrimaryArtist() != "Artist" {
			t.Errorf("expected topic suffix stripped, got %q", tracks[0].PrimaryArtist())
		}
	})

	t.Run("Missing Playlist Is Empty", func(t *testing.T) {
		svc := newTestYouTube(t, &fakeYouTube{}, models.Google)
		tracks, err := svc.ListPlaylistTracks(ctx, "missing")
		if err != nil || len(tracks) != 0 {
			t.Errorf("expected empty result, got %d tracks (%v)", len(tracks), err)
		}
	})

	t.Run("Quota Is Rate Limiting", func(t *testing.T) {
		svc := newTestYouTube(t, &fakeYouTube{quota: true}, models.Google)
		_, err := svc.ListPlaylists(ctx)
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("Search Music Videos", func(t *testing.T) {
		fake := &fakeYouTube{}
		svc := newTestYouTube(t, fake, models.Google)

		tracks, err := svc.SearchTracks(ctx, "Hey Jude The Beatles")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 || tracks[0].ID != "hj1" || tracks[0].PrimaryArtist() != "The Beatles" {
			t.Errorf("unexpected results %+v", tracks)
		}
		if fake.searchQuery.Get("type") != "video" || fake.searchQuery.Get("videoCategoryId") != "10" {
			t.Errorf("expected music video search, got %v", fake.searchQuery)
		}
		if fake.searchQuery.Get("maxResults") != "5" {
			t.Errorf("expected maxResults 5, got %q", fake.searchQuery.Get("maxResults"))
		}
	})

	t.Run("Insert One Per Request", func(t *testing.T) {
		fake := &fakeYouTube{}
		svc := newTestYouTube(t, fake, models.Google)

		var progress []int
		_, err := svc.AddTracksToPlaylist(ctx, "y1", []string{"a", "b", "c"}, func(n int) { progress = append(progress, n) })
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if fmt.Sprint(fake.inserted) != "[a b c]" {
			t.Errorf("expected inserts [a b c], got %v", fake.inserted)
		}
		if fmt.Sprint(progress) != "[1 2 3]" {
			t.Errorf("expected progress [1 2 3], got %v", progress)
		}
	})

	t.Run("Create Private Playlist", func(t *testing.T) {
		fake := &fakeYouTube{}
		svc := newTestYouTube(t, fake, models.Google)

		id, err := svc.CreatePlaylist(ctx, models.Playlist{Name: "Road Trip"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "yt-new" {
			t.Errorf("expected yt-new, got %s", id)
		}
		if fmt.Sprint(fake.created) != "[Road Trip|private]" {
			t.Errorf("expected private Road Trip, got %v", fake.created)
		}
	})

	t.Run("List Playlists", func(t *testing.T) {
		svc := newTestYouTube(t, &fakeYouTube{}, models.Google)
		playlists, err := svc.ListPlaylists(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 1 || playlists[0].Name != "Road Trip" || playlists[0].TrackCount != 3 {
			t.Errorf("unexpected playlists %+v", playlists)
		}
	})

	t.Run("Health And Profile", func(t *testing.T) {
		svc := newTestYouTube(t, &fakeYouTube{}, models.Google)
		if !svc.IsAuthenticated(ctx) {
			t.Error("expected authenticated")
		}
		p, err := svc.Profile(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.Email != "t@example.com" {
			t.Errorf("unexpected profile %+v", p)
		}

		signedOut := newTestYouTube(t, &fakeYouTube{})
		if signedOut.IsAuthenticated(ctx) {
			t.Error("expected unauthenticated without a token")
		}
	})
}

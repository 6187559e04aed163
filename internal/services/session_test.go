package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"golang.org/x/oauth2"
)

func nextEvent(t *testing.T, ch <-chan SessionEvent) SessionEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("expected a session event")
		return SessionEvent{}
	}
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(io.Discard)

	t.Run("Token Persisted", func(t *testing.T) {
		store := newMemStore()
		s := NewSession(store, logger)
		tok := &oauth2.Token{AccessToken: "abc", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
		if err := s.SetToken(ctx, models.Spotify, tok); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if _, err := store.Get(ctx, "spotify:token"); err != nil {
			t.Fatalf("expected token under spotify:token, got %v", err)
		}

		reloaded := NewSession(store, logger)
		got, err := reloaded.Token(ctx, models.Spotify)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.AccessToken != "abc" || got.RefreshToken != "r" {
			t.Errorf("unexpected token %+v", got)
		}
	})

	t.Run("Missing Token", func(t *testing.T) {
		s := NewSession(newMemStore(), logger)
		_, err := s.Token(ctx, models.Apple)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if s.Has(ctx, models.Apple) {
			t.Error("expected no apple session")
		}
	})

	t.Run("Empty Token Rejected", func(t *testing.T) {
		s := NewSession(newMemStore(), logger)
		if err := s.SetToken(ctx, models.Google, &oauth2.Token{}); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("Events", func(t *testing.T) {
		s := NewSession(newMemStore(), logger)
		events, unsubscribe := s.Subscribe(4)
		defer unsubscribe()

		_ = s.SetToken(ctx, models.Google, &oauth2.Token{AccessToken: "g"})
		if e := nextEvent(t, events); e.Provider != models.Google || e.Kind != SignedIn {
			t.Errorf("expected google signed_in, got %+v", e)
		}

		_ = s.Clear(ctx, models.Google)
		if e := nextEvent(t, events); e.Kind != SignedOut {
			t.Errorf("expected signed_out, got %s", e.Kind)
		}
		if s.Has(ctx, models.Google) {
			t.Error("expected google session cleared")
		}
	})

	t.Run("Unsubscribe Closes Channel", func(t *testing.T) {
		s := NewSession(newMemStore(), logger)
		events, unsubscribe := s.Subscribe(1)
		unsubscribe()
		unsubscribe()

		if _, ok := <-events; ok {
			t.Error("expected closed channel")
		}
		if err := s.SetToken(ctx, models.Google, &oauth2.Token{AccessToken: "g"}); err != nil {
			t.Errorf("publishing after unsubscribe should not fail, got %v", err)
		}
	})

	t.Run("State Consumed", func(t *testing.T) {
		s := NewSession(newMemStore(), logger)
		if err := s.SaveState(ctx, models.Spotify, "xyz"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := s.VerifyState(ctx, models.Spotify, "xyz"); err != nil {
			t.Errorf("expected state to verify, got %v", err)
		}
		if err := s.VerifyState(ctx, models.Spotify, "xyz"); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected replayed state to fail, got %v", err)
		}
	})

	t.Run("State Mismatch", func(t *testing.T) {
		s := NewSession(newMemStore(), logger)
		_ = s.SaveState(ctx, models.Google, "xyz")
		if err := s.VerifyState(ctx, models.Google, "abc"); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	})
}

func TestSessionTokenSource(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(io.Discard)

	t.Run("Valid Token", func(t *testing.T) {
		s := NewSession(newMemStore(), logger)
		_ = s.SetToken(ctx, models.Spotify, &oauth2.Token{AccessToken: "abc", Expiry: time.Now().Add(time.Hour)})

		tok, err := s.TokenSource(models.Spotify, nil).Token()
		if err != nil || tok.AccessToken != "abc" {
			t.Errorf("expected abc, got %v (%v)", tok, err)
		}
	})

	t.Run("Expired Without Refresh", func(t *testing.T) {
		s := NewSession(newMemStore(), logger)
		_ = s.SetToken(ctx, models.Google, &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Minute)})
		events, unsubscribe := s.Subscribe(1)
		defer unsubscribe()

		_, err := s.TokenSource(models.Google, nil).Token()
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
		if e := nextEvent(t, events); e.Kind != Expired || e.Provider != models.Google {
			t.Errorf("expected google expired event, got %+v", e)
		}
		if s.Has(ctx, models.Google) {
			t.Error("expected expired token to be dropped")
		}
	})

	t.Run("Refreshed And Written Back", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "r1" {
				http.Error(w, "bad grant", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"new","token_type":"Bearer","refresh_token":"r2","expires_in":3600}`))
		}))
		defer srv.Close()

		store := newMemStore()
		s := NewSession(store, logger)
		_ = s.SetToken(ctx, models.Spotify, &oauth2.Token{AccessToken: "old", RefreshToken: "r1", Expiry: time.Now().Add(-time.Minute)})

		conf := &oauth2.Config{ClientID: "id", Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams}}
		tok, err := s.TokenSource(models.Spotify, conf).Token()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tok.AccessToken != "new" {
			t.Errorf("expected refreshed token, got %q", tok.AccessToken)
		}

		stored, err := NewSession(store, logger).Token(ctx, models.Spotify)
		if err != nil || stored.RefreshToken != "r2" {
			t.Errorf("expected refreshed token persisted, got %+v (%v)", stored, err)
		}
	})

	t.Run("Refresh Failure", func(t *testing.T) {
		tests := []struct {
			name    string
			status  int
			revoked bool
		}{
			{"Revoked Grant", http.StatusBadRequest, true},
			{"Token Endpoint Down", http.StatusServiceUnavailable, false},
			{"Token Endpoint Throttled", http.StatusTooManyRequests, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				}))
				defer srv.Close()

				s := NewSession(newMemStore(), logger)
				_ = s.SetToken(ctx, models.Spotify, &oauth2.Token{AccessToken: "old", RefreshToken: "r1", Expiry: time.Now().Add(-time.Minute)})
				conf := &oauth2.Config{ClientID: "id", Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams}}

				_, err := s.TokenSource(models.Spotify, conf).Token()
				if !errors.Is(err, shared.ErrRefreshFailed) {
					t.Fatalf("expected ErrRefreshFailed, got %v", err)
				}
				if got := IsAuthError(err); got != tt.revoked {
					t.Errorf("IsAuthError(%v) = %v, want %v", err, got, tt.revoked)
				}
				if !s.Has(ctx, models.Spotify) {
					t.Error("a failed refresh should leave the stored token for the health monitor to judge")
				}
			})
		}
	})
}

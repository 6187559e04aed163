package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"golang.org/x/oauth2"
)

// Store is the persisted key/value storage backing the session.
//
// Get returns [shared.ErrKeyNotFound] for missing keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// SessionEventKind describes how a provider session changed.
type SessionEventKind int

const (
	SignedIn SessionEventKind = iota
	SignedOut
	Expired
)

func (k SessionEventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	case Expired:
		return "expired"
	default:
		return ""
	}
}

// SessionEvent is published whenever a provider token is stored, cleared or found expired.
type SessionEvent struct {
	Provider models.ProviderID
	Kind     SessionEventKind
	At       time.Time
}

// Session holds the process-wide provider tokens.
//
// Tokens are written only by sign-in, sign-out, refresh and expiry detection. Adapters read them
// through [Session.TokenSource].
type Session struct {
	store  Store
	logger *log.Logger

	mu     sync.RWMutex
	tokens map[models.ProviderID]*oauth2.Token
	subs   map[int]chan SessionEvent
	nextID int
}

// NewSession creates a Session persisted in store.
func NewSession(store Store, logger *log.Logger) *Session {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Session{
		store:  store,
		logger: logger,
		tokens: make(map[models.ProviderID]*oauth2.Token),
		subs:   make(map[int]chan SessionEvent),
	}
}

func tokenKey(p models.ProviderID) string { return string(p) + ":token" }
func stateKey(p models.ProviderID) string { return string(p) + ":state" }

// Token returns the stored token for p, loading it from the store on first use.
func (s *Session) Token(ctx context.Context, p models.ProviderID) (*oauth2.Token, error) {
	s.mu.RLock()
	tok, ok := s.tokens[p]
	s.mu.RUnlock()
	if ok {
		return tok, nil
	}

	raw, err := s.store.Get(ctx, tokenKey(p))
	if errors.Is(err, shared.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s token: %w", p, err)
	}

	tok = new(oauth2.Token)
	if err := json.Unmarshal([]byte(raw), tok); err != nil {
		return nil, fmt.Errorf("failed to decode %s token: %w", p, err)
	}

	s.mu.Lock()
	s.tokens[p] = tok
	s.mu.Unlock()
	return tok, nil
}

// Has reports whether a token is stored for p, valid or not.
func (s *Session) Has(ctx context.Context, p models.ProviderID) bool {
	_, err := s.Token(ctx, p)
	return err == nil
}

// SetToken stores tok for p and publishes [SignedIn].
func (s *Session) SetToken(ctx context.Context, p models.ProviderID, tok *oauth2.Token) error {
	if err := s.put(ctx, p, tok); err != nil {
		return err
	}
	s.publish(p, SignedIn)
	return nil
}

func (s *Session) put(ctx context.Context, p models.ProviderID, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("%w: empty %s token", shared.ErrAuthFailed, p)
	}

	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode %s token: %w", p, err)
	}
	if err := s.store.Set(ctx, tokenKey(p), string(raw)); err != nil {
		return fmt.Errorf("failed to persist %s token: %w", p, err)
	}

	s.mu.Lock()
	s.tokens[p] = tok
	s.mu.Unlock()
	return nil
}

// Clear removes the token for p and publishes [SignedOut].
func (s *Session) Clear(ctx context.Context, p models.ProviderID) error {
	if err := s.drop(ctx, p); err != nil {
		return err
	}
	s.publish(p, SignedOut)
	return nil
}

// Expire removes the token for p and publishes [Expired].
func (s *Session) Expire(ctx context.Context, p models.ProviderID) {
	if err := s.drop(ctx, p); err != nil {
		s.logger.Warn("failed to drop expired token", "provider", p, "error", err)
	}
	s.publish(p, Expired)
}

func (s *Session) drop(ctx context.Context, p models.ProviderID) error {
	s.mu.Lock()
	delete(s.tokens, p)
	s.mu.Unlock()

	if err := s.store.Delete(ctx, tokenKey(p)); err != nil && !errors.Is(err, shared.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete %s token: %w", p, err)
	}
	return nil
}

// SaveState persists the OAuth state sent with a sign-in request for p.
func (s *Session) SaveState(ctx context.Context, p models.ProviderID, state string) error {
	return s.store.Set(ctx, stateKey(p), state)
}

// VerifyState compares state with the value saved for p and consumes it.
func (s *Session) VerifyState(ctx context.Context, p models.ProviderID, state string) error {
	want, err := s.store.Get(ctx, stateKey(p))
	if err != nil {
		return fmt.Errorf("%w: no pending sign-in for %s", shared.ErrInvalidState, p)
	}
	if err := s.store.Delete(ctx, stateKey(p)); err != nil {
		s.logger.Warn("failed to delete consumed state", "provider", p, "error", err)
	}
	if state == "" || state != want {
		return fmt.Errorf("%w: %s", shared.ErrInvalidState, p)
	}
	return nil
}

// Subscribe returns a channel of session events and a function that cancels the subscription.
//
// Delivery is non-blocking: events are dropped for subscribers whose buffer is full.
func (s *Session) Subscribe(buffer int) (<-chan SessionEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan SessionEvent, buffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Session) publish(p models.ProviderID, kind SessionEventKind) {
	e := SessionEvent{Provider: p, Kind: kind, At: time.Now()}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
			s.logger.Warn("session subscriber full, dropping event", "provider", p, "kind", kind)
		}
	}
}

// TokenSource returns an [oauth2.TokenSource] reading p's token from the session.
//
// When conf is non-nil, expired tokens with a refresh token are refreshed and written back.
// Otherwise an expired token is dropped, [Expired] is published and [shared.ErrTokenExpired] returned.
func (s *Session) TokenSource(p models.ProviderID, conf *oauth2.Config) oauth2.TokenSource {
	return &sessionTokenSource{session: s, provider: p, conf: conf}
}

type sessionTokenSource struct {
	session  *Session
	provider models.ProviderID
	conf     *oauth2.Config
	mu       sync.Mutex
}

func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ctx := context.Background()
	tok, err := ts.session.Token(ctx, ts.provider)
	if err != nil {
		return nil, err
	}
	if tok.Valid() {
		return tok, nil
	}

	if ts.conf == nil || tok.RefreshToken == "" {
		ts.session.Expire(ctx, ts.provider)
		return nil, fmt.Errorf("%w: %s", shared.ErrTokenExpired, ts.provider)
	}

	fresh, err := ts.conf.TokenSource(ctx, tok).Token()
	if err != nil {
		// The token endpoint answering 4xx means the refresh token itself was revoked.
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode >= 400 && re.Response.StatusCode < 500 && re.Response.StatusCode != http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %w: %s: %v", shared.ErrRefreshFailed, shared.ErrTokenExpired, ts.provider, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrRefreshFailed, ts.provider, err)
	}
	if err := ts.session.put(ctx, ts.provider, fresh); err != nil {
		ts.session.logger.Warn("failed to persist refreshed token", "provider", ts.provider, "error", err)
	}
	return fresh, nil
}

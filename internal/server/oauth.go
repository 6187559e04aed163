package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/desertthunder/mixtape/internal/shared"
	"golang.org/x/oauth2"
)

// OAuthResult contains the result of a browser sign-in round trip.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

// Err returns the failure reported by the callback, if any.
func (o OAuthResult) Err() error {
	return o.err
}

// CallbackHandler is a [Handler] that completes exactly one sign-in and reports it on Result.
type CallbackHandler interface {
	Handler
	Result() <-chan OAuthResult
}

// ExchangeFunc trades an authorization code for a token.
type ExchangeFunc func(ctx context.Context, code string) (*oauth2.Token, error)

// VerifyFunc checks the state parameter returned by the provider.
type VerifyFunc func(state string) error

// oneShot delivers a single [OAuthResult] and rejects later callbacks.
type oneShot struct {
	resultChan  chan OAuthResult
	once        sync.Once
	mu          sync.Mutex
	callbackHit bool
}

// claim marks the callback as processed. It reports false if a callback was already handled.
func (o *oneShot) claim() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.callbackHit {
		return false
	}
	o.callbackHit = true
	return true
}

// Send sends the result through the channel (only once).
func (o *oneShot) Send(result OAuthResult) {
	o.once.Do(func() {
		o.resultChan <- result
		close(o.resultChan)
	})
}

// Result returns the result channel. It receives exactly one result and is then closed.
func (o *oneShot) Result() <-chan OAuthResult {
	return o.resultChan
}

func (o *oneShot) fail(w http.ResponseWriter, status int, msg string, err error) {
	o.Send(OAuthResult{err: err})
	http.Error(w, msg, status)
}

// CodeHandler handles authorization code callbacks (with or without PKCE).
type CodeHandler struct {
	oneShot
	exchange ExchangeFunc
	verify   VerifyFunc
}

// NewCodeHandler creates a handler that verifies state and exchanges the returned code.
func NewCodeHandler(exchange ExchangeFunc, verify VerifyFunc) *CodeHandler {
	return &CodeHandler{oneShot: oneShot{resultChan: make(chan OAuthResult, 1)}, exchange: exchange, verify: verify}
}

// Routes returns the HTTP routes this handler serves.
func (h *CodeHandler) Routes() []string {
	return []string{"/callback"}
}

func (h *CodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.claim() {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	if err := h.verify(q.Get("state")); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid state parameter", err)
		return
	}

	code := q.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, q.Get("error"), q.Get("error_description"))
		h.fail(w, http.StatusBadRequest, "Authorization failed", err)
		return
	}

	token, err := h.exchange(r.Context(), code)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, "Token exchange failed", fmt.Errorf("%w: token exchange: %v", shared.ErrAuthFailed, err))
		return
	}

	h.Send(OAuthResult{Token: token})
	renderPage(w, resultPage, pageData{Title: "Authorization Successful", Message: "You can close this window and return to the terminal."})
}

// FragmentHandler handles implicit grant callbacks, where the token arrives in the URL fragment.
//
// A request without parameters is answered with a relay page that replays the fragment as a query
// string against the same route.
type FragmentHandler struct {
	oneShot
	verify VerifyFunc
}

// NewFragmentHandler creates an implicit grant callback handler.
func NewFragmentHandler(verify VerifyFunc) *FragmentHandler {
	return &FragmentHandler{oneShot: oneShot{resultChan: make(chan OAuthResult, 1)}, verify: verify}
}

// Routes returns the HTTP routes this handler serves.
func (h *FragmentHandler) Routes() []string {
	return []string{"/callback"}
}

func (h *FragmentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("access_token") && !q.Has("error") && !q.Has("state") {
		renderPage(w, relayPage, pageData{Title: "Completing sign-in"})
		return
	}

	if !h.claim() {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	if err := h.verify(q.Get("state")); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid state parameter", err)
		return
	}

	access := q.Get("access_token")
	if access == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, q.Get("error"), q.Get("error_description"))
		h.fail(w, http.StatusBadRequest, "Authorization failed", err)
		return
	}

	token := &oauth2.Token{AccessToken: access, TokenType: q.Get("token_type")}
	if secs, err := strconv.Atoi(q.Get("expires_in")); err == nil && secs > 0 {
		token.Expiry = time.Now().Add(time.Duration(secs) * time.Second)
	}

	h.Send(OAuthResult{Token: token})
	renderPage(w, resultPage, pageData{Title: "Authorization Successful", Message: "You can close this window and return to the terminal."})
}

// MusicKitHandler serves a MusicKit JS page that authorizes the user and posts the resulting
// Music User Token back to the callback route.
type MusicKitHandler struct {
	oneShot
	developerToken string
	verify         VerifyFunc
}

// NewMusicKitHandler creates a MusicKit sign-in handler using the given developer token.
func NewMusicKitHandler(developerToken string, verify VerifyFunc) *MusicKitHandler {
	return &MusicKitHandler{oneShot: oneShot{resultChan: make(chan OAuthResult, 1)}, developerToken: developerToken, verify: verify}
}

// Routes returns the HTTP routes this handler serves.
func (h *MusicKitHandler) Routes() []string {
	return []string{"/musickit", "/callback"}
}

func (h *MusicKitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/musickit" {
		renderPage(w, musicKitPage, pageData{
			Title:          "Sign in to Apple Music",
			DeveloperToken: h.developerToken,
			State:          r.URL.Query().Get("state"),
		})
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.claim() {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.fail(w, http.StatusBadRequest, "Malformed callback", fmt.Errorf("%w: %v", shared.ErrAuthFailed, err))
		return
	}
	if err := h.verify(r.PostForm.Get("state")); err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid state parameter", err)
		return
	}

	userToken := r.PostForm.Get("music_user_token")
	if userToken == "" {
		err := fmt.Errorf("%w: %s", shared.ErrAuthFailed, r.PostForm.Get("error"))
		h.fail(w, http.StatusBadRequest, "Authorization failed", err)
		return
	}

	h.Send(OAuthResult{Token: &oauth2.Token{AccessToken: userToken, TokenType: "Music-User-Token"}})
	w.WriteHeader(http.StatusNoContent)
}

type pageData struct {
	Title          string
	Message        string
	DeveloperToken string
	State          string
}

func renderPage(w http.ResponseWriter, t *template.Template, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = t.Execute(w, data)
}

const pageHead = `<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #7D56F4; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>`

var resultPage = template.Must(template.New("result").Parse(pageHead + `
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>`))

var relayPage = template.Must(template.New("relay").Parse(pageHead + `
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p id="status">Returning to mixtape...</p>
    </div>
    <script>
        const fragment = window.location.hash.substring(1);
        if (fragment) {
            window.location.replace('/callback?' + fragment);
        } else {
            document.getElementById('status').textContent = 'No authorization response was found.';
        }
    </script>
</body>
</html>`))

var musicKitPage = template.Must(template.New("musickit").Parse(pageHead + `
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p id="status">Waiting for Apple Music...</p>
    </div>
    <script src="https://js-cdn.music.apple.com/musickit/v3/musickit.js" data-web-components async></script>
    <script>
        const report = async (fields) => {
            await fetch('/callback', { method: 'POST', body: new URLSearchParams(fields) });
        };
        document.addEventListener('musickitloaded', async () => {
            const status = document.getElementById('status');
            try {
                await MusicKit.configure({ developerToken: {{.DeveloperToken}}, app: { name: 'mixtape', build: '1.0.0' } });
                const token = await MusicKit.getInstance().authorize();
                await report({ music_user_token: token, state: {{.State}} });
                status.textContent = 'You can close this window and return to the terminal.';
            } catch (err) {
                await report({ error: String(err), state: {{.State}} });
                status.textContent = 'Authorization failed.';
            }
        });
    </script>
</body>
</html>`))

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long in-flight callback responses may take once a result arrives.
const shutdownTimeout = 5 * time.Second

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that declares the path patterns it serves.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// ReadyFunc is called once the listener is bound, with the address it is bound to.
type ReadyFunc func(addr string) error

// RequestLogger logs every request at debug level.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("callback request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

// Serve runs a temporary HTTP server on addr for h and blocks until h reports a result or ctx is done.
//
// The server is shut down before Serve returns.
func Serve(ctx context.Context, addr string, h CallbackHandler, logger *log.Logger, ready ReadyFunc) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	router := NewBasicRouter()
	router.Use(RequestLogger(logger))
	router.Handler(h)
	logger.Debug("sign-in routes", "routes", router.Routes())
	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Debug("redirect server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("redirect server: %w", err)
		}
		return nil
	})

	var token *oauth2.Token
	g.Go(func() error {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn("redirect server shutdown", "error", err)
			}
		}()

		if ready != nil {
			if err := ready(ln.Addr().String()); err != nil {
				return err
			}
		}

		select {
		case <-gctx.Done():
			return gctx.Err()
		case res := <-h.Result():
			if err := res.Err(); err != nil {
				return err
			}
			token = res.Token
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return token, nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

// HealthMonitor periodically checks every provider holding a token and expires sessions the
// provider rejects. Transient failures are logged and leave the session in place.
type HealthMonitor struct {
	registry *Registry
	session  *Session
	interval time.Duration
	logger   *log.Logger
}

// NewHealthMonitor creates a monitor polling at interval (5s when interval is not positive).
func NewHealthMonitor(registry *Registry, session *Session, interval time.Duration, logger *log.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &HealthMonitor{registry: registry, session: session, interval: interval, logger: logger}
}

// Check asks each registered provider once and reports which still hold an accepted session.
// A provider that cannot be reached keeps its session and is reported as authenticated.
func (m *HealthMonitor) Check(ctx context.Context) map[models.ProviderID]bool {
	status := make(map[models.ProviderID]bool)
	for _, id := range m.registry.IDs() {
		if !m.session.Has(ctx, id) {
			status[id] = false
			continue
		}

		svc, err := m.registry.Get(id)
		if err != nil {
			continue
		}
		err = checkSession(ctx, svc)
		switch {
		case err == nil:
			status[id] = true
		case ctx.Err() != nil:
			return status
		case IsAuthError(err):
			m.logger.Warn("session rejected by provider", "provider", id, "error", err)
			m.session.Expire(ctx, id)
			status[id] = false
		default:
			m.logger.Warn("health check failed, keeping session", "provider", id, "error", err)
			status[id] = true
		}
	}
	return status
}

// checkSession asks svc about its session, falling back to [Service.IsAuthenticated] for adapters that
// cannot distinguish rejection from an outage.
func checkSession(ctx context.Context, svc Service) error {
	if c, ok := svc.(SessionChecker); ok {
		return c.CheckSession(ctx)
	}
	if svc.IsAuthenticated(ctx) {
		return nil
	}
	return fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, svc.ID())
}

// Run calls [HealthMonitor.Check] every interval until ctx is done.
func (m *HealthMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

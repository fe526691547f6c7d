// Package auth resolves the recording user's identity and keeps a bounded
// session alive across long recordings.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pulpitworks/sermon-engine/internal/infrastructure/cache"
	"github.com/pulpitworks/sermon-engine/pkg/config"
)

// Provider is a session-backed identity source. The user is authenticated
// while an unexpired session entry exists; RefreshSession renews it, which
// the flow does before starting a recording and again before upload so a
// session cannot lapse mid-cycle.
type Provider struct {
	logger   *zap.Logger
	userID   uuid.UUID
	ttl      time.Duration
	sessions *cache.MemoryStore
}

// NewProvider parses the configured user identity and opens a session.
func NewProvider(logger *zap.Logger, cfg *config.AuthConfig) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, fmt.Errorf("AUTH_USER_ID is not set")
	}
	userID, err := uuid.Parse(cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("AUTH_USER_ID is not a valid UUID: %w", err)
	}

	p := &Provider{
		logger:   logger,
		userID:   userID,
		ttl:      cfg.SessionTTL,
		sessions: cache.NewMemoryStore(),
	}
	if err := p.RefreshSession(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

// CurrentUserID returns the user identity while the session is live.
func (p *Provider) CurrentUserID(_ context.Context) (uuid.UUID, bool) {
	if _, ok := p.sessions.Get(p.sessionKey()); !ok {
		return uuid.Nil, false
	}
	return p.userID, true
}

// RefreshSession renews the session expiry.
func (p *Provider) RefreshSession(_ context.Context) error {
	p.sessions.Set(p.sessionKey(), time.Now().UTC().Format(time.RFC3339), p.ttl)
	p.logger.Debug("session refreshed",
		zap.String("user_id", p.userID.String()),
		zap.Duration("ttl", p.ttl),
	)
	return nil
}

func (p *Provider) sessionKey() string {
	return "session:" + p.userID.String()
}

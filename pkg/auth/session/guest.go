package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sipwell/storefront-backend/pkg/config"
	redisclient "github.com/sipwell/storefront-backend/pkg/redis"
)

type guestKeyer interface {
	GuestSessionKey(token string) string
	PendingPlanKey(guestToken string) string
}

// GuestManager issues and validates anonymous session tokens. It also stashes
// a plan selected while anonymous; the selection lives on the session, not the
// guest cart, and is replayed through the normal plan selection path once the
// session authenticates.
type GuestManager struct {
	store sessionStore
	keyer guestKeyer
	ttl   time.Duration
}

// NewGuestManager constructs a guest session manager backed by Redis.
func NewGuestManager(client *redisclient.Client, cfg config.CheckoutConfig) (*GuestManager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.GuestSessionTTL <= 0 {
		return nil, fmt.Errorf("guest session ttl must be positive")
	}
	return &GuestManager{
		store: client,
		keyer: client,
		ttl:   cfg.GuestSessionTTL,
	}, nil
}

// Issue creates a new anonymous session token.
func (m *GuestManager) Issue(ctx context.Context) (string, error) {
	token, err := generateOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.keyer.GuestSessionKey(token), "1", m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Validate reports whether the guest token references a live session.
func (m *GuestManager) Validate(ctx context.Context, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}
	if _, err := m.store.Get(ctx, m.keyer.GuestSessionKey(token)); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Discard removes the guest session and any pending plan stash. Called after
// the guest cart has been merged into the authenticated user's cart.
func (m *GuestManager) Discard(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return m.store.Del(ctx,
		m.keyer.GuestSessionKey(token),
		m.keyer.PendingPlanKey(token),
	)
}

// StashPendingPlan records a plan chosen before authentication.
func (m *GuestManager) StashPendingPlan(ctx context.Context, token, planID string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("guest token is required")
	}
	return m.store.Set(ctx, m.keyer.PendingPlanKey(token), planID, m.ttl)
}

// PendingPlan returns the stashed plan id, or "" when none was chosen.
func (m *GuestManager) PendingPlan(ctx context.Context, token string) (string, error) {
	planID, err := m.store.Get(ctx, m.keyer.PendingPlanKey(token))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return planID, nil
}

package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/premiumvideo-backend/pkg/redis"
)

const (
	eventScope      = "stripe-webhook"
	defaultEventTTL = 30 * 24 * time.Hour
)

// EventGuard records delivered Stripe event ids so retried deliveries skip
// the reconciler. The order table stays the real dedupe; the guard only saves
// a provider round trip.
type EventGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewEventGuard(store redis.IdempotencyStore, ttl time.Duration) (*EventGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if ttl == 0 {
		ttl = defaultEventTTL
	}
	return &EventGuard{store: store, ttl: ttl}, nil
}

// Claim marks the event as in flight. It reports false when the event was
// already claimed by an earlier delivery.
func (g *EventGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	set, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim stripe event %s: %w", eventID, err)
	}
	return set, nil
}

// Release forgets a claim so the provider's next retry is processed.
func (g *EventGuard) Release(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *EventGuard) key(eventID string) (string, error) {
	id := strings.TrimSpace(eventID)
	if id == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(eventScope, id), nil
}

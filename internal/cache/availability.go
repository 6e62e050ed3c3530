// Package cache provides the availability slot cache that sits in front of
// the appointment repository on the read path. Entries are keyed by
// (tenant, location, day) plus the slot length, and are invalidated by the
// booking service on every write affecting that day.
//
// Invalidation uses a per-(tenant, location, day) generation token: slot
// entries embed the current token in their key, and invalidating deletes the
// token so every cached variant for that day becomes unreachable at once.
// Orphaned entries age out via TTL. This keeps the cache correct without a
// prefix scan, which the KV contract deliberately does not offer.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-booking-backend/internal/store"
	"github.com/tbourn/go-booking-backend/internal/timeutil"
)

// dayKey formats the calendar-day component of cache keys.
const dayKeyLayout = "2006-01-02"

// Availability is a cache-aside layer for computed slot grids.
type Availability struct {
	kv  store.KV
	ttl time.Duration
}

// NewAvailability builds a cache over kv with the given entry TTL.
// A non-positive TTL disables caching entirely (Get always misses).
func NewAvailability(kv store.KV, ttl time.Duration) *Availability {
	return &Availability{kv: kv, ttl: ttl}
}

func genKey(tenantID, locationID string, day time.Time) string {
	return fmt.Sprintf("avail:gen:%s:%s:%s", tenantID, locationID, day.UTC().Format(dayKeyLayout))
}

// generation returns the current invalidation token, creating one when
// absent. Concurrent creators race through SetNX; the loser re-reads.
func (a *Availability) generation(ctx context.Context, tenantID, locationID string, day time.Time) (string, error) {
	key := genKey(tenantID, locationID, day)
	if val, ok, err := a.kv.Get(ctx, key); err != nil {
		return "", err
	} else if ok {
		return string(val), nil
	}

	token := uuid.NewString()
	won, err := a.kv.SetNX(ctx, key, []byte(token), a.ttl)
	if err != nil {
		return "", err
	}
	if won {
		return token, nil
	}
	val, ok, err := a.kv.Get(ctx, key)
	if err != nil || !ok {
		return "", fmt.Errorf("generation token vanished for %s: %w", key, err)
	}
	return string(val), nil
}

func (a *Availability) slotKey(gen, employeeID string, slotMinutes int) string {
	return fmt.Sprintf("avail:slots:%s:%s:%d", gen, employeeID, slotMinutes)
}

// Get returns the cached slot grid, or ok=false on a miss. Errors are
// returned so the caller can log them, but callers must treat any error as a
// miss and fall back to the repository.
func (a *Availability) Get(ctx context.Context, tenantID, locationID, employeeID string, day time.Time, slotMinutes int) ([]timeutil.Slot, bool, error) {
	if a == nil || a.ttl <= 0 {
		return nil, false, nil
	}
	gen, err := a.generation(ctx, tenantID, locationID, day)
	if err != nil {
		return nil, false, err
	}
	raw, ok, err := a.kv.Get(ctx, a.slotKey(gen, employeeID, slotMinutes))
	if err != nil || !ok {
		return nil, false, err
	}
	var slots []timeutil.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, err
	}
	return slots, true, nil
}

// Put stores a computed slot grid under the current generation.
func (a *Availability) Put(ctx context.Context, tenantID, locationID, employeeID string, day time.Time, slotMinutes int, slots []timeutil.Slot) error {
	if a == nil || a.ttl <= 0 {
		return nil
	}
	gen, err := a.generation(ctx, tenantID, locationID, day)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return a.kv.Set(ctx, a.slotKey(gen, employeeID, slotMinutes), raw, a.ttl)
}

// Invalidate drops every cached grid for (tenant, location, day). Called by
// the booking service after each successful create/cancel/reschedule.
func (a *Availability) Invalidate(ctx context.Context, tenantID, locationID string, day time.Time) error {
	if a == nil || a.ttl <= 0 {
		return nil
	}
	return a.kv.Delete(ctx, genKey(tenantID, locationID, day))
}

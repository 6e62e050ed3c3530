// Package services – AuditService
//
// This file implements the tamper-evident audit chain. Every mutation in the
// system (bookings and reference-data CRUD alike) appends one entry to its
// tenant's chain; each entry's hash is a keyed digest over a canonical
// serialization that includes the previous entry's hash, so rewriting any
// stored entry breaks every hash after it.
//
// Appends run inside the caller's database transaction: if the append fails,
// the business write rolls back with it. Audit completeness is a correctness
// invariant, not best-effort logging.
package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-booking-backend/internal/domain"
	"github.com/tbourn/go-booking-backend/internal/repo"
)

// AuditEvent describes one mutation to be chained.
type AuditEvent struct {
	TenantID  string
	ActorID   string
	Entity    string
	EntityID  string
	Operation string // domain.AuditCreate | AuditUpdate | AuditDelete
	Before    string // JSON snapshot, "" for creates
	After     string // JSON snapshot, "" for deletes
}

// VerifyResult reports the outcome of a chain walk.
type VerifyResult struct {
	Valid         bool   `json:"valid"`
	Entries       int    `json:"entries"`
	BrokenAtIndex *int64 `json:"broken_at_index,omitempty"`
}

// AuditService appends to and verifies per-tenant hash chains.
//
// Appends for the same tenant serialize on an in-process mutex so two
// concurrent entries cannot claim the same predecessor; the
// UNIQUE(tenant_id, seq) index is the storage-level backstop for
// multi-instance deployments, where a collision aborts the enclosing
// transaction instead of forking the chain.
type AuditService struct {
	// DB is the GORM handle used for reads outside a transaction (verify,
	// listing). Appends use the transaction handle passed by the caller.
	DB *gorm.DB

	secret []byte

	mu      sync.Mutex
	tenants map[string]*sync.Mutex
}

// NewAuditService constructs an AuditService. An empty secret selects the
// unkeyed-digest fallback; call Degraded to detect and report that mode.
func NewAuditService(db *gorm.DB, secret string) *AuditService {
	return &AuditService{
		DB:      db,
		secret:  []byte(secret),
		tenants: make(map[string]*sync.Mutex),
	}
}

// Degraded reports whether the chain runs without a keyed digest. In this
// mode an attacker with database access can recompute hashes after
// tampering; it exists so development setups work, and deployments must log
// it loudly rather than ignore it.
func (s *AuditService) Degraded() bool { return len(s.secret) == 0 }

// tenantLock returns the per-tenant append mutex, creating it on first use.
func (s *AuditService) tenantLock(tenantID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.tenants[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.tenants[tenantID] = l
	}
	return l
}

// canonicalPayload is the serialization the hash covers. Field order is
// fixed by the struct declaration; changing it invalidates existing chains.
type canonicalPayload struct {
	TenantID  string `json:"tenant_id"`
	Seq       int64  `json:"seq"`
	ActorID   string `json:"actor_id"`
	Entity    string `json:"entity"`
	EntityID  string `json:"entity_id"`
	Operation string `json:"operation"`
	Before    string `json:"before"`
	After     string `json:"after"`
	PrevHash  string `json:"prev_hash"`
	Timestamp string `json:"timestamp"`
}

// digest computes the (keyed) hash over an entry's canonical payload.
func (s *AuditService) digest(e *domain.AuditEntry) (string, error) {
	payload := canonicalPayload{
		TenantID:  e.TenantID,
		Seq:       e.Seq,
		ActorID:   e.ActorID,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Operation: e.Operation,
		Before:    e.Before,
		After:     e.After,
		PrevHash:  e.PrevHash,
		Timestamp: e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if s.Degraded() {
		sum := sha256.Sum256(raw)
		return hex.EncodeToString(sum[:]), nil
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Append chains a new entry for ev.TenantID using tx, which must be the same
// transaction as the business write so both commit or roll back together.
func (s *AuditService) Append(ctx context.Context, tx *gorm.DB, ev AuditEvent) (*domain.AuditEntry, error) {
	lock := s.tenantLock(ev.TenantID)
	lock.Lock()
	defer lock.Unlock()

	last, err := repo.LastAuditEntry(ctx, tx, ev.TenantID)
	if err != nil {
		return nil, err
	}
	var seq int64 = 1
	prevHash := ""
	if last != nil {
		seq = last.Seq + 1
		prevHash = last.Hash
	}

	entry := &domain.AuditEntry{
		ID:        uuid.NewString(),
		TenantID:  ev.TenantID,
		Seq:       seq,
		ActorID:   ev.ActorID,
		Entity:    ev.Entity,
		EntityID:  ev.EntityID,
		Operation: ev.Operation,
		Before:    ev.Before,
		After:     ev.After,
		PrevHash:  prevHash,
		CreatedAt: time.Now().UTC(),
	}
	hash, err := s.digest(entry)
	if err != nil {
		return nil, err
	}
	entry.Hash = hash

	if err := repo.AppendAuditEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// VerifyChain walks a tenant's entries in sequence order, recomputing each
// hash and checking linkage to the predecessor. The first mismatch is
// reported and the walk stops there: once a link is broken, everything after
// it is unverifiable anyway.
func (s *AuditService) VerifyChain(ctx context.Context, tenantID string) (VerifyResult, error) {
	entries, err := repo.WalkAuditChain(ctx, s.DB, tenantID)
	if err != nil {
		return VerifyResult{}, err
	}

	prevHash := ""
	for i := range entries {
		e := &entries[i]
		want, err := s.digest(e)
		if err != nil {
			return VerifyResult{}, err
		}
		if e.PrevHash != prevHash || e.Hash != want {
			idx := int64(i)
			return VerifyResult{Valid: false, Entries: len(entries), BrokenAtIndex: &idx}, nil
		}
		prevHash = e.Hash
	}
	return VerifyResult{Valid: true, Entries: len(entries)}, nil
}

// ListPage returns a page of the tenant's audit entries, newest first, with
// the total chain length for pagination.
func (s *AuditService) ListPage(ctx context.Context, tenantID string, page, pageSize int) ([]domain.AuditEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountAuditEntries(ctx, s.DB, tenantID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.AuditEntry{}, 0, nil
	}
	items, err := repo.ListAuditPage(ctx, s.DB, tenantID, (page-1)*pageSize, pageSize)
	return items, total, err
}

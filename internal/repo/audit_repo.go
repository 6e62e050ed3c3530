// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the append-only
// audit chain.
//
// Ordering relies on the dense per-tenant Seq column, never on timestamps:
// clock skew between writers must not be able to reorder or fork the chain.
// UNIQUE(tenant_id, seq) turns a racing append into a constraint violation
// that aborts the enclosing transaction.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-booking-backend/internal/domain"
)

// LastAuditEntry returns the highest-Seq entry for the tenant, or
// (nil, nil) when the tenant's chain is empty.
func LastAuditEntry(ctx context.Context, db *gorm.DB, tenantID string) (*domain.AuditEntry, error) {
	var e domain.AuditEntry
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("seq desc").
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// AppendAuditEntry persists a new chain link. Callers pass the transaction
// handle of the business mutation so both commit or roll back together.
func AppendAuditEntry(ctx context.Context, db *gorm.DB, e *domain.AuditEntry) error {
	return db.WithContext(ctx).Create(e).Error
}

// WalkAuditChain returns every entry for the tenant in Seq order, oldest
// first, for verification.
func WalkAuditChain(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("seq asc").
		Find(&out).Error
	return out, err
}

// CountAuditEntries returns the chain length for a tenant.
func CountAuditEntries(ctx context.Context, db *gorm.DB, tenantID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.AuditEntry{}).
		Where("tenant_id = ?", tenantID).
		Count(&total).Error
	return total, err
}

// ListAuditPage returns a page of the tenant's audit entries, newest first.
func ListAuditPage(ctx context.Context, db *gorm.DB, tenantID string, offset, limit int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("seq desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Appointment model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Every query is tenant-scoped; there is
// deliberately no function here that can read across tenants.
//
// Error semantics:
//   - When an appointment is not found (or belongs to another tenant),
//     functions return gorm.ErrRecordNotFound (exported as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-booking-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// FindOverlapping returns the pending/confirmed appointments for
// (tenantID, employeeID) whose half-open interval overlaps [start, end).
// Rows touching the boundary do not match. excludeID, when non-empty,
// leaves out that appointment — reschedule vacates its own slot before
// re-checking. Run inside the booking transaction to make the
// check-then-insert atomic.
func FindOverlapping(ctx context.Context, db *gorm.DB, tenantID, employeeID string, start, end time.Time, excludeID string) ([]domain.Appointment, error) {
	q := db.WithContext(ctx).
		Where("tenant_id = ? AND employee_id = ?", tenantID, employeeID).
		Where("status IN ?", domain.ActiveStatuses).
		Where("start_at < ? AND end_at > ?", end, start)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var out []domain.Appointment
	err := q.Order("start_at asc").Find(&out).Error
	return out, err
}

// CreateAppointment inserts a new appointment row. The ID is a randomly
// generated UUID and CreatedAt is set to UTC. The caller is responsible for
// having verified the interval inside the same transaction.
func CreateAppointment(ctx context.Context, db *gorm.DB, a *domain.Appointment) (*domain.Appointment, error) {
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// GetAppointment fetches a single appointment by ID scoped to tenantID.
// Returns ErrNotFound when missing or owned by another tenant, so callers
// cannot distinguish the two cases.
func GetAppointment(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Appointment, error) {
	var a domain.Appointment
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateStatus transitions an appointment's status, enforcing tenant
// ownership. Returns ErrNotFound when no row matched.
func UpdateStatus(ctx context.Context, db *gorm.DB, id, tenantID, newStatus string) error {
	res := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Update("status", newStatus)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateInterval moves an appointment to [newStart, newEnd), conditional on
// the row still holding its current interval; a concurrent move makes the
// conditional fail with ErrNotFound rather than silently clobbering it.
func UpdateInterval(ctx context.Context, db *gorm.DB, id, tenantID string, curStart, curEnd, newStart, newEnd time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("id = ? AND tenant_id = ? AND start_at = ? AND end_at = ?", id, tenantID, curStart, curEnd).
		Updates(map[string]interface{}{"start_at": newStart, "end_at": newEnd})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListDay returns the pending/confirmed appointments for an employee that
// intersect the given day window, ordered by start time. Feeds the
// availability engine's busy list.
func ListDay(ctx context.Context, db *gorm.DB, tenantID, employeeID string, dayStart, dayEnd time.Time) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND employee_id = ?", tenantID, employeeID).
		Where("status IN ?", domain.ActiveStatuses).
		Where("start_at < ? AND end_at > ?", dayEnd, dayStart).
		Order("start_at asc").
		Find(&out).Error
	return out, err
}

// CountAppointments returns the total number of appointments for a tenant,
// optionally filtered by employee.
func CountAppointments(ctx context.Context, db *gorm.DB, tenantID, employeeID string) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("tenant_id = ?", tenantID)
	if employeeID != "" {
		q = q.Where("employee_id = ?", employeeID)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListAppointmentsPage returns a page of a tenant's appointments ordered by
// start time descending, optionally filtered by employee.
func ListAppointmentsPage(ctx context.Context, db *gorm.DB, tenantID, employeeID string, offset, limit int) ([]domain.Appointment, error) {
	q := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID)
	if employeeID != "" {
		q = q.Where("employee_id = ?", employeeID)
	}
	var out []domain.Appointment
	err := q.Order("start_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// IsNotFound reports whether err represents a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

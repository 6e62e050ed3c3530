// Package services – BookingService
//
// This file implements the booking lifecycle: create, cancel, and reschedule.
// The invariant it guards is per-employee calendar exclusivity: for a fixed
// (tenant, employee), no two active appointments may overlap. The overlap
// check and the insert run in one database transaction, together with the
// audit append, so either everything lands or nothing does.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-booking-backend/internal/cache"
	"github.com/tbourn/go-booking-backend/internal/domain"
	"github.com/tbourn/go-booking-backend/internal/repo"
)

// CreateBookingInput carries the validated parameters of a booking request.
// EndAt may be zero, in which case the service's configured duration fills it.
type CreateBookingInput struct {
	EmployeeID string
	ServiceID  string
	ClientID   string
	StartAt    time.Time
	EndAt      time.Time
	Notes      string
}

// BookingService implements appointment creation, cancellation, and
// reschedule on top of the appointment repository, the audit chain, and the
// availability cache.
type BookingService struct {
	DB    *gorm.DB
	Cache *cache.Availability
	Audit *AuditService

	// MinNotice is the pre-start window inside which cancel/reschedule are
	// refused. Creation is not window-checked.
	MinNotice time.Duration

	// DefaultStatus is assigned to new appointments: pending or confirmed.
	DefaultStatus string

	// now is the clock; tests override it to pin window checks.
	now func() time.Time
}

// NewBookingService wires a BookingService with the real clock.
func NewBookingService(db *gorm.DB, c *cache.Availability, audit *AuditService, minNotice time.Duration, defaultStatus string) *BookingService {
	return &BookingService{
		DB:            db,
		Cache:         c,
		Audit:         audit,
		MinNotice:     minNotice,
		DefaultStatus: defaultStatus,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// jsonSnapshot serializes an entity for audit Before/After fields. Marshal of
// a plain struct cannot fail; the empty string keeps the chain append going
// if it somehow does.
func jsonSnapshot(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// invalidateDay drops the cached availability for the appointment's day.
// Cache errors are swallowed: the TTL bounds staleness and a failed delete
// must not turn a committed booking into an error response.
func (s *BookingService) invalidateDay(ctx context.Context, tenantID, locationID string, day time.Time) {
	if s.Cache == nil {
		return
	}
	_ = s.Cache.Invalidate(ctx, tenantID, locationID, day)
}

// Create books an appointment for the tenant.
//
// Validation order is fixed so callers get deterministic errors: interval
// shape first, then tenant-scoped reference checks (a cross-tenant reference
// reads as ErrNotFound, never as a hint that the row exists), then the
// transactional overlap check. Touching intervals do not conflict.
func (s *BookingService) Create(ctx context.Context, tenantID, actorID string, in CreateBookingInput) (*domain.Appointment, error) {
	if tenantID == "" || in.EmployeeID == "" || in.ServiceID == "" || in.ClientID == "" {
		return nil, ErrNotFound
	}

	emp, err := repo.GetEmployee(ctx, s.DB, in.EmployeeID, tenantID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !emp.Active {
		return nil, ErrEmployeeInactive
	}
	svc, err := repo.GetService(ctx, s.DB, in.ServiceID, tenantID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := repo.GetClient(ctx, s.DB, in.ClientID, tenantID); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	start := in.StartAt.UTC()
	end := in.EndAt.UTC()
	if in.EndAt.IsZero() {
		end = start.Add(time.Duration(svc.DurationMin) * time.Minute)
	}
	if start.IsZero() || !end.After(start) {
		return nil, ErrInvalidInterval
	}

	appt := &domain.Appointment{
		TenantID:   tenantID,
		LocationID: emp.LocationID,
		EmployeeID: emp.ID,
		ServiceID:  svc.ID,
		ClientID:   in.ClientID,
		StartAt:    start,
		EndAt:      end,
		Status:     s.DefaultStatus,
		Notes:      in.Notes,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		busy, err := repo.FindOverlapping(ctx, tx, tenantID, emp.ID, start, end, "")
		if err != nil {
			return err
		}
		if len(busy) > 0 {
			return ErrConflict
		}
		if _, err := repo.CreateAppointment(ctx, tx, appt); err != nil {
			return err
		}
		_, err = s.Audit.Append(ctx, tx, AuditEvent{
			TenantID:  tenantID,
			ActorID:   actorID,
			Entity:    "appointment",
			EntityID:  appt.ID,
			Operation: domain.AuditCreate,
			After:     jsonSnapshot(appt),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateDay(ctx, tenantID, appt.LocationID, start)
	return appt, nil
}

// Get returns a tenant's appointment, or ErrNotFound (also for rows owned by
// other tenants).
func (s *BookingService) Get(ctx context.Context, tenantID, id string) (*domain.Appointment, error) {
	a, err := repo.GetAppointment(ctx, s.DB, id, tenantID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListPage returns a page of the tenant's appointments, newest start first,
// optionally filtered by employee.
func (s *BookingService) ListPage(ctx context.Context, tenantID, employeeID string, page, pageSize int) ([]domain.Appointment, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountAppointments(ctx, s.DB, tenantID, employeeID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Appointment{}, 0, nil
	}
	items, err := repo.ListAppointmentsPage(ctx, s.DB, tenantID, employeeID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// windowOpen reports whether the minimum-notice window still permits changes
// to an appointment starting at startAt.
func (s *BookingService) windowOpen(startAt time.Time) bool {
	return s.now().Before(startAt.Add(-s.MinNotice))
}

// Cancel marks an appointment canceled. The row is kept; its interval stops
// counting toward overlaps. Refused inside the minimum-notice window and for
// appointments that are already canceled or done.
func (s *BookingService) Cancel(ctx context.Context, tenantID, actorID, id string) (*domain.Appointment, error) {
	appt, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !appt.IsActive() {
		return nil, ErrNotActive
	}
	if !s.windowOpen(appt.StartAt) {
		return nil, ErrWindowClosed
	}

	before := jsonSnapshot(appt)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpdateStatus(ctx, tx, id, tenantID, domain.StatusCanceled); err != nil {
			if repo.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		appt.Status = domain.StatusCanceled
		_, err := s.Audit.Append(ctx, tx, AuditEvent{
			TenantID:  tenantID,
			ActorID:   actorID,
			Entity:    "appointment",
			EntityID:  appt.ID,
			Operation: domain.AuditUpdate,
			Before:    before,
			After:     jsonSnapshot(appt),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateDay(ctx, tenantID, appt.LocationID, appt.StartAt)
	return appt, nil
}

// Reschedule moves an active appointment to [newStart, newEnd). The new
// interval passes the same overlap check as creation, excluding the
// appointment itself so it may shift within or adjacent to its own old slot.
// A zero newEnd keeps the appointment's current duration.
func (s *BookingService) Reschedule(ctx context.Context, tenantID, actorID, id string, newStart, newEnd time.Time) (*domain.Appointment, error) {
	appt, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !appt.IsActive() {
		return nil, ErrNotActive
	}
	if !s.windowOpen(appt.StartAt) {
		return nil, ErrWindowClosed
	}

	start := newStart.UTC()
	end := newEnd.UTC()
	if newEnd.IsZero() {
		end = start.Add(appt.EndAt.Sub(appt.StartAt))
	}
	if start.IsZero() || !end.After(start) {
		return nil, ErrInvalidInterval
	}

	oldStart, oldEnd := appt.StartAt, appt.EndAt
	before := jsonSnapshot(appt)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		busy, err := repo.FindOverlapping(ctx, tx, tenantID, appt.EmployeeID, start, end, appt.ID)
		if err != nil {
			return err
		}
		if len(busy) > 0 {
			return ErrConflict
		}
		if err := repo.UpdateInterval(ctx, tx, id, tenantID, oldStart, oldEnd, start, end); err != nil {
			if repo.IsNotFound(err) {
				// The row moved under us; the caller should re-read and retry.
				return ErrConflict
			}
			return err
		}
		appt.StartAt = start
		appt.EndAt = end
		_, err = s.Audit.Append(ctx, tx, AuditEvent{
			TenantID:  tenantID,
			ActorID:   actorID,
			Entity:    "appointment",
			EntityID:  appt.ID,
			Operation: domain.AuditUpdate,
			Before:    before,
			After:     jsonSnapshot(appt),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateDay(ctx, tenantID, appt.LocationID, oldStart)
	if !sameDay(oldStart, start) {
		s.invalidateDay(ctx, tenantID, appt.LocationID, start)
	}
	return appt, nil
}

// sameDay reports whether two instants fall on the same UTC calendar day.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// IsTerminal reports whether err is a business outcome that retrying the
// identical request cannot change. Handlers use it to decide whether an
// idempotency record should capture an error response.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmployeeInactive) ||
		errors.Is(err, ErrWindowClosed) ||
		errors.Is(err, ErrNotActive)
}

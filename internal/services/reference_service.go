// Package services – ReferenceService
//
// Reference data (employees, services, clients) gets the same audited-write
// treatment as bookings: every mutation appends to the tenant's chain inside
// the mutation's own transaction. Reads are plain tenant-scoped pass-throughs.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-booking-backend/internal/domain"
	"github.com/tbourn/go-booking-backend/internal/repo"
)

// ReferenceService manages tenant reference data with audit coverage.
type ReferenceService struct {
	DB    *gorm.DB
	Audit *AuditService
}

// NewReferenceService wires a ReferenceService.
func NewReferenceService(db *gorm.DB, audit *AuditService) *ReferenceService {
	return &ReferenceService{DB: db, Audit: audit}
}

// CreateEmployee adds an active employee and audits the create.
func (s *ReferenceService) CreateEmployee(ctx context.Context, tenantID, actorID, locationID, name string) (*domain.Employee, error) {
	name = strings.TrimSpace(name)
	if name == "" || locationID == "" {
		return nil, ErrInvalidInput
	}
	var out *domain.Employee
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := repo.CreateEmployee(ctx, tx, tenantID, locationID, name)
		if err != nil {
			return err
		}
		out = e
		_, err = s.Audit.Append(ctx, tx, AuditEvent{
			TenantID:  tenantID,
			ActorID:   actorID,
			Entity:    "employee",
			EntityID:  e.ID,
			Operation: domain.AuditCreate,
			After:     jsonSnapshot(e),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeactivateEmployee closes an employee's calendar. The row survives so
// historical appointments keep their reference.
func (s *ReferenceService) DeactivateEmployee(ctx context.Context, tenantID, actorID, id string) error {
	emp, err := repo.GetEmployee(ctx, s.DB, id, tenantID)
	if err != nil {
		if repo.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	before := jsonSnapshot(emp)
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.DeactivateEmployee(ctx, tx, id, tenantID); err != nil {
			if repo.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		emp.Active = false
		_, err := s.Audit.Append(ctx, tx, AuditEvent{
			TenantID:  tenantID,
			ActorID:   actorID,
			Entity:    "employee",
			EntityID:  id,
			Operation: domain.AuditUpdate,
			Before:    before,
			After:     jsonSnapshot(emp),
		})
		return err
	})
}

// ListEmployees returns the tenant's employees.
func (s *ReferenceService) ListEmployees(ctx context.Context, tenantID string) ([]domain.Employee, error) {
	return repo.ListEmployees(ctx, s.DB, tenantID)
}

// CreateService adds a bookable service and audits the create.
func (s *ReferenceService) CreateService(ctx context.Context, tenantID, actorID string, svc *domain.Service) (*domain.Service, error) {
	if svc == nil || strings.TrimSpace(svc.Name) == "" || svc.DurationMin <= 0 || svc.PriceCents < 0 {
		return nil, ErrInvalidInput
	}
	svc.TenantID = tenantID
	var out *domain.Service
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := repo.CreateService(ctx, tx, svc)
		if err != nil {
			return err
		}
		out = created
		_, err = s.Audit.Append(ctx, tx, AuditEvent{
			TenantID:  tenantID,
			ActorID:   actorID,
			Entity:    "service",
			EntityID:  created.ID,
			Operation: domain.AuditCreate,
			After:     jsonSnapshot(created),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListServices returns the tenant's services.
func (s *ReferenceService) ListServices(ctx context.Context, tenantID string) ([]domain.Service, error) {
	return repo.ListServices(ctx, s.DB, tenantID)
}

// CreateClient adds a client and audits the create.
func (s *ReferenceService) CreateClient(ctx context.Context, tenantID, actorID string, c *domain.Client) (*domain.Client, error) {
	if c == nil || strings.TrimSpace(c.Name) == "" {
		return nil, ErrInvalidInput
	}
	c.TenantID = tenantID
	var out *domain.Client
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := repo.CreateClient(ctx, tx, c)
		if err != nil {
			return err
		}
		out = created
		_, err = s.Audit.Append(ctx, tx, AuditEvent{
			TenantID:  tenantID,
			ActorID:   actorID,
			Entity:    "client",
			EntityID:  created.ID,
			Operation: domain.AuditCreate,
			After:     jsonSnapshot(created),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListClients returns the tenant's clients.
func (s *ReferenceService) ListClients(ctx context.Context, tenantID string) ([]domain.Client, error) {
	return repo.ListClients(ctx, s.DB, tenantID)
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides tenant-scoped repository functions for
// reference data: employees, services, and clients. The booking service uses
// the lookups to validate foreign references; the handlers use the CRUD
// functions directly.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-booking-backend/internal/domain"
)

// GetEmployee fetches an employee by ID scoped to tenantID, or ErrNotFound.
func GetEmployee(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Employee, error) {
	var e domain.Employee
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetService fetches a service by ID scoped to tenantID, or ErrNotFound.
func GetService(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Service, error) {
	var s domain.Service
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetClient fetches a client by ID scoped to tenantID, or ErrNotFound.
func GetClient(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Client, error) {
	var c domain.Client
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateEmployee inserts an employee row for the tenant.
func CreateEmployee(ctx context.Context, db *gorm.DB, tenantID, locationID, name string) (*domain.Employee, error) {
	e := &domain.Employee{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		LocationID: locationID,
		Name:       name,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// ListEmployees returns all employees of a tenant, newest first.
func ListEmployees(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.Employee, error) {
	var out []domain.Employee
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// DeactivateEmployee clears the active flag, enforcing tenant ownership.
// Returns ErrNotFound when no row matched. The row is kept: availability
// simply stops being computed for inactive employees.
func DeactivateEmployee(ctx context.Context, db *gorm.DB, id, tenantID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Employee{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateService inserts a service row for the tenant.
func CreateService(ctx context.Context, db *gorm.DB, s *domain.Service) (*domain.Service, error) {
	s.ID = uuid.NewString()
	s.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// ListServices returns all services of a tenant, newest first.
func ListServices(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.Service, error) {
	var out []domain.Service
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CreateClient inserts a client row for the tenant.
func CreateClient(ctx context.Context, db *gorm.DB, c *domain.Client) (*domain.Client, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListClients returns all clients of a tenant, newest first.
func ListClients(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.Client, error) {
	var out []domain.Client
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// Package domain defines the persistence models for the booking core.
// These types are mapped with GORM and shared across the repository and
// service layers. Every row carries a TenantID; no query may span tenants.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Appointment status values. CANCELED and DONE rows never count toward
// overlap checks; cancellation is a status change, never a hard delete.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
	StatusDone      = "done"
)

// ActiveStatuses are the statuses that occupy an employee's calendar.
var ActiveStatuses = []string{StatusPending, StatusConfirmed}

// Employee belongs to exactly one tenant and one location. Availability is
// computed only for active employees.
type Employee struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	TenantID   string         `json:"tenant_id"   gorm:"type:varchar(64);not null;index:idx_tenant_employees"`
	LocationID string         `json:"location_id" gorm:"type:varchar(64);not null"`
	Name       string         `json:"name"        gorm:"type:varchar(255);not null"`
	Active     bool           `json:"active"      gorm:"not null;default:true"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Employee.
func (Employee) TableName() string { return "employees" }

// Service is an offering a tenant sells at a location. DurationMin defines
// the appointment length when the request does not override it.
type Service struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	TenantID    string         `json:"tenant_id"    gorm:"type:varchar(64);not null;index:idx_tenant_services"`
	LocationID  string         `json:"location_id"  gorm:"type:varchar(64);not null"`
	Name        string         `json:"name"         gorm:"type:varchar(255);not null"`
	DurationMin int            `json:"duration_min" gorm:"not null;check:duration_min > 0"`
	PriceCents  int            `json:"price_cents"  gorm:"not null;default:0;check:price_cents >= 0"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Service.
func (Service) TableName() string { return "services" }

// Client is an end customer of a tenant.
type Client struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	TenantID  string         `json:"tenant_id" gorm:"type:varchar(64);not null;index:idx_tenant_clients"`
	Name      string         `json:"name"      gorm:"type:varchar(255);not null"`
	Email     string         `json:"email"     gorm:"type:varchar(255)"`
	Phone     string         `json:"phone"     gorm:"type:varchar(64)"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`
}

// TableName returns the database table name for Client.
func (Client) TableName() string { return "clients" }

// Appointment is the central entity. For a fixed (TenantID, EmployeeID), no
// two rows with an active status may have overlapping [StartAt, EndAt)
// intervals; the booking service enforces this inside one transaction.
//
// Fields:
//   - StartAt / EndAt: UTC instants, EndAt > StartAt, half-open interval.
//   - Status: pending | confirmed | canceled | done.
//   - Notes: free-form text attached at booking time.
type Appointment struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	TenantID   string         `json:"tenant_id"   gorm:"type:varchar(64);not null;index:idx_tenant_employee_start,priority:1"`
	LocationID string         `json:"location_id" gorm:"type:varchar(64);not null"`
	EmployeeID string         `json:"employee_id" gorm:"type:char(36);not null;index:idx_tenant_employee_start,priority:2"`
	ServiceID  string         `json:"service_id"  gorm:"type:char(36);not null"`
	ClientID   string         `json:"client_id"   gorm:"type:char(36);not null"`
	StartAt    time.Time      `json:"start_at"    gorm:"not null;index:idx_tenant_employee_start,priority:3"`
	EndAt      time.Time      `json:"end_at"      gorm:"not null"`
	Status     string         `json:"status"      gorm:"type:varchar(16);not null;check:status IN ('pending','confirmed','canceled','done')"`
	Notes      string         `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`

	// Employee is the calendar owner. Appointments are cascade-deleted only
	// if the employee row itself is removed, which normal operation never does.
	Employee Employee `json:"-" gorm:"foreignKey:EmployeeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Appointment.
func (Appointment) TableName() string { return "appointments" }

// IsActive reports whether the appointment occupies its interval.
func (a *Appointment) IsActive() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

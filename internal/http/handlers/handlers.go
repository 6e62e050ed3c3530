// Handler wiring and shared transport helpers.
//
// Handlers are transport-thin: they validate and normalize inputs, resolve
// the tenant and actor from context, delegate to application services, and
// translate service errors into the HTTP error taxonomy. Business rules
// (overlap checks, notice windows, audit appends) live in the services.
package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-booking-backend/internal/domain"
	"github.com/tbourn/go-booking-backend/internal/http/middleware"
	"github.com/tbourn/go-booking-backend/internal/services"
	"github.com/tbourn/go-booking-backend/internal/timeutil"
	"github.com/tbourn/go-booking-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// BookingService defines the appointment lifecycle operations consumed by the
// HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type BookingService interface {
	// Create books an appointment for the tenant, enforcing calendar exclusivity.
	Create(ctx context.Context, tenantID, actorID string, in services.CreateBookingInput) (*domain.Appointment, error)
	// Get returns one appointment, tenant-scoped.
	Get(ctx context.Context, tenantID, id string) (*domain.Appointment, error)
	// ListPage returns a page of appointments and the total count.
	ListPage(ctx context.Context, tenantID, employeeID string, page, pageSize int) ([]domain.Appointment, int64, error)
	// Cancel marks an appointment canceled, honoring the notice window.
	Cancel(ctx context.Context, tenantID, actorID, id string) (*domain.Appointment, error)
	// Reschedule moves an appointment to a new interval.
	Reschedule(ctx context.Context, tenantID, actorID, id string, newStart, newEnd time.Time) (*domain.Appointment, error)
}

// AvailabilityService computes free slot grids for employees.
type AvailabilityService interface {
	// FreeSlots returns the open slots for an employee on a calendar day.
	FreeSlots(ctx context.Context, tenantID, employeeID string, day time.Time, slotMinutes int) ([]timeutil.Slot, error)
}

// AuditService exposes read access to the tenant's audit chain.
type AuditService interface {
	// ListPage returns a page of audit entries, newest first.
	ListPage(ctx context.Context, tenantID string, page, pageSize int) ([]domain.AuditEntry, int64, error)
	// VerifyChain recomputes and checks the tenant's hash chain.
	VerifyChain(ctx context.Context, tenantID string) (services.VerifyResult, error)
}

// ReferenceService manages employees, services, and clients.
type ReferenceService interface {
	CreateEmployee(ctx context.Context, tenantID, actorID, locationID, name string) (*domain.Employee, error)
	DeactivateEmployee(ctx context.Context, tenantID, actorID, id string) error
	ListEmployees(ctx context.Context, tenantID string) ([]domain.Employee, error)
	CreateService(ctx context.Context, tenantID, actorID string, svc *domain.Service) (*domain.Service, error)
	ListServices(ctx context.Context, tenantID string) ([]domain.Service, error)
	CreateClient(ctx context.Context, tenantID, actorID string, client *domain.Client) (*domain.Client, error)
	ListClients(ctx context.Context, tenantID string) ([]domain.Client, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for bookings, availability, audit, and
// reference data. It depends on abstract service interfaces to keep transport
// concerns separate from business logic; the DB handle is used only for
// idempotency records, which are a transport concern (stored responses).
type Handlers struct {
	bookingSvc BookingService
	availSvc   AvailabilityService
	auditSvc   AuditService
	refSvc     ReferenceService

	db      *gorm.DB
	idemTTL time.Duration
}

// New constructs a Handlers instance bound to the given services. idemTTL
// bounds how long stored idempotent responses remain replayable.
func New(booking BookingService, avail AvailabilityService, audit AuditService, ref ReferenceService, db *gorm.DB, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{
		bookingSvc: booking,
		availSvc:   avail,
		auditSvc:   audit,
		refSvc:     ref,
		db:         db,
		idemTTL:    idemTTL,
	}
}

// tenantID returns the tenant resolved by the middleware. Routes registered
// behind TenantResolver always have one; the empty-string guard covers
// misconfigured test routers.
func tenantID(c *gin.Context) string {
	t, _ := middleware.TenantFrom(c)
	return t
}

// actorID returns the acting identity for audit attribution.
func actorID(c *gin.Context) string {
	return middleware.ActorFrom(c)
}

//
// Shared DTO helpers
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// newPagination assembles the metadata block from a page request and total.
func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// parseRFC3339 parses a required RFC 3339 timestamp, returning ok=false when
// absent or malformed.
func parseRFC3339(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// hashBody returns the hex SHA-256 of a request payload, used to detect
// idempotency-key reuse with a divergent body.
func hashBody(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// failService translates service-layer sentinel errors into HTTP responses.
// Unknown errors become 500s with the supplied fallback code.
func failService(c *gin.Context, err error, fallbackCode string) {
	switch err {
	case services.ErrNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "resource not found")
	case services.ErrInvalidInterval:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "end must be after start")
	case services.ErrInvalidInput:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid input")
	case services.ErrEmployeeInactive:
		fail(c, http.StatusUnprocessableEntity, ErrCodeEmployeeInactive, "employee is not active")
	case services.ErrConflict:
		fail(c, http.StatusConflict, ErrCodeConflict, "interval conflicts with an existing appointment")
	case services.ErrWindowClosed:
		fail(c, http.StatusUnprocessableEntity, ErrCodeWindowClosed, "too close to the appointment start")
	case services.ErrNotActive:
		fail(c, http.StatusConflict, ErrCodeNotActive, "appointment is not active")
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

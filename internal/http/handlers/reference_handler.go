// Reference-data HTTP handlers.
//
// This file exposes tenant-scoped CRUD for the entities bookings reference:
//   - POST/GET       /employees
//   - DELETE         /employees/{id}   (deactivate; the row survives)
//   - POST/GET       /services
//   - POST/GET       /clients
//
// Every mutation is audited by the service layer inside its own transaction.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-booking-backend/internal/domain"
)

//
// DTOs
//

// CreateEmployeeRequest is the JSON payload for adding an employee.
type CreateEmployeeRequest struct {
	LocationID string `json:"location_id" binding:"required"`
	Name       string `json:"name" binding:"required,min=1,max=255"`
}

// CreateServiceRequest is the JSON payload for adding a bookable service.
type CreateServiceRequest struct {
	LocationID  string `json:"location_id" binding:"required"`
	Name        string `json:"name" binding:"required,min=1,max=255"`
	DurationMin int    `json:"duration_min" binding:"required,gt=0"`
	PriceCents  int    `json:"price_cents" binding:"gte=0"`
}

// CreateClientRequest is the JSON payload for adding a client.
type CreateClientRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=255"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

//
// Employees
//

// CreateEmployee adds an active employee.
//
// POST /employees
func (h *Handlers) CreateEmployee(c *gin.Context) {
	var req CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "location_id and name are required")
		return
	}
	e, err := h.refSvc.CreateEmployee(c.Request.Context(), tenantID(c), actorID(c), req.LocationID, req.Name)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, e)
}

// ListEmployees returns the tenant's employees.
//
// GET /employees
func (h *Handlers) ListEmployees(c *gin.Context) {
	items, err := h.refSvc.ListEmployees(c.Request.Context(), tenantID(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{"employees": items})
}

// DeactivateEmployee closes an employee's calendar. Availability stops being
// computed for them; historical appointments keep their reference.
//
// DELETE /employees/:id
func (h *Handlers) DeactivateEmployee(c *gin.Context) {
	if err := h.refSvc.DeactivateEmployee(c.Request.Context(), tenantID(c), actorID(c), c.Param("id")); err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	noContent(c)
}

//
// Services
//

// CreateService adds a bookable service.
//
// POST /services
func (h *Handlers) CreateService(c *gin.Context) {
	var req CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "location_id, name and a positive duration_min are required")
		return
	}
	s, err := h.refSvc.CreateService(c.Request.Context(), tenantID(c), actorID(c), &domain.Service{
		LocationID:  req.LocationID,
		Name:        req.Name,
		DurationMin: req.DurationMin,
		PriceCents:  req.PriceCents,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, s)
}

// ListServices returns the tenant's services.
//
// GET /services
func (h *Handlers) ListServices(c *gin.Context) {
	items, err := h.refSvc.ListServices(c.Request.Context(), tenantID(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{"services": items})
}

//
// Clients
//

// CreateClient adds a client.
//
// POST /clients
func (h *Handlers) CreateClient(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}
	cl, err := h.refSvc.CreateClient(c.Request.Context(), tenantID(c), actorID(c), &domain.Client{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, cl)
}

// ListClients returns the tenant's clients.
//
// GET /clients
func (h *Handlers) ListClients(c *gin.Context) {
	items, err := h.refSvc.ListClients(c.Request.Context(), tenantID(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{"clients": items})
}

// Appointment HTTP handlers.
//
// This file exposes REST endpoints for the appointment lifecycle:
//   - POST   /appointments        (book, idempotent via Idempotency-Key)
//   - GET    /appointments        (list, paginated)
//   - GET    /appointments/{id}   (fetch one)
//   - DELETE /appointments/{id}   (cancel; soft, keeps the row)
//   - PATCH  /appointments/{id}   (reschedule, idempotent via Idempotency-Key)
//
// Idempotency:
// Create and reschedule require an Idempotency-Key header (enforced by route
// middleware). Terminal outcomes (success or business refusals like
// conflicts) are recorded per (tenant, route, key). A retry with the same key
// and payload replays the stored response byte-for-byte with
// `Idempotency-Replayed: true`; the same key with a different payload is
// refused with 409 idempotency_key_reuse.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-booking-backend/internal/domain"
	"github.com/tbourn/go-booking-backend/internal/http/middleware"
	"github.com/tbourn/go-booking-backend/internal/repo"
	"github.com/tbourn/go-booking-backend/internal/services"
)

//
// DTOs
//

// CreateAppointmentRequest is the JSON payload for booking an appointment.
// EndAt is optional; when omitted the service's configured duration applies.
type CreateAppointmentRequest struct {
	EmployeeID string `json:"employee_id" binding:"required"`
	ServiceID  string `json:"service_id" binding:"required"`
	ClientID   string `json:"client_id" binding:"required"`
	StartAt    string `json:"start_at" binding:"required"` // RFC 3339
	EndAt      string `json:"end_at,omitempty"`            // RFC 3339, optional
	Notes      string `json:"notes,omitempty"`
}

// RescheduleRequest is the JSON payload for moving an appointment.
// EndAt is optional; when omitted the current duration is preserved.
type RescheduleRequest struct {
	StartAt string `json:"start_at" binding:"required"` // RFC 3339
	EndAt   string `json:"end_at,omitempty"`            // RFC 3339, optional
}

// AppointmentResponse wraps a single appointment.
type AppointmentResponse struct {
	Appointment *domain.Appointment `json:"appointment"`
}

// ListAppointmentsResponse contains a page of appointments and pagination
// metadata.
type ListAppointmentsResponse struct {
	Appointments []domain.Appointment `json:"appointments"`
	Pagination   Pagination           `json:"pagination"`
}

//
// Idempotency plumbing
//

// serveStored writes the response held by an idempotency record: the stored
// bytes with a replay marker, or a 409 when the caller's payload hash differs
// from the one that produced the record.
func (h *Handlers) serveStored(c *gin.Context, rec *domain.Idempotency, reqHash string) {
	if rec.RequestHash != reqHash {
		fail(c, http.StatusConflict, ErrCodeKeyReuse, "idempotency key reused with a different payload")
		return
	}
	c.Header("Idempotency-Replayed", "true")
	c.Data(rec.Status, "application/json; charset=utf-8", rec.Body)
}

// replayIdempotent checks for a stored response under (tenant, route, key).
// It returns true when it has written a response: either the stored replay or
// a 409 when the key is reused with a different payload. A false return means
// the request should proceed normally.
func (h *Handlers) replayIdempotent(c *gin.Context, key, reqHash string) bool {
	if key == "" || h.db == nil {
		return false
	}
	rec, err := repo.GetIdempotency(c.Request.Context(), h.db, tenantID(c), middleware.RouteKey(c), key, time.Now().UTC())
	if err != nil || rec == nil {
		// Lookup failures fall through to normal processing; the unique
		// index still deduplicates the store step.
		return false
	}
	h.serveStored(c, rec, reqHash)
	return true
}

// storeIdempotent persists a terminal response for later replay.
// First-writer-wins: when a concurrent retry already stored a record for this
// key between our lookup and our insert, that record is returned so the caller
// serves it instead of the locally computed outcome, keeping every response
// under the key identical.
func (h *Handlers) storeIdempotent(c *gin.Context, key, reqHash string, status int, body []byte) *domain.Idempotency {
	if key == "" || h.db == nil {
		return nil
	}
	ctx := c.Request.Context()
	route := middleware.RouteKey(c)
	_, err := repo.CreateIdempotency(ctx, h.db, tenantID(c), route, key, reqHash, status, body, h.idemTTL)
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrDuplicate) {
		rec, rerr := repo.GetIdempotency(ctx, h.db, tenantID(c), route, key, time.Now().UTC())
		if rerr == nil && rec != nil {
			return rec
		}
		return nil
	}
	middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency store failed")
	return nil
}

// writeRecorded marshals body, records it under the idempotency key when one
// is present, and writes it with status. A concurrent writer that stored the
// key first wins: its record is served instead.
func (h *Handlers) writeRecorded(c *gin.Context, key, reqHash string, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "response encoding failed")
		return
	}
	if rec := h.storeIdempotent(c, key, reqHash, status, raw); rec != nil {
		h.serveStored(c, rec, reqHash)
		return
	}
	c.Data(status, "application/json; charset=utf-8", raw)
}

// failRecorded writes a structured error like fail() and records it as the
// key's terminal outcome, so retries replay the refusal instead of re-running
// the operation. A refusal that lost the store race to a concurrent success
// yields to the stored record: the winner's outcome is the key's truth.
func (h *Handlers) failRecorded(c *gin.Context, key, reqHash string, status int, code, msg string) {
	raw, _ := json.Marshal(ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
	c.Abort()
	if rec := h.storeIdempotent(c, key, reqHash, status, raw); rec != nil {
		h.serveStored(c, rec, reqHash)
		return
	}
	c.Data(status, "application/json; charset=utf-8", raw)
}

// serviceOutcome maps a booking-service error to (status, code, message) for
// the recorded-error path.
func serviceOutcome(err error) (int, string, string) {
	switch err {
	case services.ErrNotFound:
		return http.StatusNotFound, ErrCodeNotFound, "resource not found"
	case services.ErrInvalidInterval:
		return http.StatusBadRequest, ErrCodeBadRequest, "end must be after start"
	case services.ErrEmployeeInactive:
		return http.StatusUnprocessableEntity, ErrCodeEmployeeInactive, "employee is not active"
	case services.ErrConflict:
		return http.StatusConflict, ErrCodeConflict, "interval conflicts with an existing appointment"
	case services.ErrWindowClosed:
		return http.StatusUnprocessableEntity, ErrCodeWindowClosed, "too close to the appointment start"
	case services.ErrNotActive:
		return http.StatusConflict, ErrCodeNotActive, "appointment is not active"
	default:
		return http.StatusInternalServerError, ErrCodeCreateFailed, err.Error()
	}
}

//
// Handlers
//

// CreateAppointment books an appointment.
//
// POST /appointments
func (h *Handlers) CreateAppointment(c *gin.Context) {
	ctx := c.Request.Context()

	raw, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable request body")
		return
	}
	reqHash := hashBody(raw)

	idemKey, _ := middleware.GetIdempotencyKey(c)
	if h.replayIdempotent(c, idemKey, reqHash) {
		return
	}

	var req CreateAppointmentRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.EmployeeID == "" || req.ServiceID == "" || req.ClientID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "employee_id, service_id and client_id are required")
		return
	}
	start, okStart := parseRFC3339(req.StartAt)
	if !okStart {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_at must be RFC 3339")
		return
	}
	var end time.Time
	if req.EndAt != "" {
		var okEnd bool
		if end, okEnd = parseRFC3339(req.EndAt); !okEnd {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "end_at must be RFC 3339")
			return
		}
	}

	appt, err := h.bookingSvc.Create(ctx, tenantID(c), actorID(c), services.CreateBookingInput{
		EmployeeID: req.EmployeeID,
		ServiceID:  req.ServiceID,
		ClientID:   req.ClientID,
		StartAt:    start,
		EndAt:      end,
		Notes:      req.Notes,
	})
	if err != nil {
		status, code, msg := serviceOutcome(err)
		if status < http.StatusInternalServerError && services.IsTerminal(err) {
			// Terminal refusals are recorded: retrying the identical
			// request cannot change the outcome.
			h.failRecorded(c, idemKey, reqHash, status, code, msg)
			return
		}
		fail(c, status, code, msg)
		return
	}

	h.writeRecorded(c, idemKey, reqHash, http.StatusCreated, AppointmentResponse{Appointment: appt})
}

// GetAppointment fetches one appointment.
//
// GET /appointments/:id
func (h *Handlers) GetAppointment(c *gin.Context) {
	appt, err := h.bookingSvc.Get(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, AppointmentResponse{Appointment: appt})
}

// ListAppointments returns a page of the tenant's appointments, optionally
// filtered by employee_id.
//
// GET /appointments
func (h *Handlers) ListAppointments(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.bookingSvc.ListPage(c.Request.Context(), tenantID(c), c.Query("employee_id"), page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListAppointmentsResponse{
		Appointments: items,
		Pagination:   newPagination(page, pageSize, total),
	})
}

// CancelAppointment cancels an appointment. The row is kept with status
// "canceled"; its interval no longer blocks bookings.
//
// DELETE /appointments/:id
func (h *Handlers) CancelAppointment(c *gin.Context) {
	appt, err := h.bookingSvc.Cancel(c.Request.Context(), tenantID(c), actorID(c), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusOK, AppointmentResponse{Appointment: appt})
}

// RescheduleAppointment moves an appointment to a new interval.
//
// PATCH /appointments/:id
func (h *Handlers) RescheduleAppointment(c *gin.Context) {
	ctx := c.Request.Context()

	raw, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable request body")
		return
	}
	reqHash := hashBody(raw)

	idemKey, _ := middleware.GetIdempotencyKey(c)
	if h.replayIdempotent(c, idemKey, reqHash) {
		return
	}

	var req RescheduleRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	start, okStart := parseRFC3339(req.StartAt)
	if !okStart {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_at must be RFC 3339")
		return
	}
	var end time.Time
	if req.EndAt != "" {
		var okEnd bool
		if end, okEnd = parseRFC3339(req.EndAt); !okEnd {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "end_at must be RFC 3339")
			return
		}
	}

	appt, err := h.bookingSvc.Reschedule(ctx, tenantID(c), actorID(c), c.Param("id"), start, end)
	if err != nil {
		status, code, msg := serviceOutcome(err)
		if status < http.StatusInternalServerError && services.IsTerminal(err) {
			h.failRecorded(c, idemKey, reqHash, status, code, msg)
			return
		}
		fail(c, status, code, msg)
		return
	}

	h.writeRecorded(c, idemKey, reqHash, http.StatusOK, AppointmentResponse{Appointment: appt})
}

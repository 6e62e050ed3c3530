// Availability HTTP handler.
//
// GET /availability returns an employee's free slots for one calendar day.
// The computation is a pure function of the day's appointments and the grid
// parameters, so responses are cacheable; the service layer handles the
// cache-aside logic and its invalidation.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-booking-backend/internal/timeutil"
	"github.com/tbourn/go-booking-backend/internal/utils"
)

// AvailabilityResponse lists the free slots for one employee and day.
type AvailabilityResponse struct {
	EmployeeID  string          `json:"employee_id"`
	Date        string          `json:"date"` // YYYY-MM-DD (UTC)
	SlotMinutes int             `json:"slot_minutes"`
	Slots       []timeutil.Slot `json:"slots"`
}

// GetAvailability computes the free slot grid.
//
// Query parameters:
//   - employee_id (required)
//   - date         (required, YYYY-MM-DD, interpreted as UTC)
//   - slot_minutes (optional; service default applies when omitted)
func (h *Handlers) GetAvailability(c *gin.Context) {
	employeeID := c.Query("employee_id")
	if employeeID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "employee_id is required")
		return
	}
	day, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date must be YYYY-MM-DD")
		return
	}
	slotMinutes := utils.AtoiDefault(c.Query("slot_minutes"), 0)
	if slotMinutes < 0 || slotMinutes > 24*60 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "slot_minutes out of range")
		return
	}

	slots, err := h.availSvc.FreeSlots(c.Request.Context(), tenantID(c), employeeID, day.UTC(), slotMinutes)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if slots == nil {
		slots = []timeutil.Slot{}
	}
	if slotMinutes == 0 && len(slots) > 0 {
		// Echo the step the service actually used.
		slotMinutes = int(slots[0].End.Sub(slots[0].Start).Minutes())
	}

	ok(c, http.StatusOK, AvailabilityResponse{
		EmployeeID:  employeeID,
		Date:        day.UTC().Format("2006-01-02"),
		SlotMinutes: slotMinutes,
		Slots:       slots,
	})
}

// Package services – AvailabilityService
//
// This file computes an employee's free slots for a day: the configured slot
// grid minus everything that overlaps an active appointment. Reads go through
// the availability cache when one is wired; any cache failure degrades to a
// repository read, never to an error.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-booking-backend/internal/cache"
	"github.com/tbourn/go-booking-backend/internal/repo"
	"github.com/tbourn/go-booking-backend/internal/timeutil"
)

// AvailabilityService computes per-employee free slot grids.
type AvailabilityService struct {
	DB    *gorm.DB
	Cache *cache.Availability

	// DayStartHour/DayEndHour bound the grid in UTC hours; SlotMinutes is the
	// step used when the request does not override it.
	DayStartHour int
	DayEndHour   int
	SlotMinutes  int
}

// NewAvailabilityService wires an AvailabilityService.
func NewAvailabilityService(db *gorm.DB, c *cache.Availability, dayStart, dayEnd, slotMinutes int) *AvailabilityService {
	return &AvailabilityService{
		DB:           db,
		Cache:        c,
		DayStartHour: dayStart,
		DayEndHour:   dayEnd,
		SlotMinutes:  slotMinutes,
	}
}

// FreeSlots returns the employee's open slots on the given calendar day.
//
// The computation is deterministic: the same appointments and parameters
// always produce the same grid. An inactive employee yields an empty list
// (their calendar is closed, not missing); an unknown or cross-tenant
// employee yields ErrNotFound.
func (s *AvailabilityService) FreeSlots(ctx context.Context, tenantID, employeeID string, day time.Time, slotMinutes int) ([]timeutil.Slot, error) {
	emp, err := repo.GetEmployee(ctx, s.DB, employeeID, tenantID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !emp.Active {
		return []timeutil.Slot{}, nil
	}
	if slotMinutes <= 0 {
		slotMinutes = s.SlotMinutes
	}

	if s.Cache != nil {
		if slots, ok, _ := s.Cache.Get(ctx, tenantID, emp.LocationID, employeeID, day, slotMinutes); ok {
			return slots, nil
		}
	}

	slots, err := s.compute(ctx, tenantID, employeeID, day, slotMinutes)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		// Best effort: a failed Put just means the next read recomputes.
		_ = s.Cache.Put(ctx, tenantID, emp.LocationID, employeeID, day, slotMinutes, slots)
	}
	return slots, nil
}

// compute builds the slot grid and removes every slot that overlaps a busy
// interval. Slots merely touching a busy interval stay free.
func (s *AvailabilityService) compute(ctx context.Context, tenantID, employeeID string, day time.Time, slotMinutes int) ([]timeutil.Slot, error) {
	dayStart, dayEnd := timeutil.DayBounds(day)
	appts, err := repo.ListDay(ctx, s.DB, tenantID, employeeID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	busy := make([]timeutil.Slot, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, timeutil.Slot{Start: a.StartAt, End: a.EndAt})
	}

	grid := timeutil.DaySlots(day, s.DayStartHour, s.DayEndHour, slotMinutes)
	free := make([]timeutil.Slot, 0, len(grid))
	for _, slot := range grid {
		if !timeutil.OverlapsAny(slot.Start, slot.End, busy) {
			free = append(free, slot)
		}
	}
	return free, nil
}

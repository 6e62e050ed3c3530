// Package timeutil provides interval arithmetic for the booking domain.
//
// All appointment intervals are half-open: [start, end). Two intervals that
// merely touch (one ends exactly when the other starts) do not overlap, which
// lets back-to-back bookings share a boundary instant.
package timeutil

import "time"

// Slot is a single bookable candidate interval within a working day.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share at least one instant. The test is commutative and
// touching endpoints never overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// OverlapsAny reports whether [start, end) overlaps any of the busy slots.
func OverlapsAny(start, end time.Time, busy []Slot) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// DayBounds returns the UTC midnight-to-midnight window containing day.
// The returned interval is half-open like everything else here.
func DayBounds(day time.Time) (start, end time.Time) {
	d := day.UTC()
	start = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// DaySlots generates the ordered, fixed-length candidate slot grid for one
// UTC calendar day between startHour and endHour. The grid is deterministic
// for identical inputs; slots that would spill past endHour are not emitted.
// Invalid parameters (non-positive step, inverted hours, hours outside a day)
// yield an empty grid rather than an error.
func DaySlots(day time.Time, startHour, endHour, stepMinutes int) []Slot {
	if stepMinutes <= 0 || startHour < 0 || endHour > 24 || startHour >= endHour {
		return nil
	}
	d := day.UTC()
	open := time.Date(d.Year(), d.Month(), d.Day(), startHour, 0, 0, 0, time.UTC)
	close := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC).
		Add(time.Duration(endHour) * time.Hour)

	step := time.Duration(stepMinutes) * time.Minute
	var slots []Slot
	for t := open; !t.Add(step).After(close); t = t.Add(step) {
		slots = append(slots, Slot{Start: t, End: t.Add(step)})
	}
	return slots
}

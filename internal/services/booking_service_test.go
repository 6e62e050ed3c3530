package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-booking-backend/internal/cache"
	"github.com/tbourn/go-booking-backend/internal/domain"
	"github.com/tbourn/go-booking-backend/internal/store"
)

// bookingEnv bundles a booking service over a fresh in-memory database with
// one active employee, one 30-minute service, and one client for tenant t1.
type bookingEnv struct {
	db    *gorm.DB
	svc   *BookingService
	audit *AuditService

	employeeID string
	serviceID  string
	clientID   string
}

func newBookingEnv(t *testing.T) *bookingEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:booksvc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA busy_timeout=5000;")
	if err := db.AutoMigrate(&domain.Employee{}, &domain.Service{}, &domain.Client{},
		&domain.Appointment{}, &domain.AuditEntry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	env := &bookingEnv{
		db:         db,
		employeeID: uuid.NewString(),
		serviceID:  uuid.NewString(),
		clientID:   uuid.NewString(),
	}
	seed := []interface{}{
		&domain.Employee{ID: env.employeeID, TenantID: "t1", LocationID: "loc1", Name: "Dana", Active: true},
		&domain.Service{ID: env.serviceID, TenantID: "t1", LocationID: "loc1", Name: "Haircut", DurationMin: 30, PriceCents: 2500},
		&domain.Client{ID: env.clientID, TenantID: "t1", Name: "Sam"},
	}
	for _, row := range seed {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	env.audit = NewAuditService(db, "test-secret")
	c := cache.NewAvailability(store.NewMemory(), time.Minute)
	env.svc = NewBookingService(db, c, env.audit, time.Hour, domain.StatusConfirmed)
	return env
}

// at returns a fixed future instant on a known day, offset by minutes.
func at(minutes int) time.Time {
	base := time.Date(2026, 9, 10, 10, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(minutes) * time.Minute)
}

func (e *bookingEnv) create(t *testing.T, start, end time.Time) *domain.Appointment {
	t.Helper()
	a, err := e.svc.Create(context.Background(), "t1", "actor", CreateBookingInput{
		EmployeeID: e.employeeID,
		ServiceID:  e.serviceID,
		ClientID:   e.clientID,
		StartAt:    start,
		EndAt:      end,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return a
}

func TestCreate_DefaultsEndFromServiceDuration(t *testing.T) {
	env := newBookingEnv(t)

	a := env.create(t, at(0), time.Time{})
	if !a.EndAt.Equal(at(30)) {
		t.Fatalf("end = %v, want %v", a.EndAt, at(30))
	}
	if a.Status != domain.StatusConfirmed {
		t.Fatalf("status = %q", a.Status)
	}
	if a.LocationID != "loc1" {
		t.Fatalf("location = %q", a.LocationID)
	}
}

func TestCreate_OverlapConflicts_TouchingDoesNot(t *testing.T) {
	env := newBookingEnv(t)
	ctx := context.Background()

	// Book 10:00–10:30.
	env.create(t, at(0), at(30))

	// 10:15–10:45 overlaps.
	_, err := env.svc.Create(ctx, "t1", "actor", CreateBookingInput{
		EmployeeID: env.employeeID, ServiceID: env.serviceID, ClientID: env.clientID,
		StartAt: at(15), EndAt: at(45),
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("overlap: want ErrConflict, got %v", err)
	}

	// 10:30–11:00 touches the boundary and must succeed.
	env.create(t, at(30), at(60))
}

func TestCreate_InvalidInterval(t *testing.T) {
	env := newBookingEnv(t)
	ctx := context.Background()

	for _, tc := range []struct {
		name       string
		start, end time.Time
	}{
		{"end equals start", at(0), at(0)},
		{"end before start", at(30), at(0)},
		{"zero start", time.Time{}, at(30)},
	} {
		_, err := env.svc.Create(ctx, "t1", "actor", CreateBookingInput{
			EmployeeID: env.employeeID, ServiceID: env.serviceID, ClientID: env.clientID,
			StartAt: tc.start, EndAt: tc.end,
		})
		if !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("%s: want ErrInvalidInterval, got %v", tc.name, err)
		}
	}
}

func TestCreate_InactiveEmployee(t *testing.T) {
	env := newBookingEnv(t)
	if err := env.db.Model(&domain.Employee{}).
		Where("id = ?", env.employeeID).
		Update("active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := env.svc.Create(context.Background(), "t1", "actor", CreateBookingInput{
		EmployeeID: env.employeeID, ServiceID: env.serviceID, ClientID: env.clientID,
		StartAt: at(0),
	})
	if !errors.Is(err, ErrEmployeeInactive) {
		t.Fatalf("want ErrEmployeeInactive, got %v", err)
	}
}

func TestCreate_CrossTenantReferencesReadAsNotFound(t *testing.T) {
	env := newBookingEnv(t)
	ctx := context.Background()

	// t2 cannot use t1's employee; the error must not reveal existence.
	_, err := env.svc.Create(ctx, "t2", "actor", CreateBookingInput{
		EmployeeID: env.employeeID, ServiceID: env.serviceID, ClientID: env.clientID,
		StartAt: at(0),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant employee: want ErrNotFound, got %v", err)
	}
}

func TestCreate_AuditsTheCreate(t *testing.T) {
	env := newBookingEnv(t)

	a := env.create(t, at(0), at(30))

	var entries []domain.AuditEntry
	if err := env.db.Where("tenant_id = ?", "t1").Find(&entries).Error; err != nil {
		t.Fatalf("read audit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d", len(entries))
	}
	e := entries[0]
	if e.Operation != domain.AuditCreate || e.Entity != "appointment" || e.EntityID != a.ID {
		t.Fatalf("audit entry: %+v", e)
	}
	if e.Before != "" || e.After == "" {
		t.Fatalf("create snapshot: before=%q after-empty=%v", e.Before, e.After == "")
	}
}

func TestCreate_ConflictRollsBackAudit(t *testing.T) {
	env := newBookingEnv(t)
	ctx := context.Background()

	env.create(t, at(0), at(30))
	_, err := env.svc.Create(ctx, "t1", "actor", CreateBookingInput{
		EmployeeID: env.employeeID, ServiceID: env.serviceID, ClientID: env.clientID,
		StartAt: at(10), EndAt: at(40),
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}

	// Only the successful create is on the chain.
	res, err := env.audit.VerifyChain(ctx, "t1")
	if err != nil || !res.Valid || res.Entries != 1 {
		t.Fatalf("chain after conflict: %+v, %v", res, err)
	}
}

func TestCancel_WindowAndStatusRules(t *testing.T) {
	env := newBookingEnv(t)
	ctx := context.Background()

	a := env.create(t, at(0), at(30)) // starts 10:00, notice window is 1h

	// 90 minutes before start: allowed.
	env.svc.now = func() time.Time { return at(-90) }
	got, err := env.svc.Cancel(ctx, "t1", "actor", a.ID)
	if err != nil {
		t.Fatalf("cancel outside window: %v", err)
	}
	if got.Status != domain.StatusCanceled {
		t.Fatalf("status = %q", got.Status)
	}

	// Canceling again is refused: no longer active.
	if _, err := env.svc.Cancel(ctx, "t1", "actor", a.ID); !errors.Is(err, ErrNotActive) {
		t.Fatalf("double cancel: want ErrNotActive, got %v", err)
	}

	// A second appointment, attempted 30 minutes before start: refused.
	b := env.create(t, at(60), at(90)) // starts 11:00
	env.svc.now = func() time.Time { return at(30) }
	if _, err := env.svc.Cancel(ctx, "t1", "actor", b.ID); !errors.Is(err, ErrWindowClosed) {
		t.Fatalf("cancel inside window: want ErrWindowClosed, got %v", err)
	}
}

func TestCancel_FreesTheSlot(t *testing.T) {
	env := newBookingEnv(t)
	ctx := context.Background()

	a := env.create(t, at(0), at(30))
	env.svc.now = func() time.Time { return at(-120) }
	if _, err := env.svc.Cancel(ctx, "t1", "actor", a.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The vacated interval books again.
	env.create(t, at(0), at(30))
}

func TestCancel_CrossTenant(t *testing.T) {
	env := newBookingEnv(t)
	a := env.create(t, at(0), at(30))

	if _, err := env.svc.Cancel(context.Background(), "t2", "actor", a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant cancel: want ErrNotFound, got %v", err)
	}
}

func TestReschedule_MovesAndRechecksOverlap(t *testing.T) {
	env := newBookingEnv(t)
	ctx := context.Background()
	env.svc.now = func() time.Time { return at(-240) }

	a := env.create(t, at(0), at(30))
	env.create(t, at(60), at(90))

	// Moving onto the second appointment conflicts.
	if _, err := env.svc.Reschedule(ctx, "t1", "actor", a.ID, at(45), at(75)); !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}

	// Shifting within its own slot succeeds: the appointment is excluded
	// from its own overlap check.
	got, err := env.svc.Reschedule(ctx, "t1", "actor", a.ID, at(15), at(45))
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !got.StartAt.Equal(at(15)) || !got.EndAt.Equal(at(45)) {
		t.Fatalf("moved to [%v, %v)", got.StartAt, got.EndAt)
	}
}

func TestReschedule_ZeroEndKeepsDuration(t *testing.T) {
	env := newBookingEnv(t)
	env.svc.now = func() time.Time { return at(-240) }

	a := env.create(t, at(0), at(45))
	got, err := env.svc.Reschedule(context.Background(), "t1", "actor", a.ID, at(120), time.Time{})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !got.EndAt.Equal(at(165)) {
		t.Fatalf("end = %v, want %v", got.EndAt, at(165))
	}
}

func TestReschedule_WindowClosed(t *testing.T) {
	env := newBookingEnv(t)

	a := env.create(t, at(0), at(30))
	env.svc.now = func() time.Time { return at(-30) }
	if _, err := env.svc.Reschedule(context.Background(), "t1", "actor", a.ID, at(120), at(150)); !errors.Is(err, ErrWindowClosed) {
		t.Fatalf("want ErrWindowClosed, got %v", err)
	}
}

func TestCreate_ConcurrentSameSlot_OneWins(t *testing.T) {
	env := newBookingEnv(t)
	ctx := context.Background()

	const n = 6
	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, conflicted int
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := env.svc.Create(ctx, "t1", "actor", CreateBookingInput{
				EmployeeID: env.employeeID, ServiceID: env.serviceID, ClientID: env.clientID,
				StartAt: at(0), EndAt: at(30),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrConflict):
				conflicted++
			case strings.Contains(err.Error(), "locked") || strings.Contains(err.Error(), "busy"):
				// SQLite aborts one of two write-upgrading transactions;
				// losing the write lock is as good as losing the slot.
				conflicted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("created = %d, want exactly 1 (conflicted = %d)", created, conflicted)
	}
	var count int64
	env.db.Model(&domain.Appointment{}).Where("tenant_id = ?", "t1").Count(&count)
	if count != 1 {
		t.Fatalf("rows = %d", count)
	}
}

func TestListPage(t *testing.T) {
	env := newBookingEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		env.create(t, at(i*60), at(i*60+30))
	}

	items, total, err := env.svc.ListPage(ctx, "t1", "", 1, 3)
	if err != nil || total != 5 || len(items) != 3 {
		t.Fatalf("page: items=%d total=%d err=%v", len(items), total, err)
	}
	if !items[0].StartAt.After(items[1].StartAt) {
		t.Fatal("expected newest start first")
	}
	if got, total, _ := env.svc.ListPage(ctx, "t2", "", 1, 3); len(got) != 0 || total != 0 {
		t.Fatalf("foreign tenant sees %d appointments", len(got))
	}
}

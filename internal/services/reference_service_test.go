package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-booking-backend/internal/domain"
)

func newRefEnv(t *testing.T) (*ReferenceService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:refsvc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Employee{}, &domain.Service{}, &domain.Client{}, &domain.AuditEntry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return NewReferenceService(db, NewAuditService(db, "k")), db
}

func auditCount(t *testing.T, db *gorm.DB, tenantID string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.AuditEntry{}).Where("tenant_id = ?", tenantID).Count(&n).Error; err != nil {
		t.Fatalf("count audit: %v", err)
	}
	return n
}

func TestReferenceCreateEmployee_Audited(t *testing.T) {
	svc, db := newRefEnv(t)
	ctx := context.Background()

	e, err := svc.CreateEmployee(ctx, "t1", "admin", "loc1", "  Dana ")
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	if e.Name != "Dana" || !e.Active {
		t.Fatalf("employee: %+v", e)
	}
	if n := auditCount(t, db, "t1"); n != 1 {
		t.Fatalf("audit entries = %d", n)
	}

	if _, err := svc.CreateEmployee(ctx, "t1", "admin", "loc1", "   "); err == nil {
		t.Fatal("blank name accepted")
	}
}

func TestReferenceDeactivateEmployee_Audited(t *testing.T) {
	svc, db := newRefEnv(t)
	ctx := context.Background()

	e, err := svc.CreateEmployee(ctx, "t1", "admin", "loc1", "Dana")
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	if err := svc.DeactivateEmployee(ctx, "t1", "admin", e.ID); err != nil {
		t.Fatalf("DeactivateEmployee: %v", err)
	}
	if n := auditCount(t, db, "t1"); n != 2 {
		t.Fatalf("audit entries = %d", n)
	}

	// The update entry carries before/after snapshots.
	var entry domain.AuditEntry
	if err := db.Where("tenant_id = ? AND operation = ?", "t1", domain.AuditUpdate).First(&entry).Error; err != nil {
		t.Fatalf("read update entry: %v", err)
	}
	if entry.Before == "" || entry.After == "" {
		t.Fatalf("update snapshots: before=%q after=%q", entry.Before, entry.After)
	}

	if err := svc.DeactivateEmployee(ctx, "t2", "admin", e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant deactivate: want ErrNotFound, got %v", err)
	}
}

func TestReferenceCreateService_Validation(t *testing.T) {
	svc, db := newRefEnv(t)
	ctx := context.Background()

	s, err := svc.CreateService(ctx, "t1", "admin", &domain.Service{
		LocationID: "loc1", Name: "Haircut", DurationMin: 30, PriceCents: 2500,
	})
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	if s.TenantID != "t1" {
		t.Fatalf("tenant not stamped: %q", s.TenantID)
	}
	if n := auditCount(t, db, "t1"); n != 1 {
		t.Fatalf("audit entries = %d", n)
	}

	bad := []*domain.Service{
		nil,
		{Name: "", DurationMin: 30},
		{Name: "X", DurationMin: 0},
		{Name: "X", DurationMin: 30, PriceCents: -1},
	}
	for i, b := range bad {
		if _, err := svc.CreateService(ctx, "t1", "admin", b); err == nil {
			t.Errorf("bad service %d accepted", i)
		}
	}
}

func TestReferenceCreateClient_Audited(t *testing.T) {
	svc, db := newRefEnv(t)
	ctx := context.Background()

	c, err := svc.CreateClient(ctx, "t1", "admin", &domain.Client{Name: "Sam", Email: "sam@example.com"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if c.TenantID != "t1" {
		t.Fatalf("tenant not stamped: %q", c.TenantID)
	}
	if n := auditCount(t, db, "t1"); n != 1 {
		t.Fatalf("audit entries = %d", n)
	}

	clients, err := svc.ListClients(ctx, "t1")
	if err != nil || len(clients) != 1 {
		t.Fatalf("ListClients: %d, %v", len(clients), err)
	}
	if got, _ := svc.ListClients(ctx, "t2"); len(got) != 0 {
		t.Fatalf("foreign tenant sees %d clients", len(got))
	}
}

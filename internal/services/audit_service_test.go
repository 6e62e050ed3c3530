package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-booking-backend/internal/domain"
)

func newAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:auditsvc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA busy_timeout=5000;")
	if err := db.AutoMigrate(&domain.AuditEntry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func appendN(t *testing.T, svc *AuditService, tenantID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := svc.Append(context.Background(), svc.DB, AuditEvent{
			TenantID:  tenantID,
			ActorID:   "actor",
			Entity:    "appointment",
			EntityID:  fmt.Sprintf("a%d", i),
			Operation: domain.AuditCreate,
			After:     fmt.Sprintf(`{"n":%d}`, i),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
}

func TestAuditAppend_ChainsSequentially(t *testing.T) {
	db := newAuditTestDB(t)
	svc := NewAuditService(db, "test-secret")
	ctx := context.Background()

	appendN(t, svc, "t1", 3)

	var entries []domain.AuditEntry
	if err := db.Where("tenant_id = ?", "t1").Order("seq asc").Find(&entries).Error; err != nil {
		t.Fatalf("read chain: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("chain length = %d", len(entries))
	}
	if entries[0].Seq != 1 || entries[0].PrevHash != "" {
		t.Fatalf("genesis entry: seq=%d prev=%q", entries[0].Seq, entries[0].PrevHash)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Seq != entries[i-1].Seq+1 {
			t.Fatalf("seq gap at %d: %d -> %d", i, entries[i-1].Seq, entries[i].Seq)
		}
		if entries[i].PrevHash != entries[i-1].Hash {
			t.Fatalf("link broken at %d", i)
		}
	}

	res, err := svc.VerifyChain(ctx, "t1")
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if !res.Valid || res.Entries != 3 || res.BrokenAtIndex != nil {
		t.Fatalf("verify = %+v", res)
	}
}

func TestAuditVerify_DetectsTampering(t *testing.T) {
	db := newAuditTestDB(t)
	svc := NewAuditService(db, "test-secret")
	ctx := context.Background()

	appendN(t, svc, "t1", 4)

	// Rewrite the After field of the second entry without rehashing.
	if err := db.Model(&domain.AuditEntry{}).
		Where("tenant_id = ? AND seq = ?", "t1", 2).
		Update("after", `{"tampered":true}`).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}

	res, err := svc.VerifyChain(ctx, "t1")
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if res.Valid {
		t.Fatal("tampered chain verified as valid")
	}
	if res.BrokenAtIndex == nil || *res.BrokenAtIndex != 1 {
		t.Fatalf("broken index = %v, want 1", res.BrokenAtIndex)
	}
}

func TestAuditVerify_DetectsWrongKey(t *testing.T) {
	db := newAuditTestDB(t)
	ctx := context.Background()

	appendN(t, NewAuditService(db, "secret-a"), "t1", 2)

	res, err := NewAuditService(db, "secret-b").VerifyChain(ctx, "t1")
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if res.Valid {
		t.Fatal("chain verified under the wrong key")
	}
}

func TestAuditDegradedMode(t *testing.T) {
	db := newAuditTestDB(t)
	svc := NewAuditService(db, "")
	if !svc.Degraded() {
		t.Fatal("empty secret should report degraded")
	}

	appendN(t, svc, "t1", 2)
	res, err := svc.VerifyChain(context.Background(), "t1")
	if err != nil || !res.Valid {
		t.Fatalf("degraded chain should still verify: %+v, %v", res, err)
	}
}

func TestAuditChains_TenantIndependent(t *testing.T) {
	db := newAuditTestDB(t)
	svc := NewAuditService(db, "k")

	appendN(t, svc, "t1", 2)
	appendN(t, svc, "t2", 1)

	var e domain.AuditEntry
	if err := db.Where("tenant_id = ?", "t2").First(&e).Error; err != nil {
		t.Fatalf("read t2: %v", err)
	}
	if e.Seq != 1 || e.PrevHash != "" {
		t.Fatalf("t2 genesis: seq=%d prev=%q", e.Seq, e.PrevHash)
	}
}

func TestAuditAppend_ConcurrentSameTenant(t *testing.T) {
	db := newAuditTestDB(t)
	svc := NewAuditService(db, "k")
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := svc.Append(ctx, db, AuditEvent{
				TenantID:  "t1",
				Entity:    "appointment",
				EntityID:  fmt.Sprintf("a%d", i),
				Operation: domain.AuditCreate,
			})
			if err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	res, err := svc.VerifyChain(ctx, "t1")
	if err != nil || !res.Valid || res.Entries != n {
		t.Fatalf("concurrent chain: %+v, %v", res, err)
	}
}

func TestAuditListPage(t *testing.T) {
	db := newAuditTestDB(t)
	svc := NewAuditService(db, "k")
	ctx := context.Background()

	appendN(t, svc, "t1", 5)

	items, total, err := svc.ListPage(ctx, "t1", 1, 2)
	if err != nil || total != 5 || len(items) != 2 {
		t.Fatalf("page 1: items=%d total=%d err=%v", len(items), total, err)
	}
	if items[0].Seq != 5 {
		t.Fatalf("newest first expected, got seq %d", items[0].Seq)
	}
	if got, total, _ := svc.ListPage(ctx, "t2", 1, 2); len(got) != 0 || total != 0 {
		t.Fatalf("foreign tenant sees %d entries", len(got))
	}
}

// Package domain defines the core persistence models for the application.
package domain

import "time"

// Audit operations.
const (
	AuditCreate = "CREATE"
	AuditUpdate = "UPDATE"
	AuditDelete = "DELETE"
)

// AuditEntry is one link in a tenant's tamper-evident mutation log.
//
// Seq is a dense per-tenant sequence number; UNIQUE(tenant_id, seq) is the
// storage-level guarantee that two concurrent appends cannot both claim the
// same predecessor. PrevHash of entry n equals Hash of entry n-1 for the
// same tenant ("" for the first). Hash is a keyed digest over the entry's
// canonical serialization including PrevHash. Entries are immutable once
// written; the chain is append-only.
type AuditEntry struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	TenantID  string    `json:"tenant_id"  gorm:"type:varchar(64);not null;uniqueIndex:ux_tenant_seq,priority:1"`
	Seq       int64     `json:"seq"        gorm:"not null;uniqueIndex:ux_tenant_seq,priority:2"`
	ActorID   string    `json:"actor_id"   gorm:"type:varchar(64)"`
	Entity    string    `json:"entity"     gorm:"type:varchar(64);not null"`
	EntityID  string    `json:"entity_id"  gorm:"type:varchar(64);not null"`
	Operation string    `json:"operation"  gorm:"type:varchar(16);not null;check:operation IN ('CREATE','UPDATE','DELETE')"`
	Before    string    `json:"before,omitempty" gorm:"type:text"`
	After     string    `json:"after,omitempty"  gorm:"type:text"`
	PrevHash  string    `json:"prev_hash"  gorm:"type:varchar(64);not null"`
	Hash      string    `json:"hash"       gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

// TableName implements the GORM tabler interface.
func (AuditEntry) TableName() string { return "audit_entries" }

// Package domain defines the core persistence models for the application.
package domain

import "time"

// Idempotency records the outcome of a previously processed mutating request,
// keyed by (tenant_id, route, key). Replays within the TTL return the stored
// (status, body) byte-for-byte without re-executing side effects; a replay
// whose RequestHash differs from the stored one is a key-reuse conflict.
type Idempotency struct {
	ID          string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	TenantID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_tenant_route_key,priority:1"`
	Route       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_tenant_route_key,priority:2"`
	Key         string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_tenant_route_key,priority:3"`
	RequestHash string    `gorm:"type:TEXT NOT NULL"`
	Status      int       `gorm:"type:INTEGER NOT NULL"`
	Body        []byte    `gorm:"type:BLOB"`
	CreatedAt   time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

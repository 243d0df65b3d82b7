package entity

import "time"

// AuditLog records who did what to which entity.
type AuditLog struct {
	Entity    string
	EntityID  string
	Action    string
	ActorID   string
	Metadata  map[string]any
	CreatedAt time.Time
}

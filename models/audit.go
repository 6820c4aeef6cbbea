package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// AuditEvent represents an immutable audit log entry for an admin action.
type AuditEvent struct {
	ID           string                 `bson:"_id,omitempty" json:"id"`
	Timestamp    time.Time              `bson:"timestamp" json:"timestamp"`
	UserID       string                 `bson:"user_id" json:"user_id"`
	Role         string                 `bson:"role" json:"role"`
	Action       string                 `bson:"action" json:"action"`
	Resource     string                 `bson:"resource" json:"resource"`
	ResourceID   string                 `bson:"resource_id,omitempty" json:"resource_id,omitempty"`
	IPAddress    string                 `bson:"ip_address" json:"ip_address"`
	RequestID    string                 `bson:"request_id" json:"request_id"`
	Status       int                    `bson:"status" json:"status"`
	Success      bool                   `bson:"success" json:"success"`
	Changes      map[string]interface{} `bson:"changes,omitempty" json:"changes,omitempty"`
	PreviousHash string                 `bson:"previous_hash" json:"previous_hash"`
	CurrentHash  string                 `bson:"current_hash" json:"current_hash"`
}

// ComputeHash chains this event to the previous one.
func (e *AuditEvent) ComputeHash() string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%s",
		e.Timestamp.Format(time.RFC3339Nano),
		e.UserID,
		e.Action,
		e.Resource,
		e.ResourceID,
		e.Status,
		e.PreviousHash,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

package models

import (
	"time"
)

// AuditEventType classifies security-relevant actions
type AuditEventType string

const (
	AuditAuthentication AuditEventType = "authentication"
	AuditAdminAction    AuditEventType = "admin_action"
	AuditSecurityEvent  AuditEventType = "security_event"
	AuditDataAccess     AuditEventType = "data_access"
)

// AuditEvent is one line in the append-only audit log
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType AuditEventType `json:"event_type"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Status    string         `json:"status"` // "success" or "failure"
	IPAddress string         `json:"ip_address"`
	Details   map[string]any `json:"details,omitempty"`
}

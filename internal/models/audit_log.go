package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// Authentication events
	EventAuthenticationSuccess EventType = "AUTHENTICATION_SUCCESS"
	EventAuthenticationDenied  EventType = "AUTHENTICATION_DENIED"

	// Provisioning events
	EventUserProvisioned EventType = "USER_PROVISIONED"
	EventUserEmailSynced EventType = "USER_EMAIL_SYNCED"

	// Proxy events
	EventBackendFault EventType = "BACKEND_FAULT"
)

// EventSeverity represents the severity level of an audit event
type EventSeverity string

const (
	SeverityInfo    EventSeverity = "INFO"
	SeverityWarning EventSeverity = "WARNING"
	SeverityError   EventSeverity = "ERROR"
)

// AuditDetails stores additional event-specific information as JSON
type AuditDetails map[string]any

// Value implements driver.Valuer for database storage
func (d AuditDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner for database retrieval
func (d *AuditDetails) Scan(value any) error {
	if value == nil {
		*d = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("unsupported audit details type %T", value)
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, d)
}

// AuditLog is a persisted record of a security-relevant event.
type AuditLog struct {
	ID        string        `gorm:"primaryKey"`
	EventType EventType     `gorm:"index;not null"`
	Severity  EventSeverity `gorm:"not null"`

	ActorLogin string `gorm:"index"`
	ActorIP    string

	Action       string
	Success      bool
	ErrorMessage string
	Details      AuditDetails `gorm:"type:text"`

	RequestPath   string
	RequestMethod string

	CreatedAt time.Time `gorm:"index"`
}

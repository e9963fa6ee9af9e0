package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records one administrative action against the licensing API.
type AuditLog struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	OfficerID  *uuid.UUID `json:"officer_id,omitempty" db:"officer_id"`
	Action     string     `json:"action" db:"action"`
	EntityType *string    `json:"entity_type,omitempty" db:"entity_type"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty" db:"entity_id"`
	IPAddress  *string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string    `json:"user_agent,omitempty" db:"user_agent"`
	RequestID  *string    `json:"request_id,omitempty" db:"request_id"`
	StatusCode *int       `json:"status_code,omitempty" db:"status_code"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

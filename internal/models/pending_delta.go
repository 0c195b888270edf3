package models

import (
	"time"

	"gorm.io/datatypes"
)

// PendingDelta is a notification delta whose application failed after the
// primary write committed (reconciliation ledger, SQL)
type PendingDelta struct {
	ID        uint                      `json:"id" gorm:"primaryKey"`
	Operation string                    `json:"operation" gorm:"size:60;index"` // e.g. comment.create
	Payload   datatypes.JSONType[Delta] `json:"payload"`
	Attempts  int                       `json:"attempts" gorm:"default:0"`
	LastError string                    `json:"last_error"`
	AppliedAt *time.Time                `json:"applied_at" gorm:"index"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

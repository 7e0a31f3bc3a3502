package model

import (
	"time"
)

// Orphan reasons. An orphan is recorded whenever the external identity write
// and the local transaction split: the side that committed stays, the other
// is left for the sweep job.
const (
	OrphanLocalWriteFailed     = "LOCAL_WRITE_FAILED"     // identity created, local tx rolled back
	OrphanExternalDeleteFailed = "EXTERNAL_DELETE_FAILED" // local delete committed, identity remains
)

// ProvisioningOrphan records an identity-provider user that no longer matches
// local state. The cron sweep retries provider-side deletion and marks the
// row resolved.
type ProvisioningOrphan struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	IdentityID string     `gorm:"index;not null;type:varchar(64)" json:"identity_id"`
	Email      string     `json:"email"`
	Reason     string     `gorm:"type:varchar(30);not null" json:"reason"`
	Attempts   int        `gorm:"default:0" json:"attempts"`
	LastError  string     `gorm:"type:text" json:"last_error,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

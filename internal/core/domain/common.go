package domain

import "time"

// AuditFields holds the timestamps shared by persisted billing entities.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

package core

import "time"

// Entitlement is the time-bounded right of one identity to receive alerts
type Entitlement struct {
	Key            string     `json:"key" gorm:"primaryKey"`
	DurationMonths int        `json:"duration_months"`
	Identity       Identity   `json:"identity" gorm:"index"`
	Username       string     `json:"username"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Active         bool       `json:"active"`
}

// BoundTo reports whether the entitlement is active and bound to id
func (e Entitlement) BoundTo(id Identity) bool {
	return e.Active && e.Identity == id
}

// Expired reports whether the entitlement window has closed at now
func (e Entitlement) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

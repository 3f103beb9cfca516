package core

import (
	"context"
	"time"
)

// EntitlementStore defines the persistence operations for access keys
type EntitlementStore interface {
	// CreateEntitlement stores a new, inactive key
	CreateEntitlement(ctx context.Context, entitlement *Entitlement) error

	// Entitlement returns the entitlement for key or ErrKeyNotFound
	Entitlement(ctx context.Context, key string) (*Entitlement, error)

	// EntitlementByIdentity returns the active entitlement bound to id or ErrNotFound
	EntitlementByIdentity(ctx context.Context, id Identity) (*Entitlement, error)

	// SaveEntitlement replaces an existing entitlement
	SaveEntitlement(ctx context.Context, entitlement *Entitlement) error

	// Entitlements lists every entitlement matching all filters
	Entitlements(ctx context.Context, filters ...EntitlementFilter) ([]*Entitlement, error)
}

// SettingsStore defines the persistence operations for per-identity settings
type SettingsStore interface {
	// Settings returns the settings of id or ErrNotFound
	Settings(ctx context.Context, id Identity) (*Settings, error)

	// SaveSettings creates or replaces the settings of an identity
	SaveSettings(ctx context.Context, settings *Settings) error

	// UpdateSettings applies mutate to the stored settings of id atomically
	// and returns the result; fields untouched by mutate are preserved.
	UpdateSettings(ctx context.Context, id Identity, mutate func(*Settings) error) (*Settings, error)

	// DeleteSettings removes the settings of an identity
	DeleteSettings(ctx context.Context, id Identity) error

	// ListSettings returns every stored settings record ordered by identity
	ListSettings(ctx context.Context) ([]*Settings, error)

	// IncrementSent atomically increments the sent counter of a direction
	// and returns the new value.
	IncrementSent(ctx context.Context, id Identity, direction Direction) (int, error)

	// ResetSentCounters zeroes every sent counter once per UTC day.
	// It returns false when the counters were already reset for day.
	ResetSentCounters(ctx context.Context, day time.Time) (bool, error)
}

// SessionStore keeps the menu navigation state of each identity
type SessionStore interface {
	Session(ctx context.Context, id Identity) (*Session, error)
	SaveSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, id Identity) error
}

// Store groups every repository used by the application
type Store interface {
	EntitlementStore
	SettingsStore
	SessionStore
	Close() error
}

// EntitlementFilter selects entitlements when listing
type EntitlementFilter func(entitlement Entitlement) bool

// WithActive selects entitlements by their active flag
func WithActive(active bool) EntitlementFilter {
	return func(entitlement Entitlement) bool {
		return entitlement.Active == active
	}
}

// WithIdentity selects entitlements bound to id
func WithIdentity(id Identity) EntitlementFilter {
	return func(entitlement Entitlement) bool {
		return entitlement.Identity == id
	}
}

// Day truncates t to the start of its UTC day
func Day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

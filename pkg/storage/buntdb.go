package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/tidwall/buntdb"
)

// SessionTTL is how long an idle menu session is kept
const SessionTTL = 24 * time.Hour

const (
	entitlementPrefix = "entitlement:"
	settingsPrefix    = "settings:"
	sessionPrefix     = "session:"
	lastResetKey      = "meta:last_reset"

	settingsIndex = "settings_identity"
)

// BuntStore implements core.Store using BuntDB
type BuntStore struct {
	db *buntdb.DB
}

// FromMemory creates an in-memory storage
func FromMemory() (*BuntStore, error) {
	return NewBuntStore(":memory:")
}

// FromFile creates a file-based storage
func FromFile(file string) (*BuntStore, error) {
	return NewBuntStore(file)
}

// NewBuntStore creates a new BuntDB storage instance
func NewBuntStore(sourceFile string) (*BuntStore, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open buntdb: %v", core.ErrPersistence, err)
	}

	err = db.CreateIndex(settingsIndex, settingsPrefix+"*", buntdb.IndexJSON("identity"))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create index: %v", core.ErrPersistence, err)
	}

	return &BuntStore{db: db}, nil
}

func settingsKey(id core.Identity) string {
	return settingsPrefix + strconv.FormatInt(int64(id), 10)
}

func sessionKey(id core.Identity) string {
	return sessionPrefix + strconv.FormatInt(int64(id), 10)
}

// persistence wraps an engine failure
func persistence(action string, err error) error {
	return fmt.Errorf("%w: %s: %v", core.ErrPersistence, action, err)
}

// get decodes the JSON value stored at key into target, missing maps to notFound
func get(tx *buntdb.Tx, key string, target any, notFound error) error {
	value, err := tx.Get(key)
	if errors.Is(err, buntdb.ErrNotFound) {
		return notFound
	}
	if err != nil {
		return persistence("get "+key, err)
	}

	if err := json.Unmarshal([]byte(value), target); err != nil {
		return persistence("decode "+key, err)
	}
	return nil
}

// set encodes value as JSON at key
func set(tx *buntdb.Tx, key string, value any, options *buntdb.SetOptions) error {
	content, err := json.Marshal(value)
	if err != nil {
		return persistence("encode "+key, err)
	}

	if _, _, err = tx.Set(key, string(content), options); err != nil {
		return persistence("set "+key, err)
	}
	return nil
}

// CreateEntitlement implements core.EntitlementStore
func (b *BuntStore) CreateEntitlement(_ context.Context, entitlement *core.Entitlement) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		key := entitlementPrefix + entitlement.Key
		if _, err := tx.Get(key); err == nil {
			return fmt.Errorf("%w: key %s already exists", core.ErrInvalidInput, entitlement.Key)
		}
		return set(tx, key, entitlement, nil)
	})
}

// Entitlement implements core.EntitlementStore
func (b *BuntStore) Entitlement(_ context.Context, key string) (*core.Entitlement, error) {
	var entitlement core.Entitlement

	err := b.db.View(func(tx *buntdb.Tx) error {
		return get(tx, entitlementPrefix+key, &entitlement, core.ErrKeyNotFound)
	})
	if err != nil {
		return nil, err
	}

	return &entitlement, nil
}

// EntitlementByIdentity implements core.EntitlementStore
func (b *BuntStore) EntitlementByIdentity(ctx context.Context, id core.Identity) (*core.Entitlement, error) {
	entitlements, err := b.Entitlements(ctx, core.WithActive(true), core.WithIdentity(id))
	if err != nil {
		return nil, err
	}
	if len(entitlements) == 0 {
		return nil, core.ErrNotFound
	}

	return entitlements[0], nil
}

// SaveEntitlement implements core.EntitlementStore
func (b *BuntStore) SaveEntitlement(_ context.Context, entitlement *core.Entitlement) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		key := entitlementPrefix + entitlement.Key
		if _, err := tx.Get(key); err != nil {
			return core.ErrKeyNotFound
		}
		return set(tx, key, entitlement, nil)
	})
}

// Entitlements implements core.EntitlementStore, ordered by key
func (b *BuntStore) Entitlements(_ context.Context, filters ...core.EntitlementFilter) ([]*core.Entitlement, error) {
	entitlements := make([]*core.Entitlement, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error

		err := tx.AscendKeys(entitlementPrefix+"*", func(_, value string) bool {
			var entitlement core.Entitlement
			if decodeErr = json.Unmarshal([]byte(value), &entitlement); decodeErr != nil {
				return false
			}

			for _, filter := range filters {
				if !filter(entitlement) {
					return true
				}
			}

			entitlements = append(entitlements, &entitlement)
			return true
		})
		if err != nil {
			return persistence("iterate entitlements", err)
		}
		if decodeErr != nil {
			return persistence("decode entitlement", decodeErr)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entitlements, nil
}

// Settings implements core.SettingsStore
func (b *BuntStore) Settings(_ context.Context, id core.Identity) (*core.Settings, error) {
	var settings core.Settings

	err := b.db.View(func(tx *buntdb.Tx) error {
		return get(tx, settingsKey(id), &settings, core.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}

	return &settings, nil
}

// SaveSettings implements core.SettingsStore
func (b *BuntStore) SaveSettings(_ context.Context, settings *core.Settings) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		return set(tx, settingsKey(settings.Identity), settings, nil)
	})
}

// UpdateSettings implements core.SettingsStore
func (b *BuntStore) UpdateSettings(_ context.Context, id core.Identity, mutate func(*core.Settings) error) (*core.Settings, error) {
	var settings core.Settings

	err := b.db.Update(func(tx *buntdb.Tx) error {
		if err := get(tx, settingsKey(id), &settings, core.ErrNotFound); err != nil {
			return err
		}
		if err := mutate(&settings); err != nil {
			return err
		}
		return set(tx, settingsKey(id), &settings, nil)
	})
	if err != nil {
		return nil, err
	}

	return &settings, nil
}

// DeleteSettings implements core.SettingsStore
func (b *BuntStore) DeleteSettings(_ context.Context, id core.Identity) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(settingsKey(id))
		if err != nil && !errors.Is(err, buntdb.ErrNotFound) {
			return persistence("delete settings", err)
		}
		return nil
	})
}

// ListSettings implements core.SettingsStore
func (b *BuntStore) ListSettings(_ context.Context) ([]*core.Settings, error) {
	list := make([]*core.Settings, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error

		err := tx.Ascend(settingsIndex, func(_, value string) bool {
			var settings core.Settings
			if decodeErr = json.Unmarshal([]byte(value), &settings); decodeErr != nil {
				return false
			}
			list = append(list, &settings)
			return true
		})
		if err != nil {
			return persistence("iterate settings", err)
		}
		if decodeErr != nil {
			return persistence("decode settings", decodeErr)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return list, nil
}

// IncrementSent implements core.SettingsStore
func (b *BuntStore) IncrementSent(_ context.Context, id core.Identity, direction core.Direction) (int, error) {
	var sent int

	err := b.db.Update(func(tx *buntdb.Tx) error {
		var settings core.Settings
		if err := get(tx, settingsKey(id), &settings, core.ErrNotFound); err != nil {
			return err
		}

		category := settings.Category(direction)
		category.SentToday++
		sent = category.SentToday

		return set(tx, settingsKey(id), &settings, nil)
	})

	return sent, err
}

// ResetSentCounters implements core.SettingsStore
func (b *BuntStore) ResetSentCounters(_ context.Context, day time.Time) (bool, error) {
	day = core.Day(day)
	reset := false

	err := b.db.Update(func(tx *buntdb.Tx) error {
		var last time.Time
		err := get(tx, lastResetKey, &last, core.ErrNotFound)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return err
		}
		if err == nil && !last.Before(day) {
			return nil
		}

		// buntdb forbids writes while iterating
		var pending []core.Settings
		err = tx.Ascend(settingsIndex, func(_, value string) bool {
			var settings core.Settings
			if json.Unmarshal([]byte(value), &settings) == nil {
				pending = append(pending, settings)
			}
			return true
		})
		if err != nil {
			return persistence("iterate settings", err)
		}

		for i := range pending {
			pending[i].Pump.SentToday = 0
			pending[i].Dump.SentToday = 0
			pending[i].LastReset = day
			if err := set(tx, settingsKey(pending[i].Identity), &pending[i], nil); err != nil {
				return err
			}
		}

		reset = true
		return set(tx, lastResetKey, day, nil)
	})

	return reset, err
}

// Session implements core.SessionStore
func (b *BuntStore) Session(_ context.Context, id core.Identity) (*core.Session, error) {
	var session core.Session

	err := b.db.View(func(tx *buntdb.Tx) error {
		return get(tx, sessionKey(id), &session, core.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// SaveSession implements core.SessionStore, idle sessions expire after SessionTTL
func (b *BuntStore) SaveSession(_ context.Context, session *core.Session) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		return set(tx, sessionKey(session.Identity), session, &buntdb.SetOptions{Expires: true, TTL: SessionTTL})
	})
}

// DeleteSession implements core.SessionStore
func (b *BuntStore) DeleteSession(_ context.Context, id core.Identity) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(sessionKey(id))
		if err != nil && !errors.Is(err, buntdb.ErrNotFound) {
			return persistence("delete session", err)
		}
		return nil
	})
}

// Close closes the database connection
func (b *BuntStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

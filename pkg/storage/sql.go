package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// key is a SQL keyword, the column is always quoted
var byKey = clause.OrderByColumn{Column: clause.Column{Name: "key"}}

// resetMark remembers the UTC day of the last counter reset
type resetMark struct {
	ID  uint `gorm:"primaryKey"`
	Day time.Time
}

// SQLStore implements core.Store using a SQL database via GORM
type SQLStore struct {
	db *gorm.DB
}

// FromSQLite opens a SQLite database, eg: screener.db or file::memory:
func FromSQLite(dsn string) (*SQLStore, error) {
	return FromSQL(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
}

// FromSQL creates a new SQL storage instance
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (*SQLStore, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, persistence("open database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, persistence("get database instance", err)
	}

	// sqlite serializes writers, one connection avoids "database is locked"
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = db.AutoMigrate(&core.Entitlement{}, &core.Settings{}, &core.Session{}, &resetMark{})
	if err != nil {
		return nil, persistence("run migrations", err)
	}

	return &SQLStore{db: db}, nil
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return persistence("query", err)
}

// CreateEntitlement implements core.EntitlementStore
func (s *SQLStore) CreateEntitlement(ctx context.Context, entitlement *core.Entitlement) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&core.Entitlement{}).Where(&core.Entitlement{Key: entitlement.Key}).Count(&count).Error; err != nil {
		return persistence("count entitlements", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: key %s already exists", core.ErrInvalidInput, entitlement.Key)
	}

	if err := s.db.WithContext(ctx).Create(entitlement).Error; err != nil {
		return persistence("create entitlement", err)
	}
	return nil
}

// Entitlement implements core.EntitlementStore
func (s *SQLStore) Entitlement(ctx context.Context, key string) (*core.Entitlement, error) {
	var entitlement core.Entitlement
	if err := s.db.WithContext(ctx).Where(&core.Entitlement{Key: key}).First(&entitlement).Error; err != nil {
		return nil, notFound(err, core.ErrKeyNotFound)
	}
	return &entitlement, nil
}

// EntitlementByIdentity implements core.EntitlementStore
func (s *SQLStore) EntitlementByIdentity(ctx context.Context, id core.Identity) (*core.Entitlement, error) {
	var entitlement core.Entitlement
	err := s.db.WithContext(ctx).
		Where("identity = ? AND active = ?", id, true).
		Order(byKey).
		First(&entitlement).Error
	if err != nil {
		return nil, notFound(err, core.ErrNotFound)
	}
	return &entitlement, nil
}

// SaveEntitlement implements core.EntitlementStore
func (s *SQLStore) SaveEntitlement(ctx context.Context, entitlement *core.Entitlement) error {
	var existing core.Entitlement
	if err := s.db.WithContext(ctx).Where(&core.Entitlement{Key: entitlement.Key}).First(&existing).Error; err != nil {
		return notFound(err, core.ErrKeyNotFound)
	}

	if err := s.db.WithContext(ctx).Save(entitlement).Error; err != nil {
		return persistence("save entitlement", err)
	}
	return nil
}

// Entitlements implements core.EntitlementStore, ordered by key
func (s *SQLStore) Entitlements(ctx context.Context, filters ...core.EntitlementFilter) ([]*core.Entitlement, error) {
	var entitlements []*core.Entitlement
	if err := s.db.WithContext(ctx).Order(byKey).Find(&entitlements).Error; err != nil {
		return nil, persistence("list entitlements", err)
	}

	// Note: filters are Go predicates and are applied in memory
	return lo.Filter(entitlements, func(entitlement *core.Entitlement, _ int) bool {
		for _, filter := range filters {
			if !filter(*entitlement) {
				return false
			}
		}
		return true
	}), nil
}

// Settings implements core.SettingsStore
func (s *SQLStore) Settings(ctx context.Context, id core.Identity) (*core.Settings, error) {
	var settings core.Settings
	if err := s.db.WithContext(ctx).First(&settings, "identity = ?", id).Error; err != nil {
		return nil, notFound(err, core.ErrNotFound)
	}
	return &settings, nil
}

// SaveSettings implements core.SettingsStore
func (s *SQLStore) SaveSettings(ctx context.Context, settings *core.Settings) error {
	if err := s.db.WithContext(ctx).Save(settings).Error; err != nil {
		return persistence("save settings", err)
	}
	return nil
}

// UpdateSettings implements core.SettingsStore
func (s *SQLStore) UpdateSettings(ctx context.Context, id core.Identity, mutate func(*core.Settings) error) (*core.Settings, error) {
	var settings core.Settings

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&settings, "identity = ?", id).Error; err != nil {
			return notFound(err, core.ErrNotFound)
		}
		if err := mutate(&settings); err != nil {
			return err
		}
		if err := tx.Save(&settings).Error; err != nil {
			return persistence("save settings", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &settings, nil
}

// DeleteSettings implements core.SettingsStore
func (s *SQLStore) DeleteSettings(ctx context.Context, id core.Identity) error {
	if err := s.db.WithContext(ctx).Delete(&core.Settings{}, "identity = ?", id).Error; err != nil {
		return persistence("delete settings", err)
	}
	return nil
}

// ListSettings implements core.SettingsStore
func (s *SQLStore) ListSettings(ctx context.Context) ([]*core.Settings, error) {
	var list []*core.Settings
	if err := s.db.WithContext(ctx).Order("identity").Find(&list).Error; err != nil {
		return nil, persistence("list settings", err)
	}
	return list, nil
}

// IncrementSent implements core.SettingsStore
func (s *SQLStore) IncrementSent(ctx context.Context, id core.Identity, direction core.Direction) (int, error) {
	column := string(direction) + "_sent_today"
	var sent int

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&core.Settings{}).
			Where("identity = ?", id).
			Update(column, gorm.Expr(column+" + 1"))
		if result.Error != nil {
			return persistence("increment "+column, result.Error)
		}
		if result.RowsAffected == 0 {
			return core.ErrNotFound
		}

		var settings core.Settings
		if err := tx.First(&settings, "identity = ?", id).Error; err != nil {
			return notFound(err, core.ErrNotFound)
		}
		sent = settings.Category(direction).SentToday
		return nil
	})

	return sent, err
}

// ResetSentCounters implements core.SettingsStore
func (s *SQLStore) ResetSentCounters(ctx context.Context, day time.Time) (bool, error) {
	day = core.Day(day)
	reset := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mark resetMark
		err := tx.First(&mark, 1).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return persistence("read reset mark", err)
		}
		if err == nil && !mark.Day.Before(day) {
			return nil
		}

		err = tx.Model(&core.Settings{}).
			Where("1 = 1").
			Updates(map[string]any{
				"pump_sent_today": 0,
				"dump_sent_today": 0,
				"last_reset":      day,
			}).Error
		if err != nil {
			return persistence("reset counters", err)
		}

		if err := tx.Save(&resetMark{ID: 1, Day: day}).Error; err != nil {
			return persistence("save reset mark", err)
		}

		reset = true
		return nil
	})

	return reset, err
}

// Session implements core.SessionStore
func (s *SQLStore) Session(ctx context.Context, id core.Identity) (*core.Session, error) {
	var session core.Session
	if err := s.db.WithContext(ctx).First(&session, "identity = ?", id).Error; err != nil {
		return nil, notFound(err, core.ErrNotFound)
	}
	return &session, nil
}

// SaveSession implements core.SessionStore
func (s *SQLStore) SaveSession(ctx context.Context, session *core.Session) error {
	if err := s.db.WithContext(ctx).Save(session).Error; err != nil {
		return persistence("save session", err)
	}
	return nil
}

// DeleteSession implements core.SessionStore
func (s *SQLStore) DeleteSession(ctx context.Context, id core.Identity) error {
	if err := s.db.WithContext(ctx).Delete(&core.Session{}, "identity = ?", id).Error; err != nil {
		return persistence("delete session", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return persistence("get database instance", err)
	}

	return sqlDB.Close()
}

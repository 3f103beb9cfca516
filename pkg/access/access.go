// Package access manages the entitlements that allow an identity to receive alerts
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/logger"
)

// ErrExpired is returned when activating a key whose window has closed
var ErrExpired = errors.New("access key expired")

// Service activates, checks and revokes access
type Service struct {
	store    core.Store
	adminKey string
	now      func() time.Time
	log      logger.Logger
}

// Option is a function that configures a Service
type Option func(*Service)

// WithAdminKey sets the override key that grants permanent admin access
func WithAdminKey(key string) Option {
	return func(s *Service) {
		s.adminKey = key
	}
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an access service
func NewService(store core.Store, log logger.Logger, options ...Option) *Service {
	service := &Service{
		store: store,
		now:   time.Now,
		log:   log,
	}

	for _, option := range options {
		option(service)
	}

	return service
}

// Activate binds key to id and returns the settings of the identity,
// creating defaults on first activation. A key bound to another identity
// fails with core.ErrActivationConflict and nothing is modified.
func (s *Service) Activate(ctx context.Context, id core.Identity, username, key string) (*core.Settings, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", core.ErrInvalidInput)
	}

	log := s.log.WithField("identity", id)

	if s.adminKey != "" && key == s.adminKey {
		settings, err := s.ensureSettings(ctx, id, username)
		if err != nil {
			return nil, err
		}
		if !settings.IsAdmin {
			settings.IsAdmin = true
			if err := s.store.SaveSettings(ctx, settings); err != nil {
				return nil, err
			}
		}
		log.Info("admin access granted")
		return settings, nil
	}

	entitlement, err := s.store.Entitlement(ctx, key)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case entitlement.Identity != 0 && entitlement.Identity != id:
		log.Warnf("key already bound to %d", entitlement.Identity)
		return nil, core.ErrActivationConflict

	case entitlement.Expired(now):
		if entitlement.Active {
			entitlement.Active = false
			if err := s.store.SaveEntitlement(ctx, entitlement); err != nil {
				return nil, err
			}
		}
		return nil, ErrExpired

	case entitlement.Identity == 0:
		entitlement.Identity = id
		entitlement.Username = username
		entitlement.ActivatedAt = &now
		expires := now.AddDate(0, entitlement.DurationMonths, 0)
		entitlement.ExpiresAt = &expires
		entitlement.Active = true

		if err := s.store.SaveEntitlement(ctx, entitlement); err != nil {
			return nil, err
		}
		log.Infof("key activated until %s", expires.Format(time.DateOnly))

	default:
		// the same identity activating again, eg: after logout or a rename
		entitlement.Active = true
		entitlement.Username = username
		if err := s.store.SaveEntitlement(ctx, entitlement); err != nil {
			return nil, err
		}
	}

	return s.ensureSettings(ctx, id, username)
}

func (s *Service) ensureSettings(ctx context.Context, id core.Identity, username string) (*core.Settings, error) {
	settings, err := s.store.Settings(ctx, id)
	if err == nil {
		if settings.Username == username {
			return settings, nil
		}
		return s.store.UpdateSettings(ctx, id, func(settings *core.Settings) error {
			settings.Username = username
			return nil
		})
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	settings = core.NewSettings(id, username)
	settings.LastReset = core.Day(s.now())
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Entitled reports whether id may use the screener right now. Expired
// entitlements are deactivated on the way.
func (s *Service) Entitled(ctx context.Context, id core.Identity) (bool, error) {
	settings, err := s.store.Settings(ctx, id)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return false, err
	}
	if settings != nil && settings.IsAdmin {
		return true, nil
	}

	entitlement, err := s.store.EntitlementByIdentity(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if entitlement.Expired(s.now()) {
		entitlement.Active = false
		if err := s.store.SaveEntitlement(ctx, entitlement); err != nil {
			return false, err
		}
		s.log.WithField("identity", id).Infof("key %s expired", entitlement.Key)
		return false, nil
	}

	return settings != nil, nil
}

// Profile returns the settings and the active entitlement of id, the
// entitlement is nil for admins
func (s *Service) Profile(ctx context.Context, id core.Identity) (*core.Settings, *core.Entitlement, error) {
	settings, err := s.store.Settings(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	entitlement, err := s.store.EntitlementByIdentity(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return settings, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	return settings, entitlement, nil
}

// Logout forgets the settings and the menu session of id. The entitlement
// stays bound so the same identity can activate it again.
func (s *Service) Logout(ctx context.Context, id core.Identity) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteSettings(ctx, id)
}

// Subscribers returns the settings of every identity that is currently entitled
func (s *Service) Subscribers(ctx context.Context) ([]*core.Settings, error) {
	all, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, err
	}

	subscribers := make([]*core.Settings, 0, len(all))
	for _, settings := range all {
		entitled, err := s.Entitled(ctx, settings.Identity)
		if err != nil {
			s.log.WithField("identity", settings.Identity).WithError(err).Warn("entitlement check failed")
			continue
		}
		if entitled {
			subscribers = append(subscribers, settings)
		}
	}

	return subscribers, nil
}

// AddKey provisions a new inactive key valid for months once activated
func (s *Service) AddKey(ctx context.Context, key string, months int) (*core.Entitlement, error) {
	key = strings.TrimSpace(key)
	if key == "" || months < 1 {
		return nil, fmt.Errorf("%w: key must be set and months positive", core.ErrInvalidInput)
	}

	entitlement := &core.Entitlement{Key: key, DurationMonths: months}
	if err := s.store.CreateEntitlement(ctx, entitlement); err != nil {
		return nil, err
	}

	return entitlement, nil
}

// GenerateKeys provisions count random keys valid for months
func (s *Service) GenerateKeys(ctx context.Context, months, count int) ([]*core.Entitlement, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: count must be positive", core.ErrInvalidInput)
	}

	keys := make([]*core.Entitlement, 0, count)
	for i := 0; i < count; i++ {
		entitlement, err := s.AddKey(ctx, NewKey(), months)
		if err != nil {
			return keys, err
		}
		keys = append(keys, entitlement)
	}

	return keys, nil
}

// NewKey returns a random 16 characters access key
func NewKey() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:16])
}

// Keys lists every provisioned key
func (s *Service) Keys(ctx context.Context, filters ...core.EntitlementFilter) ([]*core.Entitlement, error) {
	return s.store.Entitlements(ctx, filters...)
}

package alert

import (
	"context"
	"time"

	"github.com/raykavin/screener/pkg/core"
	"github.com/raykavin/screener/pkg/logger"
)

// DailyReset zeroes the sent counters of every identity at UTC midnight
type DailyReset struct {
	store core.SettingsStore
	log   logger.Logger
	now   func() time.Time
}

// NewDailyReset creates the reset job, now may be nil to use the wall clock
func NewDailyReset(store core.SettingsStore, log logger.Logger, now func() time.Time) *DailyReset {
	if now == nil {
		now = time.Now
	}
	return &DailyReset{store: store, log: log, now: now}
}

// Check resets the counters if it was not done yet for the current UTC day
func (d *DailyReset) Check(ctx context.Context) (bool, error) {
	day := core.Day(d.now())

	reset, err := d.store.ResetSentCounters(ctx, day)
	if err != nil {
		return false, err
	}

	if reset {
		d.log.Infof("daily counters reset for %s", day.Format(time.DateOnly))
	}
	return reset, nil
}

// Run checks at startup and then at every UTC midnight until ctx is done
func (d *DailyReset) Run(ctx context.Context) {
	for {
		if _, err := d.Check(ctx); err != nil {
			d.log.WithError(err).Error("daily counter reset failed")
		}

		timer := time.NewTimer(NextMidnight(d.now()).Sub(d.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// NextMidnight returns the start of the UTC day following t
func NextMidnight(t time.Time) time.Time {
	return core.Day(t).Add(24 * time.Hour)
}

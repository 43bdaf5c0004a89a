// Package sweep implements the scheduled batch job that deactivates users
// stale beyond the inactivity threshold and sends a digest report.
package sweep

import (
	"context"
	"time"

	"github.com/sheetops/lifecycled/pkg/interfaces"
	"github.com/sheetops/lifecycled/pkg/types"
)

// LockName is the fixed resource name serializing sweep runs.
const LockName = "registry-sweep"

// DaysInactive computes whole days between now and the last access. Users
// that never accessed the system get a sentinel count that exceeds any
// realistic threshold, so they are always flagged.
func DaysInactive(now time.Time, lastAccess *time.Time) int {
	if lastAccess == nil {
		return types.StaleSentinelDays
	}
	delta := now.Sub(*lastAccess)
	if delta < 0 {
		delta = -delta
	}
	return int(delta.Hours() / 24)
}

// Sweeper scans the registry for stale active users, deactivates them
// through the Deactivation processor, and sends one digest for the run.
type Sweeper struct {
	registry   interfaces.Registry
	dispatcher interfaces.Dispatcher
	lock       interfaces.RunLock
	logger     interfaces.Logger
	metrics    interfaces.Metrics
	lockTTL    time.Duration
	staleDays  int
	now        func() time.Time
}

// NewSweeper creates a sweep job with the given inactivity threshold in
// days.
func NewSweeper(registry interfaces.Registry, dispatcher interfaces.Dispatcher, lock interfaces.RunLock, logger interfaces.Logger, metrics interfaces.Metrics, lockTTL time.Duration, staleDays int) *Sweeper {
	return &Sweeper{
		registry:   registry,
		dispatcher: dispatcher,
		lock:       lock,
		logger:     logger,
		metrics:    metrics,
		lockTTL:    lockTTL,
		staleDays:  staleDays,
		now:        time.Now,
	}
}

// SetStaleDays updates the inactivity threshold, used when the engine
// configuration is reloaded.
func (s *Sweeper) SetStaleDays(days int) {
	s.staleDays = days
}

// SetClock overrides the timestamp source. Tests only.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Run executes one sweep. Overlapping runs are serialized by the run
// lock: a contender that loses the lock skips the run entirely, so a
// stale user is deactivated and notified at most once per period.
func (s *Sweeper) Run(ctx context.Context) error {
	acquired, err := s.lock.TryAcquire(ctx, LockName, s.lockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		s.logger.Info("sweep already running, skipping")
		s.metrics.Counter("sweep_skipped_total", 1, nil)
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), LockName); err != nil {
			s.logger.Error("failed to release sweep lock", err)
		}
	}()

	started := s.now()

	cfg, err := s.registry.GetConfig(ctx)
	if err != nil {
		return err
	}
	staleDays := s.staleDays
	if staleDays <= 0 {
		staleDays = cfg.StaleDays
	}
	if staleDays <= 0 {
		staleDays = types.DefaultStaleDays
	}

	users, err := s.registry.GetUsers(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	batch := make([]types.DigestEntry, 0)
	for _, user := range users {
		if !user.Active {
			continue
		}
		days := DaysInactive(now, user.LastAccess)
		if days <= staleDays {
			continue
		}

		// Row targeting is name-keyed, first match wins. Duplicate names
		// make this ambiguous; see DESIGN.md.
		row, err := s.registry.FindRowByName(ctx, user.Name)
		if err != nil {
			s.logger.Error("row lookup failed", err, map[string]interface{}{"user": user.Name})
		}
		if row > types.HeaderRow {
			if err := s.registry.SetUserField(ctx, row, types.ColActive, false); err != nil {
				s.logger.Error("failed to clear active flag", err, map[string]interface{}{"user": user.Name, "row": row})
			}
		} else {
			// The record vanished from the current snapshot. The registry
			// write is skipped but audit and notification still proceed
			// against the in-memory record.
			s.logger.Warn("user row not found, skipping registry write", map[string]interface{}{"user": user.Name})
		}

		deactivated := user
		deactivated.Active = false
		if err := s.dispatcher.Dispatch(ctx, &types.Event{
			Kind:   types.EventDeactivation,
			Record: deactivated,
			Cause:  types.CauseSweep,
		}); err != nil {
			s.logger.Error("deactivation dispatch failed", err, map[string]interface{}{"user": user.Name})
		}

		batch = append(batch, types.DigestEntry{
			Name:         user.Name,
			Group:        user.Group,
			DaysInactive: days,
		})
	}

	if len(batch) > 0 {
		if err := s.dispatcher.Dispatch(ctx, &types.Event{
			Kind:   types.EventDigest,
			Digest: batch,
		}); err != nil {
			s.logger.Error("digest dispatch failed", err)
		}
	}

	s.metrics.Counter("sweep_runs_total", 1, nil)
	s.metrics.Gauge("sweep_deactivated", float64(len(batch)), nil)
	s.metrics.Timer("sweep_duration_seconds", s.now().Sub(started).Seconds(), nil)
	s.logger.Info("sweep complete", map[string]interface{}{
		"scanned":     len(users),
		"deactivated": len(batch),
	})
	return nil
}

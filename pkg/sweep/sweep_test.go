package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetops/lifecycled/pkg/dispatch"
	"github.com/sheetops/lifecycled/pkg/gateways"
	"github.com/sheetops/lifecycled/pkg/logger"
	"github.com/sheetops/lifecycled/pkg/metrics"
	"github.com/sheetops/lifecycled/pkg/registry"
	"github.com/sheetops/lifecycled/pkg/types"
)

var fixedNow = time.Date(2026, 8, 30, 3, 0, 0, 0, time.UTC)

type fixture struct {
	store    *registry.MemoryStore
	notifier *gateways.MemoryNotifier
	metrics  *metrics.MemoryMetrics
	sweeper  *Sweeper
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := registry.NewMemoryStore()
	notifier := gateways.NewMemoryNotifier()
	scheduler := gateways.NewMemoryScheduler()
	testMetrics := metrics.NewTestMetrics()
	log := logger.NewTestLogger()

	dispatcher := dispatch.NewDefaultDispatcher(store, notifier, scheduler, log, testMetrics)
	sweeper := NewSweeper(store, dispatcher, NewLocalLock(), log, testMetrics, time.Minute, types.DefaultStaleDays)
	sweeper.SetClock(func() time.Time { return fixedNow })

	return &fixture{store: store, notifier: notifier, metrics: testMetrics, sweeper: sweeper}
}

func seedActiveUser(store *registry.MemoryStore, row int, name string, lastAccessDaysAgo int) {
	store.SetCell(row, int(types.ColName), name)
	store.SetCell(row, int(types.ColEmail), name+"@example.com")
	store.SetCell(row, int(types.ColRole), "Viewer")
	store.SetCell(row, int(types.ColGroup), "Ops")
	store.SetCell(row, int(types.ColActive), "TRUE")
	store.SetCell(row, int(types.ColDateRegistered), fixedNow.AddDate(0, -6, 0))
	if lastAccessDaysAgo >= 0 {
		store.SetCell(row, int(types.ColLastAccess), fixedNow.AddDate(0, 0, -lastAccessDaysAgo))
	}
}

func TestDaysInactive(t *testing.T) {
	last := fixedNow.AddDate(0, 0, -8)
	assert.Equal(t, 8, DaysInactive(fixedNow, &last))

	recent := fixedNow.Add(-36 * time.Hour)
	assert.Equal(t, 1, DaysInactive(fixedNow, &recent))

	assert.Equal(t, types.StaleSentinelDays, DaysInactive(fixedNow, nil))

	// Clock skew: a future lastAccess counts by absolute distance.
	future := fixedNow.AddDate(0, 0, 9)
	assert.Equal(t, 9, DaysInactive(fixedNow, &future))
}

func TestSweep_DeactivatesOnlyStaleUsers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedActiveUser(f.store, 2, "fresh", 3)
	seedActiveUser(f.store, 3, "stale8", 8)
	seedActiveUser(f.store, 4, "stale15", 15)

	require.NoError(t, f.sweeper.Run(ctx))

	users, err := f.store.GetUsers(ctx)
	require.NoError(t, err)
	assert.True(t, users[0].Active)
	assert.False(t, users[1].Active)
	assert.False(t, users[2].Active)

	// Two UserInactive audit rows, auto-deactivated.
	events, err := f.store.ListAudit(ctx, 10)
	require.NoError(t, err)
	inactive := 0
	for _, event := range events {
		if event.Type == types.AuditUserInactive {
			inactive++
			assert.Equal(t, "auto-deactivated", event.Action)
		}
	}
	assert.Equal(t, 2, inactive)

	// Exactly one digest listing both, with correct day counts.
	var digests []gateways.SentMessage
	for _, msg := range f.notifier.Sent() {
		if msg.Rich {
			digests = append(digests, msg)
		}
	}
	require.Len(t, digests, 1)
	assert.Contains(t, digests[0].Body, "stale8")
	assert.Contains(t, digests[0].Body, "stale15")
	assert.Contains(t, digests[0].Body, "8")
	assert.Contains(t, digests[0].Body, "15")
}

func TestSweep_AllUsersFreshSendsNothing(t *testing.T) {
	f := setup(t)
	seedActiveUser(f.store, 2, "a", 3)
	seedActiveUser(f.store, 3, "b", 7)

	require.NoError(t, f.sweeper.Run(context.Background()))

	users, _ := f.store.GetUsers(context.Background())
	for _, u := range users {
		assert.True(t, u.Active)
	}
	assert.Empty(t, f.notifier.Sent())
}

func TestSweep_ExactThresholdIsNotStale(t *testing.T) {
	// daysInactive must exceed the threshold, not equal it.
	f := setup(t)
	seedActiveUser(f.store, 2, "edge", types.DefaultStaleDays)

	require.NoError(t, f.sweeper.Run(context.Background()))

	users, _ := f.store.GetUsers(context.Background())
	assert.True(t, users[0].Active)
}

func TestSweep_ConfiguredThreshold(t *testing.T) {
	f := setup(t)
	f.sweeper.SetStaleDays(3)
	seedActiveUser(f.store, 2, "fresh", 2)
	seedActiveUser(f.store, 3, "stale5", 5)

	require.NoError(t, f.sweeper.Run(context.Background()))

	users, err := f.store.GetUsers(context.Background())
	require.NoError(t, err)
	assert.True(t, users[0].Active)
	assert.False(t, users[1].Active, "5 days inactive exceeds the configured threshold of 3")
}

func TestSweep_NoUsersNoSideEffects(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.sweeper.Run(context.Background()))
	assert.Empty(t, f.notifier.Sent())
	events, _ := f.store.ListAudit(context.Background(), 10)
	assert.Empty(t, events)
}

func TestSweep_NeverAccessedUserIsAlwaysStale(t *testing.T) {
	f := setup(t)
	seedActiveUser(f.store, 2, "ghost", -1)

	require.NoError(t, f.sweeper.Run(context.Background()))

	users, _ := f.store.GetUsers(context.Background())
	assert.False(t, users[0].Active)

	var digest *gateways.SentMessage
	msgs := f.notifier.Sent()
	for i := range msgs {
		if msgs[i].Rich {
			digest = &msgs[i]
		}
	}
	require.NotNil(t, digest)
	assert.Contains(t, digest.Body, "99999")
}

func TestSweep_InactiveUsersAreSkipped(t *testing.T) {
	f := setup(t)
	seedActiveUser(f.store, 2, "gone", 30)
	f.store.SetCell(2, int(types.ColActive), "FALSE")

	require.NoError(t, f.sweeper.Run(context.Background()))
	assert.Empty(t, f.notifier.Sent())
}

func TestSweep_MissingConfigSheetIsFatal(t *testing.T) {
	f := setup(t)
	f.store.DropSheet(types.SheetConfig)
	assert.Error(t, f.sweeper.Run(context.Background()))
}

func TestSweep_LockContention(t *testing.T) {
	f := setup(t)
	lock := NewLocalLock()
	f.sweeper.lock = lock

	acquired, err := lock.TryAcquire(context.Background(), LockName, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	seedActiveUser(f.store, 2, "stale", 30)
	require.NoError(t, f.sweeper.Run(context.Background()))

	// The run was skipped: no deactivation happened.
	users, _ := f.store.GetUsers(context.Background())
	assert.True(t, users[0].Active)
	assert.Equal(t, float64(1), f.metrics.CounterValue("sweep_skipped_total"))

	// After release, the run proceeds.
	require.NoError(t, lock.Release(context.Background(), LockName))
	require.NoError(t, f.sweeper.Run(context.Background()))
	users, _ = f.store.GetUsers(context.Background())
	assert.False(t, users[0].Active)
}

func TestLocalLock(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()

	ok, err := lock.TryAcquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.TryAcquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different name is independent.
	ok, err = lock.TryAcquire(ctx, "other", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lock.Release(ctx, "job"))
	ok, err = lock.TryAcquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockState(t *testing.T) {
	now := time.Now()
	data := encodeLockState("owner-1", now.Add(time.Minute))

	assert.False(t, lockExpired(data, now))
	assert.True(t, lockExpired(data, now.Add(2*time.Minute)))

	// Corrupt payloads count as expired rather than wedging the lock.
	assert.True(t, lockExpired([]byte("garbage"), now))
}

func TestLocalLock_TTLExpiry(t *testing.T) {
	lock := NewLocalLock()
	now := time.Now()
	lock.clock = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := lock.TryAcquire(ctx, "job", time.Minute)
	require.True(t, ok)

	// Holder died; the TTL reclaims the lock.
	lock.clock = func() time.Time { return now.Add(2 * time.Minute) }
	ok, err := lock.TryAcquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

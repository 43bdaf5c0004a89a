package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetops/lifecycled/pkg/errors"
	"github.com/sheetops/lifecycled/pkg/types"
)

func setupSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	return store
}

func TestSQLiteStore_UserFieldsAndLookup(t *testing.T) {
	store := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, store.SetUserField(ctx, 2, types.ColName, "Ana Torres"))
	require.NoError(t, store.SetUserField(ctx, 2, types.ColEmail, "ana@example.com"))
	require.NoError(t, store.SetUserField(ctx, 2, types.ColRole, "Editor"))
	require.NoError(t, store.SetUserField(ctx, 2, types.ColGroup, "Finance"))
	require.NoError(t, store.SetUserField(ctx, 2, types.ColActive, "TRUE"))

	rec, err := store.GetRow(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Ana Torres", rec.Name)
	assert.True(t, rec.Active)
	assert.True(t, rec.IsNew())

	now := time.Now()
	require.NoError(t, store.SetUserField(ctx, 2, types.ColDateRegistered, now))
	require.NoError(t, store.SetUserField(ctx, 2, types.ColLastAccess, now))

	rec, err = store.GetRow(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, rec.DateRegistered)
	require.NotNil(t, rec.LastAccess)
	assert.False(t, rec.IsNew())

	row, err := store.FindRowByName(ctx, "Ana Torres")
	require.NoError(t, err)
	assert.Equal(t, 2, row)

	row, err = store.FindRowByName(ctx, "Nadie")
	require.NoError(t, err)
	assert.Equal(t, 0, row)
}

func TestSQLiteStore_HeaderRowRejected(t *testing.T) {
	store := setupSQLite(t)
	err := store.SetUserField(context.Background(), types.HeaderRow, types.ColName, "x")
	assert.Error(t, err)
}

func TestSQLiteStore_GetRowNotFound(t *testing.T) {
	store := setupSQLite(t)
	_, err := store.GetRow(context.Background(), 7)
	assert.True(t, errors.IsNotFound(err))
}

func TestSQLiteStore_ConfigParams(t *testing.T) {
	store := setupSQLite(t)
	ctx := context.Background()

	cfg, err := store.GetConfig(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.NotifyEnabled)
	assert.Equal(t, types.DefaultStaleDays, cfg.StaleDays)

	require.NoError(t, store.SetConfigParam(ctx, types.ConfigKeyNotifyEnabled, "TRUE"))
	require.NoError(t, store.SetConfigParam(ctx, types.ConfigKeyCalendarID, "cal-1"))

	cfg, err = store.GetConfig(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.NotifyEnabled)
	assert.Equal(t, "cal-1", cfg.CalendarID)
}

func TestSQLiteStore_Audit(t *testing.T) {
	store := setupSQLite(t)
	ctx := context.Background()

	event := types.NewAuditEvent(types.AuditRoleChanged, "Ana", "role changed", types.StatusWarning, "notification sent")
	require.NoError(t, store.AppendAudit(ctx, event))
	assert.NotEmpty(t, event.ID)

	events, err := store.ListAudit(ctx, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.StatusWarning, events[0].Status)
}

func TestSQLiteStore_NextRow(t *testing.T) {
	store := setupSQLite(t)
	ctx := context.Background()

	next, err := store.NextRow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, next)

	require.NoError(t, store.SetUserField(ctx, next, types.ColName, "Ana"))
	next, err = store.NextRow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, next)
}

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetops/lifecycled/pkg/errors"
	"github.com/sheetops/lifecycled/pkg/types"
)

func TestNormalizeBool(t *testing.T) {
	assert.True(t, NormalizeBool(true))
	assert.True(t, NormalizeBool("true"))
	assert.True(t, NormalizeBool("TRUE"))
	assert.True(t, NormalizeBool(" True "))
	assert.False(t, NormalizeBool(false))
	assert.False(t, NormalizeBool("yes"))
	assert.False(t, NormalizeBool("1"))
	assert.False(t, NormalizeBool(nil))
	assert.False(t, NormalizeBool(1))
}

func TestNormalizeTime(t *testing.T) {
	native := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	got := NormalizeTime(native)
	require.NotNil(t, got)
	assert.True(t, got.Equal(native))

	got = NormalizeTime("2026-08-01")
	require.NotNil(t, got)
	assert.Equal(t, 2026, got.Year())

	got = NormalizeTime(float64(native.UnixMilli()))
	require.NotNil(t, got)
	assert.True(t, got.Equal(native))

	assert.Nil(t, NormalizeTime(nil))
	assert.Nil(t, NormalizeTime(""))
	assert.Nil(t, NormalizeTime("  "))
	assert.Nil(t, NormalizeTime("not a date"))
	assert.Nil(t, NormalizeTime(time.Time{}))
}

func TestNormalizeRow(t *testing.T) {
	rec := NormalizeRow([]interface{}{" Ana Torres ", "ana@example.com", "Editor", "Finance", "TRUE", "2026-08-01", nil})
	assert.Equal(t, "Ana Torres", rec.Name)
	assert.Equal(t, types.Role("Editor"), rec.Role)
	assert.True(t, rec.Active)
	require.NotNil(t, rec.DateRegistered)
	assert.Nil(t, rec.LastAccess)
}

func TestNormalizeRow_ShortRow(t *testing.T) {
	rec := NormalizeRow([]interface{}{"Ana"})
	assert.Equal(t, "Ana", rec.Name)
	assert.Empty(t, rec.Email)
	assert.False(t, rec.Active)
	assert.Nil(t, rec.DateRegistered)
}

func TestBuildRuntimeConfig_Defaults(t *testing.T) {
	cfg := BuildRuntimeConfig(nil)
	assert.False(t, cfg.NotifyEnabled)
	assert.Equal(t, types.DefaultStaleDays, cfg.StaleDays)
}

func TestBuildRuntimeConfig_Values(t *testing.T) {
	cfg := BuildRuntimeConfig(map[string]string{
		types.ConfigKeyNotifyEnabled:     "TRUE",
		types.ConfigKeyNotifyEmail:       " ops@example.com ",
		types.ConfigKeySchedulingEnabled: "true",
		types.ConfigKeyCalendarID:        "team-cal",
	})
	assert.True(t, cfg.NotifyEnabled)
	assert.Equal(t, "ops@example.com", cfg.NotifyEmail)
	assert.True(t, cfg.SchedulingEnabled)
	assert.Equal(t, "team-cal", cfg.CalendarID)
}

func seedUser(store *MemoryStore, row int, name, email, role, group string, active interface{}) {
	store.SetCell(row, int(types.ColName), name)
	store.SetCell(row, int(types.ColEmail), email)
	store.SetCell(row, int(types.ColRole), role)
	store.SetCell(row, int(types.ColGroup), group)
	store.SetCell(row, int(types.ColActive), active)
}

func TestMemoryStore_GetConfig_MissingSheetIsFatal(t *testing.T) {
	store := NewMemoryStore()
	store.DropSheet(types.SheetConfig)

	_, err := store.GetConfig(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestMemoryStore_GetUsers_MissingSheetDegrades(t *testing.T) {
	store := NewMemoryStore()
	store.DropSheet(types.SheetUsers)

	users, err := store.GetUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	seedUser(store, 2, "Ana Torres", "ana@example.com", "Editor", "Finance", "TRUE")

	users, err := store.GetUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].Active)

	// Boolean-typed active cells normalize identically.
	seedUser(store, 3, "Luis Vega", "luis@example.com", "Viewer", "Ops", true)
	users, err = store.GetUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.True(t, users[1].Active)
}

func TestMemoryStore_OnEditFiresForExternalEditsOnly(t *testing.T) {
	store := NewMemoryStore()
	var events []types.EditEvent
	store.OnEdit(func(e types.EditEvent) { events = append(events, e) })

	store.SetCell(2, int(types.ColName), "Ana")
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Row)
	assert.Equal(t, int(types.ColName), events[0].Column)
	assert.Nil(t, events[0].OldValue)
	assert.Equal(t, "Ana", events[0].NewValue)

	// Engine-originated writes do not re-trigger.
	err := store.SetUserField(context.Background(), 2, types.ColDateRegistered, time.Now())
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemoryStore_GetRow(t *testing.T) {
	store := NewMemoryStore()
	seedUser(store, 2, "Ana", "ana@example.com", "Editor", "Finance", "TRUE")

	rec, err := store.GetRow(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Ana", rec.Name)

	_, err = store.GetRow(context.Background(), 10)
	assert.True(t, errors.IsNotFound(err))
}

func TestMemoryStore_FindRowByName_FirstMatchWins(t *testing.T) {
	store := NewMemoryStore()
	seedUser(store, 2, "Ana", "ana@example.com", "Editor", "Finance", "TRUE")
	seedUser(store, 3, "Ana", "ana2@example.com", "Viewer", "Ops", "TRUE")

	row, err := store.FindRowByName(context.Background(), "Ana")
	require.NoError(t, err)
	assert.Equal(t, 2, row)

	row, err = store.FindRowByName(context.Background(), "Nadie")
	require.NoError(t, err)
	assert.Equal(t, 0, row)
}

func TestMemoryStore_AuditAppendAndList(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := types.NewAuditEvent(types.AuditUserAdded, "Ana", "added", types.StatusOK, "none")
	require.NoError(t, store.AppendAudit(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.Timestamp.IsZero())

	second := types.NewAuditEvent(types.AuditUserInactive, "Luis", "stale", types.StatusAlert, "auto-deactivated")
	require.NoError(t, store.AppendAudit(ctx, second))

	events, err := store.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// Newest first.
	assert.Equal(t, types.AuditUserInactive, events[0].Type)
	assert.Equal(t, types.AuditUserAdded, events[1].Type)

	events, err = store.ListAudit(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Luis", events[0].User)
}

func TestMemoryStore_SetConfigParamUpserts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.SetConfigParam(types.ConfigKeyNotifyEnabled, "TRUE")
	store.SetConfigParam(types.ConfigKeyNotifyEmail, "ops@example.com")
	cfg, err := store.GetConfig(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.NotifyEnabled)

	// Mutations take effect on the next read; config is never cached.
	store.SetConfigParam(types.ConfigKeyNotifyEnabled, "FALSE")
	cfg, err = store.GetConfig(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.NotifyEnabled)
}

package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sheetops/lifecycled/pkg/errors"
	"github.com/sheetops/lifecycled/pkg/interfaces"
	"github.com/sheetops/lifecycled/pkg/types"
)

var usersHeader = []interface{}{"Name", "Email", "Role", "Group", "Active", "DateRegistered", "LastAccess"}
var configHeader = []interface{}{"Parameter", "Value"}
var auditHeader = []interface{}{"Timestamp", "Type", "User", "Details", "Status", "Action"}

// MemoryStore is an in-memory tabular store implementing the Registry and
// ChangeStore interfaces. It backs tests and the default daemon setup, and
// stands in for the external spreadsheet platform.
type MemoryStore struct {
	mu       sync.RWMutex
	sheets   map[string][][]interface{}
	handlers []interfaces.EditHandler
	now      func() time.Time
}

// NewMemoryStore creates a memory store with the three standard sheets and
// their header rows in place.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sheets: map[string][][]interface{}{
			types.SheetUsers:  {append([]interface{}{}, usersHeader...)},
			types.SheetConfig: {append([]interface{}{}, configHeader...)},
			types.SheetAudit:  {append([]interface{}{}, auditHeader...)},
		},
		now: time.Now,
	}
}

// SetClock overrides the timestamp source. Tests only.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// DropSheet removes a sheet, simulating a missing source. Tests only.
func (s *MemoryStore) DropSheet(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sheets, name)
}

// OnEdit registers a handler fired on every external edit to the users
// sheet. Engine-originated writes via SetUserField do not fire handlers,
// matching the host platform's trigger semantics.
func (s *MemoryStore) OnEdit(handler interfaces.EditHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// SetCell performs an external edit of one cell of the users sheet and
// notifies registered edit handlers. Row and column are 1-based.
func (s *MemoryStore) SetCell(row, col int, value interface{}) {
	s.mu.Lock()
	old := s.writeCell(types.SheetUsers, row, col, value)
	handlers := append([]interfaces.EditHandler{}, s.handlers...)
	s.mu.Unlock()

	event := types.EditEvent{Row: row, Column: col, OldValue: old, NewValue: value}
	for _, handler := range handlers {
		handler(event)
	}
}

// SetConfigParam sets one parameter row of the config sheet, appending a
// new row when the parameter is not present yet.
func (s *MemoryStore) SetConfigParam(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.sheets[types.SheetConfig]
	if !ok {
		return
	}
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) > 0 && NormalizeString(rows[i][0]) == name {
			rows[i][1] = value
			return
		}
	}
	s.sheets[types.SheetConfig] = append(rows, []interface{}{name, value})
}

// writeCell writes a cell, growing the sheet as needed, and returns the
// previous value. Caller holds the lock.
func (s *MemoryStore) writeCell(sheet string, row, col int, value interface{}) interface{} {
	rows, ok := s.sheets[sheet]
	if !ok || row < 1 || col < 1 {
		return nil
	}
	for len(rows) < row {
		rows = append(rows, make([]interface{}, len(usersHeader)))
	}
	cells := rows[row-1]
	for len(cells) < col {
		cells = append(cells, nil)
	}
	old := cells[col-1]
	cells[col-1] = value
	rows[row-1] = cells
	s.sheets[sheet] = rows
	return old
}

// GetConfig loads the runtime tunables. A missing config sheet is fatal to
// the calling operation.
func (s *MemoryStore) GetConfig(ctx context.Context) (*types.RuntimeConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.sheets[types.SheetConfig]
	if !ok {
		return nil, errors.NewConfigSheetMissingError()
	}

	params := make(map[string]string)
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) < 2 {
			continue
		}
		params[NormalizeString(rows[i][0])] = NormalizeString(rows[i][1])
	}
	return BuildRuntimeConfig(params), nil
}

// GetUsers returns all normalized user records. A missing users sheet
// degrades to an empty collection.
func (s *MemoryStore) GetUsers(ctx context.Context) ([]types.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.sheets[types.SheetUsers]
	if !ok {
		return []types.UserRecord{}, nil
	}

	records := make([]types.UserRecord, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		records = append(records, NormalizeRow(rows[i]))
	}
	return records, nil
}

// GetRow returns the normalized record at the given 1-based row.
func (s *MemoryStore) GetRow(ctx context.Context, row int) (*types.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.sheets[types.SheetUsers]
	if !ok {
		return nil, errors.NewSheetNotFoundError(types.SheetUsers)
	}
	if row < 1 || row > len(rows) {
		return nil, errors.NewRowNotFoundError(row)
	}
	rec := NormalizeRow(rows[row-1])
	return &rec, nil
}

// SetUserField writes one cell of the users sheet without firing edit
// handlers.
func (s *MemoryStore) SetUserField(ctx context.Context, row int, col types.Column, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sheets[types.SheetUsers]; !ok {
		return errors.NewSheetNotFoundError(types.SheetUsers)
	}
	if row < 1 {
		return errors.NewRowNotFoundError(row)
	}
	s.writeCell(types.SheetUsers, row, int(col), value)
	return nil
}

// FindRowByName returns the first row whose name matches, or 0 when no row
// does. First match wins; duplicate names are a known limitation.
func (s *MemoryStore) FindRowByName(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.sheets[types.SheetUsers]
	if !ok {
		return 0, nil
	}
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) > 0 && NormalizeString(rows[i][0]) == name {
			return i + 1, nil
		}
	}
	return 0, nil
}

// AppendAudit appends one audit row, assigning ID and timestamp.
func (s *MemoryStore) AppendAudit(ctx context.Context, event *types.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.sheets[types.SheetAudit]
	if !ok {
		return errors.NewAuditWriteError(errors.NewSheetNotFoundError(types.SheetAudit))
	}
	event.ID = uuid.New().String()
	event.Timestamp = s.now()
	s.sheets[types.SheetAudit] = append(rows, []interface{}{
		event.Timestamp, string(event.Type), event.User, event.Details, string(event.Status), event.Action,
	})
	return nil
}

// ListAudit returns up to limit audit events, newest first.
func (s *MemoryStore) ListAudit(ctx context.Context, limit int) ([]types.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.sheets[types.SheetAudit]
	if !ok {
		return []types.AuditEvent{}, nil
	}

	events := make([]types.AuditEvent, 0, limit)
	for i := len(rows) - 1; i >= 1 && (limit <= 0 || len(events) < limit); i-- {
		cells := rows[i]
		if len(cells) < 6 {
			continue
		}
		ts := NormalizeTime(cells[0])
		event := types.AuditEvent{
			Type:    types.AuditType(NormalizeString(cells[1])),
			User:    NormalizeString(cells[2]),
			Details: NormalizeString(cells[3]),
			Status:  types.AuditStatus(NormalizeString(cells[4])),
			Action:  NormalizeString(cells[5]),
		}
		if ts != nil {
			event.Timestamp = *ts
		}
		events = append(events, event)
	}
	return events, nil
}

var _ interfaces.ChangeStore = (*MemoryStore)(nil)

package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sheetops/lifecycled/pkg/errors"
	"github.com/sheetops/lifecycled/pkg/interfaces"
	"github.com/sheetops/lifecycled/pkg/types"
)

// userRow mirrors one row of the users sheet. Row keeps the sheet's
// 1-based addressing; row 1 is reserved for the header and never stored.
type userRow struct {
	Row            int        `gorm:"primaryKey;autoIncrement:false;column:row"`
	Name           string     `gorm:"index"`
	Email          string
	Role           string
	Group          string     `gorm:"column:user_group"`
	Active         bool       `gorm:"not null;default:true"`
	DateRegistered *time.Time
	LastAccess     *time.Time
}

func (userRow) TableName() string { return "users" }

// configParam mirrors one parameter row of the config sheet.
type configParam struct {
	Name  string `gorm:"primaryKey"`
	Value string
}

func (configParam) TableName() string { return "config_params" }

// auditRecord mirrors one row of the audit sheet. Append-only.
type auditRecord struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Timestamp time.Time `gorm:"not null;index"`
	Type      string    `gorm:"not null"`
	User      string    `gorm:"not null;column:user_name"`
	Details   string    `gorm:"type:text"`
	Status    string    `gorm:"not null"`
	Action    string    `gorm:"not null"`
}

func (auditRecord) TableName() string { return "audit_log" }

// BeforeCreate hook for auditRecord
func (a *auditRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// SQLiteStore is a gorm-backed registry mirroring the three sheets as
// tables. It implements the Registry interface for deployments that keep a
// local copy of the registry.
type SQLiteStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLiteStore opens (and migrates) a sqlite-backed registry.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&userRow{}, &configParam{}, &auditRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// GetConfig loads the runtime tunables from the config table.
func (s *SQLiteStore) GetConfig(ctx context.Context) (*types.RuntimeConfig, error) {
	var rows []configParam
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("failed to load config params: %v", err))
	}
	params := make(map[string]string, len(rows))
	for _, row := range rows {
		params[row.Name] = row.Value
	}
	return BuildRuntimeConfig(params), nil
}

// SetConfigParam upserts one runtime parameter.
func (s *SQLiteStore) SetConfigParam(ctx context.Context, name, value string) error {
	param := configParam{Name: name, Value: value}
	if err := s.db.WithContext(ctx).Save(&param).Error; err != nil {
		return errors.NewRegistryError("failed to save config param", err)
	}
	return nil
}

// GetUsers returns all user records ordered by row.
func (s *SQLiteStore) GetUsers(ctx context.Context) ([]types.UserRecord, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("row").Find(&rows).Error; err != nil {
		return nil, errors.NewRegistryError("failed to list users", err)
	}
	records := make([]types.UserRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

func (r userRow) toRecord() types.UserRecord {
	return types.UserRecord{
		Name:           r.Name,
		Email:          r.Email,
		Role:           types.Role(r.Role),
		Group:          r.Group,
		Active:         r.Active,
		DateRegistered: r.DateRegistered,
		LastAccess:     r.LastAccess,
	}
}

// GetRow returns the record at the given 1-based sheet row.
func (s *SQLiteStore) GetRow(ctx context.Context, row int) (*types.UserRecord, error) {
	var ur userRow
	err := s.db.WithContext(ctx).Where("row = ?", row).First(&ur).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.NewRowNotFoundError(row)
	}
	if err != nil {
		return nil, errors.NewRegistryError("failed to get row", err)
	}
	rec := ur.toRecord()
	return &rec, nil
}

// SetUserField writes one field of a user row, creating the row when it
// does not exist yet so fill-order of edits does not matter.
func (s *SQLiteStore) SetUserField(ctx context.Context, row int, col types.Column, value interface{}) error {
	if row <= types.HeaderRow {
		return errors.NewRowNotFoundError(row)
	}

	var ur userRow
	err := s.db.WithContext(ctx).Where(userRow{Row: row}).FirstOrCreate(&ur).Error
	if err != nil {
		return errors.NewRegistryError("failed to ensure row", err)
	}

	update := map[string]interface{}{}
	switch col {
	case types.ColName:
		update["name"] = NormalizeString(value)
	case types.ColEmail:
		update["email"] = NormalizeString(value)
	case types.ColRole:
		update["role"] = NormalizeString(value)
	case types.ColGroup:
		update["user_group"] = NormalizeString(value)
	case types.ColActive:
		update["active"] = NormalizeBool(value)
	case types.ColDateRegistered:
		update["date_registered"] = NormalizeTime(value)
	case types.ColLastAccess:
		update["last_access"] = NormalizeTime(value)
	default:
		return errors.NewInvalidInputError(fmt.Sprintf("unknown column %d", col))
	}

	if err := s.db.WithContext(ctx).Model(&userRow{}).Where("row = ?", row).Updates(update).Error; err != nil {
		return errors.NewRegistryError("failed to update row", err)
	}
	return nil
}

// FindRowByName returns the lowest row whose name matches, or 0.
func (s *SQLiteStore) FindRowByName(ctx context.Context, name string) (int, error) {
	var ur userRow
	err := s.db.WithContext(ctx).Where("name = ?", name).Order("row").First(&ur).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, errors.NewRegistryError("failed to find row by name", err)
	}
	return ur.Row, nil
}

// NextRow returns the next free 1-based sheet row.
func (s *SQLiteStore) NextRow(ctx context.Context) (int, error) {
	var max int
	err := s.db.WithContext(ctx).Model(&userRow{}).Select("COALESCE(MAX(row), ?)", types.HeaderRow).Scan(&max).Error
	if err != nil {
		return 0, errors.NewRegistryError("failed to compute next row", err)
	}
	return max + 1, nil
}

// AppendAudit appends one audit record, assigning ID and timestamp.
func (s *SQLiteStore) AppendAudit(ctx context.Context, event *types.AuditEvent) error {
	record := auditRecord{
		Timestamp: s.now(),
		Type:      string(event.Type),
		User:      event.User,
		Details:   event.Details,
		Status:    string(event.Status),
		Action:    event.Action,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return errors.NewAuditWriteError(err)
	}
	event.ID = record.ID
	event.Timestamp = record.Timestamp
	return nil
}

// ListAudit returns up to limit audit events, newest first.
func (s *SQLiteStore) ListAudit(ctx context.Context, limit int) ([]types.AuditEvent, error) {
	query := s.db.WithContext(ctx).Order("timestamp DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []auditRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, errors.NewRegistryError("failed to list audit events", err)
	}
	events := make([]types.AuditEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, types.AuditEvent{
			ID:        row.ID,
			Timestamp: row.Timestamp,
			Type:      types.AuditType(row.Type),
			User:      row.User,
			Details:   row.Details,
			Status:    types.AuditStatus(row.Status),
			Action:    row.Action,
		})
	}
	return events, nil
}

var _ interfaces.Registry = (*SQLiteStore)(nil)

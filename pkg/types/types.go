// Package types defines the core types for the registry lifecycle engine.
package types

import (
	"strings"
	"time"
)

// Role represents a user's role in the registry.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Sheet names of the backing tabular store.
const (
	SheetUsers  = "Usuarios"
	SheetConfig = "Configuración"
	SheetAudit  = "RegistroDeEventos"
)

// Column identifies a column of the user registry sheet. Columns are
// 1-based, matching the host store's addressing.
type Column int

const (
	ColName Column = iota + 1
	ColEmail
	ColRole
	ColGroup
	ColActive
	ColDateRegistered
	ColLastAccess
)

// HeaderRow is the 1-based index of the header row. Edits to it are inert.
const HeaderRow = 1

// IsBasic reports whether the column is one of the five user-editable
// basic columns (Name through Active).
func (c Column) IsBasic() bool {
	return c >= ColName && c <= ColActive
}

// UserRecord is a fully normalized registry row. All raw cell coercion
// happens in the registry package before a UserRecord is built.
type UserRecord struct {
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	Group          string     `json:"group"`
	Active         bool       `json:"active"`
	DateRegistered *time.Time `json:"date_registered,omitempty"`
	LastAccess     *time.Time `json:"last_access,omitempty"`
}

// Complete reports whether the four required fields are all non-empty.
// The Active column is deliberately not part of the completeness check.
func (u *UserRecord) Complete() bool {
	return strings.TrimSpace(u.Name) != "" &&
		strings.TrimSpace(u.Email) != "" &&
		strings.TrimSpace(string(u.Role)) != "" &&
		strings.TrimSpace(u.Group) != ""
}

// IsNew reports whether the record is complete but not yet onboarded.
func (u *UserRecord) IsNew() bool {
	return u.Complete() && u.DateRegistered == nil
}

// EditEvent describes a single-cell change reported by the hosting store.
type EditEvent struct {
	Row      int         `json:"row"`
	Column   int         `json:"column"`
	OldValue interface{} `json:"old_value,omitempty"`
	NewValue interface{} `json:"new_value,omitempty"`
}

// EventKind enumerates the lifecycle events the classifier can produce.
type EventKind string

const (
	EventNewUser      EventKind = "new_user"
	EventDeactivation EventKind = "deactivation"
	EventRoleChange   EventKind = "role_change"
	EventDigest       EventKind = "digest"
)

// DeactivationCause records how a deactivation came about, used for the
// audit action text.
type DeactivationCause string

const (
	CauseManual DeactivationCause = "notified"
	CauseSweep  DeactivationCause = "auto-deactivated"
)

// Event is a classified lifecycle event handed to the dispatcher.
type Event struct {
	Kind   EventKind  `json:"kind"`
	Record UserRecord `json:"record"`

	// Row is the registry row the record came from. Only meaningful for
	// NewUser events, where the processor stamps timestamp columns.
	Row int `json:"row,omitempty"`

	// Cause is set on Deactivation events.
	Cause DeactivationCause `json:"cause,omitempty"`

	// Digest carries the offender batch for Digest events.
	Digest []DigestEntry `json:"digest,omitempty"`
}

// DigestEntry is one line of the inactivity digest report.
type DigestEntry struct {
	Name         string `json:"name"`
	Group        string `json:"group"`
	DaysInactive int    `json:"days_inactive"`
}

// AuditType enumerates audit event types.
type AuditType string

const (
	AuditUserAdded    AuditType = "UserAdded"
	AuditUserInactive AuditType = "UserInactive"
	AuditRoleChanged  AuditType = "RoleChanged"
	AuditError        AuditType = "Error"
	AuditGeneric      AuditType = "Event"
)

// AuditStatus enumerates audit event statuses.
type AuditStatus string

const (
	StatusOK      AuditStatus = "OK"
	StatusAlert   AuditStatus = "Alert"
	StatusWarning AuditStatus = "Warning"
	StatusError   AuditStatus = "Error"
)

// AuditEvent is one append-only row of the audit trail. Timestamp and ID
// are assigned by the registry at write time, never by the caller.
type AuditEvent struct {
	ID        string      `json:"id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Type      AuditType   `json:"type"`
	User      string      `json:"user"`
	Details   string      `json:"details"`
	Status    AuditStatus `json:"status"`
	Action    string      `json:"action"`
}

// NewAuditEvent builds an audit event with the defaulting rules of the
// audit schema: User defaults to "System", Status to OK, Action to "None".
func NewAuditEvent(auditType AuditType, user, details string, status AuditStatus, action string) *AuditEvent {
	if user == "" {
		user = "System"
	}
	if status == "" {
		status = StatusOK
	}
	if action == "" {
		action = "None"
	}
	return &AuditEvent{
		Type:    auditType,
		User:    user,
		Details: details,
		Status:  status,
		Action:  action,
	}
}

// Runtime configuration keys stored in the config sheet.
const (
	ConfigKeyNotifyEnabled     = "notifyEnabled"
	ConfigKeyNotifyEmail       = "notifyEmail"
	ConfigKeySchedulingEnabled = "schedulingEnabled"
	ConfigKeyCalendarID        = "calendarId"
)

// DefaultStaleDays is the inactivity threshold used by the sweep when no
// override is configured.
const DefaultStaleDays = 7

// StaleSentinelDays is the day count assigned to users that have never
// accessed the system, so they always exceed any realistic threshold.
const StaleSentinelDays = 99999

// RuntimeConfig holds the tunables read from the config sheet. It is
// loaded fresh per operation and never cached.
type RuntimeConfig struct {
	NotifyEnabled     bool   `json:"notify_enabled"`
	NotifyEmail       string `json:"notify_email"`
	SchedulingEnabled bool   `json:"scheduling_enabled"`
	CalendarID        string `json:"calendar_id"`
	StaleDays         int    `json:"stale_days"`
}

// ErrorType categorizes errors across the engine.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeExternal     ErrorType = "external"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
)

// Package interfaces defines the core interfaces of the lifecycle engine.
package interfaces

import (
	"context"
	"time"

	"github.com/sheetops/lifecycled/pkg/types"
)

// Registry is the narrow repository interface over the tabular store. It
// owns all translation between raw cells and typed records; no decision
// logic elsewhere re-implements cell coercion.
type Registry interface {
	// GetConfig loads the runtime tunables from the config sheet. It is
	// read fresh per operation and fails loudly when the sheet is absent.
	GetConfig(ctx context.Context) (*types.RuntimeConfig, error)

	// GetUsers returns all normalized user records, excluding the header
	// row. A missing users sheet yields an empty slice, not an error.
	GetUsers(ctx context.Context) ([]types.UserRecord, error)

	// GetRow returns the normalized record at the given 1-based row, or a
	// not-found error when the row does not exist.
	GetRow(ctx context.Context, row int) (*types.UserRecord, error)

	// SetUserField writes one cell of the users sheet.
	SetUserField(ctx context.Context, row int, col types.Column, value interface{}) error

	// FindRowByName returns the 1-based row of the first user with the
	// given name, or 0 when no row matches.
	FindRowByName(ctx context.Context, name string) (int, error)

	// AppendAudit appends one audit event. The registry assigns the
	// timestamp and ID at write time.
	AppendAudit(ctx context.Context, event *types.AuditEvent) error

	// ListAudit returns up to limit audit events, newest first.
	ListAudit(ctx context.Context, limit int) ([]types.AuditEvent, error)
}

// EditHandler consumes one normalized edit event.
type EditHandler func(event types.EditEvent)

// ChangeStore is a registry that can report cell edits to registered
// handlers, modeling the host environment's edit trigger.
type ChangeStore interface {
	Registry

	// OnEdit registers a handler invoked for every edit to the users sheet.
	OnEdit(handler EditHandler)
}

// NotificationGateway delivers outbound notifications. Both methods
// consult the notifyEnabled runtime flag and report delivery as a boolean;
// failures never propagate as errors into the dispatcher.
type NotificationGateway interface {
	SendPlain(ctx context.Context, subject, body string) bool
	SendRich(ctx context.Context, subject, htmlBody string) bool
}

// SchedulingGateway books calendar events. It consults the
// schedulingEnabled runtime flag and verifies the target calendar exists.
type SchedulingGateway interface {
	ScheduleEvent(ctx context.Context, title, description string, start, end time.Time) bool
}

// Processor executes the fixed side-effect sequence for one event kind.
type Processor interface {
	// Kind returns the event kind this processor handles.
	Kind() types.EventKind

	// Process runs the processor. Gateway failures are absorbed inside the
	// processor; a returned error indicates an internal failure only.
	Process(ctx context.Context, event *types.Event) error
}

// Dispatcher routes classified events to their processors.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *types.Event) error
}

// RunLock serializes overlapping batch runs keyed by a fixed resource name.
type RunLock interface {
	// TryAcquire attempts to take the lock without blocking. It returns
	// false when another holder owns it.
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release releases a previously acquired lock.
	Release(ctx context.Context, name string) error
}

// Logger provides leveled, structured logging.
type Logger interface {
	// Debug logs debug level messages
	Debug(msg string, fields ...map[string]interface{})

	// Info logs info level messages
	Info(msg string, fields ...map[string]interface{})

	// Warn logs warning level messages
	Warn(msg string, fields ...map[string]interface{})

	// Error logs error level messages
	Error(msg string, err error, fields ...map[string]interface{})

	// Fatal logs fatal level messages and exits
	Fatal(msg string, err error, fields ...map[string]interface{})

	// WithFields returns a logger with additional fields
	WithFields(fields map[string]interface{}) Logger
}

// Metrics collects operational metrics.
type Metrics interface {
	// Counter increments a counter metric
	Counter(name string, value float64, labels map[string]string)

	// Gauge sets a gauge metric
	Gauge(name string, value float64, labels map[string]string)

	// Histogram records a histogram metric
	Histogram(name string, value float64, labels map[string]string)

	// Timer records timing metrics
	Timer(name string, duration float64, labels map[string]string)
}

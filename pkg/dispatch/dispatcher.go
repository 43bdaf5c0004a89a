package dispatch

import (
	"context"
	"fmt"

	"github.com/sheetops/lifecycled/pkg/interfaces"
	"github.com/sheetops/lifecycled/pkg/types"
)

// Dispatcher routes one classified event to its processor. Processor
// failures are logged and recorded as Error-type audit events; they never
// propagate to the edit path, so a failing processor cannot block or
// revert the user's edit.
type Dispatcher struct {
	registry   interfaces.Registry
	processors map[types.EventKind]interfaces.Processor
	logger     interfaces.Logger
	metrics    interfaces.Metrics
}

// NewDispatcher creates a dispatcher over the given processors.
func NewDispatcher(registry interfaces.Registry, logger interfaces.Logger, metrics interfaces.Metrics, processors ...interfaces.Processor) *Dispatcher {
	d := &Dispatcher{
		registry:   registry,
		processors: make(map[types.EventKind]interfaces.Processor, len(processors)),
		logger:     logger,
		metrics:    metrics,
	}
	for _, p := range processors {
		d.processors[p.Kind()] = p
	}
	return d
}

// NewDefaultDispatcher wires the four standard processors.
func NewDefaultDispatcher(registry interfaces.Registry, notifier interfaces.NotificationGateway, scheduler interfaces.SchedulingGateway, logger interfaces.Logger, metrics interfaces.Metrics) *Dispatcher {
	return NewDispatcher(registry, logger, metrics,
		NewNewUserProcessor(registry, notifier, scheduler, logger),
		NewDeactivationProcessor(registry, notifier, logger),
		NewRoleChangeProcessor(registry, notifier, logger),
		NewDigestProcessor(registry, notifier, logger),
	)
}

// Dispatch runs the matching processor for the event.
func (d *Dispatcher) Dispatch(ctx context.Context, event *types.Event) error {
	if event == nil {
		return nil
	}

	processor, ok := d.processors[event.Kind]
	if !ok {
		d.logger.Warn("no processor for event kind", map[string]interface{}{"kind": string(event.Kind)})
		d.metrics.Counter("dispatch_unknown_kind_total", 1, nil)
		return nil
	}

	d.logger.Info("dispatching event", map[string]interface{}{
		"kind": string(event.Kind),
		"user": event.Record.Name,
	})

	if err := processor.Process(ctx, event); err != nil {
		d.logger.Error("processor failed", err, map[string]interface{}{"kind": string(event.Kind)})
		d.metrics.Counter("dispatch_failures_total", 1, map[string]string{"kind": string(event.Kind)})

		// Best-effort: record the failure in the audit trail when it is
		// reachable.
		audit := types.NewAuditEvent(
			types.AuditError,
			event.Record.Name,
			fmt.Sprintf("processor %s failed: %v", event.Kind, err),
			types.StatusError,
			"None",
		)
		if auditErr := d.registry.AppendAudit(ctx, audit); auditErr != nil {
			d.logger.Error("audit append failed", auditErr)
		}
		return nil
	}

	d.metrics.Counter("dispatch_events_total", 1, map[string]string{"kind": string(event.Kind)})
	return nil
}

var _ interfaces.Dispatcher = (*Dispatcher)(nil)

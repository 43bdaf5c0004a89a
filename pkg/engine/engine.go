// Package engine orchestrates the lifecycle pipeline: edits come in from
// a change-capable store, the HTTP API or a NATS subject, get classified,
// and the resulting events are dispatched to their processors.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sheetops/lifecycled/pkg/classifier"
	"github.com/sheetops/lifecycled/pkg/interfaces"
	"github.com/sheetops/lifecycled/pkg/types"
)

// Engine binds the registry, dispatcher and sweep job behind the two
// operations the host environment triggers: HandleEdit and RunSweep.
type Engine struct {
	registry   interfaces.Registry
	dispatcher interfaces.Dispatcher
	sweeper    Sweeper
	logger     interfaces.Logger
	metrics    interfaces.Metrics
}

// Sweeper is the slice of the sweep job the engine needs.
type Sweeper interface {
	Run(ctx context.Context) error
}

// New creates an engine.
func New(registry interfaces.Registry, dispatcher interfaces.Dispatcher, sweeper Sweeper, logger interfaces.Logger, metrics interfaces.Metrics) *Engine {
	return &Engine{
		registry:   registry,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		logger:     logger,
		metrics:    metrics,
	}
}

// HandleEdit processes one cell edit: load the row snapshot, classify,
// dispatch. Failures are logged and never surface to the editing user;
// the edit to the registry itself is already committed by the host.
func (e *Engine) HandleEdit(ctx context.Context, edit types.EditEvent) {
	e.metrics.Counter("edits_received_total", 1, nil)

	if edit.Row <= types.HeaderRow {
		return
	}

	record, err := e.registry.GetRow(ctx, edit.Row)
	if err != nil {
		e.logger.Error("failed to load edited row", err, map[string]interface{}{"row": edit.Row})

		// Best-effort: record the failure in the audit trail when it is
		// reachable.
		audit := types.NewAuditEvent(
			types.AuditError,
			"",
			fmt.Sprintf("failed to load row %d for edit: %v", edit.Row, err),
			types.StatusError,
			"None",
		)
		if auditErr := e.registry.AppendAudit(ctx, audit); auditErr != nil {
			e.logger.Error("audit append failed", auditErr)
		}
		return
	}

	event := classifier.Classify(edit.Row, types.Column(edit.Column), record)
	if event == nil {
		return
	}

	if err := e.dispatcher.Dispatch(ctx, event); err != nil {
		e.logger.Error("dispatch failed", err, map[string]interface{}{"row": edit.Row})
	}
}

// RunSweep executes one sweep run.
func (e *Engine) RunSweep(ctx context.Context) error {
	return e.sweeper.Run(ctx)
}

// Bind registers the engine as an edit handler on a change-capable store.
func (e *Engine) Bind(store interfaces.ChangeStore) {
	store.OnEdit(func(event types.EditEvent) {
		e.HandleEdit(context.Background(), event)
	})
}

// SubscribeEdits consumes edit events from a NATS subject. The payload is
// the JSON encoding of types.EditEvent. It returns an unsubscribe
// function.
func (e *Engine) SubscribeEdits(conn *nats.Conn, subject string) (func(), error) {
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		var edit types.EditEvent
		if err := json.Unmarshal(msg.Data, &edit); err != nil {
			e.logger.Warn("discarding malformed edit event", map[string]interface{}{"subject": subject})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		e.HandleEdit(ctx, edit)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("subscribed to edit events", map[string]interface{}{"subject": subject})
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			e.logger.Error("failed to unsubscribe from edit events", err)
		}
	}, nil
}

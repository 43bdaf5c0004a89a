// Package dispatch routes classified lifecycle events to their processors.
// Each processor runs a fixed sequence of side effects; gateway and audit
// failures are absorbed step by step so a failing step never aborts the
// remaining ones.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sheetops/lifecycled/pkg/interfaces"
	"github.com/sheetops/lifecycled/pkg/types"
)

// Onboarding meeting parameters: next calendar day, fixed morning slot.
const (
	onboardingStartHour = 10
	onboardingEndHour   = 11
	onboardingAgenda    = "Agenda:\n1. Platform walkthrough\n2. Access and permissions review\n3. Team introductions\n4. Q&A"
)

// procBase carries the collaborators shared by all processors.
type procBase struct {
	registry interfaces.Registry
	notifier interfaces.NotificationGateway
	logger   interfaces.Logger
	now      func() time.Time
}

// appendAudit writes one audit event best-effort. A broken audit log never
// blocks lifecycle processing.
func (p *procBase) appendAudit(ctx context.Context, event *types.AuditEvent) {
	if err := p.registry.AppendAudit(ctx, event); err != nil {
		p.logger.Error("audit append failed", err, map[string]interface{}{
			"type": string(event.Type),
			"user": event.User,
		})
	}
}

// NewUserProcessor handles row completion: stamps the two timestamp
// columns, audits, sends the welcome notification and books the
// onboarding meeting, in that order. Later steps never roll back earlier
// ones.
type NewUserProcessor struct {
	procBase
	scheduler interfaces.SchedulingGateway
}

// NewNewUserProcessor creates the NewUser processor.
func NewNewUserProcessor(registry interfaces.Registry, notifier interfaces.NotificationGateway, scheduler interfaces.SchedulingGateway, logger interfaces.Logger) *NewUserProcessor {
	return &NewUserProcessor{
		procBase:  procBase{registry: registry, notifier: notifier, logger: logger, now: time.Now},
		scheduler: scheduler,
	}
}

// Kind returns the event kind this processor handles.
func (p *NewUserProcessor) Kind() types.EventKind { return types.EventNewUser }

// Process runs the onboarding sequence: stamp, audit, notify, schedule.
func (p *NewUserProcessor) Process(ctx context.Context, event *types.Event) error {
	rec := event.Record
	now := p.now()

	// Two explicit writes, matching the registry's single-cell write
	// primitive. The row stays partially stamped if the second fails.
	if err := p.registry.SetUserField(ctx, event.Row, types.ColDateRegistered, now); err != nil {
		p.logger.Error("failed to stamp dateRegistered", err, map[string]interface{}{"row": event.Row})
	}
	if err := p.registry.SetUserField(ctx, event.Row, types.ColLastAccess, now); err != nil {
		p.logger.Error("failed to stamp lastAccess", err, map[string]interface{}{"row": event.Row})
	}

	p.appendAudit(ctx, types.NewAuditEvent(
		types.AuditUserAdded,
		rec.Name,
		fmt.Sprintf("User %s <%s> registered in group %s as %s", rec.Name, rec.Email, rec.Group, rec.Role),
		types.StatusOK,
		"Welcome notification sent",
	))

	welcome := fmt.Sprintf(
		"# Welcome, %s!\n\nYour registry entry is complete.\n\n| Field | Value |\n|---|---|\n| Name | %s |\n| Email | %s |\n| Role | %s |\n| Group | %s |\n| Registered | %s |\n",
		rec.Name, rec.Name, rec.Email, rec.Role, rec.Group, now.Format(time.RFC1123),
	)
	if !p.notifier.SendRich(ctx, fmt.Sprintf("Welcome aboard, %s", rec.Name), RenderHTML(welcome)) {
		p.logger.Warn("welcome notification not delivered", map[string]interface{}{"user": rec.Name})
	}

	start := time.Date(now.Year(), now.Month(), now.Day()+1, onboardingStartHour, 0, 0, 0, now.Location())
	end := time.Date(now.Year(), now.Month(), now.Day()+1, onboardingEndHour, 0, 0, 0, now.Location())
	if !p.scheduler.ScheduleEvent(ctx,
		fmt.Sprintf("Onboarding: %s", rec.Name),
		fmt.Sprintf("Onboarding session for %s (%s).\n\n%s", rec.Name, rec.Email, onboardingAgenda),
		start, end,
	) {
		p.logger.Warn("onboarding meeting not booked", map[string]interface{}{"user": rec.Name})
	}

	return nil
}

// DeactivationProcessor audits and alerts on a user going inactive,
// whether from a manual edit or the sweep.
type DeactivationProcessor struct {
	procBase
}

// NewDeactivationProcessor creates the Deactivation processor.
func NewDeactivationProcessor(registry interfaces.Registry, notifier interfaces.NotificationGateway, logger interfaces.Logger) *DeactivationProcessor {
	return &DeactivationProcessor{
		procBase: procBase{registry: registry, notifier: notifier, logger: logger, now: time.Now},
	}
}

// Kind returns the event kind this processor handles.
func (p *DeactivationProcessor) Kind() types.EventKind { return types.EventDeactivation }

// Process audits the deactivation and sends a plain-text alert.
func (p *DeactivationProcessor) Process(ctx context.Context, event *types.Event) error {
	rec := event.Record
	cause := event.Cause
	if cause == "" {
		cause = types.CauseManual
	}

	p.appendAudit(ctx, types.NewAuditEvent(
		types.AuditUserInactive,
		rec.Name,
		fmt.Sprintf("User %s <%s> is no longer active", rec.Name, rec.Email),
		types.StatusAlert,
		string(cause),
	))

	body := fmt.Sprintf(
		"User deactivated.\n\nName: %s\nEmail: %s\nGroup: %s\nWhen: %s\nHow: %s\n",
		rec.Name, rec.Email, rec.Group, p.now().Format(time.RFC1123), cause,
	)
	if !p.notifier.SendPlain(ctx, fmt.Sprintf("User deactivated: %s", rec.Name), body) {
		p.logger.Warn("deactivation alert not delivered", map[string]interface{}{"user": rec.Name})
	}

	return nil
}

// RoleChangeProcessor audits role edits and alerts when the new role is
// Admin, which requires explicit authorization verification.
type RoleChangeProcessor struct {
	procBase
}

// NewRoleChangeProcessor creates the RoleChange processor.
func NewRoleChangeProcessor(registry interfaces.Registry, notifier interfaces.NotificationGateway, logger interfaces.Logger) *RoleChangeProcessor {
	return &RoleChangeProcessor{
		procBase: procBase{registry: registry, notifier: notifier, logger: logger, now: time.Now},
	}
}

// Kind returns the event kind this processor handles.
func (p *RoleChangeProcessor) Kind() types.EventKind { return types.EventRoleChange }

// Process audits the role change; Admin grants additionally alert.
func (p *RoleChangeProcessor) Process(ctx context.Context, event *types.Event) error {
	rec := event.Record
	isAdmin := rec.Role == types.RoleAdmin

	status := types.StatusOK
	action := "log only"
	if isAdmin {
		status = types.StatusWarning
		action = "notification sent"
	}

	p.appendAudit(ctx, types.NewAuditEvent(
		types.AuditRoleChanged,
		rec.Name,
		fmt.Sprintf("Role of %s changed to %s", rec.Name, rec.Role),
		status,
		action,
	))

	if isAdmin {
		body := fmt.Sprintf(
			"User %s <%s> in group %s was granted the Admin role.\n\nPlease verify this change was explicitly authorized.\n",
			rec.Name, rec.Email, rec.Group,
		)
		if !p.notifier.SendPlain(ctx, fmt.Sprintf("Admin role granted: %s", rec.Name), body) {
			p.logger.Warn("admin role alert not delivered", map[string]interface{}{"user": rec.Name})
		}
	}

	return nil
}

// DigestProcessor sends the sweep's inactivity report as one rich
// notification listing every flagged user.
type DigestProcessor struct {
	procBase
}

// NewDigestProcessor creates the Digest processor.
func NewDigestProcessor(registry interfaces.Registry, notifier interfaces.NotificationGateway, logger interfaces.Logger) *DigestProcessor {
	return &DigestProcessor{
		procBase: procBase{registry: registry, notifier: notifier, logger: logger, now: time.Now},
	}
}

// Kind returns the event kind this processor handles.
func (p *DigestProcessor) Kind() types.EventKind { return types.EventDigest }

// Process builds and sends the digest. Empty batches send nothing.
func (p *DigestProcessor) Process(ctx context.Context, event *types.Event) error {
	if len(event.Digest) == 0 {
		return nil
	}

	now := p.now()
	var b strings.Builder
	fmt.Fprintf(&b, "# Inactivity report for %s\n\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "%d user(s) were deactivated for inactivity.\n\n", len(event.Digest))
	b.WriteString("| Name | Group | Days inactive |\n|---|---|---|\n")
	for _, entry := range event.Digest {
		fmt.Fprintf(&b, "| %s | %s | %d |\n", entry.Name, entry.Group, entry.DaysInactive)
	}

	subject := fmt.Sprintf("Inactivity digest %s", now.Format("2006-01-02"))
	if !p.notifier.SendRich(ctx, subject, RenderHTML(b.String())) {
		p.logger.Warn("digest not delivered", map[string]interface{}{"entries": len(event.Digest)})
	}

	return nil
}

// SetClock overrides the timestamp source. Tests only.
func (p *procBase) SetClock(now func() time.Time) {
	p.now = now
}

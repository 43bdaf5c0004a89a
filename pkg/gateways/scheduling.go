package gateways

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/sheetops/lifecycled/pkg/config"
	"github.com/sheetops/lifecycled/pkg/interfaces"
)

// calendarEvent is the payload of the calendar service API.
type calendarEvent struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// HTTPScheduler books meetings through an HTTP calendar service. Target
// calendar resolution and the backoff policy are owned here.
type HTTPScheduler struct {
	client   *resty.Client
	registry interfaces.Registry
	logger   interfaces.Logger
}

// NewHTTPScheduler creates a scheduling gateway against the configured
// calendar service endpoint.
func NewHTTPScheduler(cfg *config.GatewayConfig, registry interfaces.Registry, logger interfaces.Logger) *HTTPScheduler {
	client := resty.New()
	client.SetBaseURL(cfg.Endpoint)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", "lifecycled/1.0")

	return &HTTPScheduler{
		client:   client,
		registry: registry,
		logger:   logger,
	}
}

// ScheduleEvent books one calendar event. It returns false when scheduling
// is disabled, the configured calendar does not resolve to an existing
// resource, or the booking call fails.
func (s *HTTPScheduler) ScheduleEvent(ctx context.Context, title, description string, start, end time.Time) bool {
	cfg, err := s.registry.GetConfig(ctx)
	if err != nil {
		s.logger.Error("scheduling: failed to load runtime config", err)
		return false
	}
	if !cfg.SchedulingEnabled {
		s.logger.Debug("scheduling: disabled, skipping", map[string]interface{}{"title": title})
		return false
	}
	if cfg.CalendarID == "" {
		s.logger.Warn("scheduling: no calendar configured")
		return false
	}

	if !s.calendarExists(ctx, cfg.CalendarID) {
		s.logger.Warn("scheduling: calendar does not resolve",
			map[string]interface{}{"calendar_id": cfg.CalendarID})
		return false
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(calendarEvent{Title: title, Description: description, Start: start, End: end}).
		Post(fmt.Sprintf("/calendars/%s/events", cfg.CalendarID))
	if err != nil {
		s.logger.Error("scheduling: booking failed", err, map[string]interface{}{"title": title})
		return false
	}
	if resp.IsError() {
		s.logger.Warn("scheduling: booking rejected", map[string]interface{}{
			"title":  title,
			"status": resp.StatusCode(),
		})
		return false
	}

	s.logger.Info("meeting scheduled", map[string]interface{}{
		"title": title,
		"start": start,
	})
	return true
}

// calendarExists verifies the target calendar with a short exponential
// backoff on transient failures.
func (s *HTTPScheduler) calendarExists(ctx context.Context, calendarID string) bool {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second

	exists := false
	err := backoff.Retry(func() error {
		resp, err := s.client.R().
			SetContext(ctx).
			Get(fmt.Sprintf("/calendars/%s", calendarID))
		if err != nil {
			return err
		}
		if resp.StatusCode() == http.StatusNotFound {
			exists = false
			return nil
		}
		if resp.IsError() {
			return fmt.Errorf("calendar service returned %d", resp.StatusCode())
		}
		exists = true
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		s.logger.Error("scheduling: calendar lookup failed", err,
			map[string]interface{}{"calendar_id": calendarID})
		return false
	}
	return exists
}

var _ interfaces.SchedulingGateway = (*HTTPScheduler)(nil)

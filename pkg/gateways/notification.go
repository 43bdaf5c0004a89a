// Package gateways implements the external service boundaries invoked by
// the event processors: notification delivery and meeting scheduling. Both
// convert every failure into a boolean result at the boundary; errors
// never propagate into the dispatcher.
package gateways

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"

	"github.com/sheetops/lifecycled/pkg/config"
	"github.com/sheetops/lifecycled/pkg/interfaces"
)

// addressPattern is the basic local@domain.tld shape required of the
// configured destination address.
var addressPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[A-Za-z]{2,}$`)

// ValidAddress reports whether the address has the required shape.
func ValidAddress(address string) bool {
	return addressPattern.MatchString(address)
}

// mailRequest is the payload of the mail relay API.
type mailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Format  string `json:"format"`
}

// HTTPNotifier delivers notifications through an HTTP mail relay. The
// retry policy lives here, inside the gateway; callers see a single
// at-most-once boolean result.
type HTTPNotifier struct {
	client   *resty.Client
	registry interfaces.Registry
	logger   interfaces.Logger
}

// NewHTTPNotifier creates a notification gateway against the configured
// mail relay endpoint.
func NewHTTPNotifier(cfg *config.GatewayConfig, registry interfaces.Registry, logger interfaces.Logger) *HTTPNotifier {
	client := resty.New()
	client.SetBaseURL(cfg.Endpoint)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", "lifecycled/1.0")

	return &HTTPNotifier{
		client:   client,
		registry: registry,
		logger:   logger,
	}
}

// SendPlain sends a plain-text notification to the configured destination.
// It refuses to send, returning false, when notifications are disabled or
// the destination address fails the shape check.
func (n *HTTPNotifier) SendPlain(ctx context.Context, subject, body string) bool {
	cfg, err := n.registry.GetConfig(ctx)
	if err != nil {
		n.logger.Error("notification: failed to load runtime config", err)
		return false
	}
	if !cfg.NotifyEnabled {
		n.logger.Debug("notification: disabled, skipping", map[string]interface{}{"subject": subject})
		return false
	}
	if !ValidAddress(cfg.NotifyEmail) {
		n.logger.Warn("notification: destination address invalid, refusing to send",
			map[string]interface{}{"address": cfg.NotifyEmail})
		return false
	}

	return n.post(ctx, mailRequest{To: cfg.NotifyEmail, Subject: subject, Body: body, Format: "text"})
}

// SendRich sends an HTML notification to the configured destination.
func (n *HTTPNotifier) SendRich(ctx context.Context, subject, htmlBody string) bool {
	cfg, err := n.registry.GetConfig(ctx)
	if err != nil {
		n.logger.Error("notification: failed to load runtime config", err)
		return false
	}
	if !cfg.NotifyEnabled {
		n.logger.Debug("notification: disabled, skipping", map[string]interface{}{"subject": subject})
		return false
	}

	return n.post(ctx, mailRequest{To: cfg.NotifyEmail, Subject: subject, Body: htmlBody, Format: "html"})
}

func (n *HTTPNotifier) post(ctx context.Context, req mailRequest) bool {
	err := retry.Do(
		func() error {
			resp, err := n.client.R().
				SetContext(ctx).
				SetBody(req).
				Post("/messages")
			if err != nil {
				return err
			}
			if resp.IsError() {
				return fmt.Errorf("mail relay returned %d", resp.StatusCode())
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		n.logger.Error("notification: delivery failed", err,
			map[string]interface{}{"subject": req.Subject})
		return false
	}

	n.logger.Info("notification sent", map[string]interface{}{
		"subject": req.Subject,
		"format":  req.Format,
	})
	return true
}

var _ interfaces.NotificationGateway = (*HTTPNotifier)(nil)

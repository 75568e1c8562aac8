// Package notify routes run and budget events to the configured adapters.
package notify

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Event names.
const (
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
	EventRateLimited  = "rate_limit"
	EventUsageDigest  = "usage.digest"
)

// Sender can send a plain text message.
type Sender interface {
	Send(msg string) error
}

// LimitAlerter can send a rate-limit alert with follow-up actions.
type LimitAlerter interface {
	SendLimitAlert(runID string, retryAfter time.Duration) error
}

// WebhookFirer can fire a webhook event.
type WebhookFirer interface {
	Fire(event string, payload interface{})
}

// Dispatcher routes notification events to Telegram and webhooks.
type Dispatcher struct {
	telegram Sender
	webhook  WebhookFirer
}

// New creates a Dispatcher. Both telegram and webhook may be nil (disabled).
func New(telegram Sender, webhook WebhookFirer) *Dispatcher {
	return &Dispatcher{telegram: telegram, webhook: webhook}
}

// Send dispatches a notification event to all configured adapters.
// Payloads implementing fmt.Stringer are rendered with String for chat.
func (d *Dispatcher) Send(event string, payload interface{}) {
	if d == nil {
		return
	}
	if d.telegram != nil {
		if err := d.telegram.Send(formatEvent(event, payload)); err != nil {
			log.Warnf("notify: telegram send: %v", err)
		}
	}
	if d.webhook != nil {
		d.webhook.Fire(event, payload)
	}
}

// RateLimited alerts that a run was refused or rejected for quota. The
// Telegram adapter gets an interactive alert when it supports one.
func (d *Dispatcher) RateLimited(runID string, retryAfter time.Duration, payload interface{}) {
	if d == nil {
		return
	}
	if alerter, ok := d.telegram.(LimitAlerter); ok {
		if err := alerter.SendLimitAlert(runID, retryAfter); err != nil {
			log.Warnf("notify: telegram limit alert: %v", err)
		}
	} else if d.telegram != nil {
		if err := d.telegram.Send(formatEvent(EventRateLimited, payload)); err != nil {
			log.Warnf("notify: telegram send: %v", err)
		}
	}
	if d.webhook != nil {
		d.webhook.Fire(EventRateLimited, payload)
	}
}

func formatEvent(event string, payload interface{}) string {
	if s, ok := payload.(fmt.Stringer); ok {
		return fmt.Sprintf("[%s] %s", event, s.String())
	}
	return fmt.Sprintf("[%s] %v", event, payload)
}

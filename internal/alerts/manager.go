// Package alerts delivers operational alerts to the on-call channels with a
// shared dedup window so a flapping dependency cannot page repeatedly.
package alerts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"brokerage_backend/platform/config"
	"brokerage_backend/platform/logger"
	"brokerage_backend/platform/metrics"

	"github.com/google/uuid"
)

// Severity levels in escalation order.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const pagerEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Alert is one operational notification.
type Alert struct {
	Service  string
	Severity Severity
	Message  string
	Details  map[string]any
}

// Key is the dedup identity: same service, severity, and message collapse
// into one alert per window regardless of Details.
func (a Alert) Key() string {
	h := sha256.Sum256([]byte(a.Service + "|" + string(a.Severity) + "|" + a.Message))
	return hex.EncodeToString(h[:])
}

// SendResult reports what one Send did.
type SendResult struct {
	Suppressed bool
	Channels   []string
	Errors     []string
}

// SMSSender delivers alert texts to the on-call phones.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// EmailSender delivers alert emails.
type EmailSender interface {
	SendAutomationEmail(ctx context.Context, to, subject, htmlBody string) error
}

// History persists dispatched alerts. Optional; nil disables persistence.
type History interface {
	Insert(ctx context.Context, alert Alert) (uuid.UUID, error)
}

// Manager fans one alert out to every configured channel.
type Manager struct {
	cfg      config.AlertConfig
	cooldown CooldownStore
	sms      SMSSender
	email    EmailSender
	history  History
	http     *http.Client
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewManager creates an alert manager.
func NewManager(cfg config.AlertConfig, cooldown CooldownStore, sms SMSSender, email EmailSender, httpClient *http.Client, m *metrics.Metrics, log *logger.Logger) *Manager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Manager{
		cfg:      cfg,
		cooldown: cooldown,
		sms:      sms,
		email:    email,
		http:     httpClient,
		metrics:  m,
		log:      log.WithComponent("alerts"),
	}
}

// WithHistory enables alert persistence for the status endpoint.
func (m *Manager) WithHistory(h History) *Manager {
	m.history = h
	return m
}

// Send delivers the alert to every applicable channel.
//
// Channel routing: email always; SMS only for critical severity; chat and
// pager whenever configured. Channels fail independently; one gateway outage
// never blocks the others.
//
// A cooldown hit suppresses all channels. When the cooldown store itself
// fails the alert is sent anyway: a duplicate page beats a silent outage.
func (m *Manager) Send(ctx context.Context, alert Alert) SendResult {
	var result SendResult

	ok, err := m.cooldown.Acquire(ctx, alert.Key(), m.cfg.GetAlertCooldown())
	if err != nil {
		m.log.Error("alert cooldown store unavailable", "error", err)
		ok = true
	}
	if !ok {
		result.Suppressed = true
		if m.metrics != nil {
			m.metrics.AlertsSuppressed.Inc()
		}
		m.log.Info("alert suppressed by cooldown",
			"service", alert.Service, "severity", alert.Severity)
		return result
	}

	if m.email != nil {
		subject := fmt.Sprintf("[%s] %s: %s", alert.Severity, alert.Service, alert.Message)
		for _, to := range m.cfg.GetAlertEmailRecipients() {
			if err := m.email.SendAutomationEmail(ctx, to, subject, m.emailBody(alert)); err != nil {
				result.Errors = append(result.Errors, "email: "+err.Error())
				continue
			}
			result.Channels = append(result.Channels, "email")
		}
	}

	if m.sms != nil && alert.Severity == SeverityCritical {
		body := fmt.Sprintf("CRITICAL %s: %s", alert.Service, alert.Message)
		for _, to := range m.cfg.GetAlertSMSRecipients() {
			if err := m.sms.SendSMS(ctx, to, body); err != nil {
				result.Errors = append(result.Errors, "sms: "+err.Error())
				continue
			}
			result.Channels = append(result.Channels, "sms")
		}
	}

	if url := m.cfg.GetAlertChatWebhookURL(); url != "" {
		if err := m.postChat(ctx, url, alert); err != nil {
			result.Errors = append(result.Errors, "chat: "+err.Error())
		} else {
			result.Channels = append(result.Channels, "chat")
		}
	}

	if key := m.cfg.GetAlertPagerKey(); key != "" {
		if err := m.postPager(ctx, key, alert); err != nil {
			result.Errors = append(result.Errors, "pager: "+err.Error())
		} else {
			result.Channels = append(result.Channels, "pager")
		}
	}

	if m.history != nil {
		if _, err := m.history.Insert(ctx, alert); err != nil {
			m.log.Error("failed to persist alert", "error", err)
		}
	}

	if m.metrics != nil {
		m.metrics.AlertsSent.WithLabelValues(string(alert.Severity)).Inc()
	}
	m.log.Info("alert dispatched",
		"service", alert.Service, "severity", alert.Severity,
		"channels", result.Channels, "failures", len(result.Errors))
	return result
}

// Critical is a convenience wrapper for critical alerts.
func (m *Manager) Critical(ctx context.Context, service, message string, details map[string]any) SendResult {
	return m.Send(ctx, Alert{Service: service, Severity: SeverityCritical, Message: message, Details: details})
}

// Warning is a convenience wrapper for warning alerts.
func (m *Manager) Warning(ctx context.Context, service, message string, details map[string]any) SendResult {
	return m.Send(ctx, Alert{Service: service, Severity: SeverityWarning, Message: message, Details: details})
}

func (m *Manager) emailBody(alert Alert) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<p><strong>%s</strong> reported <strong>%s</strong></p><p>%s</p>",
		alert.Service, alert.Severity, alert.Message)
	if len(alert.Details) > 0 {
		buf.WriteString("<ul>")
		for k, v := range alert.Details {
			fmt.Fprintf(&buf, "<li>%s: %v</li>", k, v)
		}
		buf.WriteString("</ul>")
	}
	return buf.String()
}

func (m *Manager) postChat(ctx context.Context, url string, alert Alert) error {
	return m.postJSON(ctx, url, map[string]any{
		"text": fmt.Sprintf("[%s] %s: %s", alert.Severity, alert.Service, alert.Message),
	})
}

// postPager uses the PagerDuty v2 events format.
func (m *Manager) postPager(ctx context.Context, routingKey string, alert Alert) error {
	return m.postJSON(ctx, pagerEndpoint, map[string]any{
		"routing_key":  routingKey,
		"event_action": "trigger",
		"dedup_key":    alert.Key(),
		"payload": map[string]any{
			"summary":        fmt.Sprintf("%s: %s", alert.Service, alert.Message),
			"severity":       string(alert.Severity),
			"source":         alert.Service,
			"custom_details": alert.Details,
		},
	})
}

func (m *Manager) postJSON(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Package messaging provides the outbound SMS gateway client used by
// workflow actions and critical alerts.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"brokerage_backend/platform/apperr"
	"brokerage_backend/platform/config"
	"brokerage_backend/platform/logger"
	"brokerage_backend/platform/phone"
)

// Client sends SMS through the configured HTTP gateway. Destination numbers
// are normalized to E.164 before dispatch; gateway rejections surface as
// transient errors so callers can retry or degrade.
type Client struct {
	gatewayURL string
	apiKey     string
	from       string
	region     string
	http       *http.Client
	log        *logger.Logger
}

// NewClient creates an SMS gateway client.
func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	return &Client{
		gatewayURL: cfg.GetSMSGatewayURL(),
		apiKey:     cfg.GetSMSGatewayKey(),
		from:       cfg.GetSMSFromNumber(),
		region:     cfg.GetDefaultPhoneRegion(),
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log.WithComponent("sms"),
	}
}

type smsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// SendSMS delivers one message. The destination is normalized to E.164 on a
// best-effort basis; an empty destination never reaches the gateway.
func (c *Client) SendSMS(ctx context.Context, to, body string) error {
	if c.gatewayURL == "" {
		return apperr.Configuration("sms gateway not configured")
	}

	normalized := phone.NormalizeE164(to, c.region)
	if normalized == "" {
		return apperr.Validation("empty destination phone number")
	}

	payload, err := json.Marshal(smsRequest{From: c.from, To: normalized, Body: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Transient("sms gateway unreachable", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return apperr.Transient(fmt.Sprintf("sms gateway returned status %d", resp.StatusCode), nil)
	}

	c.log.Info("sms sent", "to", normalized)
	return nil
}

// Package crm provides the HTTP client for the external CRM where contacts,
// tags, and marketing automations live. All calls are best-effort from the
// engine's point of view: a CRM outage degrades enrichment, never capture.
package crm

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

	"github.com/google/uuid"
)

// Client talks to the external CRM REST API.
type Client struct {
	baseURL    string
	apiKey     string
	locationID string
	http       *http.Client
	log        *logger.Logger
}

// NewClient creates a CRM client.
func NewClient(cfg config.CRMConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:    cfg.GetCRMBaseURL(),
		apiKey:     cfg.GetCRMAPIKey(),
		locationID: cfg.GetCRMLocationID(),
		http:       &http.Client{Timeout: 15 * time.Second},
		log:        log.WithComponent("crm"),
	}
}

// Enabled reports whether the client has a configured endpoint.
func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// AddTags appends tags to the CRM contact. Existing tags are preserved; the
// CRM side deduplicates.
func (c *Client) AddTags(ctx context.Context, entityID uuid.UUID, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	path := fmt.Sprintf("/contacts/%s/tags", entityID)
	return c.post(ctx, path, map[string]any{"tags": tags})
}

// SetCustomFields writes custom field values onto the CRM contact.
func (c *Client) SetCustomFields(ctx context.Context, entityID uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	path := fmt.Sprintf("/contacts/%s", entityID)
	return c.put(ctx, path, map[string]any{"customFields": fields})
}

// TriggerAutomation starts a CRM-side automation campaign for the contact.
func (c *Client) TriggerAutomation(ctx context.Context, entityID uuid.UUID, automationID string) error {
	path := fmt.Sprintf("/campaigns/%s/subscribers", automationID)
	err := c.post(ctx, path, map[string]any{"contactId": entityID.String()})
	if err == nil {
		c.log.Info("crm automation triggered", "automation", automationID, "entityId", entityID)
	}
	return err
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	return c.do(ctx, http.MethodPost, path, payload)
}

func (c *Client) put(ctx context.Context, path string, payload any) error {
	return c.do(ctx, http.MethodPut, path, payload)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) error {
	if !c.Enabled() {
		return apperr.Configuration("crm client not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.locationID != "" {
		req.Header.Set("Location-Id", c.locationID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Transient("crm unreachable", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return apperr.NotFound("crm resource not found")
	}
	if resp.StatusCode >= 300 {
		return apperr.Transient(fmt.Sprintf("crm returned status %d", resp.StatusCode), nil)
	}
	return nil
}

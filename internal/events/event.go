// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"brokerage_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
// This is a convenience re-export from platform/events.
var NewInMemoryBus = events.NewInMemoryBus

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCaptured is published when a new lead and its opportunity are created.
type LeadCaptured struct {
	BaseEvent
	EntityID      uuid.UUID `json:"entityId"`
	OpportunityID uuid.UUID `json:"opportunityId"`
	Division      string    `json:"division"`
	Source        string    `json:"source,omitempty"`
}

func (e LeadCaptured) EventName() string { return "leads.lead.captured" }

// LeadClassified is published when the classifier (AI or fallback) attaches a
// classification to a lead.
type LeadClassified struct {
	BaseEvent
	EntityID      uuid.UUID `json:"entityId"`
	OpportunityID uuid.UUID `json:"opportunityId"`
	Division      string    `json:"division"`
	Priority      string    `json:"priority"`
	Fallback      bool      `json:"fallback"`
}

func (e LeadClassified) EventName() string { return "leads.lead.classified" }

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// OpportunityStageChanged is published synchronously by the pipeline state
// machine so that stage-triggered workflows fire before the transition call
// returns.
type OpportunityStageChanged struct {
	BaseEvent
	EntityID      uuid.UUID `json:"entityId"`
	OpportunityID uuid.UUID `json:"opportunityId"`
	Division      string    `json:"division"`
	OldStage      string    `json:"oldStage"`
	NewStage      string    `json:"newStage"`
}

func (e OpportunityStageChanged) EventName() string { return "pipeline.stage.changed" }

// =============================================================================
// Documents Domain Events
// =============================================================================

// DocumentUploaded is published for every accepted document upload.
type DocumentUploaded struct {
	BaseEvent
	Token         string    `json:"token"`
	EntityID      uuid.UUID `json:"entityId"`
	OpportunityID uuid.UUID `json:"opportunityId"`
	Division      string    `json:"division"`
	DocumentType  string    `json:"documentType"`
	FileRef       string    `json:"fileRef,omitempty"`
}

func (e DocumentUploaded) EventName() string { return "documents.uploaded" }

// DocumentsComplete is published exactly once per upload token, the moment the
// uploaded set covers the required set. This is the sole mechanism by which
// document collection advances the pipeline.
type DocumentsComplete struct {
	BaseEvent
	Token         string    `json:"token"`
	EntityID      uuid.UUID `json:"entityId"`
	OpportunityID uuid.UUID `json:"opportunityId"`
	Division      string    `json:"division"`
}

func (e DocumentsComplete) EventName() string { return "documents.complete" }

// =============================================================================
// Webhook Domain Events
// =============================================================================

// WebhookReceived is published when an inbound integration webhook arrives.
type WebhookReceived struct {
	BaseEvent
	EntityID uuid.UUID      `json:"entityId"`
	Source   string         `json:"source"`
	Payload  map[string]any `json:"payload,omitempty"`
}

func (e WebhookReceived) EventName() string { return "webhook.received" }

// Package workflow implements the declarative automation engine: trigger
// matching, condition evaluation, action dispatch and execution dedup.
package workflow

import (
	"time"

	"github.com/google/uuid"
)

// TriggerType is the event class a workflow reacts to.
type TriggerType string

const (
	TriggerNewLead           TriggerType = "new_lead"
	TriggerStageChanged      TriggerType = "stage_changed"
	TriggerTimeElapsed       TriggerType = "time_elapsed"
	TriggerDocumentUploaded  TriggerType = "document_uploaded"
	TriggerDocumentsComplete TriggerType = "documents_complete"
	TriggerWebhookReceived   TriggerType = "webhook_received"
)

// Sweep sources carried on time_elapsed events so two time-based workflows
// with different cadences never match each other's events.
const (
	SourceAbandonedLeads     = "abandoned_leads"
	SourceStuckOpportunities = "stuck_opportunities"
	SourceStageFollowUp      = "stage_followup"
	SourceDocumentExpiry     = "document_expiry"
)

// ActionType identifies a dispatchable action kind.
type ActionType string

const (
	ActionSendSMS           ActionType = "send_sms"
	ActionSendEmail         ActionType = "send_email"
	ActionCreateTask        ActionType = "create_task"
	ActionUpdateStage       ActionType = "update_stage"
	ActionTagContact        ActionType = "tag_contact"
	ActionAIFollowup        ActionType = "ai_followup"
	ActionWebhook           ActionType = "webhook"
	ActionTriggerExternalWF ActionType = "trigger_external_workflow"
)

// Trigger describes what a workflow listens for. Empty filter fields match
// anything.
type Trigger struct {
	Type TriggerType `json:"type"`
	// Stage filters stage_changed (target stage), time_elapsed and
	// documents_complete triggers.
	Stage string `json:"stage,omitempty"`
	// From filters stage_changed triggers by origin stage.
	From string `json:"from,omitempty"`
	// Threshold is the idle duration for time_elapsed triggers. Matching
	// entities are found by the orchestrator sweep, not by the engine.
	Threshold time.Duration `json:"threshold,omitempty"`
	// Source filters webhook_received and time_elapsed triggers; for
	// time_elapsed it names the sweep that feeds the workflow.
	Source string `json:"source,omitempty"`
}

// Condition is a single predicate over the entity snapshot. All conditions of
// a workflow are ANDed; there is no OR or grouping.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"` // equals | contains | greater_than | less_than
	Value    string `json:"value"`
}

// Action is one declarative step of a workflow. Which fields apply depends on
// Type; unused fields stay zero.
type Action struct {
	Type ActionType `json:"type"`

	// send_sms / send_email: {{field}} templates rendered against the
	// snapshot. To defaults to the snapshot's phone/email when empty.
	To       string `json:"to,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Template string `json:"template,omitempty"`

	// create_task
	TaskTitle string `json:"taskTitle,omitempty"`

	// update_stage
	Stage string `json:"stage,omitempty"`

	// tag_contact
	Tags []string `json:"tags,omitempty"`

	// ai_followup
	Directive string `json:"directive,omitempty"`

	// webhook
	URL     string         `json:"url,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Definition is a declarative workflow: trigger + conditions + actions.
// Loaded once at startup and never mutated at runtime.
type Definition struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Trigger    Trigger     `json:"trigger"`
	Conditions []Condition `json:"conditions,omitempty"`
	Actions    []Action    `json:"actions"`
	Enabled    bool        `json:"enabled"`
	// Cooldown overrides the engine default when positive.
	Cooldown time.Duration `json:"cooldown,omitempty"`
}

// Event is a business event fed into the engine, either from inbound API
// handlers or from orchestrator sweeps.
type Event struct {
	Type          TriggerType
	EntityID      uuid.UUID
	OpportunityID uuid.UUID
	Division      string
	Stage         string
	FromStage     string
	Source        string
	Snapshot      map[string]any
}

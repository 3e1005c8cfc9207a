// Package transport defines the request and response shapes for the leads
// HTTP API.
package transport

import (
	"brokerage_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// CaptureLeadRequest is an inbound lead from a web form or integration.
type CaptureLeadRequest struct {
	FirstName    string         `json:"firstName" validate:"required,max=100"`
	LastName     string         `json:"lastName" validate:"max=100"`
	Email        string         `json:"email" validate:"omitempty,email"`
	Phone        string         `json:"phone" validate:"omitempty,max=32"`
	Source       string         `json:"source" validate:"max=100"`
	LoanType     string         `json:"loanType" validate:"max=200"`
	LoanAmount   float64        `json:"loanAmount" validate:"gte=0"`
	CreditScore  int            `json:"creditScore" validate:"gte=0,lte=850"`
	Message      string         `json:"message" validate:"max=5000"`
	CustomFields map[string]any `json:"customFields"`
}

// CaptureLeadResponse returns the created pair plus classification outcome.
type CaptureLeadResponse struct {
	Entity         domain.Entity      `json:"entity"`
	Opportunity    domain.Opportunity `json:"opportunity"`
	Division       string             `json:"division"`
	Priority       string             `json:"priority"`
	UsedFallback   bool               `json:"usedFallback"`
	WorkflowsFired int                `json:"workflowsFired"`
}

// SubmitEventRequest feeds one business event into the workflow engine.
type SubmitEventRequest struct {
	Type          string         `json:"type" validate:"required,oneof=new_lead stage_changed document_uploaded documents_complete webhook_received"`
	EntityID      uuid.UUID      `json:"entityId" validate:"required"`
	OpportunityID uuid.UUID      `json:"opportunityId"`
	Stage         string         `json:"stage"`
	FromStage     string         `json:"fromStage"`
	Source        string         `json:"source"`
	Payload       map[string]any `json:"payload"`
}

// DispatchOutcome is one workflow's result in a SubmitEvent response.
type DispatchOutcome struct {
	WorkflowID string   `json:"workflowId"`
	Suppressed bool     `json:"suppressed"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors,omitempty"`
}

// SubmitEventResponse lists what fired.
type SubmitEventResponse struct {
	Matched    int               `json:"matched"`
	Dispatches []DispatchOutcome `json:"dispatches"`
}

// TransitionRequest moves an opportunity to a new stage.
type TransitionRequest struct {
	Stage string `json:"stage" validate:"required,max=100"`
}

// SelectPartnerRequest asks for funding partner routing.
type SelectPartnerRequest struct {
	LoanType    string  `json:"loanType" validate:"required,max=200"`
	LoanAmount  float64 `json:"loanAmount" validate:"gte=0"`
	CreditScore int     `json:"creditScore" validate:"gte=0,lte=850"`
	Urgent      bool    `json:"urgent"`
}

// UploadStatusResponse reports checklist progress for an upload token.
type UploadStatusResponse struct {
	Token     string   `json:"token"`
	Division  string   `json:"division"`
	Required  []string `json:"required"`
	Uploaded  []string `json:"uploaded"`
	Missing   []string `json:"missing"`
	Completed bool     `json:"completed"`
}

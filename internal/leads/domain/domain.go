// Package domain holds the core lead and opportunity types shared across the
// leads bounded context.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Priority buckets for an opportunity.
const (
	PriorityHot  = "hot"
	PriorityWarm = "warm"
	PriorityCold = "cold"
)

// Opportunity lifecycle status.
const (
	StatusActive = "active"
	StatusClosed = "closed"
	StatusWon    = "won"
	StatusLost   = "lost"
)

// Entity is a contact/lead. Never hard-deleted; tags and custom fields are
// mutated by classification and workflow actions.
type Entity struct {
	ID           uuid.UUID      `json:"id"`
	CRMContactID string         `json:"crmContactId,omitempty"`
	FirstName    string         `json:"firstName"`
	LastName     string         `json:"lastName"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	CustomFields map[string]any `json:"customFields,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Opportunity is one funding pursuit for an entity. The entity may outlive or
// be shared across opportunities.
type Opportunity struct {
	ID            uuid.UUID `json:"id"`
	EntityID      uuid.UUID `json:"entityId"`
	Division      string    `json:"division"`
	StageName     string    `json:"stageName"`
	Priority      string    `json:"priority"`
	MonetaryValue float64   `json:"monetaryValue"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SweepCandidate is the projection the orchestrator's time-based sweeps work
// with.
type SweepCandidate struct {
	EntityID      uuid.UUID
	OpportunityID uuid.UUID
	Division      string
	Stage         string
	UpdatedAt     time.Time
}

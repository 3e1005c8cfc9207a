// Package service implements lead capture and the business-event entry point
// into the automation engine.
package service

import (
	"context"
	"time"

	"brokerage_backend/internal/classifier"
	"brokerage_backend/internal/events"
	"brokerage_backend/internal/leads/domain"
	"brokerage_backend/internal/leads/repository"
	"brokerage_backend/internal/leads/transport"
	"brokerage_backend/internal/pipeline"
	"brokerage_backend/internal/workflow"
	"brokerage_backend/platform/apperr"
	"brokerage_backend/platform/logger"
	"brokerage_backend/platform/phone"

	"github.com/google/uuid"
)

// Service owns lead capture, snapshot assembly, and event submission.
type Service struct {
	repo        *repository.Repository
	classifier  *classifier.Classifier
	engine      *workflow.Engine
	bus         events.Bus
	phoneRegion string
	log         *logger.Logger
}

// New creates the leads service.
func New(repo *repository.Repository, cls *classifier.Classifier, engine *workflow.Engine, bus events.Bus, phoneRegion string, log *logger.Logger) *Service {
	return &Service{
		repo:        repo,
		classifier:  cls,
		engine:      engine,
		bus:         bus,
		phoneRegion: phoneRegion,
		log:         log.WithComponent("leads"),
	}
}

// CaptureLead ingests one inbound lead: dedupe the contact, classify, open an
// opportunity at the top of the classified division's pipeline, and fire
// new-lead workflows before returning.
//
// Classification never fails the capture; the classifier degrades to its
// rule-based fallback internally.
func (s *Service) CaptureLead(ctx context.Context, req transport.CaptureLeadRequest) (transport.CaptureLeadResponse, error) {
	normalizedPhone := phone.NormalizeE164(req.Phone, s.phoneRegion)

	entity, found, err := s.repo.FindEntityByContact(ctx, req.Email, normalizedPhone)
	if err != nil {
		return transport.CaptureLeadResponse{}, err
	}
	if !found {
		entity, err = s.repo.CreateEntity(ctx, domain.Entity{
			ID:           uuid.New(),
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Email:        req.Email,
			Phone:        normalizedPhone,
			CustomFields: req.CustomFields,
		})
		if err != nil {
			return transport.CaptureLeadResponse{}, err
		}
	}

	snapshot := captureSnapshot(entity, req)
	cls := s.classifier.Classify(ctx, snapshot)

	division := cls.Division
	if !pipeline.IsKnownDivision(pipeline.Division(division)) {
		division = string(pipeline.DivisionLending)
	}

	opp, err := s.repo.CreateOpportunity(ctx, domain.Opportunity{
		ID:            uuid.New(),
		EntityID:      entity.ID,
		Division:      division,
		StageName:     pipeline.StageNewLead,
		Priority:      cls.Priority,
		MonetaryValue: cls.EstimatedValue,
		Status:        domain.StatusActive,
	})
	if err != nil {
		return transport.CaptureLeadResponse{}, err
	}

	snapshot["division"] = division
	snapshot["priority"] = cls.Priority
	snapshot["stage"] = pipeline.StageNewLead

	s.bus.Publish(ctx, events.LeadCaptured{
		BaseEvent:     events.NewBaseEvent(),
		EntityID:      entity.ID,
		OpportunityID: opp.ID,
		Division:      division,
		Source:        req.Source,
	})
	s.bus.Publish(ctx, events.LeadClassified{
		BaseEvent:     events.NewBaseEvent(),
		EntityID:      entity.ID,
		OpportunityID: opp.ID,
		Division:      division,
		Priority:      cls.Priority,
		Fallback:      cls.Source == "fallback",
	})

	results := s.engine.HandleEvent(ctx, workflow.Event{
		Type:          workflow.TriggerNewLead,
		EntityID:      entity.ID,
		OpportunityID: opp.ID,
		Division:      division,
		Stage:         pipeline.StageNewLead,
		Source:        req.Source,
		Snapshot:      snapshot,
	})

	s.log.Info("lead captured",
		"entityId", entity.ID, "opportunityId", opp.ID,
		"division", division, "priority", cls.Priority,
		"fallback", cls.Source == "fallback", "workflows", len(results))

	return transport.CaptureLeadResponse{
		Entity:         entity,
		Opportunity:    opp,
		Division:       division,
		Priority:       cls.Priority,
		UsedFallback:   cls.Source == "fallback",
		WorkflowsFired: len(results),
	}, nil
}

// SubmitEvent feeds one externally produced business event into the engine.
func (s *Service) SubmitEvent(ctx context.Context, req transport.SubmitEventRequest) (transport.SubmitEventResponse, error) {
	snapshot, err := s.Snapshot(ctx, req.EntityID, req.OpportunityID)
	if err != nil {
		return transport.SubmitEventResponse{}, err
	}
	for k, v := range req.Payload {
		snapshot[k] = v
	}

	evt := workflow.Event{
		Type:          workflow.TriggerType(req.Type),
		EntityID:      req.EntityID,
		OpportunityID: req.OpportunityID,
		Stage:         req.Stage,
		FromStage:     req.FromStage,
		Source:        req.Source,
		Snapshot:      snapshot,
	}
	if div, ok := snapshot["division"].(string); ok {
		evt.Division = div
	}

	results := s.engine.HandleEvent(ctx, evt)

	resp := transport.SubmitEventResponse{Matched: len(results)}
	for _, res := range results {
		resp.Dispatches = append(resp.Dispatches, transport.DispatchOutcome{
			WorkflowID: res.WorkflowID,
			Suppressed: res.Suppressed,
			Success:    res.Success,
			Errors:     res.Errors,
		})
	}
	return resp, nil
}

// Snapshot assembles the flat field map workflows evaluate conditions and
// render templates against. Custom fields are flattened at the top level but
// never shadow core fields.
func (s *Service) Snapshot(ctx context.Context, entityID, opportunityID uuid.UUID) (map[string]any, error) {
	entity, err := s.repo.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]any, len(entity.CustomFields)+10)
	for k, v := range entity.CustomFields {
		snapshot[k] = v
	}
	snapshot["entity_id"] = entity.ID.String()
	snapshot["first_name"] = entity.FirstName
	snapshot["last_name"] = entity.LastName
	snapshot["email"] = entity.Email
	snapshot["phone"] = entity.Phone
	snapshot["tags"] = entity.Tags

	if opportunityID != uuid.Nil {
		opp, err := s.repo.GetOpportunityByID(ctx, opportunityID)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		if err == nil {
			snapshot["opportunity_id"] = opp.ID.String()
			snapshot["division"] = opp.Division
			snapshot["stage"] = opp.StageName
			snapshot["priority"] = opp.Priority
			snapshot["loan_amount"] = opp.MonetaryValue
			snapshot["status"] = opp.Status
			snapshot["idle_hours"] = time.Since(opp.UpdatedAt).Hours()
		}
	}
	return snapshot, nil
}

// MergeEntityTags implements the workflow engine's tag writer port.
func (s *Service) MergeEntityTags(ctx context.Context, entityID uuid.UUID, tags []string) error {
	return s.repo.MergeEntityTags(ctx, entityID, tags)
}

func captureSnapshot(entity domain.Entity, req transport.CaptureLeadRequest) map[string]any {
	snapshot := make(map[string]any, len(req.CustomFields)+10)
	for k, v := range req.CustomFields {
		snapshot[k] = v
	}
	snapshot["entity_id"] = entity.ID.String()
	snapshot["first_name"] = entity.FirstName
	snapshot["last_name"] = entity.LastName
	snapshot["email"] = entity.Email
	snapshot["phone"] = entity.Phone
	snapshot["source"] = req.Source
	snapshot["loan_type"] = req.LoanType
	snapshot["loan_amount"] = req.LoanAmount
	snapshot["credit_score"] = req.CreditScore
	snapshot["message"] = req.Message
	return snapshot
}

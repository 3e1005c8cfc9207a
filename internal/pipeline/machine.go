package pipeline

import (
	"context"
	"fmt"

	"brokerage_backend/internal/events"
	"brokerage_backend/platform/apperr"
	"brokerage_backend/platform/logger"
	"brokerage_backend/platform/metrics"

	"github.com/google/uuid"
)

// Opportunity is the state-machine view of an opportunity. The full record
// lives in the leads repository; the machine only needs identity, division
// and current stage.
type Opportunity struct {
	ID       uuid.UUID
	EntityID uuid.UUID
	Division Division
	Stage    string
	Status   string
}

// OpportunityStore is the persistence port the machine drives.
type OpportunityStore interface {
	GetOpportunity(ctx context.Context, id uuid.UUID) (Opportunity, error)
	UpdateOpportunityStage(ctx context.Context, id uuid.UUID, stage string) error
}

// Machine validates and applies stage transitions, raising the stage-change
// event synchronously so stage-triggered workflows fire in the same logical
// step as the move.
type Machine struct {
	store   OpportunityStore
	bus     events.Bus
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewMachine creates a pipeline state machine.
func NewMachine(store OpportunityStore, bus events.Bus, m *metrics.Metrics, log *logger.Logger) *Machine {
	return &Machine{store: store, bus: bus, metrics: m, log: log}
}

// Transition moves an opportunity to newStage.
//
// Invalid targets (not a member of the division's canonical stage list)
// return a validation error and leave the opportunity unchanged. Transitions
// out of a terminal stage are a no-op rather than an error, because manual
// override must remain possible. The OpportunityStageChanged event is
// published synchronously: subscribers have run by the time this returns.
func (m *Machine) Transition(ctx context.Context, opportunityID uuid.UUID, newStage string) error {
	opp, err := m.store.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return err
	}

	if !IsValidStage(opp.Division, newStage) {
		return apperr.Validation(fmt.Sprintf("stage %q is not part of the %s pipeline", newStage, opp.Division))
	}

	return m.apply(ctx, opp, newStage)
}

// ResolveAndTransition runs raw through the two-tier stage lookup for the
// opportunity's division before applying the transition. CRM webhooks hand
// over stage ids rather than canonical names.
func (m *Machine) ResolveAndTransition(ctx context.Context, opportunityID uuid.UUID, raw string) (Resolution, error) {
	opp, err := m.store.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return Resolution{}, err
	}

	res := ResolveStage(opp.Division, raw)
	if res.Unresolved {
		return res, apperr.Validation(fmt.Sprintf("stage %q is not part of the %s pipeline", raw, opp.Division))
	}
	return res, m.apply(ctx, opp, res.Stage)
}

func (m *Machine) apply(ctx context.Context, opp Opportunity, newStage string) error {
	if IsTerminalStage(opp.Stage) {
		m.log.Info("pipeline: ignoring transition out of terminal stage",
			"opportunityId", opp.ID, "stage", opp.Stage, "requested", newStage)
		return nil
	}

	if newStage == opp.Stage {
		return nil
	}

	if err := m.store.UpdateOpportunityStage(ctx, opp.ID, newStage); err != nil {
		return err
	}

	if m.metrics != nil {
		m.metrics.StageTransitions.WithLabelValues(string(opp.Division)).Inc()
	}

	m.log.Info("pipeline: stage transition",
		"opportunityId", opp.ID, "division", opp.Division, "from", opp.Stage, "to", newStage)

	if m.bus != nil {
		// Synchronous on purpose: "stage X reached" and "stage-X workflow
		// fired" must not be observable out of order by the caller.
		_ = m.bus.PublishSync(ctx, events.OpportunityStageChanged{
			BaseEvent:     events.NewBaseEvent(),
			EntityID:      opp.EntityID,
			OpportunityID: opp.ID,
			Division:      string(opp.Division),
			OldStage:      opp.Stage,
			NewStage:      newStage,
		})
	}

	return nil
}

package pipeline

import (
	"context"
	"testing"

	"brokerage_backend/internal/events"
	"brokerage_backend/platform/apperr"
	"brokerage_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	opp     Opportunity
	updated []string
}

func (f *fakeStore) GetOpportunity(ctx context.Context, id uuid.UUID) (Opportunity, error) {
	return f.opp, nil
}

func (f *fakeStore) UpdateOpportunityStage(ctx context.Context, id uuid.UUID, stage string) error {
	f.updated = append(f.updated, stage)
	f.opp.Stage = stage
	return nil
}

func newTestMachine(store *fakeStore, bus events.Bus) *Machine {
	return NewMachine(store, bus, nil, logger.New("development"))
}

func TestTransition_RejectsStageOutsideDivision(t *testing.T) {
	store := &fakeStore{opp: Opportunity{
		ID:       uuid.New(),
		EntityID: uuid.New(),
		Division: DivisionLending,
		Stage:    StageNewLead,
	}}
	m := newTestMachine(store, nil)

	err := m.Transition(context.Background(), store.opp.ID, "Presentation Scheduled")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.updated) != 0 {
		t.Fatalf("stage must be unchanged on invalid target, got updates %v", store.updated)
	}
}

func TestResolveAndTransition_MapsCRMStageID(t *testing.T) {
	store := &fakeStore{opp: Opportunity{
		ID:       uuid.New(),
		EntityID: uuid.New(),
		Division: DivisionLending,
		Stage:    StageNewLead,
	}}
	m := newTestMachine(store, nil)

	res, err := m.ResolveAndTransition(context.Background(), store.opp.ID, "stage_qualified")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stage != StageQualified || res.Unresolved {
		t.Fatalf("expected resolution to %q, got %+v", StageQualified, res)
	}
	if len(store.updated) != 1 || store.updated[0] != StageQualified {
		t.Fatalf("expected canonical stage persisted, got updates %v", store.updated)
	}
}

func TestResolveAndTransition_UnresolvedStageIsRejected(t *testing.T) {
	store := &fakeStore{opp: Opportunity{
		ID:       uuid.New(),
		EntityID: uuid.New(),
		Division: DivisionLending,
		Stage:    StageNewLead,
	}}
	m := newTestMachine(store, nil)

	res, err := m.ResolveAndTransition(context.Background(), store.opp.ID, "stage_does_not_exist")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !res.Unresolved {
		t.Fatalf("expected unresolved passthrough, got %+v", res)
	}
	if len(store.updated) != 0 {
		t.Fatalf("stage must be unchanged on unresolved input, got updates %v", store.updated)
	}
}

func TestTransition_TerminalStageIsNoop(t *testing.T) {
	for _, terminal := range []string{StageFunded, StageAmountWon, StageDisqualified} {
		store := &fakeStore{opp: Opportunity{
			ID:       uuid.New(),
			Division: DivisionLending,
			Stage:    terminal,
		}}
		m := newTestMachine(store, nil)

		if err := m.Transition(context.Background(), store.opp.ID, StageNewLead); err != nil {
			t.Fatalf("terminal transition must be a no-op, got error %v", err)
		}
		if len(store.updated) != 0 {
			t.Fatalf("terminal stage %q must not be updated", terminal)
		}
	}
}

func TestTransition_PublishesStageChangeSynchronously(t *testing.T) {
	store := &fakeStore{opp: Opportunity{
		ID:       uuid.New(),
		EntityID: uuid.New(),
		Division: DivisionLending,
		Stage:    StageDocumentsPending,
	}}

	bus := events.NewInMemoryBus(nil)
	var seen *events.OpportunityStageChanged
	bus.Subscribe(events.OpportunityStageChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		evt := e.(events.OpportunityStageChanged)
		seen = &evt
		return nil
	}))

	m := newTestMachine(store, bus)
	if err := m.Transition(context.Background(), store.opp.ID, StageFullApplicationComplete); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// PublishSync: handler must have run before Transition returned.
	if seen == nil {
		t.Fatal("stage change event not observed synchronously")
	}
	if seen.OldStage != StageDocumentsPending || seen.NewStage != StageFullApplicationComplete {
		t.Fatalf("unexpected event stages: %+v", seen)
	}
}

func TestTransition_SameStageIsNoop(t *testing.T) {
	store := &fakeStore{opp: Opportunity{
		ID:       uuid.New(),
		Division: DivisionInvestment,
		Stage:    StageQualified,
	}}
	m := newTestMachine(store, nil)

	if err := m.Transition(context.Background(), store.opp.ID, StageQualified); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.updated) != 0 {
		t.Fatal("same-stage transition must not write")
	}
}

func TestResolveStage_TwoTierLookup(t *testing.T) {
	cases := []struct {
		raw        string
		want       string
		unresolved bool
	}{
		{"Documents Pending", StageDocumentsPending, false},
		{"stage_docs_pending", StageDocumentsPending, false},
		{"stage_underwriting", StageUnderwriting, false},
		{"Disqualified", StageDisqualified, false},
		{"totally-unknown", "totally-unknown", true},
	}

	for _, tc := range cases {
		got := ResolveStage(DivisionLending, tc.raw)
		if got.Stage != tc.want || got.Unresolved != tc.unresolved {
			t.Errorf("ResolveStage(%q) = %+v, want stage %q unresolved=%v", tc.raw, got, tc.want, tc.unresolved)
		}
	}
}

func TestStageLists_AllDivisionsStartAtNewLead(t *testing.T) {
	for _, d := range []Division{DivisionLending, DivisionInvestment, DivisionRealEstate} {
		stages := Stages(d)
		if len(stages) == 0 || stages[0] != StageNewLead {
			t.Errorf("division %s must start at %q, got %v", d, StageNewLead, stages)
		}
		if !IsTerminalStage(stages[len(stages)-1]) {
			t.Errorf("division %s must end in a terminal stage, got %q", d, stages[len(stages)-1])
		}
	}
}

package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"brokerage_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to+": "+body)
	return nil
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeEmail) SendAutomationEmail(ctx context.Context, to, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to+": "+subject)
	return nil
}

type fakeCRM struct {
	tags        [][]string
	automations []string
}

func (f *fakeCRM) AddTags(ctx context.Context, entityID uuid.UUID, tags []string) error {
	f.tags = append(f.tags, tags)
	return nil
}

func (f *fakeCRM) TriggerAutomation(ctx context.Context, entityID uuid.UUID, automationID string) error {
	f.automations = append(f.automations, automationID)
	return nil
}

type fakeTransitioner struct {
	transitions []string
	err         error
}

func (f *fakeTransitioner) Transition(ctx context.Context, opportunityID uuid.UUID, stage string) error {
	if f.err != nil {
		return f.err
	}
	f.transitions = append(f.transitions, stage)
	return nil
}

func newTestEngine(t *testing.T, catalog []Definition, opts EngineOptions) *Engine {
	t.Helper()
	opts.Catalog = catalog
	if opts.Ledger == nil {
		opts.Ledger = NewMemoryLedger()
	}
	if opts.Audit == nil {
		opts.Audit = NewMemoryAuditLog()
	}
	return NewEngine(opts, logger.New("development"))
}

func TestDispatchCooldownSuppressesSecondExecution(t *testing.T) {
	sms := &fakeSMS{}
	def := Definition{
		ID:      "welcome",
		Trigger: Trigger{Type: TriggerNewLead},
		Actions: []Action{{Type: ActionSendSMS, Template: "hello {{first_name}}"}},
		Enabled: true,
	}
	eng := newTestEngine(t, []Definition{def}, EngineOptions{SMS: sms, DefaultCooldown: time.Hour})

	evt := Event{
		Type:     TriggerNewLead,
		EntityID: uuid.New(),
		Snapshot: map[string]any{"first_name": "Dana", "phone": "+15551234567"},
	}

	first := eng.Dispatch(context.Background(), def, evt)
	if !first.Success || first.Suppressed {
		t.Fatalf("first dispatch should succeed: %+v", first)
	}
	second := eng.Dispatch(context.Background(), def, evt)
	if !second.Suppressed {
		t.Fatalf("second dispatch inside cooldown should be suppressed: %+v", second)
	}
	if len(sms.sent) != 1 {
		t.Fatalf("expected exactly one sms, got %d", len(sms.sent))
	}
}

func TestDispatchFiresAgainAfterCooldownExpires(t *testing.T) {
	sms := &fakeSMS{}
	ledger := NewMemoryLedger()
	def := Definition{
		ID:      "welcome",
		Trigger: Trigger{Type: TriggerNewLead},
		Actions: []Action{{Type: ActionSendSMS, Template: "hi"}},
		Enabled: true,
	}
	eng := newTestEngine(t, []Definition{def}, EngineOptions{
		SMS: sms, Ledger: ledger, DefaultCooldown: time.Hour,
	})

	entityID := uuid.New()
	evt := Event{Type: TriggerNewLead, EntityID: entityID, Snapshot: map[string]any{"phone": "+15550001111"}}

	eng.Dispatch(context.Background(), def, evt)

	// Age the record past the window.
	if err := ledger.RecordExecution(context.Background(), def.ID, entityID, time.Now().Add(-2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	res := eng.Dispatch(context.Background(), def, evt)
	if res.Suppressed {
		t.Fatalf("dispatch after cooldown expiry should not be suppressed")
	}
	if len(sms.sent) != 2 {
		t.Fatalf("expected two sms sends, got %d", len(sms.sent))
	}
}

func TestDispatchCooldownIsSharedAcrossDifferingActionSets(t *testing.T) {
	// The ledger is keyed on (workflow, entity): the same workflow stays
	// suppressed even when the arriving event differs.
	sms := &fakeSMS{}
	def := Definition{
		ID:      "docs-nudge",
		Trigger: Trigger{Type: TriggerStageChanged},
		Actions: []Action{{Type: ActionSendSMS, Template: "upload docs"}},
		Enabled: true,
	}
	eng := newTestEngine(t, []Definition{def}, EngineOptions{SMS: sms, DefaultCooldown: time.Hour})

	entityID := uuid.New()
	eng.Dispatch(context.Background(), def, Event{
		Type: TriggerStageChanged, EntityID: entityID, Stage: "Documents Pending",
		Snapshot: map[string]any{"phone": "+15550002222"},
	})
	res := eng.Dispatch(context.Background(), def, Event{
		Type: TriggerStageChanged, EntityID: entityID, Stage: "Documents Pending",
		Snapshot: map[string]any{"phone": "+15559998888"},
	})
	if !res.Suppressed {
		t.Fatal("same workflow and entity should suppress regardless of snapshot")
	}
}

func TestDispatchPartialFailureRunsRemainingActions(t *testing.T) {
	sms := &fakeSMS{err: errors.New("gateway down")}
	crm := &fakeCRM{}
	def := Definition{
		ID:      "multi",
		Trigger: Trigger{Type: TriggerNewLead},
		Actions: []Action{
			{Type: ActionSendSMS, Template: "hi"},
			{Type: ActionTagContact, Tags: []string{"vip"}},
		},
		Enabled: true,
	}
	audit := NewMemoryAuditLog()
	eng := newTestEngine(t, []Definition{def}, EngineOptions{SMS: sms, CRM: crm, Audit: audit})

	res := eng.Dispatch(context.Background(), def, Event{
		Type: TriggerNewLead, EntityID: uuid.New(),
		Snapshot: map[string]any{"phone": "+15550003333"},
	})

	if res.Success {
		t.Fatal("dispatch with a failing action should not report success")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected one error, got %v", res.Errors)
	}
	if len(crm.tags) != 1 {
		t.Fatal("tag action should run despite the sms failure")
	}

	entries := audit.Snapshot()
	if len(entries) != 1 || entries[0].Outcome != OutcomePartialFailure {
		t.Fatalf("expected one partial_failure audit entry, got %+v", entries)
	}
}

func TestDispatchRecordsExecutionEvenOnTotalFailure(t *testing.T) {
	sms := &fakeSMS{err: errors.New("down")}
	ledger := NewMemoryLedger()
	def := Definition{
		ID:      "only-sms",
		Trigger: Trigger{Type: TriggerNewLead},
		Actions: []Action{{Type: ActionSendSMS, Template: "hi"}},
		Enabled: true,
	}
	eng := newTestEngine(t, []Definition{def}, EngineOptions{SMS: sms, Ledger: ledger})

	entityID := uuid.New()
	eng.Dispatch(context.Background(), def, Event{
		Type: TriggerNewLead, EntityID: entityID,
		Snapshot: map[string]any{"phone": "+15550004444"},
	})

	if _, found, _ := ledger.LastExecution(context.Background(), def.ID, entityID); !found {
		t.Fatal("execution record must be written regardless of action outcomes")
	}
}

func TestDispatchLedgerErrorSuppresses(t *testing.T) {
	sms := &fakeSMS{}
	def := Definition{
		ID:      "welcome",
		Trigger: Trigger{Type: TriggerNewLead},
		Actions: []Action{{Type: ActionSendSMS, Template: "hi"}},
		Enabled: true,
	}
	eng := newTestEngine(t, []Definition{def}, EngineOptions{
		SMS:    sms,
		Ledger: failingLedger{},
	})

	res := eng.Dispatch(context.Background(), def, Event{
		Type: TriggerNewLead, EntityID: uuid.New(),
		Snapshot: map[string]any{"phone": "+15550005555"},
	})
	if !res.Suppressed {
		t.Fatal("an unreadable ledger must suppress rather than risk a double fire")
	}
	if len(sms.sent) != 0 {
		t.Fatal("no sms should be sent when the ledger cannot be read")
	}
}

type failingLedger struct{}

func (failingLedger) LastExecution(ctx context.Context, ruleID string, entityID uuid.UUID) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("ledger unavailable")
}

func (failingLedger) RecordExecution(ctx context.Context, ruleID string, entityID uuid.UUID, at time.Time) error {
	return errors.New("ledger unavailable")
}

func TestDispatchWebhookPostsPayloadWithContext(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	def := Definition{
		ID:      "relay",
		Trigger: Trigger{Type: TriggerWebhookReceived},
		Actions: []Action{{Type: ActionWebhook, URL: srv.URL, Payload: map[string]any{"channel": "ops"}}},
		Enabled: true,
	}
	eng := newTestEngine(t, []Definition{def}, EngineOptions{HTTPClient: srv.Client()})

	res := eng.Dispatch(context.Background(), def, Event{
		Type: TriggerWebhookReceived, EntityID: uuid.New(),
		Snapshot: map[string]any{"first_name": "Dana"},
	})
	if !res.Success {
		t.Fatalf("webhook dispatch failed: %v", res.Errors)
	}
	if got["channel"] != "ops" {
		t.Fatalf("payload fields missing: %v", got)
	}
	snap, ok := got["context"].(map[string]any)
	if !ok || snap["first_name"] != "Dana" {
		t.Fatalf("snapshot context missing: %v", got)
	}
}

func TestDispatchExternalWorkflowMissingMappingIsNoop(t *testing.T) {
	crm := &fakeCRM{}
	def := Definition{
		ID:      "ext",
		Trigger: Trigger{Type: TriggerStageChanged},
		Actions: []Action{{Type: ActionTriggerExternalWF}},
		Enabled: true,
	}
	eng := newTestEngine(t, []Definition{def}, EngineOptions{
		CRM:              crm,
		StageAutomations: map[string]string{"Approved": "crm-auto-approved"},
	})

	res := eng.Dispatch(context.Background(), def, Event{
		Type: TriggerStageChanged, EntityID: uuid.New(), Stage: "Qualified",
	})
	if !res.Success {
		t.Fatalf("missing mapping must be a no-op, got errors %v", res.Errors)
	}
	if len(crm.automations) != 0 {
		t.Fatal("no automation should fire without a stage mapping")
	}

	res = eng.Dispatch(context.Background(), def, Event{
		Type: TriggerStageChanged, EntityID: uuid.New(), Stage: "Approved",
	})
	if !res.Success || len(crm.automations) != 1 || crm.automations[0] != "crm-auto-approved" {
		t.Fatalf("mapped stage should fire its automation: %v %v", res.Errors, crm.automations)
	}
}

func TestDispatchUpdateStage(t *testing.T) {
	tr := &fakeTransitioner{}
	def := Definition{
		ID:      "advance",
		Trigger: Trigger{Type: TriggerDocumentsComplete},
		Actions: []Action{{Type: ActionUpdateStage, Stage: "Full Application Complete"}},
		Enabled: true,
	}
	eng := newTestEngine(t, []Definition{def}, EngineOptions{Stages: tr})

	res := eng.Dispatch(context.Background(), def, Event{
		Type: TriggerDocumentsComplete, EntityID: uuid.New(), OpportunityID: uuid.New(),
	})
	if !res.Success {
		t.Fatalf("update_stage failed: %v", res.Errors)
	}
	if len(tr.transitions) != 1 || tr.transitions[0] != "Full Application Complete" {
		t.Fatalf("unexpected transitions %v", tr.transitions)
	}
}

func TestHandleEventDispatchesAllMatches(t *testing.T) {
	sms := &fakeSMS{}
	crm := &fakeCRM{}
	defs := []Definition{
		{
			ID:      "a",
			Trigger: Trigger{Type: TriggerNewLead},
			Actions: []Action{{Type: ActionSendSMS, Template: "hi"}},
			Enabled: true,
		},
		{
			ID:      "b",
			Trigger: Trigger{Type: TriggerNewLead},
			Actions: []Action{{Type: ActionTagContact, Tags: []string{"lead"}}},
			Enabled: true,
		},
		{
			ID:      "disabled",
			Trigger: Trigger{Type: TriggerNewLead},
			Actions: []Action{{Type: ActionSendSMS, Template: "never"}},
		},
	}
	eng := newTestEngine(t, defs, EngineOptions{SMS: sms, CRM: crm})

	results := eng.HandleEvent(context.Background(), Event{
		Type: TriggerNewLead, EntityID: uuid.New(),
		Snapshot: map[string]any{"phone": "+15550006666"},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 dispatches, got %d", len(results))
	}
	if len(sms.sent) != 1 || len(crm.tags) != 1 {
		t.Fatalf("both enabled workflows should run: sms=%d tags=%d", len(sms.sent), len(crm.tags))
	}
}

func TestDispatchSMSFallsBackToSnapshotPhone(t *testing.T) {
	sms := &fakeSMS{}
	def := Definition{
		ID:      "welcome",
		Trigger: Trigger{Type: TriggerNewLead},
		Actions: []Action{{Type: ActionSendSMS, Template: "hi {{first_name}}"}},
		Enabled: true,
	}
	eng := newTestEngine(t, []Definition{def}, EngineOptions{SMS: sms})

	res := eng.Dispatch(context.Background(), def, Event{
		Type: TriggerNewLead, EntityID: uuid.New(),
		Snapshot: map[string]any{"phone": "+15557778888", "first_name": "Lee"},
	})
	if !res.Success {
		t.Fatalf("dispatch failed: %v", res.Errors)
	}
	if sms.sent[0] != "+15557778888: hi Lee" {
		t.Fatalf("unexpected sms %q", sms.sent[0])
	}
}

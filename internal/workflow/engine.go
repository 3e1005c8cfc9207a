package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"brokerage_backend/platform/logger"
	"brokerage_backend/platform/metrics"

	"github.com/google/uuid"
)

// Collaborator ports. The engine never talks to transports directly; each
// port failure is a per-action failure, never a fatal engine error.

// SMSSender delivers a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// EmailSender delivers an automation email.
type EmailSender interface {
	SendAutomationEmail(ctx context.Context, to, subject, htmlBody string) error
}

// CRMClient mutates the external CRM contact.
type CRMClient interface {
	AddTags(ctx context.Context, entityID uuid.UUID, tags []string) error
	TriggerAutomation(ctx context.Context, entityID uuid.UUID, automationID string) error
}

// StageTransitioner advances an opportunity through the pipeline.
type StageTransitioner interface {
	Transition(ctx context.Context, opportunityID uuid.UUID, stage string) error
}

// AIChat sends a follow-up directive to the AI collaborator.
type AIChat interface {
	Chat(ctx context.Context, directive string, snapshot map[string]any) (string, error)
}

// TagWriter merges tags onto the local entity record (set union).
type TagWriter interface {
	MergeEntityTags(ctx context.Context, entityID uuid.UUID, tags []string) error
}

// DispatchResult reports what one workflow dispatch did.
type DispatchResult struct {
	WorkflowID string
	EntityID   uuid.UUID
	Suppressed bool
	Success    bool
	Errors     []string
}

// Engine evaluates the static workflow catalog against business events and
// dispatches matching workflows' actions.
type Engine struct {
	catalog   []Definition
	ledger    ExecutionLedger
	audit     AuditLog
	cooldown  time.Duration
	deadline  time.Duration
	sms       SMSSender
	email     EmailSender
	crm       CRMClient
	stages    StageTransitioner
	ai        AIChat
	tags      TagWriter
	http      *http.Client
	stageAuto map[string]string // stage -> external CRM automation id
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// EngineOptions carries the collaborators and tunables for NewEngine. Nil
// collaborators make the corresponding action kind fail as a configuration
// gap (skipped with a warning) rather than panicking.
type EngineOptions struct {
	Catalog          []Definition
	Ledger           ExecutionLedger
	Audit            AuditLog
	DefaultCooldown  time.Duration
	DispatchDeadline time.Duration
	SMS              SMSSender
	Email            EmailSender
	CRM              CRMClient
	Stages           StageTransitioner
	AI               AIChat
	Tags             TagWriter
	HTTPClient       *http.Client
	StageAutomations map[string]string
	Metrics          *metrics.Metrics
}

// NewEngine creates a workflow engine over a static catalog.
func NewEngine(opts EngineOptions, log *logger.Logger) *Engine {
	cooldown := opts.DefaultCooldown
	if cooldown <= 0 {
		cooldown = 24 * time.Hour
	}
	deadline := opts.DispatchDeadline
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Engine{
		catalog:   opts.Catalog,
		ledger:    opts.Ledger,
		audit:     opts.Audit,
		cooldown:  cooldown,
		deadline:  deadline,
		sms:       opts.SMS,
		email:     opts.Email,
		crm:       opts.CRM,
		stages:    opts.Stages,
		ai:        opts.AI,
		tags:      opts.Tags,
		http:      httpClient,
		stageAuto: opts.StageAutomations,
		metrics:   opts.Metrics,
		log:       log,
	}
}

// Catalog returns the loaded workflow definitions.
func (e *Engine) Catalog() []Definition {
	return e.catalog
}

// Evaluate filters the catalog to workflows matching the event.
func (e *Engine) Evaluate(evt Event) []Definition {
	var matches []Definition
	for _, def := range e.catalog {
		if def.Matches(evt) {
			matches = append(matches, def)
		}
	}
	return matches
}

// HandleEvent evaluates and dispatches every matching workflow. One
// workflow's failure never aborts another's dispatch.
func (e *Engine) HandleEvent(ctx context.Context, evt Event) []DispatchResult {
	matches := e.Evaluate(evt)
	results := make([]DispatchResult, 0, len(matches))
	for _, def := range matches {
		results = append(results, e.Dispatch(ctx, def, evt))
	}
	return results
}

// Dispatch runs one workflow against an event.
//
// A ledger hit younger than the cooldown suppresses the entire workflow: none
// of its actions run. This is coarse-grained on purpose — the invariant is
// "this named automation touches this entity at most once per cooldown
// window", which stays auditable without per-action bookkeeping.
//
// Actions execute in declared order; each failure is captured and the
// remaining actions still run. The execution record is written once per
// (workflow, entity) regardless of per-action outcomes.
func (e *Engine) Dispatch(ctx context.Context, def Definition, evt Event) DispatchResult {
	result := DispatchResult{WorkflowID: def.ID, EntityID: evt.EntityID}

	if e.hasRecentExecution(ctx, def, evt.EntityID) {
		result.Suppressed = true
		e.log.Info("workflow suppressed by cooldown",
			"workflow", def.ID, "entityId", evt.EntityID)
		if e.metrics != nil {
			e.metrics.WorkflowSuppressed.Inc()
		}
		e.recordAudit(ctx, def, evt, OutcomeSuppressed, nil)
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	for _, action := range def.Actions {
		if err := e.runAction(ctx, action, evt); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", action.Type, err))
			if e.metrics != nil {
				e.metrics.ActionFailures.WithLabelValues(string(action.Type)).Inc()
			}
		}
	}
	result.Success = len(result.Errors) == 0

	if err := e.ledger.RecordExecution(ctx, def.ID, evt.EntityID, time.Now()); err != nil {
		e.log.Error("failed to record workflow execution", "workflow", def.ID, "error", err)
	}

	outcome := OutcomeSuccess
	if !result.Success {
		outcome = OutcomePartialFailure
	}
	e.recordAudit(ctx, def, evt, outcome, result.Errors)

	if e.metrics != nil {
		e.metrics.WorkflowDispatches.WithLabelValues(def.ID, string(outcome)).Inc()
	}
	e.log.AutomationOutcome(def.ID, evt.EntityID.String(), result.Success, result.Errors)

	return result
}

func (e *Engine) hasRecentExecution(ctx context.Context, def Definition, entityID uuid.UUID) bool {
	cooldown := def.Cooldown
	if cooldown <= 0 {
		cooldown = e.cooldown
	}

	last, found, err := e.ledger.LastExecution(ctx, def.ID, entityID)
	if err != nil {
		// A broken ledger must not silently double-fire automations; treat
		// it as in-cooldown and let the next sweep retry.
		e.log.Error("execution ledger lookup failed", "workflow", def.ID, "error", err)
		return true
	}
	return found && time.Since(last) < cooldown
}

// runAction executes one action, recovering panics into errors so a buggy
// action cannot abort its siblings.
func (e *Engine) runAction(ctx context.Context, action Action, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()

	switch action.Type {
	case ActionSendSMS:
		return e.sendSMS(ctx, action, evt)
	case ActionSendEmail:
		return e.sendEmail(ctx, action, evt)
	case ActionCreateTask:
		// Advisory only: the core has no external task system.
		e.log.Info("task created",
			"title", RenderTemplate(action.TaskTitle, evt.Snapshot), "entityId", evt.EntityID)
		return nil
	case ActionUpdateStage:
		if e.stages == nil {
			return e.skipUnconfigured("update_stage")
		}
		return e.stages.Transition(ctx, evt.OpportunityID, action.Stage)
	case ActionTagContact:
		return e.tagContact(ctx, action, evt)
	case ActionAIFollowup:
		return e.aiFollowup(ctx, action, evt)
	case ActionWebhook:
		return e.postWebhook(ctx, action, evt)
	case ActionTriggerExternalWF:
		return e.triggerExternalWorkflow(ctx, evt)
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

func (e *Engine) sendSMS(ctx context.Context, action Action, evt Event) error {
	if e.sms == nil {
		return e.skipUnconfigured("send_sms")
	}

	to := action.To
	if to == "" {
		to, _ = evt.Snapshot["phone"].(string)
	}
	if to == "" {
		return fmt.Errorf("no destination phone for entity %s", evt.EntityID)
	}

	body := RenderTemplate(action.Template, evt.Snapshot)
	err := e.sms.SendSMS(ctx, to, body)
	// Logged locally regardless of transport outcome: the automation log is
	// the operator's ground truth for what was attempted.
	e.log.Info("sms dispatch attempted", "entityId", evt.EntityID, "delivered", err == nil)
	return err
}

func (e *Engine) sendEmail(ctx context.Context, action Action, evt Event) error {
	if e.email == nil {
		return e.skipUnconfigured("send_email")
	}

	to := action.To
	if to == "" {
		to, _ = evt.Snapshot["email"].(string)
	}
	if to == "" {
		return fmt.Errorf("no destination email for entity %s", evt.EntityID)
	}

	subject := RenderTemplate(action.Subject, evt.Snapshot)
	body := RenderTemplate(action.Template, evt.Snapshot)
	err := e.email.SendAutomationEmail(ctx, to, subject, body)
	e.log.Info("email dispatch attempted", "entityId", evt.EntityID, "delivered", err == nil)
	return err
}

func (e *Engine) tagContact(ctx context.Context, action Action, evt Event) error {
	// Local set-union merge first; CRM propagation is best-effort on top.
	if e.tags != nil {
		if err := e.tags.MergeEntityTags(ctx, evt.EntityID, action.Tags); err != nil {
			return err
		}
	}
	if e.crm != nil {
		return e.crm.AddTags(ctx, evt.EntityID, action.Tags)
	}
	return nil
}

func (e *Engine) aiFollowup(ctx context.Context, action Action, evt Event) error {
	if e.ai == nil {
		return e.skipUnconfigured("ai_followup")
	}

	// Fire-and-forget: the response is logged, never consumed synchronously.
	go func() {
		reply, err := e.ai.Chat(context.WithoutCancel(ctx), action.Directive, evt.Snapshot)
		if err != nil {
			e.log.Warn("ai followup failed", "entityId", evt.EntityID, "error", err)
			return
		}
		e.log.Info("ai followup completed", "entityId", evt.EntityID, "chars", len(reply))
	}()
	return nil
}

func (e *Engine) postWebhook(ctx context.Context, action Action, evt Event) error {
	if action.URL == "" {
		return fmt.Errorf("webhook action has no url")
	}

	payload := make(map[string]any, len(action.Payload)+1)
	for k, v := range action.Payload {
		payload[k] = v
	}
	payload["context"] = evt.Snapshot

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (e *Engine) triggerExternalWorkflow(ctx context.Context, evt Event) error {
	if e.crm == nil {
		return e.skipUnconfigured("trigger_external_workflow")
	}

	automationID, ok := e.stageAuto[evt.Stage]
	if !ok {
		// A missing mapping is a no-op, not an error.
		e.log.Debug("no external automation mapped for stage", "stage", evt.Stage)
		return nil
	}
	return e.crm.TriggerAutomation(ctx, evt.EntityID, automationID)
}

func (e *Engine) recordAudit(ctx context.Context, def Definition, evt Event, outcome AuditOutcome, errs []string) {
	if e.audit == nil {
		return
	}
	entry := AuditEntry{
		WorkflowID: def.ID,
		EntityID:   evt.EntityID,
		Outcome:    outcome,
		Errors:     errs,
		At:         time.Now(),
	}
	if err := e.audit.RecordAudit(ctx, entry); err != nil {
		e.log.Error("failed to write automation audit entry", "workflow", def.ID, "error", err)
	}
}

// skipUnconfigured logs a configuration gap and reports it as the action
// error. Never fatal to the process.
func (e *Engine) skipUnconfigured(action string) error {
	e.log.Warn("action skipped: collaborator not configured", "action", action)
	return fmt.Errorf("%s collaborator not configured", action)
}

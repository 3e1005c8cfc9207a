// Package leads provides the lead-to-funding bounded context module: capture,
// classification, pipeline, documents, and the workflow engine's HTTP surface.
package leads

import (
	"context"
	"time"

	"brokerage_backend/internal/alerts"
	"brokerage_backend/internal/classifier"
	"brokerage_backend/internal/crm"
	"brokerage_backend/internal/documents"
	"brokerage_backend/internal/email"
	"brokerage_backend/internal/events"
	"brokerage_backend/internal/leads/handler"
	"brokerage_backend/internal/leads/repository"
	"brokerage_backend/internal/leads/service"
	"brokerage_backend/internal/messaging"
	"brokerage_backend/internal/pipeline"
	"brokerage_backend/internal/scheduler"
	"brokerage_backend/internal/storage"
	"brokerage_backend/internal/workflow"
	"brokerage_backend/platform/config"
	"brokerage_backend/platform/logger"
	"brokerage_backend/platform/metrics"
	"brokerage_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context.
type Module struct {
	handler    *handler.Handler
	service    *service.Service
	engine     *workflow.Engine
	machine    *pipeline.Machine
	tracker    *documents.Tracker
	repo       *repository.Repository
	sched      scheduler.AutomationScheduler
	nudgeAfter time.Duration
}

// followUpNudgeStages get a deferred nudge queued when an opportunity lands
// in them. The periodic sweep remains the safety net when Redis is down.
var followUpNudgeStages = map[string]bool{
	pipeline.StageQualified:          true,
	pipeline.StageApplicationStarted: true,
	pipeline.StageDocumentsPending:   true,
	pipeline.StageContractOut:        true,
}

// NewModule wires the full automation engine: repositories, pipeline state
// machine, document tracker, workflow engine, and their event subscriptions.
func NewModule(ctx context.Context, pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, cfg *config.Config, m *metrics.Metrics, log *logger.Logger) (*Module, error) {
	repo := repository.New(pool)
	machine := pipeline.NewMachine(repo, bus, m, log)
	tracker := documents.NewTracker(documents.NewRepository(pool), bus, cfg.UploadTokenTTL, m, log)

	cls := classifier.New(ctx, cfg, log)
	smsClient := messaging.NewClient(cfg, log)
	emailSender := email.NewSender(cfg)
	crmClient := crm.NewClient(cfg, log)

	var crmPort workflow.CRMClient
	if crmClient.Enabled() {
		crmPort = crmClient
	}

	auditLog := workflow.NewPostgresAuditLog(pool)
	engine := workflow.NewEngine(workflow.EngineOptions{
		Catalog:          workflow.DefaultCatalog(),
		Ledger:           workflow.NewPostgresLedger(pool),
		Audit:            auditLog,
		DefaultCooldown:  cfg.WorkflowCooldown,
		SMS:              smsClient,
		Email:            emailSender,
		CRM:              crmPort,
		Stages:           machine,
		AI:               cls,
		Tags:             repo,
		StageAutomations: workflow.DefaultStageAutomations(),
		Metrics:          m,
	}, log)

	svc := service.New(repo, cls, engine, bus, cfg.DefaultPhoneRegion, log)

	var files *storage.Service
	if cfg.IsMinIOEnabled() {
		var err error
		files, err = storage.NewService(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	alertRepo := alerts.NewRepository(pool)
	h := handler.New(svc, machine, tracker, files, alertRepo, auditLog, m, val)

	mod := &Module{
		handler:    h,
		service:    svc,
		engine:     engine,
		machine:    machine,
		tracker:    tracker,
		repo:       repo,
		nudgeAfter: cfg.StageFollowUpAge,
	}
	mod.subscribe(bus, log)
	return mod, nil
}

// subscribe closes the loop: stage changes and document completion feed back
// into the workflow engine. Stage-change handling runs on the synchronous
// publish path, so stage workflows fire before Transition returns.
func (mod *Module) subscribe(bus events.Bus, log *logger.Logger) {
	bus.Subscribe(events.OpportunityStageChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.OpportunityStageChanged)
		if !ok {
			return nil
		}

		snapshot, err := mod.service.Snapshot(ctx, e.EntityID, e.OpportunityID)
		if err != nil {
			log.Error("failed to assemble snapshot for stage change", "error", err, "entityId", e.EntityID)
			return err
		}

		mod.engine.HandleEvent(ctx, workflow.Event{
			Type:          workflow.TriggerStageChanged,
			EntityID:      e.EntityID,
			OpportunityID: e.OpportunityID,
			Division:      e.Division,
			Stage:         e.NewStage,
			FromStage:     e.OldStage,
			Snapshot:      snapshot,
		})

		if mod.sched != nil && followUpNudgeStages[e.NewStage] {
			err := mod.sched.ScheduleFollowUpNudge(ctx, scheduler.FollowUpNudgePayload{
				EntityID:      e.EntityID.String(),
				OpportunityID: e.OpportunityID.String(),
				Stage:         e.NewStage,
			}, time.Now().Add(mod.nudgeAfter))
			if err != nil {
				log.Warn("failed to queue follow-up nudge", "error", err, "opportunityId", e.OpportunityID)
			}
		}
		return nil
	}))

	bus.Subscribe(events.DocumentsComplete{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.DocumentsComplete)
		if !ok {
			return nil
		}

		snapshot, err := mod.service.Snapshot(ctx, e.EntityID, e.OpportunityID)
		if err != nil {
			log.Error("failed to assemble snapshot for document completion", "error", err, "entityId", e.EntityID)
			return err
		}

		mod.engine.HandleEvent(ctx, workflow.Event{
			Type:          workflow.TriggerDocumentsComplete,
			EntityID:      e.EntityID,
			OpportunityID: e.OpportunityID,
			Division:      e.Division,
			Snapshot:      snapshot,
		})
		return nil
	}))

	bus.Subscribe(events.DocumentUploaded{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.DocumentUploaded)
		if !ok {
			return nil
		}

		snapshot, err := mod.service.Snapshot(ctx, e.EntityID, e.OpportunityID)
		if err != nil {
			return err
		}
		snapshot["document_type"] = e.DocumentType

		mod.engine.HandleEvent(ctx, workflow.Event{
			Type:          workflow.TriggerDocumentUploaded,
			EntityID:      e.EntityID,
			OpportunityID: e.OpportunityID,
			Division:      e.Division,
			Snapshot:      snapshot,
		})
		return nil
	}))
}

// RegisterRoutes mounts the module's HTTP routes.
func (mod *Module) RegisterRoutes(rg *gin.RouterGroup) {
	mod.handler.RegisterRoutes(rg)
}

// Service exposes the leads service for the orchestrator.
func (mod *Module) Service() *service.Service { return mod.service }

// Engine exposes the workflow engine for the orchestrator.
func (mod *Module) Engine() *workflow.Engine { return mod.engine }

// Repository exposes sweep queries for the orchestrator.
func (mod *Module) Repository() *repository.Repository { return mod.repo }

// Tracker exposes the document tracker for the scheduler worker.
func (mod *Module) Tracker() *documents.Tracker { return mod.tracker }

// SetScheduler enables deferred follow-up nudges and document expiry notices.
// Without it the periodic sweeps carry the full load.
func (mod *Module) SetScheduler(s scheduler.AutomationScheduler) {
	mod.sched = s
	mod.handler.SetScheduler(s)
}

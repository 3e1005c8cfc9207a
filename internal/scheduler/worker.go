package scheduler

import (
	"context"
	"fmt"
	"strings"

	"brokerage_backend/internal/documents"
	"brokerage_backend/internal/workflow"
	"brokerage_backend/platform/config"
	"brokerage_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// SnapshotSource builds the field snapshot workflows render templates from.
type SnapshotSource interface {
	Snapshot(ctx context.Context, entityID, opportunityID uuid.UUID) (map[string]any, error)
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	engine    *workflow.Engine
	tracker   *documents.Tracker
	snapshots SnapshotSource
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, engine *workflow.Engine, tracker *documents.Tracker, snapshots SnapshotSource, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		engine:    engine,
		tracker:   tracker,
		snapshots: snapshots,
		log:       log.WithComponent("scheduler"),
	}

	mux.HandleFunc(TaskDocumentExpiryNotice, w.handleDocumentExpiryNotice)
	mux.HandleFunc(TaskFollowUpNudge, w.handleFollowUpNudge)

	return w, nil
}

func (w *Worker) handleDocumentExpiryNotice(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDocumentExpiryNoticePayload(task)
	if err != nil {
		return err
	}

	token, err := w.tracker.Status(ctx, payload.Token)
	if err != nil {
		return err
	}
	if token.CompletedAt != nil {
		return nil
	}

	snapshot, err := w.snapshots.Snapshot(ctx, token.EntityID, token.OpportunityID)
	if err != nil {
		return err
	}
	snapshot["missing_documents"] = strings.Join(token.Missing(), ", ")
	snapshot["expires_at"] = token.ExpiresAt.Format("2006-01-02")

	w.engine.HandleEvent(ctx, workflow.Event{
		Type:          workflow.TriggerTimeElapsed,
		EntityID:      token.EntityID,
		OpportunityID: token.OpportunityID,
		Division:      token.Division,
		Source:        workflow.SourceDocumentExpiry,
		Snapshot:      snapshot,
	})
	return nil
}

func (w *Worker) handleFollowUpNudge(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFollowUpNudgePayload(task)
	if err != nil {
		return err
	}

	entityID, err := uuid.Parse(payload.EntityID)
	if err != nil {
		return err
	}

	oppID, err := uuid.Parse(payload.OpportunityID)
	if err != nil {
		return err
	}

	snapshot, err := w.snapshots.Snapshot(ctx, entityID, oppID)
	if err != nil {
		return err
	}

	// Stale nudge: the opportunity already moved on.
	if stage, ok := snapshot["stage"].(string); ok && payload.Stage != "" && stage != payload.Stage {
		return nil
	}

	w.engine.HandleEvent(ctx, workflow.Event{
		Type:          workflow.TriggerTimeElapsed,
		EntityID:      entityID,
		OpportunityID: oppID,
		Stage:         payload.Stage,
		Source:        workflow.SourceStageFollowUp,
		Snapshot:      snapshot,
	})
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// Package orchestrator runs the periodic control loop that converts elapsed
// time into workflow events: abandoned leads, stuck opportunities, stage
// follow-ups, and expiring document upload links.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"brokerage_backend/internal/alerts"
	"brokerage_backend/internal/documents"
	"brokerage_backend/internal/leads/domain"
	"brokerage_backend/internal/pipeline"
	"brokerage_backend/internal/workflow"
	"brokerage_backend/platform/config"
	"brokerage_backend/platform/logger"
	"brokerage_backend/platform/metrics"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// stages watched by the stage follow-up sweep.
var followUpStages = []string{
	pipeline.StageQualified,
	pipeline.StageApplicationStarted,
	pipeline.StageDocumentsPending,
	pipeline.StageContractOut,
}

// SweepStore provides the datastore queries the sweeps run on.
type SweepStore interface {
	ActiveIdleSince(ctx context.Context, cutoff time.Time) ([]domain.SweepCandidate, error)
	AbandonedLeads(ctx context.Context, cutoff time.Time) ([]domain.SweepCandidate, error)
	StuckOpportunities(ctx context.Context, cutoff time.Time) ([]domain.SweepCandidate, error)
	IdleInStages(ctx context.Context, stages []string, cutoff time.Time) ([]domain.SweepCandidate, error)
}

// TokenStore provides the expiring-token query.
type TokenStore interface {
	ExpiringBefore(ctx context.Context, cutoff time.Time) ([]documents.UploadToken, error)
}

// SnapshotSource assembles workflow snapshots for swept candidates.
type SnapshotSource interface {
	Snapshot(ctx context.Context, entityID, opportunityID uuid.UUID) (map[string]any, error)
}

// Alerter receives sweep health alerts. Satisfied by *alerts.Manager.
type Alerter interface {
	Send(ctx context.Context, alert alerts.Alert) alerts.SendResult
}

// HealthProbe observes one dependency. Satisfied by alerts.PingProbe.
type HealthProbe interface {
	Check(ctx context.Context) alerts.HealthCheckResult
}

// Orchestrator drives time-based automation on a fixed interval.
type Orchestrator struct {
	cfg       config.OrchestratorConfig
	store     SweepStore
	tokens    TokenStore
	snapshots SnapshotSource
	engine    *workflow.Engine
	alerter   Alerter
	probes    []HealthProbe
	breaker   *gobreaker.CircuitBreaker[[]domain.SweepCandidate]
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// New creates the orchestrator. The circuit breaker guards the datastore
// reads so a database outage degrades into skipped sweeps instead of a tight
// failure loop at the polling interval.
func New(cfg config.OrchestratorConfig, store SweepStore, tokens TokenStore, snapshots SnapshotSource, engine *workflow.Engine, alerter Alerter, m *metrics.Metrics, log *logger.Logger) *Orchestrator {
	breaker := gobreaker.NewCircuitBreaker[[]domain.SweepCandidate](gobreaker.Settings{
		Name:    "sweep-datastore",
		Timeout: 2 * cfg.GetSweepInterval(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		tokens:    tokens,
		snapshots: snapshots,
		engine:    engine,
		alerter:   alerter,
		breaker:   breaker,
		metrics:   m,
		log:       log.WithComponent("orchestrator"),
	}
}

// SetHealthProbes registers dependency probes run at the top of each tick.
func (o *Orchestrator) SetHealthProbes(probes ...HealthProbe) {
	o.probes = probes
}

// Run executes the control loop until the context is cancelled. Cancellation
// is honored at the top of each tick.
func (o *Orchestrator) Run(ctx context.Context) {
	interval := o.cfg.GetSweepInterval()
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.log.Info("orchestrator started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			o.log.Info("orchestrator stopped")
			return
		case <-ticker.C:
			o.RunOnce(ctx)
		}
	}
}

// RunOnce executes one tick: all sweeps in order, each independently
// recovered. Exposed for tests and for run-once tooling.
func (o *Orchestrator) RunOnce(ctx context.Context) {
	now := time.Now()

	o.runSweep(ctx, "health_check", o.checkHealth)
	o.runSweep(ctx, "time_based", func(ctx context.Context) error {
		return o.sweepTimeBased(ctx, now)
	})
	o.runSweep(ctx, "abandoned_leads", func(ctx context.Context) error {
		return o.sweepCandidates(ctx, workflow.SourceAbandonedLeads, func() ([]domain.SweepCandidate, error) {
			return o.store.AbandonedLeads(ctx, now.Add(-o.cfg.GetAbandonedLeadAge()))
		})
	})
	o.runSweep(ctx, "stuck_opportunities", func(ctx context.Context) error {
		return o.sweepCandidates(ctx, workflow.SourceStuckOpportunities, func() ([]domain.SweepCandidate, error) {
			return o.store.StuckOpportunities(ctx, now.Add(-o.cfg.GetStuckOpportunityAge()))
		})
	})
	o.runSweep(ctx, "document_expiry", func(ctx context.Context) error {
		return o.sweepExpiringTokens(ctx, now)
	})
	o.runSweep(ctx, "stage_followup", func(ctx context.Context) error {
		return o.sweepCandidates(ctx, workflow.SourceStageFollowUp, func() ([]domain.SweepCandidate, error) {
			return o.store.IdleInStages(ctx, followUpStages, now.Add(-o.cfg.GetStageFollowUpAge()))
		})
	})
}

// runSweep isolates one sweep: panics and errors are logged, counted, and
// alerted, never propagated to the loop or the next sweep.
func (o *Orchestrator) runSweep(ctx context.Context, name string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			o.recordSweepError(ctx, name, fmt.Errorf("sweep panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := fn(ctx); err != nil {
		o.recordSweepError(ctx, name, err)
	}
}

func (o *Orchestrator) recordSweepError(ctx context.Context, name string, err error) {
	o.log.SweepError(name, err)
	if o.metrics != nil {
		o.metrics.SweepErrors.WithLabelValues(name).Inc()
	}
	if o.alerter != nil {
		o.alerter.Send(ctx, alerts.Alert{
			Service:  "orchestrator",
			Severity: alerts.SeverityWarning,
			Message:  fmt.Sprintf("%s sweep failed", name),
			Details:  map[string]any{"error": err.Error()},
		})
	}
}

// checkHealth probes each registered dependency and alerts on threshold
// breaches. The alert cooldown keeps a persistently sick dependency from
// paging every tick.
func (o *Orchestrator) checkHealth(ctx context.Context) error {
	if o.alerter == nil {
		return nil
	}
	for _, probe := range o.probes {
		result := probe.Check(ctx)
		if alert := alerts.Evaluate(result); alert != nil {
			o.alerter.Send(ctx, *alert)
		}
	}
	return nil
}

// sweepTimeBased fires catalog-defined time triggers that are not covered by
// the dedicated sweeps. Per-entity repetition is bounded by the engine's
// cooldown ledger, so a candidate matching on consecutive ticks fires once
// per cooldown window.
func (o *Orchestrator) sweepTimeBased(ctx context.Context, now time.Time) error {
	dedicated := map[string]bool{
		workflow.SourceAbandonedLeads:     true,
		workflow.SourceStuckOpportunities: true,
		workflow.SourceStageFollowUp:      true,
		workflow.SourceDocumentExpiry:     true,
	}

	for _, def := range o.engine.Catalog() {
		if !def.Enabled || def.Trigger.Type != workflow.TriggerTimeElapsed {
			continue
		}
		if dedicated[def.Trigger.Source] || def.Trigger.Threshold <= 0 {
			continue
		}

		candidates, err := o.breaker.Execute(func() ([]domain.SweepCandidate, error) {
			return o.store.ActiveIdleSince(ctx, now.Add(-def.Trigger.Threshold))
		})
		if err != nil {
			return err
		}
		o.fireCandidates(ctx, def.Trigger.Source, candidates)
	}
	return nil
}

func (o *Orchestrator) sweepCandidates(ctx context.Context, source string, query func() ([]domain.SweepCandidate, error)) error {
	candidates, err := o.breaker.Execute(func() ([]domain.SweepCandidate, error) {
		return query()
	})
	if err != nil {
		return err
	}
	o.fireCandidates(ctx, source, candidates)
	return nil
}

func (o *Orchestrator) fireCandidates(ctx context.Context, source string, candidates []domain.SweepCandidate) {
	for _, c := range candidates {
		snapshot, err := o.snapshots.Snapshot(ctx, c.EntityID, c.OpportunityID)
		if err != nil {
			o.log.Error("sweep snapshot failed", "entityId", c.EntityID, "error", err)
			continue
		}

		o.engine.HandleEvent(ctx, workflow.Event{
			Type:          workflow.TriggerTimeElapsed,
			EntityID:      c.EntityID,
			OpportunityID: c.OpportunityID,
			Division:      c.Division,
			Stage:         c.Stage,
			Source:        source,
			Snapshot:      snapshot,
		})
	}
}

// sweepExpiringTokens warns borrowers whose upload link is about to lapse.
func (o *Orchestrator) sweepExpiringTokens(ctx context.Context, now time.Time) error {
	tokens, err := o.tokens.ExpiringBefore(ctx, now.Add(o.cfg.GetDocumentExpiryWarning()))
	if err != nil {
		return err
	}

	for _, token := range tokens {
		snapshot, err := o.snapshots.Snapshot(ctx, token.EntityID, token.OpportunityID)
		if err != nil {
			o.log.Error("sweep snapshot failed", "entityId", token.EntityID, "error", err)
			continue
		}
		snapshot["missing_documents"] = strings.Join(token.Missing(), ", ")
		snapshot["expires_at"] = token.ExpiresAt.Format(time.RFC3339)

		o.engine.HandleEvent(ctx, workflow.Event{
			Type:          workflow.TriggerTimeElapsed,
			EntityID:      token.EntityID,
			OpportunityID: token.OpportunityID,
			Division:      token.Division,
			Source:        workflow.SourceDocumentExpiry,
			Snapshot:      snapshot,
		})
	}
	return nil
}

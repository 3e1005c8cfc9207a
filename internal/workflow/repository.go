package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger is the durable execution ledger. One row per
// (workflow, entity) pair, updated in place on re-execution, so the table
// stays bounded by catalog size times entity count.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a ledger backed by the given pool.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// LastExecution returns the most recent execution time for the pair.
func (r *PostgresLedger) LastExecution(ctx context.Context, ruleID string, entityID uuid.UUID) (time.Time, bool, error) {
	var at time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT executed_at FROM workflow_executions
		WHERE rule_id = $1 AND entity_id = $2
	`, ruleID, entityID).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// RecordExecution upserts the execution time for the pair.
func (r *PostgresLedger) RecordExecution(ctx context.Context, ruleID string, entityID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO workflow_executions (rule_id, entity_id, executed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (rule_id, entity_id) DO UPDATE SET executed_at = EXCLUDED.executed_at
	`, ruleID, entityID, at)
	return err
}

// PostgresAuditLog is the durable automation audit trail, append-only.
type PostgresAuditLog struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditLog creates an audit log backed by the given pool.
func NewPostgresAuditLog(pool *pgxpool.Pool) *PostgresAuditLog {
	return &PostgresAuditLog{pool: pool}
}

// RecordAudit appends one dispatch outcome.
func (r *PostgresAuditLog) RecordAudit(ctx context.Context, entry AuditEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO automation_log (workflow_id, entity_id, outcome, errors, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.WorkflowID, entry.EntityID, string(entry.Outcome), entry.Errors, entry.At)
	return err
}

// Recent returns the newest audit entries across all entities, most recent
// first. Feeds the status endpoint.
func (r *PostgresAuditLog) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT workflow_id, entity_id, outcome, errors, created_at
		FROM automation_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

// RecentForEntity returns the newest audit entries for one entity, most
// recent first.
func (r *PostgresAuditLog) RecentForEntity(ctx context.Context, entityID uuid.UUID, limit int) ([]AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT workflow_id, entity_id, outcome, errors, created_at
		FROM automation_log
		WHERE entity_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

func scanAuditEntries(rows pgx.Rows) ([]AuditEntry, error) {
	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var outcome string
		if err := rows.Scan(&e.WorkflowID, &e.EntityID, &outcome, &e.Errors, &e.At); err != nil {
			return nil, err
		}
		e.Outcome = AuditOutcome(outcome)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

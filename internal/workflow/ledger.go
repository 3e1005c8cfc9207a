package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExecutionLedger is the dedup substrate: it answers "when did rule R last
// fire for entity E". Backed by the shared datastore in production so the
// cooldown invariant holds across process restarts; the in-memory
// implementation is for tests and single-instance development.
type ExecutionLedger interface {
	LastExecution(ctx context.Context, ruleID string, entityID uuid.UUID) (time.Time, bool, error)
	RecordExecution(ctx context.Context, ruleID string, entityID uuid.UUID, at time.Time) error
}

// MemoryLedger is a process-local ExecutionLedger.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]time.Time)}
}

func ledgerKey(ruleID string, entityID uuid.UUID) string {
	return ruleID + "|" + entityID.String()
}

// LastExecution returns the most recent execution time for the key.
func (l *MemoryLedger) LastExecution(ctx context.Context, ruleID string, entityID uuid.UUID) (time.Time, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	at, ok := l.entries[ledgerKey(ruleID, entityID)]
	return at, ok, nil
}

// RecordExecution upserts the execution time for the key.
func (l *MemoryLedger) RecordExecution(ctx context.Context, ruleID string, entityID uuid.UUID, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[ledgerKey(ruleID, entityID)] = at
	return nil
}

// AuditOutcome distinguishes the three terminal states of a dispatch in the
// automation log. Suppression is an explicit no-op, not a success and not a
// failure.
type AuditOutcome string

const (
	OutcomeSuccess        AuditOutcome = "success"
	OutcomePartialFailure AuditOutcome = "partial_failure"
	OutcomeSuppressed     AuditOutcome = "suppressed"
)

// AuditEntry summarizes one dispatch attempt for operators. The automation
// log is the ground truth when an outbound message never arrives.
type AuditEntry struct {
	WorkflowID string       `json:"workflowId"`
	EntityID   uuid.UUID    `json:"entityId"`
	Outcome    AuditOutcome `json:"outcome"`
	Errors     []string     `json:"errors,omitempty"`
	At         time.Time    `json:"at"`
}

// AuditLog records dispatch outcomes.
type AuditLog interface {
	RecordAudit(ctx context.Context, entry AuditEntry) error
}

// MemoryAuditLog collects audit entries in memory, for tests.
type MemoryAuditLog struct {
	mu      sync.Mutex
	Entries []AuditEntry
}

// NewMemoryAuditLog creates an empty in-memory audit log.
func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

// RecordAudit appends the entry.
func (m *MemoryAuditLog) RecordAudit(ctx context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return nil
}

// Snapshot returns a copy of the collected entries.
func (m *MemoryAuditLog) Snapshot() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditEntry, len(m.Entries))
	copy(out, m.Entries)
	return out
}

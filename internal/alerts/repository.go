package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one persisted alert occurrence.
type Record struct {
	ID        uuid.UUID      `json:"id"`
	Service   string         `json:"service"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Resolved  bool           `json:"resolved"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Repository persists alert history for the status endpoint and postmortems.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an alert history repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores one dispatched alert.
func (r *Repository) Insert(ctx context.Context, alert Alert) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO alerts (id, service, severity, message, details, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, NOW())
	`, id, alert.Service, string(alert.Severity), alert.Message, alert.Details)
	return id, err
}

// Resolve marks one alert resolved. Resolved is the only mutable field.
func (r *Repository) Resolve(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE alerts SET resolved = TRUE WHERE id = $1`, id)
	return err
}

// Recent returns the newest alerts, most recent first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, service, severity, message, details, resolved, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Service, &rec.Severity, &rec.Message, &rec.Details, &rec.Resolved, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Package repository provides data access for entities and opportunities.
package repository

import (
	"context"
	"errors"
	"time"

	"brokerage_backend/internal/leads/domain"
	"brokerage_backend/internal/pipeline"
	"brokerage_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides entity and opportunity persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a leads repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateEntity inserts a new contact.
func (r *Repository) CreateEntity(ctx context.Context, e domain.Entity) (domain.Entity, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO entities (id, crm_contact_id, first_name, last_name, email, phone, tags, custom_fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, e.ID, e.CRMContactID, e.FirstName, e.LastName, e.Email, e.Phone, e.Tags, e.CustomFields).
		Scan(&e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// GetEntity loads one contact by id.
func (r *Repository) GetEntity(ctx context.Context, id uuid.UUID) (domain.Entity, error) {
	var e domain.Entity
	err := r.pool.QueryRow(ctx, `
		SELECT id, crm_contact_id, first_name, last_name, email, phone, tags, custom_fields, created_at, updated_at
		FROM entities WHERE id = $1
	`, id).Scan(&e.ID, &e.CRMContactID, &e.FirstName, &e.LastName, &e.Email, &e.Phone,
		&e.Tags, &e.CustomFields, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entity{}, apperr.NotFound("entity not found")
	}
	return e, err
}

// FindEntityByContact looks up an existing contact by email or phone for
// capture dedup. Email wins when both match different rows.
func (r *Repository) FindEntityByContact(ctx context.Context, email, phone string) (domain.Entity, bool, error) {
	var e domain.Entity
	err := r.pool.QueryRow(ctx, `
		SELECT id, crm_contact_id, first_name, last_name, email, phone, tags, custom_fields, created_at, updated_at
		FROM entities
		WHERE (email <> '' AND email = $1) OR (phone <> '' AND phone = $2)
		ORDER BY (email = $1) DESC
		LIMIT 1
	`, email, phone).Scan(&e.ID, &e.CRMContactID, &e.FirstName, &e.LastName, &e.Email, &e.Phone,
		&e.Tags, &e.CustomFields, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entity{}, false, nil
	}
	if err != nil {
		return domain.Entity{}, false, err
	}
	return e, true, nil
}

// MergeEntityTags unions tags onto the contact. Duplicates are eliminated in
// SQL so concurrent merges stay consistent.
func (r *Repository) MergeEntityTags(ctx context.Context, id uuid.UUID, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE entities
		SET tags = (SELECT ARRAY(SELECT DISTINCT unnest(tags || $2::text[]))),
		    updated_at = NOW()
		WHERE id = $1
	`, id, tags)
	return err
}

// SetEntityCustomFields merges the patch into the custom field bag.
func (r *Repository) SetEntityCustomFields(ctx context.Context, id uuid.UUID, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE entities
		SET custom_fields = custom_fields || $2::jsonb,
		    updated_at = NOW()
		WHERE id = $1
	`, id, patch)
	return err
}

// CreateOpportunity inserts a new opportunity.
func (r *Repository) CreateOpportunity(ctx context.Context, o domain.Opportunity) (domain.Opportunity, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO opportunities (id, entity_id, division, stage_name, priority, monetary_value, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, o.ID, o.EntityID, o.Division, o.StageName, o.Priority, o.MonetaryValue, o.Status).
		Scan(&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// GetOpportunityByID loads one opportunity.
func (r *Repository) GetOpportunityByID(ctx context.Context, id uuid.UUID) (domain.Opportunity, error) {
	var o domain.Opportunity
	err := r.pool.QueryRow(ctx, `
		SELECT id, entity_id, division, stage_name, priority, monetary_value, status, created_at, updated_at
		FROM opportunities WHERE id = $1
	`, id).Scan(&o.ID, &o.EntityID, &o.Division, &o.StageName, &o.Priority,
		&o.MonetaryValue, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Opportunity{}, apperr.NotFound("opportunity not found")
	}
	return o, err
}

// UpdateOpportunityPriority sets priority and monetary value from a
// classification.
func (r *Repository) UpdateOpportunityPriority(ctx context.Context, id uuid.UUID, priority string, value float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE opportunities
		SET priority = $2, monetary_value = $3, updated_at = NOW()
		WHERE id = $1
	`, id, priority, value)
	return err
}

// GetOpportunity implements the pipeline state machine's store view.
func (r *Repository) GetOpportunity(ctx context.Context, id uuid.UUID) (pipeline.Opportunity, error) {
	o, err := r.GetOpportunityByID(ctx, id)
	if err != nil {
		return pipeline.Opportunity{}, err
	}
	return pipeline.Opportunity{
		ID:       o.ID,
		EntityID: o.EntityID,
		Division: pipeline.Division(o.Division),
		Stage:    o.StageName,
		Status:   o.Status,
	}, nil
}

// UpdateOpportunityStage implements the pipeline state machine's store view.
// Terminal stages also settle the opportunity status.
func (r *Repository) UpdateOpportunityStage(ctx context.Context, id uuid.UUID, stage string) error {
	status := domain.StatusActive
	switch stage {
	case pipeline.StageFunded, pipeline.StageAmountWon:
		status = domain.StatusWon
	case pipeline.StageDisqualified:
		status = domain.StatusLost
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE opportunities
		SET stage_name = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`, id, stage, status)
	return err
}

// ActiveIdleSince lists every active non-terminal opportunity untouched since
// the cutoff, for catalog-driven time triggers.
func (r *Repository) ActiveIdleSince(ctx context.Context, cutoff time.Time) ([]domain.SweepCandidate, error) {
	return r.StuckOpportunities(ctx, cutoff)
}

// AbandonedLeads lists open opportunities untouched since the cutoff that
// never left the early stages.
func (r *Repository) AbandonedLeads(ctx context.Context, cutoff time.Time) ([]domain.SweepCandidate, error) {
	return r.sweep(ctx, `
		SELECT entity_id, id, division, stage_name, updated_at
		FROM opportunities
		WHERE status = 'active'
		  AND stage_name IN ($2, $3)
		  AND updated_at < $1
	`, cutoff, pipeline.StageNewLead, pipeline.StageInitialContact)
}

// StuckOpportunities lists active non-terminal opportunities untouched since
// the cutoff.
func (r *Repository) StuckOpportunities(ctx context.Context, cutoff time.Time) ([]domain.SweepCandidate, error) {
	return r.sweep(ctx, `
		SELECT entity_id, id, division, stage_name, updated_at
		FROM opportunities
		WHERE status = 'active'
		  AND stage_name NOT IN ($2, $3, $4)
		  AND updated_at < $1
	`, cutoff, pipeline.StageFunded, pipeline.StageAmountWon, pipeline.StageDisqualified)
}

// IdleInStages lists active opportunities sitting in any of the given stages
// since before the cutoff.
func (r *Repository) IdleInStages(ctx context.Context, stages []string, cutoff time.Time) ([]domain.SweepCandidate, error) {
	return r.sweep(ctx, `
		SELECT entity_id, id, division, stage_name, updated_at
		FROM opportunities
		WHERE status = 'active'
		  AND stage_name = ANY($2)
		  AND updated_at < $1
	`, cutoff, stages)
}

func (r *Repository) sweep(ctx context.Context, query string, args ...any) ([]domain.SweepCandidate, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SweepCandidate
	for rows.Next() {
		var c domain.SweepCandidate
		if err := rows.Scan(&c.EntityID, &c.OpportunityID, &c.Division, &c.Stage, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

package documents

import (
	"context"
	"errors"
	"time"

	"brokerage_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres-backed TokenStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a document token repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateToken inserts a new upload token.
func (r *Repository) CreateToken(ctx context.Context, token UploadToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO upload_tokens (token, entity_id, opportunity_id, division, required, uploaded, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, token.Token, token.EntityID, token.OpportunityID, token.Division,
		token.Required, token.Uploaded, token.ExpiresAt, token.CreatedAt)
	return err
}

// GetToken loads a token by its string.
func (r *Repository) GetToken(ctx context.Context, tokenStr string) (UploadToken, error) {
	var token UploadToken
	err := r.pool.QueryRow(ctx, `
		SELECT token, entity_id, opportunity_id, division, required, uploaded, completed_at, expires_at, created_at
		FROM upload_tokens
		WHERE token = $1
	`, tokenStr).Scan(
		&token.Token, &token.EntityID, &token.OpportunityID, &token.Division,
		&token.Required, &token.Uploaded, &token.CompletedAt, &token.ExpiresAt, &token.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UploadToken{}, apperr.Wrap(apperr.KindNotFound, "upload token not found", err)
	}
	if err != nil {
		return UploadToken{}, err
	}
	return token, nil
}

// AppendUpload adds a document type to the uploaded set if absent.
func (r *Repository) AppendUpload(ctx context.Context, tokenStr, documentType string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE upload_tokens
		SET uploaded = array_append(uploaded, $2)
		WHERE token = $1 AND NOT ($2 = ANY(uploaded))
	`, tokenStr, documentType)
	return err
}

// MarkCompleted sets completed_at if still unset. The WHERE clause is the
// exactly-once guard under concurrent uploads.
func (r *Repository) MarkCompleted(ctx context.Context, tokenStr string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE upload_tokens
		SET completed_at = $2
		WHERE token = $1 AND completed_at IS NULL
	`, tokenStr, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ExpiringBefore lists open tokens expiring before the cutoff, for the
// scheduler's expiry warning notices.
func (r *Repository) ExpiringBefore(ctx context.Context, cutoff time.Time) ([]UploadToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT token, entity_id, opportunity_id, division, required, uploaded, completed_at, expires_at, created_at
		FROM upload_tokens
		WHERE completed_at IS NULL AND expires_at > NOW() AND expires_at < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []UploadToken
	for rows.Next() {
		var token UploadToken
		if err := rows.Scan(
			&token.Token, &token.EntityID, &token.OpportunityID, &token.Division,
			&token.Required, &token.Uploaded, &token.CompletedAt, &token.ExpiresAt, &token.CreatedAt,
		); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

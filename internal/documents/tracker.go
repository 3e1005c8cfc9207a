// Package documents tracks required-document collection per opportunity.
// Borrowers upload against a tokenized checklist; the moment the checklist is
// covered the tracker publishes a completion event that advances the pipeline.
package documents

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"slices"
	"time"

	"brokerage_backend/internal/events"
	"brokerage_backend/internal/pipeline"
	"brokerage_backend/platform/apperr"
	"brokerage_backend/platform/logger"
	"brokerage_backend/platform/metrics"

	"github.com/google/uuid"
)

// Document type identifiers used in required sets and uploads.
const (
	DocID               = "id"
	DocBankStatement    = "bank_statement"
	DocBusinessLicense  = "business_license"
	DocTaxReturn        = "tax_return"
	DocPropertyDeed     = "property_deed"
	DocPurchaseContract = "purchase_contract"
	DocFinancials       = "financial_statement"
)

// requiredByDivision is the default checklist per division.
var requiredByDivision = map[pipeline.Division][]string{
	pipeline.DivisionLending:    {DocID, DocBankStatement, DocBusinessLicense},
	pipeline.DivisionInvestment: {DocID, DocFinancials, DocTaxReturn},
	pipeline.DivisionRealEstate: {DocID, DocBankStatement, DocPropertyDeed, DocPurchaseContract},
}

// UploadToken is one document-collection session for an opportunity.
type UploadToken struct {
	Token         string
	EntityID      uuid.UUID
	OpportunityID uuid.UUID
	Division      string
	Required      []string
	Uploaded      []string
	CompletedAt   *time.Time
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// Complete reports whether every required document has been uploaded.
func (t UploadToken) Complete() bool {
	for _, req := range t.Required {
		if !slices.Contains(t.Uploaded, req) {
			return false
		}
	}
	return true
}

// TokenStore persists upload tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, token UploadToken) error
	GetToken(ctx context.Context, token string) (UploadToken, error)
	AppendUpload(ctx context.Context, token, documentType string) error
	// MarkCompleted sets completed_at only if it is still unset and reports
	// whether this call won the race.
	MarkCompleted(ctx context.Context, token string, at time.Time) (bool, error)
}

// Tracker coordinates uploads against the checklist.
type Tracker struct {
	store    TokenStore
	bus      events.Bus
	tokenTTL time.Duration
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewTracker creates a document tracker.
func NewTracker(store TokenStore, bus events.Bus, tokenTTL time.Duration, m *metrics.Metrics, log *logger.Logger) *Tracker {
	if tokenTTL <= 0 {
		tokenTTL = 14 * 24 * time.Hour
	}
	return &Tracker{store: store, bus: bus, tokenTTL: tokenTTL, metrics: m, log: log.WithComponent("documents")}
}

// IssueToken opens a collection session with the division's default
// checklist. Extra document types widen the required set.
func (t *Tracker) IssueToken(ctx context.Context, entityID, opportunityID uuid.UUID, division pipeline.Division, extra ...string) (UploadToken, error) {
	if !pipeline.IsKnownDivision(division) {
		return UploadToken{}, apperr.Validation("unknown division")
	}

	required := slices.Clone(requiredByDivision[division])
	for _, doc := range extra {
		if !slices.Contains(required, doc) {
			required = append(required, doc)
		}
	}

	now := time.Now()
	token := UploadToken{
		Token:         newTokenString(),
		EntityID:      entityID,
		OpportunityID: opportunityID,
		Division:      string(division),
		Required:      required,
		ExpiresAt:     now.Add(t.tokenTTL),
		CreatedAt:     now,
	}
	if err := t.store.CreateToken(ctx, token); err != nil {
		return UploadToken{}, apperr.Wrap(apperr.KindInternal, "failed to create upload token", err)
	}

	t.log.Info("upload token issued",
		"token", token.Token, "entityId", entityID, "division", division, "required", len(required))
	return token, nil
}

// RecordUpload accepts one document against the token.
//
// Uploads are idempotent per document type: re-uploading an already recorded
// type is accepted without changing completion state. The completion event is
// published exactly once per token, on the upload that first covers the
// required set, never again.
func (t *Tracker) RecordUpload(ctx context.Context, tokenStr, documentType, fileRef string) (UploadToken, error) {
	token, err := t.store.GetToken(ctx, tokenStr)
	if err != nil {
		return UploadToken{}, err
	}

	if time.Now().After(token.ExpiresAt) {
		return UploadToken{}, apperr.Gone("upload token expired")
	}
	if token.CompletedAt != nil {
		return UploadToken{}, apperr.Conflict("document set already complete")
	}
	if !slices.Contains(token.Required, documentType) {
		return UploadToken{}, apperr.Validation("document type not in required set")
	}

	if !slices.Contains(token.Uploaded, documentType) {
		if err := t.store.AppendUpload(ctx, tokenStr, documentType); err != nil {
			return UploadToken{}, apperr.Wrap(apperr.KindInternal, "failed to record upload", err)
		}
		token.Uploaded = append(token.Uploaded, documentType)
	}

	t.bus.Publish(ctx, events.DocumentUploaded{
		BaseEvent:     events.NewBaseEvent(),
		Token:         token.Token,
		EntityID:      token.EntityID,
		OpportunityID: token.OpportunityID,
		Division:      token.Division,
		DocumentType:  documentType,
		FileRef:       fileRef,
	})

	if token.Complete() {
		now := time.Now()
		won, err := t.store.MarkCompleted(ctx, tokenStr, now)
		if err != nil {
			return UploadToken{}, apperr.Wrap(apperr.KindInternal, "failed to mark completion", err)
		}
		if won {
			token.CompletedAt = &now
			if t.metrics != nil {
				t.metrics.DocumentCompletions.Inc()
			}
			t.log.Info("document set complete", "token", token.Token, "entityId", token.EntityID)
			if err := t.bus.PublishSync(ctx, events.DocumentsComplete{
				BaseEvent:     events.NewBaseEvent(),
				Token:         token.Token,
				EntityID:      token.EntityID,
				OpportunityID: token.OpportunityID,
				Division:      token.Division,
			}); err != nil {
				t.log.Error("completion handler failed", "token", token.Token, "error", err)
			}
		}
	}

	return token, nil
}

// Status returns the current checklist state for a token.
func (t *Tracker) Status(ctx context.Context, tokenStr string) (UploadToken, error) {
	return t.store.GetToken(ctx, tokenStr)
}

// Missing lists required documents not yet uploaded, in required order.
func (t UploadToken) Missing() []string {
	var missing []string
	for _, req := range t.Required {
		if !slices.Contains(t.Uploaded, req) {
			missing = append(missing, req)
		}
	}
	return missing
}

func newTokenString() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return "upl_" + hex.EncodeToString(b)
}

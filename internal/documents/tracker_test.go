package documents

import (
	"context"
	"sync"
	"testing"
	"time"

	"brokerage_backend/internal/events"
	"brokerage_backend/internal/pipeline"
	"brokerage_backend/platform/apperr"
	"brokerage_backend/platform/logger"

	"github.com/google/uuid"
)

type memoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*UploadToken
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{tokens: make(map[string]*UploadToken)}
}

func (s *memoryTokenStore) CreateToken(ctx context.Context, token UploadToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := token
	s.tokens[token.Token] = &copied
	return nil
}

func (s *memoryTokenStore) GetToken(ctx context.Context, tokenStr string) (UploadToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[tokenStr]
	if !ok {
		return UploadToken{}, apperr.NotFound("upload token not found")
	}
	return *token, nil
}

func (s *memoryTokenStore) AppendUpload(ctx context.Context, tokenStr, documentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := s.tokens[tokenStr]
	for _, doc := range token.Uploaded {
		if doc == documentType {
			return nil
		}
	}
	token.Uploaded = append(token.Uploaded, documentType)
	return nil
}

func (s *memoryTokenStore) MarkCompleted(ctx context.Context, tokenStr string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := s.tokens[tokenStr]
	if token.CompletedAt != nil {
		return false, nil
	}
	token.CompletedAt = &at
	return true, nil
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(eventName string, handler events.Handler) {}

func (b *recordingBus) countByName(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.published {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

func newTestTracker(t *testing.T) (*Tracker, *memoryTokenStore, *recordingBus) {
	t.Helper()
	store := newMemoryTokenStore()
	bus := &recordingBus{}
	return NewTracker(store, bus, time.Hour, nil, logger.New("development")), store, bus
}

func TestIssueTokenUsesDivisionChecklist(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	token, err := tracker.IssueToken(context.Background(), uuid.New(), uuid.New(), pipeline.DivisionLending)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	want := []string{DocID, DocBankStatement, DocBusinessLicense}
	if len(token.Required) != len(want) {
		t.Fatalf("required = %v, want %v", token.Required, want)
	}
	for i, doc := range want {
		if token.Required[i] != doc {
			t.Fatalf("required = %v, want %v", token.Required, want)
		}
	}
	if token.CompletedAt != nil {
		t.Fatal("new token must not be completed")
	}
}

func TestIssueTokenExtraDocumentsWidenChecklist(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	token, err := tracker.IssueToken(context.Background(), uuid.New(), uuid.New(),
		pipeline.DivisionLending, DocTaxReturn, DocID)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if len(token.Required) != 4 {
		t.Fatalf("duplicate extras must not repeat: %v", token.Required)
	}
}

func TestIssueTokenRejectsUnknownDivision(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	_, err := tracker.IssueToken(context.Background(), uuid.New(), uuid.New(), pipeline.Division("retail"))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordUploadCompletesExactlyOnce(t *testing.T) {
	tracker, _, bus := newTestTracker(t)

	token, err := tracker.IssueToken(context.Background(), uuid.New(), uuid.New(), pipeline.DivisionLending)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	for i, doc := range []string{DocID, DocBankStatement} {
		updated, err := tracker.RecordUpload(context.Background(), token.Token, doc, "s3://bucket/"+doc)
		if err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
		if updated.CompletedAt != nil {
			t.Fatalf("token complete after %d of 3 documents", i+1)
		}
	}

	final, err := tracker.RecordUpload(context.Background(), token.Token, DocBusinessLicense, "")
	if err != nil {
		t.Fatalf("final upload: %v", err)
	}
	if final.CompletedAt == nil {
		t.Fatal("token must complete when the required set is covered")
	}

	if got := bus.countByName("documents.uploaded"); got != 3 {
		t.Fatalf("expected 3 upload events, got %d", got)
	}
	if got := bus.countByName("documents.complete"); got != 1 {
		t.Fatalf("expected exactly 1 completion event, got %d", got)
	}
}

func TestRecordUploadIdempotentPerDocumentType(t *testing.T) {
	tracker, store, bus := newTestTracker(t)

	token, _ := tracker.IssueToken(context.Background(), uuid.New(), uuid.New(), pipeline.DivisionLending)

	for range 3 {
		if _, err := tracker.RecordUpload(context.Background(), token.Token, DocID, ""); err != nil {
			t.Fatalf("re-upload: %v", err)
		}
	}

	stored, _ := store.GetToken(context.Background(), token.Token)
	if len(stored.Uploaded) != 1 {
		t.Fatalf("uploaded set = %v, want one entry", stored.Uploaded)
	}
	if got := bus.countByName("documents.complete"); got != 0 {
		t.Fatalf("incomplete set published %d completion events", got)
	}
}

func TestRecordUploadAfterCompletionConflicts(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	token, _ := tracker.IssueToken(context.Background(), uuid.New(), uuid.New(), pipeline.DivisionLending)
	for _, doc := range []string{DocID, DocBankStatement, DocBusinessLicense} {
		if _, err := tracker.RecordUpload(context.Background(), token.Token, doc, ""); err != nil {
			t.Fatalf("upload %s: %v", doc, err)
		}
	}

	_, err := tracker.RecordUpload(context.Background(), token.Token, DocID, "")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict after completion, got %v", err)
	}
}

func TestRecordUploadExpiredTokenGone(t *testing.T) {
	store := newMemoryTokenStore()
	bus := &recordingBus{}
	tracker := NewTracker(store, bus, time.Hour, nil, logger.New("development"))

	expired := UploadToken{
		Token:     "upl_expired",
		EntityID:  uuid.New(),
		Division:  string(pipeline.DivisionLending),
		Required:  []string{DocID},
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := store.CreateToken(context.Background(), expired); err != nil {
		t.Fatal(err)
	}

	_, err := tracker.RecordUpload(context.Background(), "upl_expired", DocID, "")
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expected gone error, got %v", err)
	}
	if got := bus.countByName("documents.uploaded"); got != 0 {
		t.Fatal("expired token must not accept uploads")
	}
}

func TestRecordUploadRejectsUnlistedDocumentType(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	token, _ := tracker.IssueToken(context.Background(), uuid.New(), uuid.New(), pipeline.DivisionLending)
	_, err := tracker.RecordUpload(context.Background(), token.Token, DocPropertyDeed, "")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMissingListsOutstandingDocuments(t *testing.T) {
	token := UploadToken{
		Required: []string{DocID, DocBankStatement, DocBusinessLicense},
		Uploaded: []string{DocBankStatement},
	}
	missing := token.Missing()
	if len(missing) != 2 || missing[0] != DocID || missing[1] != DocBusinessLicense {
		t.Fatalf("missing = %v", missing)
	}
}

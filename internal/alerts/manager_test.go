package alerts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"brokerage_backend/platform/logger"
)

type alertConfig struct {
	cooldown time.Duration
	smsTo    []string
	emailTo  []string
	chatURL  string
	pagerKey string
}

func (c alertConfig) GetAlertCooldown() time.Duration   { return c.cooldown }
func (c alertConfig) GetAlertSMSRecipients() []string   { return c.smsTo }
func (c alertConfig) GetAlertEmailRecipients() []string { return c.emailTo }
func (c alertConfig) GetAlertChatWebhookURL() string    { return c.chatURL }
func (c alertConfig) GetAlertPagerKey() string          { return c.pagerKey }

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeEmail) SendAutomationEmail(ctx context.Context, to, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func TestSendRoutesSMSOnlyForCritical(t *testing.T) {
	sms := &fakeSMS{}
	email := &fakeEmail{}
	cfg := alertConfig{
		cooldown: 15 * time.Minute,
		smsTo:    []string{"+15550001111"},
		emailTo:  []string{"oncall@example.com"},
	}
	mgr := NewManager(cfg, NewMemoryCooldown(), sms, email, nil, nil, logger.New("development"))

	res := mgr.Warning(context.Background(), "crm", "sync lag rising", nil)
	if res.Suppressed || len(res.Errors) != 0 {
		t.Fatalf("warning send failed: %+v", res)
	}
	if len(sms.sent) != 0 {
		t.Fatal("warning must not page via sms")
	}
	if len(email.sent) != 1 {
		t.Fatal("email goes out for every severity")
	}

	res = mgr.Critical(context.Background(), "database", "connection pool exhausted", nil)
	if len(sms.sent) != 1 {
		t.Fatal("critical must page via sms")
	}
	if !slices.Contains(res.Channels, "sms") || !slices.Contains(res.Channels, "email") {
		t.Fatalf("channels = %v", res.Channels)
	}
}

func TestSendCooldownSuppressesDuplicates(t *testing.T) {
	email := &fakeEmail{}
	cfg := alertConfig{cooldown: 15 * time.Minute, emailTo: []string{"oncall@example.com"}}
	mgr := NewManager(cfg, NewMemoryCooldown(), nil, email, nil, nil, logger.New("development"))

	alert := Alert{Service: "crm", Severity: SeverityWarning, Message: "sync failed"}

	if res := mgr.Send(context.Background(), alert); res.Suppressed {
		t.Fatal("first send must go through")
	}
	if res := mgr.Send(context.Background(), alert); !res.Suppressed {
		t.Fatal("identical alert inside window must be suppressed")
	}
	if len(email.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(email.sent))
	}

	// Different message, different dedup key.
	other := Alert{Service: "crm", Severity: SeverityWarning, Message: "auth expired"}
	if res := mgr.Send(context.Background(), other); res.Suppressed {
		t.Fatal("distinct message must not share the cooldown")
	}
}

func TestSendDetailsDoNotAffectDedupKey(t *testing.T) {
	a := Alert{Service: "s", Severity: SeverityCritical, Message: "m", Details: map[string]any{"n": 1}}
	b := Alert{Service: "s", Severity: SeverityCritical, Message: "m", Details: map[string]any{"n": 2}}
	if a.Key() != b.Key() {
		t.Fatal("details must not change the dedup key")
	}
	c := Alert{Service: "s", Severity: SeverityWarning, Message: "m"}
	if a.Key() == c.Key() {
		t.Fatal("severity is part of the dedup key")
	}
}

func TestSendChannelFailuresAreIsolated(t *testing.T) {
	sms := &fakeSMS{err: errors.New("gateway down")}
	email := &fakeEmail{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := alertConfig{
		cooldown: time.Minute,
		smsTo:    []string{"+15550001111"},
		emailTo:  []string{"oncall@example.com"},
		chatURL:  srv.URL,
	}
	mgr := NewManager(cfg, NewMemoryCooldown(), sms, email, srv.Client(), nil, logger.New("development"))

	res := mgr.Critical(context.Background(), "scheduler", "queue backed up", nil)
	if res.Suppressed {
		t.Fatal("should not be suppressed")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected exactly the sms failure, got %v", res.Errors)
	}
	if !slices.Contains(res.Channels, "email") || !slices.Contains(res.Channels, "chat") {
		t.Fatalf("surviving channels should deliver: %v", res.Channels)
	}
}

func TestSendProceedsWhenCooldownStoreFails(t *testing.T) {
	email := &fakeEmail{}
	cfg := alertConfig{cooldown: time.Minute, emailTo: []string{"oncall@example.com"}}
	mgr := NewManager(cfg, failingCooldown{}, nil, email, nil, nil, logger.New("development"))

	res := mgr.Critical(context.Background(), "redis", "unreachable", nil)
	if res.Suppressed {
		t.Fatal("a broken cooldown store must not silence alerts")
	}
	if len(email.sent) != 1 {
		t.Fatal("alert should still be delivered")
	}
}

type failingCooldown struct{}

func (failingCooldown) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	return false, errors.New("store unavailable")
}

func TestMemoryCooldownWindowExpiry(t *testing.T) {
	store := NewMemoryCooldown()

	ok, err := store.Acquire(context.Background(), "k", 50*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := store.Acquire(context.Background(), "k", 50*time.Millisecond); ok {
		t.Fatal("second acquire inside window must fail")
	}

	time.Sleep(60 * time.Millisecond)
	if ok, _ := store.Acquire(context.Background(), "k", 50*time.Millisecond); !ok {
		t.Fatal("acquire after window must succeed")
	}
}

// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// OrchestratorConfig provides settings for the periodic automation loop.
type OrchestratorConfig interface {
	GetSweepInterval() time.Duration
	GetWorkflowCooldown() time.Duration
	GetAbandonedLeadAge() time.Duration
	GetStuckOpportunityAge() time.Duration
	GetStageFollowUpAge() time.Duration
	GetDocumentExpiryWarning() time.Duration
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetBrevoAPIKey() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
}

// SMSConfig provides settings for the SMS gateway.
type SMSConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayKey() string
	GetSMSFromNumber() string
	GetDefaultPhoneRegion() string
}

// CRMConfig provides settings for the external CRM.
type CRMConfig interface {
	GetCRMBaseURL() string
	GetCRMAPIKey() string
	GetCRMLocationID() string
}

// AIConfig provides settings for the AI classifier.
type AIConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetAICallTimeout() time.Duration
}

// AlertConfig provides settings for the alert manager.
type AlertConfig interface {
	GetAlertCooldown() time.Duration
	GetAlertSMSRecipients() []string
	GetAlertEmailRecipients() []string
	GetAlertChatWebhookURL() string
	GetAlertPagerKey() string
}

// StorageConfig provides settings for MinIO S3-compatible document storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketDocuments() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	SweepInterval         time.Duration
	WorkflowCooldown      time.Duration
	AbandonedLeadAge      time.Duration
	StuckOpportunityAge   time.Duration
	StageFollowUpAge      time.Duration
	DocumentExpiryWarning time.Duration
	UploadTokenTTL        time.Duration

	CORSAllowAll bool
	CORSOrigins  []string

	EmailEnabled     bool
	BrevoAPIKey      string
	EmailFromName    string
	EmailFromAddress string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string

	SMSGatewayURL      string
	SMSGatewayKey      string
	SMSFromNumber      string
	DefaultPhoneRegion string

	CRMBaseURL    string
	CRMAPIKey     string
	CRMLocationID string

	GeminiAPIKey  string
	GeminiModel   string
	AICallTimeout time.Duration

	AlertCooldown        time.Duration
	AlertSMSRecipients   []string
	AlertEmailRecipients []string
	AlertChatWebhookURL  string
	AlertPagerKey        string

	MinIOEndpoint        string
	MinIOAccessKey       string
	MinIOSecretKey       string
	MinIOUseSSL          bool
	MinioBucketDocuments string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// OrchestratorConfig implementation
func (c *Config) GetSweepInterval() time.Duration         { return c.SweepInterval }
func (c *Config) GetWorkflowCooldown() time.Duration      { return c.WorkflowCooldown }
func (c *Config) GetAbandonedLeadAge() time.Duration      { return c.AbandonedLeadAge }
func (c *Config) GetStuckOpportunityAge() time.Duration   { return c.StuckOpportunityAge }
func (c *Config) GetStageFollowUpAge() time.Duration      { return c.StageFollowUpAge }
func (c *Config) GetDocumentExpiryWarning() time.Duration { return c.DocumentExpiryWarning }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }

// SMSConfig implementation
func (c *Config) GetSMSGatewayURL() string      { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayKey() string      { return c.SMSGatewayKey }
func (c *Config) GetSMSFromNumber() string      { return c.SMSFromNumber }
func (c *Config) GetDefaultPhoneRegion() string { return c.DefaultPhoneRegion }

// CRMConfig implementation
func (c *Config) GetCRMBaseURL() string    { return c.CRMBaseURL }
func (c *Config) GetCRMAPIKey() string     { return c.CRMAPIKey }
func (c *Config) GetCRMLocationID() string { return c.CRMLocationID }

// AIConfig implementation
func (c *Config) GetGeminiAPIKey() string         { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string          { return c.GeminiModel }
func (c *Config) GetAICallTimeout() time.Duration { return c.AICallTimeout }

// AlertConfig implementation
func (c *Config) GetAlertCooldown() time.Duration   { return c.AlertCooldown }
func (c *Config) GetAlertSMSRecipients() []string   { return c.AlertSMSRecipients }
func (c *Config) GetAlertEmailRecipients() []string { return c.AlertEmailRecipients }
func (c *Config) GetAlertChatWebhookURL() string    { return c.AlertChatWebhookURL }
func (c *Config) GetAlertPagerKey() string          { return c.AlertPagerKey }

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string        { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string       { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string       { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool            { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketDocuments() string { return c.MinioBucketDocuments }
func (c *Config) IsMinIOEnabled() bool            { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	brevoAPIKey := getEnv("BREVO_API_KEY", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:         getEnv("APP_ENV", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "automation"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		SweepInterval:         mustDuration(getEnv("SWEEP_INTERVAL", "60s")),
		WorkflowCooldown:      mustDuration(getEnv("WORKFLOW_COOLDOWN", "24h")),
		AbandonedLeadAge:      mustDuration(getEnv("ABANDONED_LEAD_AGE", "168h")),
		StuckOpportunityAge:   mustDuration(getEnv("STUCK_OPPORTUNITY_AGE", "72h")),
		StageFollowUpAge:      mustDuration(getEnv("STAGE_FOLLOWUP_AGE", "24h")),
		DocumentExpiryWarning: mustDuration(getEnv("DOCUMENT_EXPIRY_WARNING", "48h")),
		UploadTokenTTL:        mustDuration(getEnv("UPLOAD_TOKEN_TTL", "336h")),

		CORSAllowAll: corsAllowAll,
		CORSOrigins:  corsOrigins,

		EmailEnabled:     emailEnabled && (brevoAPIKey != "" || getEnv("SMTP_HOST", "") != ""),
		BrevoAPIKey:      brevoAPIKey,
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Brokerage"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),

		SMSGatewayURL:      getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayKey:      getEnv("SMS_GATEWAY_KEY", ""),
		SMSFromNumber:      getEnv("SMS_FROM_NUMBER", ""),
		DefaultPhoneRegion: getEnv("DEFAULT_PHONE_REGION", "US"),

		CRMBaseURL:    getEnv("CRM_BASE_URL", ""),
		CRMAPIKey:     getEnv("CRM_API_KEY", ""),
		CRMLocationID: getEnv("CRM_LOCATION_ID", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		AICallTimeout: mustDuration(getEnv("AI_CALL_TIMEOUT", "30s")),

		AlertCooldown:        mustDuration(getEnv("ALERT_COOLDOWN", "15m")),
		AlertSMSRecipients:   splitCSV(getEnv("ALERT_SMS_RECIPIENTS", "")),
		AlertEmailRecipients: splitCSV(getEnv("ALERT_EMAIL_RECIPIENTS", "")),
		AlertChatWebhookURL:  getEnv("ALERT_CHAT_WEBHOOK_URL", ""),
		AlertPagerKey:        getEnv("ALERT_PAGER_KEY", ""),

		MinIOEndpoint:        getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:       getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:       getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:          strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketDocuments: getEnv("MINIO_BUCKET_DOCUMENTS", "lead-documents"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustDuration(v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

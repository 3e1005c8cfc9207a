// Package handler exposes the automation engine's HTTP surface.
package handler

import (
	"context"
	"net/http"
	"time"

	"brokerage_backend/internal/alerts"
	"brokerage_backend/internal/documents"
	"brokerage_backend/internal/leads/service"
	"brokerage_backend/internal/leads/transport"
	"brokerage_backend/internal/partners"
	"brokerage_backend/internal/pipeline"
	"brokerage_backend/internal/scheduler"
	"brokerage_backend/internal/storage"
	"brokerage_backend/internal/workflow"
	"brokerage_backend/platform/httpkit"
	"brokerage_backend/platform/metrics"
	"brokerage_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// AlertReader lists recent alerts for the status endpoint.
type AlertReader interface {
	Recent(ctx context.Context, limit int) ([]alerts.Record, error)
}

// AuditReader lists recent automation outcomes for the status endpoint.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]workflow.AuditEntry, error)
}

// Handler wires the HTTP routes to the engine's services.
type Handler struct {
	svc       *service.Service
	machine   *pipeline.Machine
	tracker   *documents.Tracker
	files     *storage.Service
	alertRepo AlertReader
	auditRepo AuditReader
	metrics   *metrics.Metrics
	sched     scheduler.AutomationScheduler
	val       *validator.Validator
	startedAt time.Time
}

// New creates the handler. files and alertRepo may be nil when their
// backing services are not configured.
func New(svc *service.Service, machine *pipeline.Machine, tracker *documents.Tracker, files *storage.Service, alertRepo AlertReader, auditRepo AuditReader, m *metrics.Metrics, val *validator.Validator) *Handler {
	return &Handler{
		svc:       svc,
		machine:   machine,
		tracker:   tracker,
		files:     files,
		alertRepo: alertRepo,
		auditRepo: auditRepo,
		metrics:   m,
		val:       val,
		startedAt: time.Now(),
	}
}

// SetScheduler enables deferred expiry notices for issued upload tokens.
func (h *Handler) SetScheduler(s scheduler.AutomationScheduler) {
	h.sched = s
}

// RegisterRoutes mounts the API routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads", h.CaptureLead)
	rg.POST("/events", h.SubmitEvent)
	rg.POST("/opportunities/:id/transition", h.Transition)
	rg.POST("/opportunities/:id/documents", h.RequestDocuments)
	rg.GET("/uploads/:token", h.UploadStatus)
	rg.POST("/uploads/:token", h.RecordUpload)
	rg.POST("/partners/select", h.SelectPartner)
	rg.GET("/status", h.SystemStatus)
}

func (h *Handler) CaptureLead(c *gin.Context) {
	var req transport.CaptureLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.CaptureLead(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, resp)
}

func (h *Handler) SubmitEvent(c *gin.Context) {
	var req transport.SubmitEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.SubmitEvent(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resolution, err := h.machine.ResolveAndTransition(c.Request.Context(), id, req.Stage)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"stage": resolution.Stage})
}

func (h *Handler) RequestDocuments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req struct {
		EntityID uuid.UUID `json:"entityId" validate:"required"`
		Division string    `json:"division" validate:"required"`
		Extra    []string  `json:"extra"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	token, err := h.tracker.IssueToken(c.Request.Context(), req.EntityID, id, pipeline.Division(req.Division), req.Extra...)
	if httpkit.HandleError(c, err) {
		return
	}

	// Queue a reminder before the token expires; expiry sweeps still catch
	// anything the queue loses.
	if h.sched != nil {
		runAt := token.ExpiresAt.Add(-48 * time.Hour)
		if runAt.After(time.Now()) {
			_ = h.sched.ScheduleDocumentExpiryNotice(c.Request.Context(), scheduler.DocumentExpiryNoticePayload{
				Token:         token.Token,
				EntityID:      token.EntityID.String(),
				OpportunityID: token.OpportunityID.String(),
			}, runAt)
		}
	}
	httpkit.Created(c, uploadStatus(token))
}

func (h *Handler) UploadStatus(c *gin.Context) {
	token, err := h.tracker.Status(c.Request.Context(), c.Param("token"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, uploadStatus(token))
}

// RecordUpload accepts one document as multipart form data: a "documentType"
// field and an optional "file" part. The physical file is stored first; a
// storage failure does not advance the checklist.
func (h *Handler) RecordUpload(c *gin.Context) {
	tokenStr := c.Param("token")
	documentType := c.PostForm("documentType")
	if documentType == "" {
		httpkit.Error(c, http.StatusBadRequest, "documentType is required", nil)
		return
	}

	var fileRef string
	if fileHeader, err := c.FormFile("file"); err == nil && h.files != nil {
		contentType := fileHeader.Header.Get("Content-Type")
		if err := storage.ValidateContentType(contentType); err != nil {
			httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unreadable file", nil)
			return
		}
		defer file.Close()

		fileRef, err = h.files.StoreDocument(c.Request.Context(),
			tokenStr, documentType, fileHeader.Filename, contentType, fileHeader.Size, file)
		if err != nil {
			httpkit.Error(c, http.StatusBadGateway, "failed to store document", nil)
			return
		}
	}

	token, err := h.tracker.RecordUpload(c.Request.Context(), tokenStr, documentType, fileRef)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, uploadStatus(token))
}

func (h *Handler) SelectPartner(c *gin.Context) {
	var req transport.SelectPartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	partner := partners.Select(partners.SelectParams{
		LoanType:    req.LoanType,
		LoanAmount:  req.LoanAmount,
		CreditScore: req.CreditScore,
		Urgent:      req.Urgent,
	})
	httpkit.OK(c, partner)
}

func (h *Handler) SystemStatus(c *gin.Context) {
	status := gin.H{
		"uptimeSeconds": int(time.Since(h.startedAt).Seconds()),
		"alerts":        []alerts.Record{},
		"automation":    []workflow.AuditEntry{},
	}
	if h.alertRepo != nil {
		recent, err := h.alertRepo.Recent(c.Request.Context(), 50)
		if err == nil && recent != nil {
			status["alerts"] = recent
		}
	}
	if h.auditRepo != nil {
		recent, err := h.auditRepo.Recent(c.Request.Context(), 50)
		if err == nil && recent != nil {
			status["automation"] = recent
		}
	}
	if h.metrics != nil {
		status["metrics"] = h.metrics.Snapshot()
	}
	httpkit.OK(c, status)
}

func uploadStatus(token documents.UploadToken) transport.UploadStatusResponse {
	return transport.UploadStatusResponse{
		Token:     token.Token,
		Division:  token.Division,
		Required:  token.Required,
		Uploaded:  token.Uploaded,
		Missing:   token.Missing(),
		Completed: token.CompletedAt != nil,
	}
}

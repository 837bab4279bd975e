package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"beacon/internal/api/middleware"
	"beacon/internal/config"
	"beacon/internal/domain/models"
	"beacon/internal/domain/services"
	"beacon/pkg/logger"
)

// ComplaintService is what the complaint endpoints need from the domain
type ComplaintService interface {
	Submit(ctx context.Context, sess models.Session, sub *models.ComplaintSubmission) (*models.SubmissionResult, error)
	Get(ctx context.Context, caseID string) (*models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) (*models.ComplaintListResponse, error)
	Preview(description string) models.AssessmentPreview
}

// ComplaintsHandler handles complaint endpoints
type ComplaintsHandler struct {
	service ComplaintService
	limits  config.SubmissionConfig
	logger  *logger.Logger
}

// NewComplaintsHandler creates a new ComplaintsHandler
func NewComplaintsHandler(svc ComplaintService, limits config.SubmissionConfig, log *logger.Logger) *ComplaintsHandler {
	return &ComplaintsHandler{
		service: svc,
		limits:  limits,
		logger:  log.WithComponent("complaints-handler"),
	}
}

// Report handles POST /api/report
func (h *ComplaintsHandler) Report(w http.ResponseWriter, r *http.Request) {
	limit := h.bodyLimit()
	if r.ContentLength > limit {
		respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	err := r.ParseMultipartForm(h.limits.MaxMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	sub := &models.ComplaintSubmission{
		Category:       models.Category(strings.TrimSpace(r.FormValue("category"))),
		CustomCategory: r.FormValue("custom_category"),
		Description:    r.FormValue("description"),
		Location:       r.FormValue("location"),
		Anonymous:      parseFormBool(r.FormValue("anonymous")),
		ClientRisk:     clientRisk(r),
	}

	if r.MultipartForm != nil {
		files, err := openEvidence(r.MultipartForm.File["evidence"])
		defer closeAll(files)
		if err != nil {
			h.logger.Error().Err(err).Msg("failed to open evidence upload")
			respondError(w, http.StatusBadRequest, "invalid evidence upload")
			return
		}
		for _, f := range files {
			sub.Evidence = append(sub.Evidence, f.upload)
		}
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	result, err := h.service.Submit(r.Context(), sess, sub)
	if err != nil {
		respondServiceError(w, h.logger, err, "Upload failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Assess handles POST /api/v1/complaints/assess
func (h *ComplaintsHandler) Assess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	respondJSON(w, http.StatusOK, h.service.Preview(req.Description))
}

// Template handles GET /api/v1/complaints/templates/{category}
func (h *ComplaintsHandler) Template(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "category")
	category, err := url.PathUnescape(raw)
	if err != nil {
		category = raw
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"category": category,
		"template": services.DraftTemplate(models.Category(category)),
	})
}

// Summary handles POST /api/v1/complaints/summary
func (h *ComplaintsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category    models.Category `json:"category"`
		Description string          `json:"description"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		respondError(w, http.StatusBadRequest, "description is required")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"summary": services.Summarize(req.Category, req.Description),
	})
}

// Categories handles GET /api/v1/complaints/categories
func (h *ComplaintsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"categories": models.Categories,
		"custom":     models.CategoryOther,
		"voice":      models.CategoryVoice,
	})
}

// Get handles GET /api/v1/complaints/{caseId}
func (h *ComplaintsHandler) Get(w http.ResponseWriter, r *http.Request) {
	complaint, err := h.service.Get(r.Context(), chi.URLParam(r, "caseId"))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load complaint")
		return
	}

	respondJSON(w, http.StatusOK, complaint)
}

// List handles GET /api/v1/complaints
func (h *ComplaintsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	resp, err := h.service.List(r.Context(), models.ComplaintFilter{
		Category: models.Category(q.Get("category")),
		Status:   models.ComplaintStatus(q.Get("status")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list complaints")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// bodyLimit allows every evidence file at full size plus the text fields
func (h *ComplaintsHandler) bodyLimit() int64 {
	return int64(h.limits.MaxFiles)*h.limits.MaxFileSize + 1<<20
}

// clientRisk returns the risk fields the client sent, if any. They are
// only compared against the server assessment.
func clientRisk(r *http.Request) *models.RiskAssessment {
	score, label, reason := r.FormValue("risk_score"), r.FormValue("risk_label"), r.FormValue("risk_reason")
	if score == "" && label == "" && reason == "" {
		return nil
	}
	parsed, _ := strconv.ParseFloat(score, 64)
	return &models.RiskAssessment{
		RiskScore:  parsed,
		RiskLabel:  models.RiskLabel(label),
		RiskReason: reason,
	}
}

func parseFormBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes":
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

type openedEvidence struct {
	file   multipart.File
	upload models.EvidenceUpload
}

func openEvidence(headers []*multipart.FileHeader) ([]openedEvidence, error) {
	opened := make([]openedEvidence, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return opened, err
		}
		opened = append(opened, openedEvidence{
			file: f,
			upload: models.EvidenceUpload{
				OriginalName: fh.Filename,
				ContentType:  fh.Header.Get("Content-Type"),
				Size:         fh.Size,
				Body:         f,
			},
		})
	}
	return opened, nil
}

func closeAll(files []openedEvidence) {
	for _, f := range files {
		f.file.Close()
	}
}

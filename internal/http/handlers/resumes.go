package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/resumeforge/internal/ai"
	"github.com/geocoder89/resumeforge/internal/apperr"
	"github.com/geocoder89/resumeforge/internal/breaker"
	"github.com/geocoder89/resumeforge/internal/domain/resume"
	"github.com/geocoder89/resumeforge/internal/domain/user"
	"github.com/geocoder89/resumeforge/internal/http/middlewares"
	"github.com/geocoder89/resumeforge/internal/pdf"
	"github.com/geocoder89/resumeforge/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	defaultResumePageSize = 20
	maxResumePageSize     = 100
)

type ResumeStore interface {
	CreateWithinQuota(ctx context.Context, res resume.Resume) (resume.Resume, error)
	GetByID(ctx context.Context, userID, id string) (resume.Resume, error)
	Update(ctx context.Context, userID, id string, req resume.UpdateResumeRequest) (resume.Resume, error)
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, filter resume.ListFilter) ([]resume.Resume, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, userInput json.RawMessage) (string, error)
}

type PDFRenderer interface {
	Render(ctx context.Context, html []byte) ([]byte, error)
}

type ResumesHandler struct {
	resumes  ResumeStore
	summary  Summarizer
	renderer PDFRenderer
	timeout  time.Duration
}

func NewResumesHandler(resumes ResumeStore, summary Summarizer, renderer PDFRenderer) *ResumesHandler {
	return &ResumesHandler{
		resumes:  resumes,
		summary:  summary,
		renderer: renderer,
		timeout:  5 * time.Second,
	}
}

type GenerateSummaryRequest struct {
	UserInput json.RawMessage `json:"userInput"`
}

type GeneratePDFRequest struct {
	ResumeID string `json:"resumeId" binding:"required"`
	Template string `json:"template" binding:"omitempty,max=40"`
}

type resumePage struct {
	Items      []resume.Resume `json:"items"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

var (
	errResumeNotFound  = apperr.NotFound("resume_not_found", "Resume not found")
	errQuotaExceeded   = apperr.Forbidden("quota_exceeded", "Resume limit reached for your plan")
	errUnknownTemplate = apperr.BadRequest("template_not_found", "Template not found")
)

func currentUser(ctx *gin.Context) (string, bool) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
	}
	return userID, ok
}

func (h *ResumesHandler) List(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	limit := defaultResumePageSize
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxResumePageSize {
			RespondBadRequest(ctx, fmt.Sprintf("limit must be between 1 and %d", maxResumePageSize), nil)
			return
		}
		limit = n
	}

	filter := resume.ListFilter{UserID: userID, Limit: limit + 1}

	if raw := ctx.Query("cursor"); raw != "" {
		c, err := utils.DecodeResumeCursor(raw)
		if err != nil {
			RespondBadRequest(ctx, "Invalid cursor", nil)
			return
		}
		filter.AfterUpdated = &c.UpdatedAt
		filter.AfterID = c.ID
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	items, err := h.resumes.List(cctx, filter)
	if err != nil {
		RespondErr(ctx, apperr.Internal("Failed to fetch resumes", err))
		return
	}

	page := resumePage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1]

		next, err := utils.EncodeResumeCursor(last.UpdatedAt, last.ID)
		if err != nil {
			RespondErr(ctx, apperr.Internal("Failed to fetch resumes", err))
			return
		}
		page.NextCursor = next
	}

	RespondJSONWithETag(ctx, http.StatusOK, page)
}

func (h *ResumesHandler) Create(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req resume.CreateResumeRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if req.Template != "" && !pdf.HasTemplate(req.Template) {
		RespondErr(ctx, errUnknownTemplate)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	created, err := h.resumes.CreateWithinQuota(cctx, resume.NewFromCreateRequest(userID, req))
	if err != nil {
		switch {
		case errors.Is(err, resume.ErrQuotaExceeded):
			RespondErr(ctx, errQuotaExceeded)
		case errors.Is(err, user.ErrNotFound):
			RespondErr(ctx, apperr.NotFound("user_not_found", "User not found"))
		default:
			RespondErr(ctx, apperr.Internal("Error creating resume", err))
		}
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (h *ResumesHandler) Get(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	res, err := h.resumes.GetByID(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondResumeErr(ctx, err, "Could not load resume")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, res)
}

func (h *ResumesHandler) Update(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req resume.UpdateResumeRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if req.Template != nil && *req.Template != "" && !pdf.HasTemplate(*req.Template) {
		RespondErr(ctx, errUnknownTemplate)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	updated, err := h.resumes.Update(cctx, userID, ctx.Param("id"), req)
	if err != nil {
		respondResumeErr(ctx, err, "Error updating resume")
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (h *ResumesHandler) Delete(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	if err := h.resumes.Delete(ctx.Request.Context(), userID, ctx.Param("id")); err != nil {
		respondResumeErr(ctx, err, "Error deleting resume")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ResumesHandler) GenerateSummary(ctx *gin.Context) {
	var req GenerateSummaryRequest
	if !BindJSON(ctx, &req) {
		return
	}

	text, err := h.summary.Summarize(ctx.Request.Context(), req.UserInput)
	if err != nil {
		switch {
		case errors.Is(err, ai.ErrEmptyInput):
			RespondErr(ctx, apperr.BadRequest("invalid_request", "User input is required."))
		case errors.Is(err, breaker.ErrOpen), errors.Is(err, ai.ErrNotConfigured):
			RespondErr(ctx, apperr.Unavailable("ai_unavailable", "Summary generation is temporarily unavailable.", err))
		default:
			RespondErr(ctx, apperr.Upstream("ai_failed", "Failed to generate professional summary.", err))
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"completion": text})
}

func (h *ResumesHandler) GeneratePDF(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req GeneratePDFRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	res, err := h.resumes.GetByID(cctx, userID, req.ResumeID)
	cancel()
	if err != nil {
		respondResumeErr(ctx, err, "Could not load resume")
		return
	}

	template := strings.TrimSpace(req.Template)
	if template == "" {
		template = res.Template
	}

	html, err := pdf.RenderHTML(template, res, middlewares.EmailFromContext(ctx))
	if err != nil {
		if errors.Is(err, pdf.ErrUnknownTemplate) {
			RespondErr(ctx, errUnknownTemplate)
			return
		}
		RespondErr(ctx, apperr.Internal("Error generating PDF", err))
		return
	}

	out, err := h.renderer.Render(ctx.Request.Context(), html)
	if err != nil {
		switch {
		case errors.Is(err, breaker.ErrOpen), errors.Is(err, pdf.ErrNotConfigured):
			RespondErr(ctx, apperr.Unavailable("pdf_unavailable", "PDF generation is temporarily unavailable.", err))
		default:
			RespondErr(ctx, apperr.Upstream("pdf_failed", "Error generating PDF", err))
		}
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, pdf.Filename(res.Title)))
	ctx.Data(http.StatusOK, "application/pdf", out)
}

func respondResumeErr(ctx *gin.Context, err error, internalMsg string) {
	if errors.Is(err, resume.ErrNotFound) {
		RespondErr(ctx, errResumeNotFound)
		return
	}
	RespondErr(ctx, apperr.Internal(internalMsg, err))
}

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/replyforge/replyforge/internal/api"
	"github.com/replyforge/replyforge/internal/api/middleware"
	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/service"
)

// maxUploadBytes caps the multipart form held in memory per document upload.
const maxUploadBytes = 32 << 20

type SourceService interface {
	CreateDocument(ctx context.Context, input service.CreateDocumentInput) (*domain.Source, error)
	CreateWebsite(ctx context.Context, tenantID, title, url string) (*domain.Source, error)
	CreateFAQ(ctx context.Context, tenantID, question, answer string) (*domain.Source, error)
	GetSource(ctx context.Context, tenantID, id string) (*domain.Source, error)
	ListSources(ctx context.Context, input service.ListSourcesInput) (*service.ListSourcesOutput, error)
	DeleteSource(ctx context.Context, tenantID, id string) error
	ReingestSource(ctx context.Context, tenantID, id string) error
	SourceDownloadURL(ctx context.Context, tenantID, id string) (string, error)
}

type SourceHandler struct {
	svc SourceService
}

func NewSourceHandler(svc SourceService) *SourceHandler {
	return &SourceHandler{svc: svc}
}

type CreateWebsiteRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type CreateFAQRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type SourceResponse struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Title      string `json:"title"`
	URL        string `json:"url,omitempty"`
	Answer     string `json:"answer,omitempty"`
	FailReason string `json:"fail_reason,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func sourceToResponse(s *domain.Source) *SourceResponse {
	return &SourceResponse{
		ID:         s.ID,
		TenantID:   s.TenantID,
		Type:       string(s.Type),
		Status:     string(s.Status),
		Title:      s.Title,
		URL:        s.URL,
		Answer:     s.Answer,
		FailReason: s.FailReason,
		CreatedAt:  s.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:  s.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// UploadDocument accepts a multipart form with a "file" part and an
// optional "title" field and queues the document for ingestion.
func (h *SourceHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	input := service.CreateDocumentInput{
		TenantID:    tenantID,
		Title:       r.FormValue("title"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}

	source, err := h.svc.CreateDocument(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, sourceToResponse(source))
}

func (h *SourceHandler) CreateWebsite(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateWebsiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		api.Error(w, http.StatusBadRequest, "url is required")
		return
	}

	source, err := h.svc.CreateWebsite(r.Context(), tenantID, req.Title, req.URL)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, sourceToResponse(source))
}

func (h *SourceHandler) CreateFAQ(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateFAQRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.Answer == "" {
		api.Error(w, http.StatusBadRequest, "answer is required")
		return
	}

	source, err := h.svc.CreateFAQ(r.Context(), tenantID, req.Question, req.Answer)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, sourceToResponse(source))
}

func (h *SourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	source, err := h.svc.GetSource(r.Context(), tenantID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, sourceToResponse(source))
}

type SourceListResponse struct {
	Items   []*SourceResponse `json:"items"`
	Cursor  string            `json:"cursor,omitempty"`
	HasMore bool              `json:"has_more"`
}

func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var types []domain.SourceType
	for _, raw := range r.URL.Query()["type"] {
		st := domain.SourceType(raw)
		if !isValidSourceType(st) {
			api.Error(w, http.StatusBadRequest, "invalid source type")
			return
		}
		types = append(types, st)
	}

	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	input := service.ListSourcesInput{
		TenantID: tenantID,
		Types:    types,
		Cursor:   cursor,
		Limit:    limit,
	}

	output, err := h.svc.ListSources(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SourceResponse, len(output.Items))
	for i, s := range output.Items {
		responses[i] = sourceToResponse(s)
	}

	api.Success(w, http.StatusOK, SourceListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *SourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteSource(r.Context(), tenantID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}

func (h *SourceHandler) Download(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	url, err := h.svc.SourceDownloadURL(r.Context(), tenantID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DownloadURLResponse{URL: url})
}

func (h *SourceHandler) Reingest(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.ReingestSource(r.Context(), tenantID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusAccepted, nil)
}

func isValidSourceType(t domain.SourceType) bool {
	switch t {
	case domain.SourceTypeDocument, domain.SourceTypeWebsite, domain.SourceTypeFAQ:
		return true
	}
	return false
}

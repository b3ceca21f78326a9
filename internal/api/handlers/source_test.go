package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/replyforge/replyforge/internal/api/middleware"
	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/service"
)

type MockSourceService struct {
	mock.Mock
}

func (m *MockSourceService) CreateDocument(ctx context.Context, input service.CreateDocumentInput) (*domain.Source, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockSourceService) CreateWebsite(ctx context.Context, tenantID, title, url string) (*domain.Source, error) {
	args := m.Called(ctx, tenantID, title, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockSourceService) CreateFAQ(ctx context.Context, tenantID, question, answer string) (*domain.Source, error) {
	args := m.Called(ctx, tenantID, question, answer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockSourceService) GetSource(ctx context.Context, tenantID, id string) (*domain.Source, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Source), args.Error(1)
}

func (m *MockSourceService) ListSources(ctx context.Context, input service.ListSourcesInput) (*service.ListSourcesOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListSourcesOutput), args.Error(1)
}

func (m *MockSourceService) DeleteSource(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockSourceService) ReingestSource(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockSourceService) SourceDownloadURL(ctx context.Context, tenantID, id string) (string, error) {
	args := m.Called(ctx, tenantID, id)
	return args.String(0), args.Error(1)
}

func newTestSource(sourceType domain.SourceType) *domain.Source {
	return &domain.Source{
		ID:        "src-123",
		TenantID:  "tenant-1",
		Type:      sourceType,
		Status:    domain.SourceStatusPending,
		Title:     "Returns policy",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func multipartUpload(t *testing.T, filename, title string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	if title != "" {
		require.NoError(t, writer.WriteField("title", title))
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestSourceHandler_UploadDocument_Success(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	mockSvc.On("CreateDocument", mock.Anything, mock.MatchedBy(func(input service.CreateDocumentInput) bool {
		return input.TenantID == "tenant-1" &&
			input.Filename == "policy.pdf" &&
			input.Title == "Returns policy" &&
			bytes.Equal(input.Data, []byte("pdf bytes"))
	})).Return(newTestSource(domain.SourceTypeDocument), nil)

	body, contentType := multipartUpload(t, "policy.pdf", "Returns policy", []byte("pdf bytes"))
	req := httptest.NewRequest(http.MethodPost, "/v1/sources/documents", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(context.WithValue(req.Context(), middleware.TenantIDKey, "tenant-1"))
	w := httptest.NewRecorder()

	handler.UploadDocument(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data SourceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "src-123", envelope.Data.ID)
	assert.Equal(t, "document", envelope.Data.Type)
	assert.Equal(t, "pending", envelope.Data.Status)
	mockSvc.AssertExpectations(t)
}

func TestSourceHandler_UploadDocument_MissingFile(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("title", "no file"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/sources/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req = req.WithContext(context.WithValue(req.Context(), middleware.TenantIDKey, "tenant-1"))
	w := httptest.NewRecorder()

	handler.UploadDocument(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file is required")
	mockSvc.AssertNotCalled(t, "CreateDocument")
}

func TestSourceHandler_CreateWebsite_Success(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	site := newTestSource(domain.SourceTypeWebsite)
	site.URL = "https://docs.example.com"
	mockSvc.On("CreateWebsite", mock.Anything, "tenant-1", "Docs", "https://docs.example.com").Return(site, nil)

	body, _ := json.Marshal(CreateWebsiteRequest{Title: "Docs", URL: "https://docs.example.com"})
	req := authedRequest(http.MethodPost, "/v1/sources/websites", body, "tenant-1")
	w := httptest.NewRecorder()

	handler.CreateWebsite(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "https://docs.example.com")
	mockSvc.AssertExpectations(t)
}

func TestSourceHandler_CreateWebsite_MissingURL(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	body, _ := json.Marshal(CreateWebsiteRequest{Title: "Docs"})
	req := authedRequest(http.MethodPost, "/v1/sources/websites", body, "tenant-1")
	w := httptest.NewRecorder()

	handler.CreateWebsite(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "url is required")
}

func TestSourceHandler_CreateFAQ_Success(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	faq := newTestSource(domain.SourceTypeFAQ)
	faq.Answer = "30 days."
	mockSvc.On("CreateFAQ", mock.Anything, "tenant-1", "What is the return window?", "30 days.").Return(faq, nil)

	body, _ := json.Marshal(CreateFAQRequest{Question: "What is the return window?", Answer: "30 days."})
	req := authedRequest(http.MethodPost, "/v1/sources/faqs", body, "tenant-1")
	w := httptest.NewRecorder()

	handler.CreateFAQ(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestSourceHandler_CreateFAQ_MissingAnswer(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	body, _ := json.Marshal(CreateFAQRequest{Question: "What is the return window?"})
	req := authedRequest(http.MethodPost, "/v1/sources/faqs", body, "tenant-1")
	w := httptest.NewRecorder()

	handler.CreateFAQ(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "answer is required")
}

func TestSourceHandler_Get_Success(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	mockSvc.On("GetSource", mock.Anything, "tenant-1", "src-123").Return(newTestSource(domain.SourceTypeDocument), nil)

	req := authedRequest(http.MethodGet, "/v1/sources/src-123", nil, "tenant-1")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "src-123")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestSourceHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	mockSvc.On("GetSource", mock.Anything, "tenant-1", "missing").Return(nil, domain.ErrSourceNotFound)

	req := authedRequest(http.MethodGet, "/v1/sources/missing", nil, "tenant-1")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "missing")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSourceHandler_Download(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	mockSvc.On("SourceDownloadURL", mock.Anything, "tenant-1", "src-123").
		Return("https://s3.example.com/presigned", nil)

	req := authedRequest(http.MethodGet, "/v1/sources/src-123/download", nil, "tenant-1")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "src-123")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.Download(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data DownloadURLResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "https://s3.example.com/presigned", envelope.Data.URL)
	mockSvc.AssertExpectations(t)
}

func TestSourceHandler_Download_NoStoredObject(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	mockSvc.On("SourceDownloadURL", mock.Anything, "tenant-1", "src-faq").
		Return("", domain.NewDomainError(domain.ErrCodeInvalidOperation, "source has no stored document"))

	req := authedRequest(http.MethodGet, "/v1/sources/src-faq/download", nil, "tenant-1")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "src-faq")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.Download(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSourceHandler_List_FiltersAndPagination(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	output := &service.ListSourcesOutput{
		Items:   []*domain.Source{newTestSource(domain.SourceTypeFAQ)},
		Cursor:  "next-cursor",
		HasMore: true,
	}
	mockSvc.On("ListSources", mock.Anything, mock.MatchedBy(func(input service.ListSourcesInput) bool {
		return input.TenantID == "tenant-1" &&
			len(input.Types) == 1 && input.Types[0] == domain.SourceTypeFAQ &&
			input.Cursor == "abc" && input.Limit == 5
	})).Return(output, nil)

	req := authedRequest(http.MethodGet, "/v1/sources?type=faq&cursor=abc&limit=5", nil, "tenant-1")
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data SourceListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data.Items, 1)
	assert.Equal(t, "next-cursor", envelope.Data.Cursor)
	assert.True(t, envelope.Data.HasMore)
	mockSvc.AssertExpectations(t)
}

func TestSourceHandler_List_InvalidType(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	req := authedRequest(http.MethodGet, "/v1/sources?type=bogus", nil, "tenant-1")
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "ListSources")
}

func TestSourceHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	mockSvc.On("DeleteSource", mock.Anything, "tenant-1", "src-123").Return(nil)

	req := authedRequest(http.MethodDelete, "/v1/sources/src-123", nil, "tenant-1")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "src-123")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestSourceHandler_Reingest_Success(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	mockSvc.On("ReingestSource", mock.Anything, "tenant-1", "src-123").Return(nil)

	req := authedRequest(http.MethodPost, "/v1/sources/src-123/reingest", nil, "tenant-1")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "src-123")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.Reingest(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestSourceHandler_MissingTenant(t *testing.T) {
	mockSvc := new(MockSourceService)
	handler := NewSourceHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/v1/sources", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/replyforge/replyforge/internal/api/handlers"
	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/rag"
	"github.com/replyforge/replyforge/internal/service"
)

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type MockAnswerService struct {
	mock.Mock
}

func (m *MockAnswerService) AnswerQuery(ctx context.Context, tenantID, conversationID, userMessage string) (*service.AnswerOutput, error) {
	args := m.Called(ctx, tenantID, conversationID, userMessage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnswerOutput), args.Error(1)
}

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

type MockConversationReader struct {
	mock.Mock
}

func (m *MockConversationReader) History(ctx context.Context, tenantID, conversationID string) ([]*domain.Message, error) {
	args := m.Called(ctx, tenantID, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockConversationReader) ListConversations(ctx context.Context, input service.ListConversationsInput) (*service.ListConversationsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListConversationsOutput), args.Error(1)
}

func (m *MockConversationReader) ListOpenEscalations(ctx context.Context, tenantID string) ([]*domain.Escalation, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Escalation), args.Error(1)
}

func (m *MockConversationReader) ResolveEscalation(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

type MockAnalyticsReader struct {
	mock.Mock
}

func (m *MockAnalyticsReader) GetStats(ctx context.Context, tenantID string, since time.Time) (*service.AnswerStats, error) {
	args := m.Called(ctx, tenantID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnswerStats), args.Error(1)
}

func (m *MockAnalyticsReader) ListAnswers(ctx context.Context, input service.ListAnswersInput) (*service.ListAnswersOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListAnswersOutput), args.Error(1)
}

type MockTenantService struct {
	mock.Mock
}

func (m *MockTenantService) CreateTenant(ctx context.Context, name string) (*domain.Tenant, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantService) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

func (m *MockTenantService) UpdateTenantSettings(ctx context.Context, id string, settings domain.TenantSettings) error {
	args := m.Called(ctx, id, settings)
	return args.Error(0)
}

func (m *MockTenantService) CreateAPIKey(ctx context.Context, tenantID, name string) (string, error) {
	args := m.Called(ctx, tenantID, name)
	return args.String(0), args.Error(1)
}

func (m *MockTenantService) ListAPIKeys(ctx context.Context, tenantID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *MockTenantService) RevokeAPIKey(ctx context.Context, keyID string) error {
	args := m.Called(ctx, keyID)
	return args.Error(0)
}

type routerMocks struct {
	validator     *MockAuthValidator
	answers       *MockAnswerService
	sources       *MockSourceService
	conversations *MockConversationReader
	analytics     *MockAnalyticsReader
	tenants       *MockTenantService
}

func newTestRouter() (http.Handler, *routerMocks) {
	mocks := &routerMocks{
		validator:     new(MockAuthValidator),
		answers:       new(MockAnswerService),
		sources:       new(MockSourceService),
		conversations: new(MockConversationReader),
		analytics:     new(MockAnalyticsReader),
		tenants:       new(MockTenantService),
	}

	router := NewRouter(RouterConfig{
		AuthValidator:       mocks.validator,
		ChatHandler:         handlers.NewChatHandler(mocks.answers),
		SourceHandler:       handlers.NewSourceHandler(mocks.sources),
		ConversationHandler: handlers.NewConversationHandler(mocks.conversations),
		AnalyticsHandler:    handlers.NewAnalyticsHandler(mocks.analytics),
		TenantHandler:       handlers.NewTenantHandler(mocks.tenants),
	})

	return router, mocks
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestRouter_AuthenticatedRoutes_RequireAuth(t *testing.T) {
	router, _ := newTestRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/v1/chat"},
		{http.MethodGet, "/v1/sources"},
		{http.MethodGet, "/v1/conversations"},
		{http.MethodGet, "/v1/escalations"},
		{http.MethodGet, "/v1/analytics/stats"},
		{http.MethodGet, "/v1/tenant"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_Chat_WithValidAuth(t *testing.T) {
	router, mocks := newTestRouter()

	mocks.validator.On("ValidateAPIKey", mock.Anything, "rfk_validtoken").Return("tenant-1", nil)
	mocks.answers.On("AnswerQuery", mock.Anything, "tenant-1", "", "hello").Return(&service.AnswerOutput{
		ConversationID: "conv-1",
		ResponseText:   "Hi there.",
		Intent:         domain.IntentKnowledge,
		State:          domain.AnswerStateDelivered,
		CitedSources:   []rag.Candidate{},
	}, nil)

	body, _ := json.Marshal(map[string]string{"message": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer rfk_validtoken")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hi there.")
	mocks.validator.AssertExpectations(t)
	mocks.answers.AssertExpectations(t)
}

func TestRouter_SourceRoutes_TenantScoped(t *testing.T) {
	router, mocks := newTestRouter()

	mocks.validator.On("ValidateAPIKey", mock.Anything, "rfk_validtoken").Return("tenant-1", nil)
	mocks.sources.On("ListSources", mock.Anything, mock.MatchedBy(func(input service.ListSourcesInput) bool {
		return input.TenantID == "tenant-1"
	})).Return(&service.ListSourcesOutput{Items: []*domain.Source{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/sources", nil)
	req.Header.Set("Authorization", "Bearer rfk_validtoken")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mocks.sources.AssertExpectations(t)
}

func TestRouter_AdminRoutes_NoAuthRequired(t *testing.T) {
	router, mocks := newTestRouter()

	mocks.tenants.On("CreateTenant", mock.Anything, "Acme Support").Return(&domain.Tenant{
		ID:        "tenant-1",
		Name:      "Acme Support",
		Settings:  domain.DefaultTenantSettings(),
		CreatedAt: time.Now().UTC(),
	}, nil)

	body, _ := json.Marshal(map[string]string{"name": "Acme Support"})
	req := httptest.NewRequest(http.MethodPost, "/tenants", bytes.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mocks.tenants.AssertExpectations(t)
}

func TestRouter_InvalidAPIKey(t *testing.T) {
	router, mocks := newTestRouter()

	mocks.validator.On("ValidateAPIKey", mock.Anything, "rfk_badtoken").Return("", domain.ErrInvalidAPIKey)

	req := httptest.NewRequest(http.MethodGet, "/v1/sources", nil)
	req.Header.Set("Authorization", "Bearer rfk_badtoken")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mocks.sources.AssertNotCalled(t, "ListSources")
}

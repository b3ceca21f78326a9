//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/replyforge/replyforge/internal/api/handlers"
	"github.com/replyforge/replyforge/internal/crawler"
	"github.com/replyforge/replyforge/internal/jobs"
	"github.com/replyforge/replyforge/internal/llm"
	"github.com/replyforge/replyforge/internal/rag"
	"github.com/replyforge/replyforge/internal/repository"
	"github.com/replyforge/replyforge/internal/server"
	"github.com/replyforge/replyforge/internal/service"
	"github.com/replyforge/replyforge/internal/testutil"
)

// embeddingDim matches the knowledge_chunks column width
const embeddingDim = 1536

// E2ETestEnv holds all resources needed for end-to-end tests. The full
// stack runs against a real pgvector container; only the OpenAI calls
// are replaced by deterministic stubs so tests run offline.
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	TenantID     string
	APIKey       string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts the database container, runs migrations and boots
// the HTTP server with the ingest worker attached.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// Bootstrap creates a tenant and an API key for authenticated requests
func (e *E2ETestEnv) Bootstrap() {
	tenantResp, err := e.Post("/tenants", map[string]string{"name": "E2E Test Tenant"}, "")
	if err != nil {
		e.T.Fatalf("failed to create tenant: %v", err)
	}

	var tenant struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(tenantResp.Data, &tenant); err != nil {
		e.T.Fatalf("failed to parse tenant response: %v", err)
	}
	e.TenantID = tenant.ID

	keyResp, err := e.Post("/apikeys", map[string]string{
		"tenant_id": e.TenantID,
		"name":      "e2e-test-key",
	}, "")
	if err != nil {
		e.T.Fatalf("failed to create API key: %v", err)
	}

	var key struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(keyResp.Data, &key); err != nil {
		e.T.Fatalf("failed to parse key response: %v", err)
	}
	e.APIKey = key.Token
}

// WaitForSourceReady polls a source until the ingest worker has
// finished with it, in either direction.
func (e *E2ETestEnv) WaitForSourceReady(sourceID string, timeout time.Duration) string {
	deadline := time.Now().Add(timeout)
	var lastStatus string
	for time.Now().Before(deadline) {
		resp, err := e.Get("/v1/sources/"+sourceID, e.APIKey)
		if err != nil {
			e.T.Fatalf("failed to poll source %s: %v", sourceID, err)
		}

		var source struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(resp.Data, &source); err != nil {
			e.T.Fatalf("failed to parse source response: %v", err)
		}
		lastStatus = source.Status
		if lastStatus == "ready" || lastStatus == "failed" {
			return lastStatus
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("source %s still %q after %v", sourceID, lastStatus, timeout)
	return lastStatus
}

// UploadDocument sends a multipart document upload and returns the raw response
func (e *E2ETestEnv) UploadDocument(title, filename string, content []byte) (*APIResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(content); err != nil {
		return nil, err
	}
	if err := mw.WriteField("title", title); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/v1/sources/documents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, apiKey string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, apiKey)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, apiKey string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, apiKey)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}, apiKey string) (*APIResponse, error) {
	return e.doRequest("PUT", path, body, apiKey)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, apiKey string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, apiKey)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, apiKey string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (*APIResponse, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// startServer wires the full service stack the way the daemon does,
// with stubbed model calls and in-memory object storage.
func startServer(t *testing.T, pool *pgxpool.Pool, port int) (string, func()) {
	tenantRepo := repository.NewTenantRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	sourceRepo := repository.NewSourceRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	escalationRepo := repository.NewEscalationRepository(pool)
	jobRepo := repository.NewIngestJobRepository(pool)
	answerLogRepo := repository.NewAnswerLogRepository(pool)
	chunkIndexRepo := repository.NewChunkIndexRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	store := newMemObjectStore()
	completer := &stubCompleter{}
	embedder := hashEmbedder{}

	authSvc := service.NewAuthService(tenantRepo, apiKeyRepo, &service.DefaultUUIDGenerator{})
	ingestionSvc := service.NewIngestionService(sourceRepo, jobRepo, chunkIndexRepo, store)
	conversationSvc := service.NewConversationService(convRepo, escalationRepo)
	analyticsSvc := service.NewAnalyticsService(answerLogRepo)

	expander := rag.NewExpander(completer, "stub-chat")
	retriever := rag.NewRetriever(chunkIndexRepo, embedder, expander, rag.DefaultRetrieverConfig())
	pipeline := rag.NewPipeline(retriever, rag.NewScoreReranker(), rag.NewGenerator(completer), 3)
	classifier := service.NewIntentClassifier(completer, "stub-chat")
	answerSvc := service.NewAnswerService(tenantRepo, conversationSvc, pipeline, classifier, answerLogRepo)

	ingestWorker := jobs.NewIngestWorker(
		jobRepo, sourceRepo, store,
		&stubSiteCrawler{},
		embedder, txRunner,
		rag.DefaultChunkConfig(), "stub-embed",
	)
	// Short poll keeps async ingestion assertions fast
	worker := jobs.NewWorker(ingestWorker, 100*time.Millisecond)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	go worker.Start(workerCtx)

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:       authSvc,
		ChatHandler:         handlers.NewChatHandler(answerSvc),
		SourceHandler:       handlers.NewSourceHandler(ingestionSvc),
		ConversationHandler: handlers.NewConversationHandler(conversationSvc),
		AnalyticsHandler:    handlers.NewAnalyticsHandler(analyticsSvc),
		TenantHandler:       handlers.NewTenantHandler(authSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		cancelWorker()
		worker.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// stubAnswerText is what the stub model returns for any generation call
const stubAnswerText = "Based on our documentation, support is available by email at support@example.com and by chat on weekdays."

// stubCompleter scripts the three kinds of model calls the pipeline
// makes. It keys off the system prompt so runs are deterministic.
type stubCompleter struct{}

func (s *stubCompleter) Complete(ctx context.Context, req llm.ChatRequest) (string, error) {
	switch {
	case strings.Contains(req.System, "classify customer support messages"):
		return classifyStub(req.User), nil

	case strings.Contains(req.System, "paraphrases"):
		variants, err := json.Marshal([]string{
			"how do I " + req.User,
			"tell me about " + req.User,
		})
		return string(variants), err

	default:
		return stubAnswerText, nil
	}
}

func classifyStub(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "human"), strings.Contains(msg, "refund"), strings.Contains(msg, "complaint"):
		return "escalation"
	case strings.Contains(msg, "appointment"), strings.Contains(msg, "book a"):
		return "scheduling"
	case strings.Contains(msg, "price"), strings.Contains(msg, "pricing"):
		return "faq"
	default:
		return "knowledge"
	}
}

// hashEmbedder maps text onto a bag-of-words vector so that texts
// sharing words land near each other under cosine distance. Real
// enough for retrieval assertions, no network required.
type hashEmbedder struct{}

func (hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedText(t)
	}
	return out, nil
}

func embedText(text string) []float32 {
	vec := make([]float32, embeddingDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?:;\"'")
		if word == "" {
			continue
		}
		h := sha256.Sum256([]byte(word))
		idx := int(binary.BigEndian.Uint32(h[:4]) % uint32(embeddingDim))
		vec[idx]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// memObjectStore keeps uploaded documents in memory
type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string][]byte)}
}

func (s *memObjectStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(body))
	copy(buf, body)
	s.objects[key] = buf
	return nil
}

func (s *memObjectStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return body, nil
}

func (s *memObjectStore) DeleteObject(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memObjectStore) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("object %s not found", key)
	}
	return "memory://" + key, nil
}

// stubSiteCrawler returns a fixed two-page site for any URL
type stubSiteCrawler struct{}

func (c *stubSiteCrawler) Crawl(ctx context.Context, startURL string) ([]crawler.Page, error) {
	return []crawler.Page{
		{
			URL:   startURL,
			Title: "Shipping Policy",
			Text:  "Orders ship within two business days. Express shipping delivers the next day for orders placed before noon.",
		},
		{
			URL:   startURL + "/returns",
			Title: "Returns",
			Text:  "Items can be returned within thirty days of delivery for a full refund. Return labels are free.",
		},
	}, nil
}

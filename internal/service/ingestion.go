package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/pagination"
	"github.com/replyforge/replyforge/internal/rag"
	"github.com/replyforge/replyforge/internal/telemetry"
)

// ObjectStore persists uploaded source documents
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// IngestionService manages knowledge sources and their async indexing jobs
type IngestionService struct {
	sourceRepo SourceStore
	jobRepo    IngestJobStore
	chunkIndex rag.VectorIndex
	store      ObjectStore
	uuidGen    UUIDGenerator
}

func NewIngestionService(
	sourceRepo SourceStore,
	jobRepo IngestJobStore,
	chunkIndex rag.VectorIndex,
	store ObjectStore,
) *IngestionService {
	return &IngestionService{
		sourceRepo: sourceRepo,
		jobRepo:    jobRepo,
		chunkIndex: chunkIndex,
		store:      store,
		uuidGen:    &DefaultUUIDGenerator{},
	}
}

func NewIngestionServiceWithUUIDGen(
	sourceRepo SourceStore,
	jobRepo IngestJobStore,
	chunkIndex rag.VectorIndex,
	store ObjectStore,
	uuidGen UUIDGenerator,
) *IngestionService {
	return &IngestionService{
		sourceRepo: sourceRepo,
		jobRepo:    jobRepo,
		chunkIndex: chunkIndex,
		store:      store,
		uuidGen:    uuidGen,
	}
}

// CreateDocumentInput represents an uploaded document source
type CreateDocumentInput struct {
	TenantID    string
	Title       string
	Filename    string
	ContentType string
	Data        []byte
}

// CreateDocument uploads the file to object storage, records the source
// and queues an ingest job to chunk and embed it.
func (s *IngestionService) CreateDocument(ctx context.Context, input CreateDocumentInput) (*domain.Source, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.CreateDocument", telemetry.SpanAttributes{
		TenantID:  input.TenantID,
		Operation: "create",
	})
	defer span.End()

	if input.TenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	if input.Filename == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}
	if len(input.Data) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "document body is empty")
	}

	title := input.Title
	if title == "" {
		title = input.Filename
	}

	now := time.Now().UTC()
	sourceID := s.uuidGen.NewString()
	storageKey := fmt.Sprintf("sources/%s/%s/%s", input.TenantID, sourceID, input.Filename)

	source := domain.NewSource(sourceID, input.TenantID, domain.SourceTypeDocument, title, now)
	source.StorageKey = storageKey

	if err := domain.ValidateSource(source); err != nil {
		return nil, err
	}

	if err := s.store.PutObject(ctx, storageKey, input.Data, input.ContentType); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store document", err)
	}

	if err := s.sourceRepo.Create(ctx, source); err != nil {
		return nil, err
	}

	if err := s.queueIngestJob(ctx, source); err != nil {
		return nil, err
	}

	return source, nil
}

// CreateWebsite records a website source and queues a crawl-and-index job
func (s *IngestionService) CreateWebsite(ctx context.Context, tenantID, title, url string) (*domain.Source, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.CreateWebsite", telemetry.SpanAttributes{
		TenantID:  tenantID,
		Operation: "create",
	})
	defer span.End()

	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "website URL must start with http:// or https://")
	}

	if title == "" {
		title = url
	}

	now := time.Now().UTC()
	source := domain.NewSource(s.uuidGen.NewString(), tenantID, domain.SourceTypeWebsite, title, now)
	source.URL = url

	if err := domain.ValidateSource(source); err != nil {
		return nil, err
	}

	if err := s.sourceRepo.Create(ctx, source); err != nil {
		return nil, err
	}

	if err := s.queueIngestJob(ctx, source); err != nil {
		return nil, err
	}

	return source, nil
}

// CreateFAQ records a question-answer pair and queues it for indexing
func (s *IngestionService) CreateFAQ(ctx context.Context, tenantID, question, answer string) (*domain.Source, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.CreateFAQ", telemetry.SpanAttributes{
		TenantID:  tenantID,
		Operation: "create",
	})
	defer span.End()

	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	if question == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "FAQ question is required")
	}
	if answer == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "FAQ answer is required")
	}

	now := time.Now().UTC()
	source := domain.NewSource(s.uuidGen.NewString(), tenantID, domain.SourceTypeFAQ, question, now)
	source.Answer = answer

	if err := domain.ValidateSource(source); err != nil {
		return nil, err
	}

	if err := s.sourceRepo.Create(ctx, source); err != nil {
		return nil, err
	}

	if err := s.queueIngestJob(ctx, source); err != nil {
		return nil, err
	}

	return source, nil
}

// GetSource retrieves a single source scoped to the tenant
func (s *IngestionService) GetSource(ctx context.Context, tenantID, id string) (*domain.Source, error) {
	return s.sourceRepo.GetByID(ctx, tenantID, id)
}

type ListSourcesInput struct {
	TenantID string
	Types    []domain.SourceType
	Cursor   string
	Limit    int
}

type ListSourcesOutput struct {
	Items   []*domain.Source
	Cursor  string
	HasMore bool
}

func (s *IngestionService) ListSources(ctx context.Context, input ListSourcesInput) (*ListSourcesOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.ListSources", telemetry.SpanAttributes{
		TenantID:  input.TenantID,
		Operation: "list",
	})
	defer span.End()

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.sourceRepo.ListByTenant(ctx, input.TenantID, input.Types, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListSourcesOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// SourceDownloadURL returns a short-lived download link for the
// original uploaded file. Only document sources carry a stored object.
func (s *IngestionService) SourceDownloadURL(ctx context.Context, tenantID, id string) (string, error) {
	source, err := s.sourceRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return "", err
	}

	if source.StorageKey == "" {
		return "", domain.NewDomainError(domain.ErrCodeInvalidOperation, "source has no stored document")
	}

	return s.store.GenerateDownloadURL(ctx, source.StorageKey)
}

// DeleteSource removes the source row, its indexed chunks and the stored file
func (s *IngestionService) DeleteSource(ctx context.Context, tenantID, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.DeleteSource", telemetry.SpanAttributes{
		TenantID:  tenantID,
		SourceID:  id,
		Operation: "delete",
	})
	defer span.End()

	source, err := s.sourceRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.chunkIndex.Delete(ctx, tenantID, rag.DeleteSelector{SourceID: id}); err != nil {
		return err
	}

	if source.StorageKey != "" {
		// The source row is already gone from the user's perspective,
		// a leaked object is preferable to a failed delete.
		if err := s.store.DeleteObject(ctx, source.StorageKey); err != nil {
			log.Printf("ingestion: failed to delete object %s: %v", source.StorageKey, err)
		}
	}

	return s.sourceRepo.Delete(ctx, tenantID, id)
}

// ReingestSource resets the source to pending and queues a fresh ingest job
func (s *IngestionService) ReingestSource(ctx context.Context, tenantID, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.ReingestSource", telemetry.SpanAttributes{
		TenantID:  tenantID,
		SourceID:  id,
		Operation: "update",
	})
	defer span.End()

	source, err := s.sourceRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.sourceRepo.UpdateStatus(ctx, tenantID, id, domain.SourceStatusPending, ""); err != nil {
		return err
	}

	return s.queueIngestJob(ctx, source)
}

func (s *IngestionService) queueIngestJob(ctx context.Context, source *domain.Source) error {
	job := &domain.IngestJob{
		ID:        s.uuidGen.NewString(),
		TenantID:  source.TenantID,
		SourceID:  source.ID,
		Status:    domain.IngestJobStatusPending,
		Retries:   0,
		Error:     "",
		CreatedAt: time.Now().UTC(),
	}

	return s.jobRepo.Create(ctx, job)
}

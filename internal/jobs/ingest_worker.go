package jobs

import (
	"context"
	"fmt"
	"log"
	"path"

	"github.com/replyforge/replyforge/internal/crawler"
	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/ingest"
	"github.com/replyforge/replyforge/internal/rag"
	"github.com/replyforge/replyforge/internal/service"
)

const (
	// MaxRetries is the maximum number of attempts for a failed ingest job
	MaxRetries = 3

	// claimBatchSize bounds how many jobs one poll picks up
	claimBatchSize = 5
)

// SiteCrawler fetches the pages of a website source
type SiteCrawler interface {
	Crawl(ctx context.Context, startURL string) ([]crawler.Page, error)
}

// IngestWorker processes ingest jobs: it extracts the text of a source,
// chunks and embeds it and replaces the source's chunks in the vector
// index. Index replacement and the source status flip share one
// transaction so a crash never leaves a half-indexed source marked ready.
type IngestWorker struct {
	jobRepo        service.IngestJobStore
	sourceRepo     service.SourceStore
	store          service.ObjectStore
	siteCrawler    SiteCrawler
	embedder       rag.Embedder
	txManager      service.TxManager
	chunkCfg       rag.ChunkConfig
	uuidGen        service.UUIDGenerator
	embeddingModel string
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(
	jobRepo service.IngestJobStore,
	sourceRepo service.SourceStore,
	store service.ObjectStore,
	siteCrawler SiteCrawler,
	embedder rag.Embedder,
	txManager service.TxManager,
	chunkCfg rag.ChunkConfig,
	embeddingModel string,
) *IngestWorker {
	return &IngestWorker{
		jobRepo:        jobRepo,
		sourceRepo:     sourceRepo,
		store:          store,
		siteCrawler:    siteCrawler,
		embedder:       embedder,
		txManager:      txManager,
		chunkCfg:       chunkCfg,
		uuidGen:        &service.DefaultUUIDGenerator{},
		embeddingModel: embeddingModel,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.jobRepo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending ingest jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IngestWorker) processJob(ctx context.Context, job *domain.IngestJob) error {
	source, err := w.sourceRepo.GetByID(ctx, job.TenantID, job.SourceID)
	if err != nil {
		// The source was deleted after the job was queued, the job can
		// never succeed.
		log.Printf("Job %s references missing source %s, marking failed", job.ID, job.SourceID)
		return w.jobRepo.UpdateStatus(ctx, job.ID, domain.IngestJobStatusFailed, "source no longer exists")
	}

	if err := w.sourceRepo.UpdateStatus(ctx, job.TenantID, source.ID, domain.SourceStatusProcessing, ""); err != nil {
		return fmt.Errorf("failed to mark source %s processing: %w", source.ID, err)
	}

	text, err := w.extractText(ctx, source)
	if err != nil {
		return w.handleJobFailure(ctx, job, source, err)
	}

	err = w.txManager.WithTx(ctx, func(repos service.TxRepositories) error {
		ingestor := rag.NewIngestor(repos.ChunkIndex(), w.embedder, w.chunkCfg, w.uuidGen.NewString, w.embeddingModel)
		count, err := ingestor.IngestSource(ctx, source, text)
		if err != nil {
			return err
		}

		if err := repos.Sources().UpdateStatus(ctx, job.TenantID, source.ID, domain.SourceStatusReady, ""); err != nil {
			return err
		}
		if err := repos.IngestJobs().UpdateStatus(ctx, job.ID, domain.IngestJobStatusCompleted, ""); err != nil {
			return err
		}

		log.Printf("Job %s completed, %d chunks indexed for source %s", job.ID, count, source.ID)
		return nil
	})
	if err != nil {
		return w.handleJobFailure(ctx, job, source, err)
	}

	return nil
}

func (w *IngestWorker) extractText(ctx context.Context, source *domain.Source) (string, error) {
	switch source.Type {
	case domain.SourceTypeDocument:
		data, err := w.store.GetObject(ctx, source.StorageKey)
		if err != nil {
			return "", fmt.Errorf("failed to fetch document %s: %w", source.StorageKey, err)
		}
		return ingest.ExtractText(path.Base(source.StorageKey), data)

	case domain.SourceTypeWebsite:
		pages, err := w.siteCrawler.Crawl(ctx, source.URL)
		if err != nil {
			return "", fmt.Errorf("failed to crawl %s: %w", source.URL, err)
		}
		return crawler.CombineText(pages), nil

	case domain.SourceTypeFAQ:
		// One FAQ entry is indexed as a single Q and A unit
		return fmt.Sprintf("Q: %s\nA: %s", source.Title, source.Answer), nil

	default:
		return "", fmt.Errorf("unknown source type %q", source.Type)
	}
}

// handleJobFailure requeues the job or, once the retry budget is spent,
// marks both job and source failed.
func (w *IngestWorker) handleJobFailure(ctx context.Context, job *domain.IngestJob, source *domain.Source, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if err := w.jobRepo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.jobRepo.UpdateStatus(ctx, job.ID, domain.IngestJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		if err := w.sourceRepo.UpdateStatus(ctx, job.TenantID, source.ID, domain.SourceStatusFailed, jobErr.Error()); err != nil {
			return fmt.Errorf("failed to mark source failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.jobRepo.Requeue(ctx, job.ID, errMsg); err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}

	return nil
}

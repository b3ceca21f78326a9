package rag

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/replyforge/replyforge/internal/domain"
)

// Request carries everything the pipeline needs for one inbound message.
// Conversation history is owned by the caller and passed in explicitly
// so the pipeline itself stays stateless.
type Request struct {
	TenantID       string
	ConversationID string
	UserMessage    string
	History        []domain.Message
	SystemPrompt   string
	Settings       GenerationSettings
	Filter         SearchFilter
}

// Result is the outcome of one pipeline run. State is always terminal:
// Delivered when an answer was generated, Failed when any step
// exhausted its retries, in which case Text holds the fallback message.
type Result struct {
	Text           string
	CitedSources   []Candidate
	State          domain.AnswerState
	CandidateCount int
}

// Pipeline wires the retrieval stages together. Errors never escape to
// the caller as anything other than the fallback text in the result.
type Pipeline struct {
	retriever *Retriever
	reranker  Reranker
	generator *Generator
	topK      int
}

// NewPipeline creates an answer pipeline
func NewPipeline(retriever *Retriever, reranker Reranker, generator *Generator, topK int) *Pipeline {
	if topK <= 0 {
		topK = 3
	}
	return &Pipeline{
		retriever: retriever,
		reranker:  reranker,
		generator: generator,
		topK:      topK,
	}
}

// Answer runs one inbound message through
// expand, retrieve, rerank, format and generate.
func (p *Pipeline) Answer(ctx context.Context, req *Request) *Result {
	state := domain.AnswerStateReceived
	advance := func(to domain.AnswerState) {
		if !domain.CanTransition(state, to) {
			log.Printf("illegal answer state transition %s -> %s tenant=%s", state, to, req.TenantID)
		}
		state = to
	}

	fail := func(step string, err error) *Result {
		advance(domain.AnswerStateFailed)
		log.Printf("answer pipeline failed at %s tenant=%s conversation=%s: %v", step, req.TenantID, req.ConversationID, err)
		return &Result{
			Text:  FallbackMessage,
			State: domain.AnswerStateFailed,
		}
	}

	if req.UserMessage == "" {
		return fail("validation", domain.ErrEmptyUserMessage)
	}

	query := &Query{
		TenantID: req.TenantID,
		RawText:  req.UserMessage,
	}

	// Expansion failures are absorbed by the expander itself, so this
	// step cannot fail. Retrieval fails only when every variant fails.
	advance(domain.AnswerStateExpanding)
	advance(domain.AnswerStateRetrieving)
	candidates, err := p.retriever.Retrieve(ctx, query, req.Filter)
	if err != nil {
		return fail("retrieval", err)
	}

	advance(domain.AnswerStateReranking)
	ranked := p.reranker.Rerank(ctx, req.UserMessage, candidates, p.topK)

	advance(domain.AnswerStateFormatting)
	formatted := FormatContext(ranked)

	advance(domain.AnswerStateGenerating)
	answer, err := p.generator.Generate(ctx, req.SystemPrompt, formatted, req.History, req.UserMessage, req.Settings)
	if err != nil {
		return fail("generation", err)
	}

	advance(domain.AnswerStateDelivered)
	return &Result{
		Text:           answer,
		CitedSources:   ranked,
		State:          domain.AnswerStateDelivered,
		CandidateCount: len(ranked),
	}
}

// Ingest chunks raw text, embeds the chunks and upserts them into the
// vector index, replacing whatever the source previously had indexed.
type Ingestor struct {
	index    VectorIndex
	embedder Embedder
	chunkCfg ChunkConfig
	uuid     func() string
	model    string
}

// NewIngestor creates an ingestor writing to the given index
func NewIngestor(index VectorIndex, embedder Embedder, chunkCfg ChunkConfig, uuid func() string, embeddingModel string) *Ingestor {
	return &Ingestor{
		index:    index,
		embedder: embedder,
		chunkCfg: chunkCfg,
		uuid:     uuid,
		model:    embeddingModel,
	}
}

// IngestSource replaces the indexed chunks for one source with chunks
// derived from rawText. Returns the number of chunks written.
func (ing *Ingestor) IngestSource(ctx context.Context, source *domain.Source, rawText string) (int, error) {
	texts := ChunkText(rawText, ing.chunkCfg)
	if len(texts) == 0 {
		return 0, nil
	}

	vectors, err := ing.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks for source %s: %w", source.ID, err)
	}

	if err := ing.index.Delete(ctx, source.TenantID, DeleteSelector{SourceID: source.ID}); err != nil {
		return 0, fmt.Errorf("clear previous chunks for source %s: %w", source.ID, err)
	}

	now := time.Now().UTC()
	for i, text := range texts {
		chunk := domain.NewKnowledgeChunk(ing.uuid(), source.TenantID, source.ID, source.Type, text, i, ing.model, now)
		chunk.SourceTitle = source.Title
		if err := ing.index.Upsert(ctx, chunk, vectors[i]); err != nil {
			return i, fmt.Errorf("upsert chunk %d for source %s: %w", i, source.ID, err)
		}
	}
	return len(texts), nil
}

package rag

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/replyforge/replyforge/internal/domain"
)

// RetrieverConfig controls multi-query retrieval fan-out.
type RetrieverConfig struct {
	VariantCount   int
	PerQueryTopK   int
	MergeCeiling   int
	VariantTimeout time.Duration
}

// DefaultRetrieverConfig provides sane retrieval defaults.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		VariantCount:   3,
		PerQueryTopK:   5,
		MergeCeiling:   12,
		VariantTimeout: 5 * time.Second,
	}
}

// Retriever runs multi-query retrieval: expand the query, embed each
// variant, search the index concurrently, then merge and deduplicate
// the results.
type Retriever struct {
	index    VectorIndex
	embedder Embedder
	expander *Expander
	cfg      RetrieverConfig
}

// NewRetriever creates a multi-query retriever
func NewRetriever(index VectorIndex, embedder Embedder, expander *Expander, cfg RetrieverConfig) *Retriever {
	if cfg.PerQueryTopK <= 0 {
		cfg = DefaultRetrieverConfig()
	}
	return &Retriever{
		index:    index,
		embedder: embedder,
		expander: expander,
		cfg:      cfg,
	}
}

// Retrieve returns the merged, deduplicated candidate set for query,
// sorted by descending score and truncated to the merge ceiling.
// Individual variant failures contribute zero candidates; Retrieve
// fails only when every variant fails.
func (r *Retriever) Retrieve(ctx context.Context, query *Query, filter SearchFilter) ([]Candidate, error) {
	variants := r.buildVariants(ctx, query)

	results := make([][]Candidate, len(variants))
	errs := make([]error, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		g.Go(func() error {
			vctx, cancel := context.WithTimeout(gctx, r.cfg.VariantTimeout)
			defer cancel()

			candidates, err := r.searchVariant(vctx, query.TenantID, variant, filter)
			if err != nil {
				log.Printf("variant search failed tenant=%s variant=%q: %v", query.TenantID, variant, err)
				errs[i] = err
				return nil
			}
			results[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failures := 0
	merged := make(map[string]Candidate)
	for i := range variants {
		if errs[i] != nil {
			failures++
			continue
		}
		mergeCandidates(merged, results[i])
	}
	if failures == len(variants) {
		return nil, fmt.Errorf("all %d retrieval variants failed: %w", len(variants), errs[0])
	}

	for _, c := range merged {
		if c.TenantID != query.TenantID {
			log.Printf("ALERT tenant isolation breach: chunk %s belongs to tenant %s, requested %s", c.ChunkID, c.TenantID, query.TenantID)
			return nil, domain.ErrTenantIsolation
		}
	}

	out := sortCandidatesByScore(merged)
	if len(out) > r.cfg.MergeCeiling {
		out = out[:r.cfg.MergeCeiling]
	}
	return out, nil
}

// buildVariants assembles the variant set, original query first
func (r *Retriever) buildVariants(ctx context.Context, query *Query) []string {
	variants := []string{query.RawText}
	seen := map[string]struct{}{
		strings.ToLower(strings.TrimSpace(query.RawText)): {},
	}

	expanded := r.expander.Expand(ctx, query.RawText, r.cfg.VariantCount)
	for _, v := range expanded {
		key := strings.ToLower(strings.TrimSpace(v))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		variants = append(variants, v)
	}

	query.ExpandedVariants = variants[1:]
	return variants
}

// searchVariant embeds one variant and searches the index
func (r *Retriever) searchVariant(ctx context.Context, tenantID, variant string, filter SearchFilter) ([]Candidate, error) {
	vectors, err := r.embedder.Embed(ctx, []string{variant})
	if err != nil {
		return nil, fmt.Errorf("embed variant: %w", err)
	}
	candidates, err := r.index.Search(ctx, tenantID, vectors[0], filter, r.cfg.PerQueryTopK)
	if err != nil {
		return nil, fmt.Errorf("search variant: %w", err)
	}
	return candidates, nil
}

// mergeCandidates folds results into dst keyed by chunk ID, keeping the
// maximum score seen across variants. Variants are restatements of one
// information need, so scores are not summed.
func mergeCandidates(dst map[string]Candidate, candidates []Candidate) {
	for _, c := range candidates {
		existing, ok := dst[c.ChunkID]
		if !ok || c.Score > existing.Score {
			dst[c.ChunkID] = c
		}
	}
}

func sortCandidatesByScore(merged map[string]Candidate) []Candidate {
	out := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

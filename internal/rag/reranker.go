package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/replyforge/replyforge/internal/llm"
)

// Reranker orders and selects the final top-K candidates. Strategy is
// chosen at construction time, not per request.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate, topK int) []Candidate
}

// ScoreReranker sorts by the similarity score already attached to each
// candidate. Deterministic, zero extra latency.
type ScoreReranker struct{}

// NewScoreReranker creates a score-based reranker
func NewScoreReranker() *ScoreReranker {
	return &ScoreReranker{}
}

// Rerank sorts candidates by descending score and truncates to topK
func (r *ScoreReranker) Rerank(_ context.Context, _ string, candidates []Candidate, topK int) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

const rerankerSystemPrompt = "You rank support article excerpts by " +
	"relevance to a customer question. Respond with a JSON array of the " +
	"zero-based indices of the most relevant excerpts, best first, and " +
	"nothing else."

// rerankSnippetChars bounds how much of each candidate is shown to the model
const rerankSnippetChars = 480

// ModelReranker asks a language model to pick the best candidates.
// Reranking is an optimization, not a correctness step: any provider
// failure or invalid index list falls back to score-based ordering.
type ModelReranker struct {
	completer Completer
	model     string
	fallback  *ScoreReranker
}

// NewModelReranker creates a model-based reranker
func NewModelReranker(completer Completer, model string) *ModelReranker {
	return &ModelReranker{
		completer: completer,
		model:     model,
		fallback:  NewScoreReranker(),
	}
}

// Rerank asks the model for an ordered index selection of the best topK
func (r *ModelReranker) Rerank(ctx context.Context, query string, candidates []Candidate, topK int) []Candidate {
	if len(candidates) <= 1 {
		return r.fallback.Rerank(ctx, query, candidates, topK)
	}

	raw, err := r.completer.Complete(ctx, llm.ChatRequest{
		Model:       r.model,
		System:      rerankerSystemPrompt,
		User:        buildRerankPrompt(query, candidates, topK),
		Temperature: 0,
		MaxTokens:   100,
	})
	if err != nil {
		log.Printf("model rerank failed, falling back to score order: %v", err)
		return r.fallback.Rerank(ctx, query, candidates, topK)
	}

	indices, ok := parseRerankIndices(raw, len(candidates), topK)
	if !ok {
		log.Printf("model rerank returned invalid indices, falling back to score order")
		return r.fallback.Rerank(ctx, query, candidates, topK)
	}

	out := make([]Candidate, 0, len(indices))
	for _, idx := range indices {
		out = append(out, candidates[idx])
	}
	return out
}

func buildRerankPrompt(query string, candidates []Candidate, topK int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nExcerpts:\n", query)
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s\n", i, truncateRunes(c.Text, rerankSnippetChars))
	}
	fmt.Fprintf(&b, "\nReturn the indices of the %d most relevant excerpts.", topK)
	return b.String()
}

// parseRerankIndices validates the model output as a list of in-range,
// unique indices and truncates it to topK
func parseRerankIndices(raw string, candidateCount, topK int) ([]int, bool) {
	var indices []int
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &indices); err != nil {
		return nil, false
	}
	if len(indices) == 0 {
		return nil, false
	}

	seen := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= candidateCount {
			return nil, false
		}
		if _, dup := seen[idx]; dup {
			return nil, false
		}
		seen[idx] = struct{}{}
	}

	if topK > 0 && len(indices) > topK {
		indices = indices[:topK]
	}
	return indices, true
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

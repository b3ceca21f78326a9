package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/llm"
)

const testDimensions = 8

// fakeCompleter returns canned responses in order, or a fixed error
type fakeCompleter struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []llm.ChatRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", domain.ErrMalformedResponse
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func (f *fakeCompleter) lastRequest() llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// fakeEmbedder returns the same unit vector for every text, so every
// indexed chunk scores equally and positively against every query
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, testDimensions)
		for j := range v {
			v[j] = 0.5
		}
		out[i] = v
	}
	return out, nil
}

type indexEntry struct {
	chunk  domain.KnowledgeChunk
	vector []float32
}

// memoryIndex is an in-memory VectorIndex for tests. Scores are dot
// products of the stored and query vectors.
type memoryIndex struct {
	mu        sync.Mutex
	entries   map[string]indexEntry
	searchErr error
	upsertErr error
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{entries: make(map[string]indexEntry)}
}

func (m *memoryIndex) Upsert(_ context.Context, chunk *domain.KnowledgeChunk, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.entries[chunk.ID] = indexEntry{chunk: *chunk, vector: vector}
	return nil
}

func (m *memoryIndex) Search(_ context.Context, tenantID string, queryVector []float32, filter SearchFilter, topK int) ([]Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}

	var out []Candidate
	for _, e := range m.entries {
		if e.chunk.TenantID != tenantID {
			continue
		}
		if !matchesFilter(e.chunk.SourceType, filter) {
			continue
		}
		var score float64
		for i := range queryVector {
			score += float64(queryVector[i]) * float64(e.vector[i])
		}
		out = append(out, Candidate{
			ChunkID:     e.chunk.ID,
			TenantID:    e.chunk.TenantID,
			SourceID:    e.chunk.SourceID,
			SourceType:  e.chunk.SourceType,
			SourceTitle: e.chunk.SourceTitle,
			Text:        e.chunk.Text,
			Score:       score,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (m *memoryIndex) Delete(_ context.Context, tenantID string, selector DeleteSelector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if e.chunk.TenantID != tenantID {
			continue
		}
		if selector.SourceID != "" && e.chunk.SourceID != selector.SourceID {
			continue
		}
		if len(selector.SourceTypes) > 0 && !matchesFilter(e.chunk.SourceType, SearchFilter{SourceTypes: selector.SourceTypes}) {
			continue
		}
		delete(m.entries, id)
	}
	return nil
}

func matchesFilter(st domain.SourceType, filter SearchFilter) bool {
	if len(filter.SourceTypes) == 0 {
		return true
	}
	for _, t := range filter.SourceTypes {
		if t == st {
			return true
		}
	}
	return false
}

// failOpenExpander is an expander whose completer always errors, so
// retrieval proceeds with the original query alone
func failOpenExpander() *Expander {
	return NewExpander(&fakeCompleter{err: domain.ErrGenerationUpstream}, "")
}

func testCounter() func() string {
	var n int
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("chunk-%d", n)
	}
}

package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/replyforge/replyforge/internal/llm"
)

const expanderSystemPrompt = "You rewrite customer support questions. " +
	"Given a question, produce semantically equivalent paraphrases that " +
	"a different customer might have typed. Respond with a JSON array " +
	"of strings and nothing else."

// Expander produces paraphrased variants of a user query using a
// language model. It never fails: any provider error or unparseable
// output degrades to an empty variant list so retrieval proceeds with
// the original query alone.
type Expander struct {
	completer Completer
	model     string
}

// NewExpander creates a query expander backed by the given completer
func NewExpander(completer Completer, model string) *Expander {
	return &Expander{
		completer: completer,
		model:     model,
	}
}

// Expand returns up to n paraphrases of query. The original query is
// not included in the output; callers prepend it themselves.
func (e *Expander) Expand(ctx context.Context, query string, n int) []string {
	if n <= 0 || strings.TrimSpace(query) == "" {
		return nil
	}

	raw, err := e.completer.Complete(ctx, llm.ChatRequest{
		Model:       e.model,
		System:      expanderSystemPrompt,
		User:        fmt.Sprintf("Produce %d paraphrases of this question: %s", n, query),
		Temperature: 0.7,
		MaxTokens:   300,
	})
	if err != nil {
		log.Printf("query expansion failed, using original query only: %v", err)
		return nil
	}

	variants := parseVariants(raw, query, n)
	if variants == nil {
		log.Printf("query expansion returned unparseable output, using original query only")
	}
	return variants
}

// parseVariants extracts a list of paraphrases from model output.
// Returns nil when the output is not a JSON array of strings.
func parseVariants(raw, original string, n int) []string {
	var parsed []string
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil
	}

	seen := map[string]struct{}{
		strings.ToLower(strings.TrimSpace(original)): {},
	}
	variants := make([]string, 0, n)
	for _, v := range parsed {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		variants = append(variants, v)
		if len(variants) >= n {
			break
		}
	}
	return variants
}

// stripCodeFence removes a surrounding markdown code fence if present
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

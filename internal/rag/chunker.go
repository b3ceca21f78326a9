package rag

import (
	"fmt"
	"log"
	"strings"
)

// ChunkConfig controls how source text is split for indexing.
type ChunkConfig struct {
	Size     int
	Overlap  int
	MinChars int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:     1024,
		Overlap:  128,
		MinChars: 10,
	}
}

// Validate checks the chunking parameters
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap must satisfy 0 <= overlap < size, got %d", c.Overlap)
	}
	return nil
}

// ChunkText splits text into fixed windows of cfg.Size runes advancing
// by cfg.Size - cfg.Overlap each step. Windows that are whitespace-only
// or shorter than cfg.MinChars are dropped. The function is pure and
// deterministic, and position in the returned slice matches position
// in the source text.
func ChunkText(text string, cfg ChunkConfig) []string {
	if err := cfg.Validate(); err != nil {
		log.Printf("invalid chunk config (%v), using defaults", err)
		cfg = DefaultChunkConfig()
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := cfg.Size - cfg.Overlap
	chunks := make([]string, 0, (len(runes)/step)+1)
	for start := 0; start < len(runes); start += step {
		end := start + cfg.Size
		if end > len(runes) {
			end = len(runes)
		}

		window := string(runes[start:end])
		if len([]rune(window)) >= cfg.MinChars && strings.TrimSpace(window) != "" {
			chunks = append(chunks, window)
		}

		if end == len(runes) {
			break
		}
	}

	return chunks
}

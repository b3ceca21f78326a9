package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextWindows(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30) // 300 runes
	cfg := ChunkConfig{Size: 100, Overlap: 20, MinChars: 10}

	chunks := ChunkText(text, cfg)
	require.NotEmpty(t, chunks)

	for i, c := range chunks[:len(chunks)-1] {
		assert.Len(t, []rune(c), 100, "chunk %d should be a full window", i)
	}

	// Windows advance by size - overlap, so each chunk starts where the
	// previous one ended minus the overlap.
	step := cfg.Size - cfg.Overlap
	for i, c := range chunks {
		start := i * step
		end := start + len([]rune(c))
		assert.Equal(t, string([]rune(text)[start:end]), c)
	}
}

func TestChunkTextReconstruction(t *testing.T) {
	texts := []string{
		"Delivery takes 3 to 5 business days. Returns are accepted within 30 days of purchase. Contact support for exchanges.",
		strings.Repeat("the quick brown fox jumps over the lazy dog ", 40),
		"short",
	}

	cfg := ChunkConfig{Size: 50, Overlap: 10, MinChars: 1}

	for _, text := range texts {
		chunks := ChunkText(text, cfg)

		// Dropping the overlapping prefix of every chunk after the
		// first reconstructs the original text.
		var b strings.Builder
		for i, c := range chunks {
			runes := []rune(c)
			if i == 0 {
				b.WriteString(c)
				continue
			}
			if len(runes) > cfg.Overlap {
				b.WriteString(string(runes[cfg.Overlap:]))
			}
		}
		assert.Equal(t, text, b.String())

		for _, c := range chunks {
			assert.NotEmpty(t, strings.TrimSpace(c))
		}
	}
}

func TestChunkTextDropsShortAndWhitespace(t *testing.T) {
	chunks := ChunkText("        ", ChunkConfig{Size: 4, Overlap: 0, MinChars: 1})
	assert.Empty(t, chunks)

	// Trailing window shorter than MinChars is dropped
	chunks = ChunkText("abcdefgh12", ChunkConfig{Size: 8, Overlap: 0, MinChars: 5})
	require.Len(t, chunks, 1)
	assert.Equal(t, "abcdefgh", chunks[0])
}

func TestChunkTextEmptyInput(t *testing.T) {
	assert.Nil(t, ChunkText("", DefaultChunkConfig()))
}

func TestChunkTextDeterministic(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 50)
	cfg := DefaultChunkConfig()

	first := ChunkText(text, cfg)
	second := ChunkText(text, cfg)
	assert.Equal(t, first, second)
}

func TestChunkConfigValidate(t *testing.T) {
	assert.NoError(t, ChunkConfig{Size: 100, Overlap: 0, MinChars: 1}.Validate())
	assert.NoError(t, ChunkConfig{Size: 100, Overlap: 99, MinChars: 1}.Validate())
	assert.Error(t, ChunkConfig{Size: 0, Overlap: 0}.Validate())
	assert.Error(t, ChunkConfig{Size: 100, Overlap: 100}.Validate())
	assert.Error(t, ChunkConfig{Size: 100, Overlap: -1}.Validate())
}

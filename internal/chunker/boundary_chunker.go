package chunker

import (
	"fmt"
	"strings"

	"rfp/internal/domain"
)

// BoundaryChunker splits text into windows of at most size characters that
// overlap by overlap characters. A window that would cut through the text is
// shortened to end just after its last sentence terminator or line break.
type BoundaryChunker struct {
	size    int
	overlap int
}

// New validates the window configuration and returns a chunker.
func New(size, overlap int) (*BoundaryChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", domain.ErrInvalidChunkConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", domain.ErrInvalidChunkConfig, overlap, size)
	}
	return &BoundaryChunker{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in characters.
func (c *BoundaryChunker) Size() int { return c.size }

// Overlap returns the number of characters shared by consecutive windows.
func (c *BoundaryChunker) Overlap() int { return c.overlap }

// Split returns the trimmed, non-empty chunks of text in order.
func (c *BoundaryChunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.size {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastBoundary(runes, start, end); cut > start && cut+1-c.overlap > start {
			end = cut + 1
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}
	return chunks
}

// Chunks wraps Split results with their positions.
func (c *BoundaryChunker) Chunks(text string) []domain.Chunk {
	parts := c.Split(text)
	out := make([]domain.Chunk, len(parts))
	for i, p := range parts {
		out[i] = domain.Chunk{Text: p, Index: i}
	}
	return out
}

// lastBoundary returns the index of the last terminator in runes[start:end], or -1.
func lastBoundary(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i
		}
	}
	return -1
}

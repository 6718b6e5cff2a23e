package services

import "fmt"

// TextChunker splits extracted document text into fixed-size overlapping
// chunks. The split is deterministic: chunk N always covers the same character
// range for the same input, so chunk indices can be assigned before any
// embedding work is dispatched.
type TextChunker struct {
	chunkSize int
	overlap   int
}

// NewTextChunker creates a chunker with the given maximum chunk length and
// overlap, both in characters.
func NewTextChunker(chunkSize, overlap int) (*TextChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, chunkSize)
	}
	return &TextChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split returns the overlapping chunks of text in document order. A text
// shorter than the chunk size yields a single chunk; an empty text yields
// none. Every character of the input appears in at least one chunk.
func (c *TextChunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end >= len(runes) {
			break
		}
		start = end - c.overlap
	}
	return chunks
}

// ChunkSize returns the configured maximum chunk length in characters.
func (c *TextChunker) ChunkSize() int {
	return c.chunkSize
}

// Overlap returns the configured overlap in characters.
func (c *TextChunker) Overlap() int {
	return c.overlap
}

package rag

import (
	"fmt"
	"strings"
)

const (
	DefaultChunkSize    = 200
	DefaultChunkOverlap = 40
	DefaultMaxWords     = 5000
)

// Chunker splits document text into overlapping windows of words. Each
// window holds at most Size words and each subsequent window starts
// Size-Overlap words after the previous one.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got %d with size %d", overlap, size)
	}
	return &Chunker{Size: size, Overlap: overlap}, nil
}

// Chunk splits text on whitespace and returns the windows in document order.
// Empty or all-whitespace text yields no chunks. The final window may be
// shorter than Size; the loop stops once a window reaches the last word, so
// no end-of-text position produces two windows.
func (c *Chunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	stride := c.Size - c.Overlap
	var chunks []string
	for start := 0; start < len(words); start += stride {
		end := start + c.Size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// CountWords returns the whitespace-separated word count of text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ValidateWordLimit returns the word count of text, or an error when the
// document exceeds maxWords. Runs before chunking so the chunker is never
// handed an over-limit document.
func ValidateWordLimit(text string, maxWords int) (int, error) {
	wc := CountWords(text)
	if wc > maxWords {
		return wc, fmt.Errorf("%w: the document contains %d words, maximum is %d",
			ErrDocumentTooLarge, wc, maxWords)
	}
	return wc, nil
}

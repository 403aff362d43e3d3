// Package chunker splits fetched text into fixed-size, order-preserving chunks.
package chunker

import "strings"

// DefaultSize 默认分块大小（字符数）。
const DefaultSize = 1000

// Chunk is one retrievable piece of a source document.
type Chunk struct {
	SourceID      string
	Text          string
	SequenceIndex int
}

// Split splits text into contiguous substrings of at most size runes.
// Concatenating the result yields text again. A size <= 0 uses DefaultSize.
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if text == "" {
		return []string{}
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// SplitBlocks joins fetched text blocks with "\n" and chunks the result.
func SplitBlocks(sourceID string, blocks []string, size int) []Chunk {
	parts := Split(strings.Join(blocks, "\n"), size)
	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{SourceID: sourceID, Text: p, SequenceIndex: i}
	}
	return chunks
}

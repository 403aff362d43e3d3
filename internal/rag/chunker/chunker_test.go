package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		size  int
		count int
	}{
		{"empty", "", 10, 0},
		{"shorter than size", "hello", 10, 1},
		{"exact multiple", strings.Repeat("a", 20), 10, 2},
		{"remainder", strings.Repeat("a", 2400), 1000, 3},
		{"default size", strings.Repeat("a", 1001), 0, 2},
		{"negative size", strings.Repeat("a", 1000), -5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, tt.size)
			assert.Len(t, chunks, tt.count)
			assert.Equal(t, tt.text, strings.Join(chunks, ""))
		})
	}
}

func TestSplit_SizesAndOrder(t *testing.T) {
	text := strings.Repeat("0123456789", 25) + "xyz"
	chunks := Split(text, 100)
	assert.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Equal(t, strings.Repeat("0123456789", 5)+"xyz", chunks[2])
}

func TestSplit_MultiByte(t *testing.T) {
	text := strings.Repeat("向量检索", 5) // 20 runes
	chunks := Split(text, 3)
	assert.Len(t, chunks, 7)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 3)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitBlocks(t *testing.T) {
	chunks := SplitBlocks("https://example.com", []string{"first block", "second block"}, 8)
	var texts []string
	for i, c := range chunks {
		assert.Equal(t, i, c.SequenceIndex)
		assert.Equal(t, "https://example.com", c.SourceID)
		texts = append(texts, c.Text)
	}
	assert.Equal(t, "first block\nsecond block", strings.Join(texts, ""))
	assert.Empty(t, SplitBlocks("x", nil, 8))
}

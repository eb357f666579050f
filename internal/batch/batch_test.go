package batch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, Split("", 100))
	assert.Nil(t, Split("   \n\t  ", 100))
}

func TestSplit_SingleChunk(t *testing.T) {
	chunks := Split("one two three", 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, "one two three", chunks[0])
}

func TestSplit_ExactMultiple(t *testing.T) {
	chunks := Split("a b c d e f", 3)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a b c", chunks[0])
	assert.Equal(t, "d e f", chunks[1])
}

func TestSplit_ShortLastChunk(t *testing.T) {
	chunks := Split("a b c d e", 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"a b", "c d", "e"}, chunks)
}

func TestSplit_CollapsesWhitespace(t *testing.T) {
	chunks := Split("  a \t b\n\nc  ", 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a b c", chunks[0])
}

func TestSplit_PreservesTokenSequence(t *testing.T) {
	// Concatenating all chunks' tokens must reproduce the original sequence,
	// and every chunk except possibly the last has exactly k tokens.
	words := make([]string, 2500)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	text := strings.Join(words, " ")

	chunks := Split(text, 1100)
	require.Len(t, chunks, 3)

	var rejoined []string
	for i, c := range chunks {
		tokens := strings.Fields(c)
		if i < len(chunks)-1 {
			assert.Len(t, tokens, 1100)
		}
		rejoined = append(rejoined, tokens...)
	}
	assert.Equal(t, words, rejoined)
}

func TestSplit_NonPositiveSizeUsesDefault(t *testing.T) {
	words := make([]string, DefaultWordsPerBatch+1)
	for i := range words {
		words[i] = "x"
	}
	chunks := Split(strings.Join(words, " "), 0)
	require.Len(t, chunks, 2)
	assert.Len(t, strings.Fields(chunks[0]), DefaultWordsPerBatch)
	assert.Len(t, strings.Fields(chunks[1]), 1)
}

// Package batch splits recognized text into word-bounded chunks for LLM
// processing. Order is preserved end to end: chunks are later rejoined
// positionally.
package batch

import "strings"

// DefaultWordsPerBatch keeps a chunk comfortably inside typical
// chat-completion context windows.
const DefaultWordsPerBatch = 1100

// Split tokenizes text on runs of whitespace and groups consecutive tokens
// into chunks of at most wordsPerBatch, each rejoined with single spaces.
// The last chunk may be shorter. Empty input yields no chunks.
func Split(text string, wordsPerBatch int) []string {
	if wordsPerBatch <= 0 {
		wordsPerBatch = DefaultWordsPerBatch
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+wordsPerBatch-1)/wordsPerBatch)
	for i := 0; i < len(words); i += wordsPerBatch {
		end := i + wordsPerBatch
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

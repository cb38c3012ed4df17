// Package chunker splits extracted document text into bounded fragments
// and derives the stable vector-index identity of each fragment.
package chunker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Chunk is one fragment of a document's extracted text.
type Chunk struct {
	Filename string
	Index    int
	Text     string
}

// Split accumulates whitespace-delimited words into fragments of roughly
// maxChars characters: word lengths plus one separator per word already
// held. A word longer than maxChars is emitted whole rather than split.
// Deterministic: the same input always yields the same fragments.
func Split(text string, maxChars int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	charCount := 0
	for _, word := range words {
		if len(current) > 0 && charCount+len(word)+len(current) > maxChars {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
			charCount = 0
		}
		current = append(current, word)
		charCount += len(word)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// Document chunks the extracted text of one source file.
func Document(filename, text string, maxChars int) []Chunk {
	fragments := Split(text, maxChars)
	chunks := make([]Chunk, len(fragments))
	for i, fragment := range fragments {
		chunks[i] = Chunk{Filename: filename, Index: i, Text: fragment}
	}
	return chunks
}

// PointID derives the vector-index id of a chunk from its source file
// and ordinal. Name-based UUIDs keep re-ingestion of an unchanged file
// an overwrite of the same points rather than an insertion of new ones.
func (c Chunk) PointID() string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", c.Filename, c.Index))).String()
}

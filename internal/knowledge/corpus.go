// Package knowledge holds the static wellness knowledge base and the
// lexical retriever that matches symptom descriptions against it.
package knowledge

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed kb.json
var corpusJSON []byte

// Chunk is a single knowledge-base entry. Chunks are loaded once and
// immutable for the process lifetime.
type Chunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Corpus returns the built-in knowledge base parsed from the embedded JSON.
func Corpus() ([]Chunk, error) {
	var chunks []Chunk
	if err := json.Unmarshal(corpusJSON, &chunks); err != nil {
		return nil, fmt.Errorf("parsing embedded knowledge base: %w", err)
	}
	return chunks, nil
}

// MustCorpus is Corpus for initialization paths where the embedded data
// is known-good. It panics on a corrupt embed, which can only happen at
// build time.
func MustCorpus() []Chunk {
	chunks, err := Corpus()
	if err != nil {
		panic(err)
	}
	return chunks
}

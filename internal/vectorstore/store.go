// Package vectorstore defines the contract the pipelines use to persist
// and retrieve embedded chunks.
package vectorstore

import "context"

// Point is one embedded chunk ready for indexing.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Payload is the metadata stored alongside each vector.
type Payload struct {
	Filename   string
	ChunkIndex int
	Text       string
	Processed  string
}

// Result is one retrieved chunk, most similar first.
type Result struct {
	ID      string
	Score   float32
	Payload Payload
}

// Store persists vectors and supports cosine similarity search.
type Store interface {
	// EnsureCollection creates the backing collection with the given
	// vector dimensionality if it does not already exist.
	EnsureCollection(ctx context.Context, dimension int) error
	// Upsert writes points in one batch, overwriting points with the
	// same id.
	Upsert(ctx context.Context, points []Point) error
	// Search returns up to limit nearest points ordered by decreasing
	// similarity.
	Search(ctx context.Context, vector []float32, limit int) ([]Result, error)
}

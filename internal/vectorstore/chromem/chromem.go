// Package chromem is the embedded vector store, for single-process
// deployments that run without a Qdrant service.
package chromem

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"rag-backend/internal/vectorstore"
)

type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
}

// NewStore opens (or creates) a persistent database at path. Pass an
// empty path for an in-memory store, used by tests.
func NewStore(path, collection string) (*Store, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}
	return &Store{db: db, name: collection}, nil
}

func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid collection dimension %d", dimension)
	}
	// All embeddings arrive precomputed, so no embedding func is wired.
	c, err := s.db.GetOrCreateCollection(s.name, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}
	s.collection = c
	return nil
}

func (s *Store) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if s.collection == nil {
		return fmt.Errorf("collection %s not initialized", s.name)
	}
	if len(points) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		docs[i] = chromem.Document{
			ID:        p.ID,
			Content:   p.Payload.Text,
			Embedding: p.Vector,
			Metadata: map[string]string{
				"filename":    p.Payload.Filename,
				"chunk_index": strconv.Itoa(p.Payload.ChunkIndex),
				"processed":   p.Payload.Processed,
			},
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]vectorstore.Result, error) {
	if s.collection == nil {
		return nil, fmt.Errorf("collection %s not initialized", s.name)
	}
	// chromem rejects queries asking for more results than stored documents.
	if count := s.collection.Count(); limit > count {
		limit = count
	}
	if limit == 0 {
		return nil, nil
	}
	found, err := s.collection.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}
	results := make([]vectorstore.Result, len(found))
	for i, r := range found {
		index, _ := strconv.Atoi(r.Metadata["chunk_index"])
		results[i] = vectorstore.Result{
			ID:    r.ID,
			Score: r.Similarity,
			Payload: vectorstore.Payload{
				Filename:   r.Metadata["filename"],
				ChunkIndex: index,
				Text:       r.Content,
				Processed:  r.Metadata["processed"],
			},
		}
	}
	return results, nil
}

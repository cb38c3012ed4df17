// Package loader implements the document ingestion pipeline: scan the
// source directory, extract and chunk text, embed, index, and move each
// finished file to the processed directory.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"rag-backend/internal/chunker"
	"rag-backend/internal/parser"
	"rag-backend/internal/vectorstore"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Upserter interface {
	Upsert(ctx context.Context, points []vectorstore.Point) error
}

// Recorder persists ingestion bookkeeping: the per-file point record
// and the per-cycle aggregate statistics.
type Recorder interface {
	RecordIngestedDocument(ctx context.Context, filename string, pointIDs []string) error
	SaveProcessingStats(ctx context.Context, processedFiles, processedVectors, errorCount int) error
}

// ScanStats aggregates one pass over the source directory.
type ScanStats struct {
	ProcessedFiles []string
	Vectors        int
	Errors         int
}

type Loader struct {
	sourceDir    string
	processedDir string
	chunkSize    int
	embedder     Embedder
	store        Upserter
	recorder     Recorder
	extract      func(path string) (string, error)
}

// Option configures a Loader.
type Option func(*Loader)

// WithExtractFunc overrides text extraction, used by tests.
func WithExtractFunc(fn func(path string) (string, error)) Option {
	return func(l *Loader) { l.extract = fn }
}

func New(sourceDir, processedDir string, chunkSize int, embedder Embedder, store Upserter, recorder Recorder, opts ...Option) *Loader {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	l := &Loader{
		sourceDir:    sourceDir,
		processedDir: processedDir,
		chunkSize:    chunkSize,
		embedder:     embedder,
		store:        store,
		recorder:     recorder,
		extract:      parser.ExtractText,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run scans the source directory at a fixed interval until the context
// is cancelled. Each cycle is independent: a file not yet moved is
// simply reprocessed, and deterministic point ids make that an
// overwrite rather than a duplication.
func (l *Loader) Run(ctx context.Context, interval time.Duration) {
	log.Info().Str("source", l.sourceDir).Dur("interval", interval).Msg("Document loader started")
	for {
		log.Info().Msg("Starting scan cycle")
		stats := l.Scan(ctx)
		if len(stats.ProcessedFiles) > 0 {
			log.Info().Strs("files", stats.ProcessedFiles).Int("vectors", stats.Vectors).Msg("Scan cycle finished")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// Scan processes every supported file currently in the source directory
// and records the cycle's statistics.
func (l *Loader) Scan(ctx context.Context) ScanStats {
	var stats ScanStats

	entries, err := os.ReadDir(l.sourceDir)
	if err != nil {
		log.Error().Err(err).Str("dir", l.sourceDir).Msg("Failed to read source directory")
		stats.Errors++
		return stats
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !parser.Supported(filepath.Ext(name)) {
			log.Warn().Str("file", name).Msg("Unsupported format, skipping")
			continue
		}

		vectors, err := l.processFile(ctx, name)
		if err != nil {
			log.Error().Err(err).Str("file", name).Msg("Failed to ingest document")
			stats.Errors++
			continue
		}
		stats.ProcessedFiles = append(stats.ProcessedFiles, name)
		stats.Vectors += vectors
	}

	if len(stats.ProcessedFiles) > 0 || stats.Errors > 0 {
		if err := l.recorder.SaveProcessingStats(ctx, len(stats.ProcessedFiles), stats.Vectors, stats.Errors); err != nil {
			log.Error().Err(err).Msg("Failed to save processing stats")
		} else {
			log.Info().
				Int("files", len(stats.ProcessedFiles)).
				Int("vectors", stats.Vectors).
				Int("errors", stats.Errors).
				Msg("Saved stats")
		}
	}
	return stats
}

// processFile ingests one document. Any returned error leaves the file
// in place for the next cycle.
func (l *Loader) processFile(ctx context.Context, name string) (int, error) {
	path := filepath.Join(l.sourceDir, name)
	log.Info().Str("file", name).Msg("Processing")

	text, err := l.extract(path)
	if err != nil {
		return 0, fmt.Errorf("extracting text: %w", err)
	}

	chunks := chunker.Document(name, text, l.chunkSize)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document produced no chunks")
	}
	log.Info().Int("chunks", len(chunks)).Msg("Created chunks")

	// Embed each chunk; a failed chunk is dropped with a warning, but a
	// document where every chunk fails is an error.
	now := time.Now().Format(time.RFC3339)
	var points []vectorstore.Point
	for _, chunk := range chunks {
		vector, err := l.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			log.Warn().Err(err).Str("chunk", truncate(chunk.Text, 50)).Msg("Failed to embed chunk")
			continue
		}
		points = append(points, vectorstore.Point{
			ID:     chunk.PointID(),
			Vector: vector,
			Payload: vectorstore.Payload{
				Filename:   name,
				ChunkIndex: chunk.Index,
				Text:       chunk.Text,
				Processed:  now,
			},
		})
	}
	if len(points) == 0 {
		return 0, fmt.Errorf("no embeddings generated")
	}

	if err := l.store.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("uploading vectors: %w", err)
	}
	log.Info().Int("vectors", len(points)).Msg("Uploaded vectors")

	// Commit the point record before moving the file, so a crash in
	// between only re-ingests idempotently.
	pointIDs := make([]string, len(points))
	for i, p := range points {
		pointIDs[i] = p.ID
	}
	if err := l.recorder.RecordIngestedDocument(ctx, name, pointIDs); err != nil {
		return 0, fmt.Errorf("recording ingested document: %w", err)
	}

	if err := os.Rename(path, filepath.Join(l.processedDir, name)); err != nil {
		return 0, fmt.Errorf("moving processed file: %w", err)
	}
	return len(points), nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

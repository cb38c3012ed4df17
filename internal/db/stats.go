package db

import (
	"context"
	"fmt"
	"time"
)

// SaveProcessingStats appends the aggregate record of one scan cycle.
func (db *DB) SaveProcessingStats(ctx context.Context, processedFiles, processedVectors, errorCount int) error {
	stat := &ProcessingStat{
		Timestamp:        time.Now().UTC(),
		ProcessedFiles:   processedFiles,
		ProcessedVectors: processedVectors,
		Errors:           errorCount,
	}
	if _, err := db.NewInsert().Model(stat).Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RecordIngestedDocument durably records which points a source file
// produced. Committed before the file is moved out of the source
// directory, so a crash between the two only re-ingests idempotently.
func (db *DB) RecordIngestedDocument(ctx context.Context, filename string, pointIDs []string) error {
	record := &IngestedDocument{
		Filename:    filename,
		PointIDs:    pointIDs,
		VectorCount: len(pointIDs),
		IngestedAt:  time.Now().UTC(),
	}
	if _, err := db.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

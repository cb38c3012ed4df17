// Package db holds the Postgres persistence layer: the durable task
// queue, conversation history, and ingestion bookkeeping.
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"rag-backend/internal/config"
)

// Status is the lifecycle state of a queued task. Transitions are
// monotonic along pending -> processing -> {completed, failed}.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Task is one unit of asynchronous work.
type Task struct {
	bun.BaseModel `bun:"table:async_tasks,alias:t"`

	TaskID      uuid.UUID  `bun:"task_id,pk,type:uuid"`
	SessionID   uuid.UUID  `bun:"session_id,type:uuid,notnull"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at"`
	CompletedAt *time.Time `bun:"completed_at"`
	Status      Status     `bun:"status,notnull"`
	Attempts    int        `bun:"attempts,notnull,default:0"`
	Username    string     `bun:"username"`
	UserID      string     `bun:"user_id"`
	Question    string     `bun:"question,notnull"`
	Answer      string     `bun:"answer,nullzero"`
	Error       string     `bun:"error,nullzero"`
}

type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	SessionID    uuid.UUID `bun:"session_id,pk,type:uuid"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	LastActivity time.Time `bun:"last_activity,notnull,default:current_timestamp"`
	UserAgent    string    `bun:"user_agent"`
	IPAddress    string    `bun:"ip_address"`
}

// Message is one conversation turn within a session.
type Message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	MessageID int64     `bun:"message_id,pk,autoincrement"`
	SessionID uuid.UUID `bun:"session_id,type:uuid,notnull"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp"`
	Role      string    `bun:"role,notnull"`
	Content   string    `bun:"content,notnull"`
	Context   string    `bun:"context,nullzero"`
	Sources   string    `bun:"sources,nullzero"`
}

// ProcessingStat is the aggregate record of one loader scan cycle.
type ProcessingStat struct {
	bun.BaseModel `bun:"table:processing_stats,alias:ps"`

	StatID           int64     `bun:"stat_id,pk,autoincrement"`
	Timestamp        time.Time `bun:"timestamp,notnull,default:current_timestamp"`
	ProcessedFiles   int       `bun:"processed_files,notnull"`
	ProcessedVectors int       `bun:"processed_vectors,notnull"`
	Errors           int       `bun:"errors,notnull"`
}

// IngestedDocument is the durable record of which vector-index points a
// source file produced, committed before the file is moved.
type IngestedDocument struct {
	bun.BaseModel `bun:"table:ingested_documents,alias:doc"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Filename    string    `bun:"filename,notnull"`
	PointIDs    []string  `bun:"point_ids,array"`
	VectorCount int       `bun:"vector_count,notnull"`
	IngestedAt  time.Time `bun:"ingested_at,notnull,default:current_timestamp"`
}

type DB struct {
	*bun.DB
}

func Connect(cfg *config.PostgresConfig) *DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN())))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &DB{db}
}

// Init creates the schema if it does not exist.
func (db *DB) Init(ctx context.Context) error {
	models := []any{
		(*Session)(nil),
		(*Message)(nil),
		(*Task)(nil),
		(*ProcessingStat)(nil),
		(*IngestedDocument)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

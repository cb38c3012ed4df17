// Package worker runs the claim-execute-finish loop that drains the
// task queue, replicable across any number of processes.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"rag-backend/internal/db"
	"rag-backend/internal/rag"
)

// Queue is the slice of the task store a worker needs.
type Queue interface {
	ClaimNext(ctx context.Context) (*db.Task, error)
	Complete(ctx context.Context, taskID uuid.UUID, answer string) error
	Fail(ctx context.Context, taskID uuid.UUID, errText string) error
}

// Processor answers a claimed task's question.
type Processor interface {
	Process(ctx context.Context, question string, sessionID uuid.UUID) (*rag.Result, error)
}

type Worker struct {
	queue        Queue
	processor    Processor
	pollInterval time.Duration
	errorBackoff time.Duration
}

func New(queue Queue, processor Processor, pollInterval, errorBackoff time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if errorBackoff <= 0 {
		errorBackoff = 5 * time.Second
	}
	return &Worker{
		queue:        queue,
		processor:    processor,
		pollInterval: pollInterval,
		errorBackoff: errorBackoff,
	}
}

// Run polls the queue until the context is cancelled. An empty queue
// idles for the poll interval; a queue error backs off longer. Task
// execution failures are recorded on the task, never crash the loop.
func (w *Worker) Run(ctx context.Context) {
	log.Info().Msg("Task worker started")
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := w.queue.ClaimNext(ctx)
		switch {
		case err != nil:
			log.Error().Err(err).Msg("Task worker claim error")
			if !sleep(ctx, w.errorBackoff) {
				return
			}
		case task == nil:
			if !sleep(ctx, w.pollInterval) {
				return
			}
		default:
			w.execute(ctx, task)
		}
	}
}

func (w *Worker) execute(ctx context.Context, task *db.Task) {
	log.Info().Str("task_id", task.TaskID.String()).Msg("Processing task")

	result, err := w.processor.Process(ctx, task.Question, task.SessionID)
	if err != nil {
		log.Error().Err(err).Str("task_id", task.TaskID.String()).Msg("Task failed")
		if err := w.queue.Fail(ctx, task.TaskID, err.Error()); err != nil {
			log.Error().Err(err).Str("task_id", task.TaskID.String()).Msg("Failed to mark task failed")
		}
		return
	}

	if err := w.queue.Complete(ctx, task.TaskID, result.Answer); err != nil {
		log.Error().Err(err).Str("task_id", task.TaskID.String()).Msg("Failed to mark task completed")
		return
	}
	log.Info().Str("task_id", task.TaskID.String()).Msg("Task completed")
}

// sleep waits for d or until the context is cancelled, reporting
// whether the caller should keep running.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

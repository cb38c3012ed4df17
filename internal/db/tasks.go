package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
)

// Enqueue creates a pending task and returns its id.
func (db *DB) Enqueue(ctx context.Context, sessionID uuid.UUID, username, userID, question string) (uuid.UUID, error) {
	task := &Task{
		TaskID:    uuid.New(),
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
		Status:    StatusPending,
		Username:  username,
		UserID:    userID,
		Question:  question,
	}
	if _, err := db.NewInsert().Model(task).Exec(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return task.TaskID, nil
}

// ClaimNext atomically claims the oldest pending task and moves it to
// processing. Locked rows are skipped, so concurrent workers polling
// the same queue never claim the same task. Returns nil when the queue
// is empty.
func (db *DB) ClaimNext(ctx context.Context) (*Task, error) {
	var claimed *Task
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var task Task
		err := tx.NewSelect().
			Model(&task).
			Where("status = ?", StatusPending).
			OrderExpr("created_at ASC").
			Limit(1).
			For("UPDATE SKIP LOCKED").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}

		now := time.Now().UTC()
		update := tx.NewUpdate().
			Model((*Task)(nil)).
			Set("attempts = attempts + 1").
			Where("task_id = ?", task.TaskID)
		if err := applyTransition(update, StatusProcessing, "", "", now); err != nil {
			return err
		}
		if _, err := update.Exec(ctx); err != nil {
			return err
		}

		task.Status = StatusProcessing
		task.StartedAt = &now
		task.Attempts++
		claimed = &task
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return claimed, nil
}

// Complete moves a processing task to completed, storing the answer.
func (db *DB) Complete(ctx context.Context, taskID uuid.UUID, answer string) error {
	return db.finish(ctx, taskID, StatusCompleted, answer, "")
}

// Fail moves a processing task to failed, storing the error text.
func (db *DB) Fail(ctx context.Context, taskID uuid.UUID, errText string) error {
	return db.finish(ctx, taskID, StatusFailed, "", errText)
}

func (db *DB) finish(ctx context.Context, taskID uuid.UUID, target Status, answer, errText string) error {
	update := db.NewUpdate().
		Model((*Task)(nil)).
		Where("task_id = ?", taskID)
	if err := applyTransition(update, target, answer, errText, time.Now().UTC()); err != nil {
		return err
	}
	res, err := update.Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if affected == 0 {
		log.Error().Str("task_id", taskID.String()).Str("target", string(target)).Msg("Task status transition precondition failed")
		return fmt.Errorf("%w: task %s is not processing", ErrInvalidTransition, taskID)
	}
	return nil
}

// applyTransition adds the target status's column writes and the
// precondition on the current status to an update query.
func applyTransition(update *bun.UpdateQuery, target Status, answer, errText string, now time.Time) error {
	tr, err := transitionTo(target, answer, errText, now)
	if err != nil {
		return err
	}
	columns := make([]string, 0, len(tr.columns))
	for col := range tr.columns {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	for _, col := range columns {
		update.Set("? = ?", bun.Ident(col), tr.columns[col])
	}
	update.Where("status = ?", tr.from)
	return nil
}

// GetTask fetches a task by id.
func (db *DB) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	var task Task
	err := db.NewSelect().Model(&task).Where("task_id = ?", taskID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &task, nil
}

// ReclaimStale returns over-lease processing tasks to pending so another
// worker can claim them, and fails tasks that exhausted their attempts.
// Covers workers that crashed between claim and completion.
func (db *DB) ReclaimStale(ctx context.Context, leaseTimeout time.Duration, maxAttempts int) (reclaimed, exhausted int64, err error) {
	cutoff := time.Now().UTC().Add(-leaseTimeout)

	res, err := db.NewUpdate().
		Model((*Task)(nil)).
		Set("status = ?", StatusPending).
		Set("started_at = NULL").
		Where("status = ?", StatusProcessing).
		Where("started_at < ?", cutoff).
		Where("attempts < ?", maxAttempts).
		Exec(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	reclaimed, _ = res.RowsAffected()

	res, err = db.NewUpdate().
		Model((*Task)(nil)).
		Set("status = ?", StatusFailed).
		Set("completed_at = ?", time.Now().UTC()).
		Set("error = ?", fmt.Sprintf("abandoned after %d attempts", maxAttempts)).
		Where("status = ?", StatusProcessing).
		Where("started_at < ?", cutoff).
		Where("attempts >= ?", maxAttempts).
		Exec(ctx)
	if err != nil {
		return reclaimed, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	exhausted, _ = res.RowsAffected()

	return reclaimed, exhausted, nil
}

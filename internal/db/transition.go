package db

import (
	"fmt"
	"time"
)

// transition is the exact set of column writes that move a task into
// one target status, plus the status the task must currently hold.
type transition struct {
	from    Status
	columns map[string]any
}

// transitionTo returns the write set for the target status. One case
// per reachable status; anything else is a programming error.
func transitionTo(target Status, answer, errText string, now time.Time) (transition, error) {
	switch target {
	case StatusProcessing:
		return transition{
			from: StatusPending,
			columns: map[string]any{
				"status":     StatusProcessing,
				"started_at": now,
			},
		}, nil
	case StatusCompleted:
		return transition{
			from: StatusProcessing,
			columns: map[string]any{
				"status":       StatusCompleted,
				"completed_at": now,
				"answer":       answer,
			},
		}, nil
	case StatusFailed:
		return transition{
			from: StatusProcessing,
			columns: map[string]any{
				"status":       StatusFailed,
				"completed_at": now,
				"error":        errText,
			},
		}, nil
	default:
		return transition{}, fmt.Errorf("%w: no transition into %q", ErrInvalidTransition, target)
	}
}

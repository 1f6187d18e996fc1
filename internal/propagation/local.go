package propagation

import (
	"context"
	"fmt"

	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/store"
)

// Local performs propagation in-process against the event store.
type Local struct {
	*runner
}

func NewLocal(events store.EventStore, logger *log.Logger, buffer int) *Local {
	exec := func(ctx context.Context, t Task) (int64, error) {
		color := t.Color
		n, err := events.UpdateByMatch(ctx, t.Actor, store.Match{Name: t.Name}, core.EventPatch{Color: &color})
		if err != nil {
			return 0, fmt.Errorf("recolor %q: %w", t.Name, err)
		}
		return n, nil
	}
	return &Local{runner: newRunner(exec, logger, buffer)}
}

// Package worker executes queued color propagation against the event store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/store"
)

// PropagationWorker applies ColorPropagationMessages with the access scope
// of the user who made the edit.
type PropagationWorker struct {
	events store.EventStore
	logger *log.Logger

	handled atomic.Int64
	failed  atomic.Int64
}

func NewPropagationWorker(events store.EventStore, logger *log.Logger) *PropagationWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &PropagationWorker{events: events, logger: logger.WithComponent(log.ComponentWorker)}
}

// Handle recolors every stored event named msg.Name that the actor may see.
// Validation failures are not retried.
func (w *PropagationWorker) Handle(ctx context.Context, msg *amqp.ColorPropagationMessage) error {
	start := time.Now()
	if err := msg.Validate(); err != nil {
		w.failed.Add(1)
		w.logger.WarnContext(ctx, "Discarding invalid propagation message", log.FieldError, err)
		return nil
	}
	if err := core.ValidateColor(msg.Color); err != nil {
		w.failed.Add(1)
		w.logger.WarnContext(ctx, "Discarding propagation with invalid color",
			log.FieldColor, msg.Color, log.FieldError, err)
		return nil
	}

	actor := core.Identity{UserID: msg.ActorID, Role: core.ResolveRole(msg.ActorRole)}
	color := msg.Color
	n, err := w.events.UpdateByMatch(ctx, actor, store.Match{Name: msg.Name}, core.EventPatch{Color: &color})
	if err != nil {
		w.failed.Add(1)
		if errors.Is(err, core.ErrInvalidColor) || errors.Is(err, core.ErrEmptyPatch) {
			return nil
		}
		return fmt.Errorf("recolor %q: %w", msg.Name, err)
	}
	w.handled.Add(1)

	w.logger.InfoContext(ctx, "Propagated color",
		log.FieldEventName, msg.Name,
		log.FieldColor, msg.Color,
		log.FieldUserID, msg.ActorID,
		log.FieldUpdated, n,
		"lag_ms", time.Since(msg.Timestamp).Milliseconds(),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Counts reports handled and failed messages.
func (w *PropagationWorker) Counts() (handled, failed int64) {
	return w.handled.Load(), w.failed.Load()
}

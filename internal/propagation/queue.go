package propagation

import (
	"context"
	"fmt"

	"budgetcal/internal/amqp"
	"budgetcal/internal/log"
)

// Publisher is the part of the AMQP client the queue needs.
type Publisher interface {
	PublishColorPropagation(ctx context.Context, msg *amqp.ColorPropagationMessage) error
}

// Queue hands tasks to the worker over AMQP. A successful result means the
// message was accepted by the broker, so Updated is always zero.
type Queue struct {
	*runner
}

func NewQueue(pub Publisher, logger *log.Logger, buffer int) *Queue {
	exec := func(ctx context.Context, t Task) (int64, error) {
		msg := amqp.NewColorPropagationMessage(t.Actor.UserID, string(t.Actor.Role), t.Name, t.Color, t.EventID)
		if err := pub.PublishColorPropagation(ctx, msg); err != nil {
			return 0, fmt.Errorf("enqueue recolor %q: %w", t.Name, err)
		}
		return 0, nil
	}
	return &Queue{runner: newRunner(exec, logger, buffer)}
}

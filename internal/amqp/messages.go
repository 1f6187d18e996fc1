package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ColorPropagationMessage asks the worker to recolor every stored event named
// Name within the actor's visibility scope.
type ColorPropagationMessage struct {
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	EventID   string    `json:"event_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewColorPropagationMessage(actorID, actorRole, name, color, eventID string) *ColorPropagationMessage {
	return &ColorPropagationMessage{
		ActorID:   actorID,
		ActorRole: actorRole,
		Name:      name,
		Color:     color,
		EventID:   eventID,
		Timestamp: time.Now(),
	}
}

// Validate rejects messages the worker cannot act on.
func (m *ColorPropagationMessage) Validate() error {
	if m.ActorID == "" {
		return fmt.Errorf("missing actor")
	}
	if m.Name == "" {
		return fmt.Errorf("missing name")
	}
	if m.Color == "" {
		return fmt.Errorf("missing color")
	}
	return nil
}

func (m *ColorPropagationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ColorPropagationMessageFromJSON(data []byte) (*ColorPropagationMessage, error) {
	var msg ColorPropagationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

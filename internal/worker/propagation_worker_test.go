package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/store"
	"budgetcal/internal/store/memory"
)

type brokenStore struct {
	store.EventStore
}

func (brokenStore) UpdateByMatch(context.Context, core.Identity, store.Match, core.EventPatch) (int64, error) {
	return 0, errors.New("database is locked")
}

func seed(t *testing.T, s *memory.Store, owner, name string) {
	t.Helper()
	_, err := s.Insert(context.Background(), core.Identity{UserID: owner}, core.NewEvent{
		OwnerID: owner, Date: core.NewDate(2026, 1, 1), Name: name, Value: 1, Color: core.DefaultColor,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func colors(t *testing.T, s *memory.Store) map[string]string {
	t.Helper()
	events, err := s.FetchRange(context.Background(), core.Identity{Role: core.RoleLeader},
		store.RangeQuery{From: core.NewDate(2026, 1, 1), To: core.NewDate(2026, 1, 31)})
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]string{}
	for _, e := range events {
		out[e.OwnerID+"/"+e.Name] = e.Color
	}
	return out
}

func TestHandleRespectsActorScope(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		wantBobs string
	}{
		{"normal role only touches own events", "normal", core.DefaultColor},
		{"leader touches everyone", "leader", "#ff0000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.New()
			seed(t, s, "A", "Coffee")
			seed(t, s, "B", "Coffee")
			w := NewPropagationWorker(s, log.Discard())

			msg := amqp.NewColorPropagationMessage("A", tt.role, "Coffee", "#ff0000", "")
			if err := w.Handle(context.Background(), msg); err != nil {
				t.Fatalf("Handle: %v", err)
			}
			got := colors(t, s)
			if got["A/Coffee"] != "#ff0000" {
				t.Errorf("actor's event not recolored: %v", got)
			}
			if got["B/Coffee"] != tt.wantBobs {
				t.Errorf("other owner color = %s, want %s", got["B/Coffee"], tt.wantBobs)
			}
		})
	}
}

func TestHandleDiscardsInvalidMessages(t *testing.T) {
	w := NewPropagationWorker(memory.New(), log.Discard())
	bad := []*amqp.ColorPropagationMessage{
		{Name: "x", Color: "#fff", Timestamp: time.Now()},
		{ActorID: "A", Name: "x", Color: "red", Timestamp: time.Now()},
	}
	for _, m := range bad {
		if err := w.Handle(context.Background(), m); err != nil {
			t.Errorf("invalid message should be acked, got %v", err)
		}
	}
	if handled, failed := w.Counts(); handled != 0 || failed != 2 {
		t.Fatalf("counts = %d/%d", handled, failed)
	}
}

func TestHandleReturnsStoreErrorsForRequeue(t *testing.T) {
	w := NewPropagationWorker(brokenStore{}, log.Discard())
	msg := amqp.NewColorPropagationMessage("A", "normal", "Coffee", "#ff0000", "")
	if err := w.Handle(context.Background(), msg); err == nil {
		t.Fatal("expected the store error to be returned")
	}
}

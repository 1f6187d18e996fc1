package calendar

import (
	"context"
	"errors"
	"testing"

	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/propagation"
	"budgetcal/internal/store"
	"budgetcal/internal/store/memory"
)

// countingStore wraps the memory store, counts calls and can fail on demand.
// stray rows are appended to every fetch.
type countingStore struct {
	*memory.Store
	calls int
	fail  error
	stray []core.Event
}

func (c *countingStore) FetchRange(ctx context.Context, who core.Identity, q store.RangeQuery) ([]core.Event, error) {
	c.calls++
	if c.fail != nil {
		return nil, c.fail
	}
	events, err := c.Store.FetchRange(ctx, who, q)
	return append(events, c.stray...), err
}

func (c *countingStore) Insert(ctx context.Context, who core.Identity, e core.NewEvent) (core.Event, error) {
	c.calls++
	if c.fail != nil {
		return core.Event{}, c.fail
	}
	return c.Store.Insert(ctx, who, e)
}

func (c *countingStore) UpdateByID(ctx context.Context, who core.Identity, id string, p core.EventPatch) (core.Event, error) {
	c.calls++
	if c.fail != nil {
		return core.Event{}, c.fail
	}
	return c.Store.UpdateByID(ctx, who, id, p)
}

func (c *countingStore) DeleteByID(ctx context.Context, who core.Identity, id string) error {
	c.calls++
	if c.fail != nil {
		return c.fail
	}
	return c.Store.DeleteByID(ctx, who, id)
}

type recordingPropagator struct {
	tasks []propagation.Task
}

func (r *recordingPropagator) Submit(_ context.Context, t propagation.Task) {
	r.tasks = append(r.tasks, t)
}

var (
	leaderID = core.Identity{UserID: "L", Role: core.RoleLeader}
	aliceID  = core.Identity{UserID: "A", Role: core.RoleNormal}
	bobID    = core.Identity{UserID: "B", Role: core.RoleNormal}
)

func testSettings() Settings {
	return Settings{
		Range:        MonthRange{Start: core.YearMonth{Year: 2025, Month: 12}, End: core.YearMonth{Year: 2026, Month: 12}},
		DailyLimit:   6000000,
		DefaultColor: core.DefaultColor,
	}
}

func newTestService(t *testing.T) (*Service, *countingStore, *recordingPropagator) {
	t.Helper()
	cs := &countingStore{Store: memory.New()}
	rp := &recordingPropagator{}
	return NewService(cs, rp, testSettings(), log.Discard()), cs, rp
}

func seed(t *testing.T, s *memory.Store, who core.Identity, date core.Date, name, color string, value float64, done bool) core.Event {
	t.Helper()
	e, err := s.Insert(context.Background(), who, core.NewEvent{
		OwnerID: who.UserID, Date: date, Name: name, Value: value, Color: color, Done: done,
	})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func loadedSession(t *testing.T, svc *Service, who core.Identity) *Session {
	t.Helper()
	sess := svc.NewSession(who)
	if err := svc.Load(context.Background(), sess); err != nil {
		t.Fatalf("load: %v", err)
	}
	return sess
}

func TestLoadScopesNormalRole(t *testing.T) {
	svc, cs, _ := newTestService(t)
	dec := core.NewDate(2025, 12, 3)
	seed(t, cs.Store, aliceID, dec, "a", "#111", 1, false)
	seed(t, cs.Store, bobID, dec, "b", "#222", 1, false)

	if got := len(loadedSession(t, svc, aliceID).Cache.Get(dec.Key())); got != 1 {
		t.Fatalf("normal role should see 1 event, got %d", got)
	}
	if got := len(loadedSession(t, svc, leaderID).Cache.Get(dec.Key())); got != 2 {
		t.Fatalf("leader should see 2 events, got %d", got)
	}
}

func TestLoadIgnoresRowsOutsideMonth(t *testing.T) {
	svc, cs, _ := newTestService(t)
	seed(t, cs.Store, aliceID, core.NewDate(2025, 12, 5), "lunch", "#111", 1, false)
	cs.stray = []core.Event{
		{ID: "x1", OwnerID: aliceID.UserID, Date: core.NewDate(2026, 1, 2), Name: "stray", Color: "#999"},
		{ID: "x2", OwnerID: aliceID.UserID, Date: core.NewDate(2026, 1, 3), Name: "Lunch", Color: "#999"},
	}
	sess := loadedSession(t, svc, aliceID)

	if _, ok := sess.Colors.Lookup("stray"); ok {
		t.Error("registry kept a name that is not in the cached month")
	}
	if c, _ := sess.Colors.Lookup("lunch"); c != "#111" {
		t.Errorf("lunch color = %q, want #111", c)
	}
	if n := len(sess.Cache.Events()); n != 1 {
		t.Errorf("cache holds %d events, want 1", n)
	}
}

func TestLoadFailureKeepsState(t *testing.T) {
	svc, cs, _ := newTestService(t)
	dec := core.NewDate(2025, 12, 3)
	seed(t, cs.Store, aliceID, dec, "a", "#111", 1, false)
	sess := loadedSession(t, svc, aliceID)

	cs.fail = errors.New("network")
	changed, err := svc.Navigate(context.Background(), sess, 1)
	if err == nil || changed {
		t.Fatalf("expected navigation failure, got changed=%v err=%v", changed, err)
	}
	if sess.Month != (core.YearMonth{Year: 2025, Month: 12}) || len(sess.Cache.Get(dec.Key())) != 1 {
		t.Fatal("failed fetch must leave the previous month in place")
	}
	if _, ok := sess.Colors.Lookup("a"); !ok {
		t.Fatal("failed fetch must leave the registry in place")
	}
}

func TestNavigationIsBounded(t *testing.T) {
	svc, cs, _ := newTestService(t)
	sess := loadedSession(t, svc, aliceID)
	before := cs.calls

	changed, err := svc.Navigate(context.Background(), sess, -1)
	if err != nil || changed {
		t.Fatalf("navigating before the start should be a no-op, got %v %v", changed, err)
	}
	changed, _ = svc.Goto(context.Background(), sess, core.YearMonth{Year: 2027, Month: 1})
	if changed || cs.calls != before {
		t.Fatal("out of range months must not reach the store")
	}

	if changed, err := svc.Navigate(context.Background(), sess, 1); err != nil || !changed {
		t.Fatalf("in range navigation failed: %v", err)
	}
	if sess.Month != (core.YearMonth{Year: 2026, Month: 1}) || sess.Selected.Key() != "2026-01-01" {
		t.Fatalf("unexpected month %v selected %s", sess.Month, sess.Selected.Key())
	}
}

func TestCreateAppendsAndRegisters(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := loadedSession(t, svc, aliceID)
	if err := sess.SelectDay(core.NewDate(2025, 12, 24)); err != nil {
		t.Fatal(err)
	}

	first, err := svc.Create(context.Background(), sess, CreateInput{Name: " Gifts ", Value: "2000000"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.Create(context.Background(), sess, CreateInput{Name: "Dinner", Value: "500000,5", Color: "#00ff00"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Name != "Gifts" || first.Color != core.DefaultColor || second.Value != 500000.5 {
		t.Fatalf("unexpected events %+v %+v", first, second)
	}
	if !sameIDs(sess.Cache.Get("2025-12-24"), first.ID, second.ID) {
		t.Fatal("created events should be appended in order")
	}
	if c, _ := sess.Colors.Lookup("dinner"); c != "#00ff00" {
		t.Fatalf("registry not updated, got %q", c)
	}
}

func TestValidationHappensBeforeStore(t *testing.T) {
	svc, cs, _ := newTestService(t)
	sess := loadedSession(t, svc, aliceID)
	before := cs.calls

	tests := []struct {
		in   CreateInput
		want error
	}{
		{CreateInput{Name: "  ", Value: "1"}, core.ErrEmptyName},
		{CreateInput{Name: "x", Value: "abc"}, core.ErrInvalidValue},
		{CreateInput{Name: "x", Value: ""}, core.ErrInvalidValue},
		{CreateInput{Name: "x", Value: "1", Color: "red"}, core.ErrInvalidColor},
	}
	for _, tt := range tests {
		if _, err := svc.Create(context.Background(), sess, tt.in); !errors.Is(err, tt.want) {
			t.Errorf("Create(%+v) error = %v, want %v", tt.in, err, tt.want)
		}
	}
	if cs.calls != before {
		t.Fatalf("validation failures reached the store (%d calls)", cs.calls-before)
	}
}

func TestPermissionCheckedBeforeStore(t *testing.T) {
	svc, cs, _ := newTestService(t)
	e := seed(t, cs.Store, aliceID, core.NewDate(2025, 12, 5), "Gym", "#111", 1, false)

	// Bob cannot see Alice's event, so use a leader-loaded cache with Bob's identity.
	sess := loadedSession(t, svc, leaderID)
	sess.Identity = bobID
	before := cs.calls

	if _, err := svc.ToggleDone(context.Background(), sess, e.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("toggle: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Edit(context.Background(), sess, e.ID, EditInput{Name: "x", Value: "1"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("edit: expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(context.Background(), sess, e.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("delete: expected ErrForbidden, got %v", err)
	}
	if cs.calls != before {
		t.Fatal("forbidden operations reached the store")
	}
}

func TestToggleDoneAndSummary(t *testing.T) {
	svc, cs, _ := newTestService(t)
	day := core.NewDate(2025, 12, 1)
	big := seed(t, cs.Store, aliceID, day, "Rent", "#111", 2000000, false)
	seed(t, cs.Store, aliceID, day, "Food", "#222", 500000, false)
	sess := loadedSession(t, svc, aliceID)

	updated, err := svc.ToggleDone(context.Background(), sess, big.ID)
	if err != nil || !updated.Done {
		t.Fatalf("toggle: %+v %v", updated, err)
	}
	got := svc.Summary(sess)
	want := Summary{Total: 2500000, Used: 2000000, Remaining: 4000000, Limit: 6000000}
	if got != want {
		t.Fatalf("Summary() = %+v, want %+v", got, want)
	}
}

func TestEditRenamesAndPropagates(t *testing.T) {
	svc, cs, rp := newTestService(t)
	e := seed(t, cs.Store, aliceID, core.NewDate(2025, 12, 2), "Coffee", "#333", 3, false)
	seed(t, cs.Store, aliceID, core.NewDate(2025, 12, 9), "Coffee", "#333", 3, false)
	sess := loadedSession(t, svc, aliceID)

	got, err := svc.Edit(context.Background(), sess, e.ID, EditInput{Name: "Coffees", Value: "4", Color: "#ff0000"})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got.Name != "Coffees" || got.Value != 4 || got.Color != "#ff0000" {
		t.Fatalf("unexpected edit result %+v", got)
	}
	if _, ok := sess.Colors.Lookup("coffee"); ok {
		t.Error("old registry key should be dropped")
	}
	if c, _ := sess.Colors.Lookup("coffees"); c != "#ff0000" {
		t.Errorf("new registry key = %q", c)
	}
	if len(rp.tasks) != 1 {
		t.Fatalf("expected one propagation task, got %d", len(rp.tasks))
	}
	task := rp.tasks[0]
	if task.Name != "Coffees" || task.Color != "#ff0000" || task.Actor != aliceID || task.EventID != e.ID {
		t.Fatalf("unexpected task %+v", task)
	}
	if cached := sess.Cache.Get("2025-12-02"); cached[0].Name != "Coffees" {
		t.Fatalf("cache not patched: %+v", cached)
	}
}

func TestEditKeepsColorWhenEmpty(t *testing.T) {
	svc, cs, _ := newTestService(t)
	e := seed(t, cs.Store, aliceID, core.NewDate(2025, 12, 2), "Tea", "#abc", 1, false)
	sess := loadedSession(t, svc, aliceID)

	got, err := svc.Edit(context.Background(), sess, e.ID, EditInput{Name: "Tea", Value: "2"})
	if err != nil || got.Color != "#abc" {
		t.Fatalf("expected color kept, got %+v %v", got, err)
	}
}

func TestMutationFailureLeavesCache(t *testing.T) {
	svc, cs, rp := newTestService(t)
	e := seed(t, cs.Store, aliceID, core.NewDate(2025, 12, 2), "Tea", "#abc", 1, false)
	sess := loadedSession(t, svc, aliceID)
	cs.fail = errors.New("timeout")

	if _, err := svc.Edit(context.Background(), sess, e.ID, EditInput{Name: "Coffee", Value: "2"}); err == nil {
		t.Fatal("expected failure")
	}
	if err := svc.Delete(context.Background(), sess, e.ID); err == nil {
		t.Fatal("expected failure")
	}
	if _, err := svc.Create(context.Background(), sess, CreateInput{Name: "x", Value: "1"}); err == nil {
		t.Fatal("expected failure")
	}
	cached := sess.Cache.Get("2025-12-02")
	if len(cached) != 1 || cached[0].Name != "Tea" {
		t.Fatalf("cache changed after failed writes: %+v", cached)
	}
	if len(rp.tasks) != 0 {
		t.Fatal("failed edit must not propagate")
	}
}

func TestDeleteRemovesFromCache(t *testing.T) {
	svc, cs, _ := newTestService(t)
	e := seed(t, cs.Store, aliceID, core.NewDate(2025, 12, 2), "Tea", "#abc", 1, false)
	sess := loadedSession(t, svc, leaderID)

	if err := svc.Delete(context.Background(), sess, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(sess.Cache.Get("2025-12-02")) != 0 {
		t.Fatal("event still cached")
	}
	if err := svc.Delete(context.Background(), sess, e.ID); !errors.Is(err, ErrEventNotLoaded) {
		t.Fatalf("expected ErrEventNotLoaded, got %v", err)
	}
}

func TestSelectDayStaysInMonth(t *testing.T) {
	svc, _, _ := newTestService(t)
	sess := loadedSession(t, svc, aliceID)
	if err := sess.SelectDay(core.NewDate(2026, 1, 1)); !errors.Is(err, ErrDayOutsideMonth) {
		t.Fatalf("expected ErrDayOutsideMonth, got %v", err)
	}
	if sess.Selected.Key() != "2025-12-01" {
		t.Fatalf("selection moved to %s", sess.Selected.Key())
	}
}

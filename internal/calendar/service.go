package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/propagation"
	"budgetcal/internal/store"
)

// Settings are the fixed calendar parameters.
type Settings struct {
	Range        MonthRange
	DailyLimit   float64
	DefaultColor string
}

// CreateInput is the raw add-event form.
type CreateInput struct {
	Name  string
	Value string
	Color string
}

// EditInput carries the edited fields. An empty Color keeps the current one.
type EditInput struct {
	Name  string
	Value string
	Color string
}

// Service runs user operations against the event store. Every cache patch
// follows a successful round trip; failed calls leave the session untouched.
// Callers hold the session lock.
type Service struct {
	events     store.EventStore
	propagator propagation.Propagator
	settings   Settings
	logger     *log.Logger
}

func NewService(events store.EventStore, p propagation.Propagator, settings Settings, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if settings.DefaultColor == "" {
		settings.DefaultColor = core.DefaultColor
	}
	return &Service{
		events:     events,
		propagator: p,
		settings:   settings,
		logger:     logger.WithComponent(log.ComponentCalendar),
	}
}

func (s *Service) Settings() Settings {
	return s.settings
}

// NewSession opens view state for id on the start month of the range.
func (s *Service) NewSession(id core.Identity) *Session {
	return NewSession(id, s.settings.Range.Start, s.settings.DefaultColor)
}

// Load fetches the visible month of sess and rebuilds its caches.
func (s *Service) Load(ctx context.Context, sess *Session) error {
	return s.load(ctx, sess, sess.Month)
}

func (s *Service) load(ctx context.Context, sess *Session, ym core.YearMonth) error {
	q := store.RangeQuery{From: ym.First(), To: ym.Last()}
	if !sess.Identity.Role.Elevated() {
		q.OwnerID = sess.Identity.UserID
	}
	events, err := s.events.FetchRange(ctx, sess.Identity, q)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load month",
			log.FieldMonth, ym.String(), log.FieldUserID, sess.Identity.UserID, log.FieldError, err)
		return fmt.Errorf("load %s: %w", ym, err)
	}
	sess.replace(ym, events)
	s.logger.DebugContext(ctx, "Month loaded", log.FieldMonth, ym.String(),
		"events", len(events), "colors", sess.Colors.Len())
	return nil
}

// Goto switches sess to ym. Months outside the configured range are ignored
// without contacting the store; the returned flag reports whether the month
// changed.
func (s *Service) Goto(ctx context.Context, sess *Session, ym core.YearMonth) (bool, error) {
	if ym.Validate() != nil || !s.settings.Range.Contains(ym) {
		return false, nil
	}
	if err := s.load(ctx, sess, ym); err != nil {
		return false, err
	}
	return true, nil
}

// Navigate moves sess by delta months.
func (s *Service) Navigate(ctx context.Context, sess *Session, delta int) (bool, error) {
	return s.Goto(ctx, sess, sess.Month.Add(delta))
}

// Create adds an event to the selected day.
func (s *Service) Create(ctx context.Context, sess *Session, in CreateInput) (core.Event, error) {
	if err := s.ensureLoaded(sess); err != nil {
		return core.Event{}, err
	}
	name := strings.TrimSpace(in.Name)
	if err := core.ValidateName(name); err != nil {
		return core.Event{}, err
	}
	value, err := core.ParseValue(in.Value)
	if err != nil {
		return core.Event{}, err
	}
	color := core.NormalizeColor(in.Color, s.settings.DefaultColor)
	if err := core.ValidateColor(color); err != nil {
		return core.Event{}, err
	}
	if !sess.Month.Contains(sess.Selected) {
		return core.Event{}, ErrDayOutsideMonth
	}

	ev, err := s.events.Insert(ctx, sess.Identity, core.NewEvent{
		OwnerID: sess.Identity.UserID,
		Date:    sess.Selected,
		Name:    name,
		Value:   value,
		Color:   color,
	})
	if err != nil {
		return core.Event{}, s.storeErr("create event", err)
	}
	sess.Cache.ApplyCreate(ev)
	sess.Colors.Register(ev.Name, ev.Color)
	log.NewStructuredLogger(s.logger).LogEventCreated(ctx, sess.Identity.UserID, ev.ID, ev.Name, ev.Date.Key(), ev.Value)
	return ev, nil
}

// ToggleDone flips the completion flag of a loaded event.
func (s *Service) ToggleDone(ctx context.Context, sess *Session, id string) (core.Event, error) {
	current, err := s.editable(sess, id)
	if err != nil {
		return core.Event{}, err
	}
	done := !current.Done
	ev, err := s.events.UpdateByID(ctx, sess.Identity, id, core.EventPatch{Done: &done})
	if err != nil {
		return core.Event{}, s.storeErr("toggle done", err)
	}
	sess.Cache.ApplyUpdate(ev)
	return ev, nil
}

// Edit changes name, value and color of a loaded event, then submits the
// recolor of all same-named events in the actor's scope.
func (s *Service) Edit(ctx context.Context, sess *Session, id string, in EditInput) (core.Event, error) {
	current, err := s.editable(sess, id)
	if err != nil {
		return core.Event{}, err
	}
	name := strings.TrimSpace(in.Name)
	if err := core.ValidateName(name); err != nil {
		return core.Event{}, err
	}
	value, err := core.ParseValue(in.Value)
	if err != nil {
		return core.Event{}, err
	}
	color := core.NormalizeColor(in.Color, core.NormalizeColor(current.Color, s.settings.DefaultColor))
	if err := core.ValidateColor(color); err != nil {
		return core.Event{}, err
	}

	ev, err := s.events.UpdateByID(ctx, sess.Identity, id, core.EventPatch{Name: &name, Value: &value, Color: &color})
	if err != nil {
		return core.Event{}, s.storeErr("edit event", err)
	}
	sess.Cache.ApplyUpdate(ev)
	sess.Colors.Rename(current.Name, ev.Name, ev.Color)

	if s.propagator != nil {
		s.propagator.Submit(ctx, propagation.Task{
			Actor:   sess.Identity,
			Name:    ev.Name,
			Color:   ev.Color,
			EventID: ev.ID,
		})
	}
	return ev, nil
}

// Delete removes a loaded event.
func (s *Service) Delete(ctx context.Context, sess *Session, id string) error {
	current, err := s.editable(sess, id)
	if err != nil {
		return err
	}
	if err := s.events.DeleteByID(ctx, sess.Identity, id); err != nil {
		return s.storeErr("delete event", err)
	}
	sess.Cache.ApplyDelete(id, current.Date)
	return nil
}

// Summary is the budget of the selected day.
func (s *Service) Summary(sess *Session) Summary {
	return Summarize(sess.Cache.Get(sess.Selected.Key()), s.settings.DailyLimit)
}

func (s *Service) ensureLoaded(sess *Session) error {
	if !sess.Loaded() {
		return ErrNotLoaded
	}
	return nil
}

// editable resolves id in the loaded month and checks the permission rule.
func (s *Service) editable(sess *Session, id string) (core.Event, error) {
	if err := s.ensureLoaded(sess); err != nil {
		return core.Event{}, err
	}
	ev, ok := sess.Cache.Find(id)
	if !ok {
		return core.Event{}, ErrEventNotLoaded
	}
	if !CanEdit(ev, sess.Identity) {
		return core.Event{}, ErrForbidden
	}
	return ev, nil
}

func (s *Service) storeErr(op string, err error) error {
	if errors.Is(err, store.ErrForbidden) {
		return fmt.Errorf("%s: %w", op, errors.Join(ErrForbidden, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

package calendar

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"budgetcal/internal/core"
)

var (
	ErrForbidden       = errors.New("not allowed to modify this event")
	ErrDayOutsideMonth = errors.New("day outside the visible month")
	ErrEventNotLoaded  = errors.New("event not in the loaded month")
	ErrNotLoaded       = errors.New("month not loaded")
)

// MonthRange is the inclusive span of months a user may browse.
type MonthRange struct {
	Start core.YearMonth
	End   core.YearMonth
}

func (r MonthRange) Validate() error {
	if err := r.Start.Validate(); err != nil {
		return fmt.Errorf("range start: %w", err)
	}
	if err := r.End.Validate(); err != nil {
		return fmt.Errorf("range end: %w", err)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("range end %s before start %s", r.End, r.Start)
	}
	return nil
}

func (r MonthRange) Contains(ym core.YearMonth) bool {
	return !ym.Before(r.Start) && !ym.After(r.End)
}

// Session is the view state of one signed-in user: who they are, which month
// and day they look at and the caches built for that month. Callers hold the
// session lock for the whole of an operation and the rendering that follows.
type Session struct {
	mu sync.Mutex

	Identity core.Identity
	Month    core.YearMonth
	Selected core.Date
	Cache    *MonthCache
	Colors   *ColorRegistry

	loaded   bool
	LastSeen time.Time
}

func NewSession(id core.Identity, month core.YearMonth, defaultColor string) *Session {
	return &Session{
		Identity: id,
		Month:    month,
		Selected: month.First(),
		Cache:    NewMonthCache(month),
		Colors:   NewColorRegistry(defaultColor),
		LastSeen: time.Now(),
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Loaded reports whether the caches hold the visible month.
func (s *Session) Loaded() bool {
	return s.loaded
}

// SelectDay moves the selection. Days outside the visible month are rejected.
func (s *Session) SelectDay(d core.Date) error {
	if !s.Month.Contains(d) {
		return ErrDayOutsideMonth
	}
	s.Selected = d
	return nil
}

// replace swaps in a freshly fetched month.
func (s *Session) replace(month core.YearMonth, events []core.Event) {
	s.Month = month
	if !month.Contains(s.Selected) {
		s.Selected = month.First()
	}
	s.Cache.Reset(month, events)
	s.Colors.Load(s.Cache.Events())
	s.loaded = true
}

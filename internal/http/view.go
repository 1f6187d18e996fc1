package http

import (
	"html/template"
	"time"

	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
)

var templateFuncs = template.FuncMap{
	"value": core.FormatValue,
}

var weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type eventView struct {
	ID       string
	Name     string
	Value    float64
	Color    string // display color from the registry
	Stored   string // color stored on the event
	Done     bool
	Editable bool
	Own      bool
}

type dayCell struct {
	Key      string
	Day      int
	Empty    bool
	Selected bool
	Today    bool
	Events   []eventView
}

type calendarView struct {
	Month        string
	MonthKey     string
	CanPrev      bool
	CanNext      bool
	Weekdays     []string
	Weeks        [][]dayCell
	SelectedKey  string
	DayEvents    []eventView
	Summary      calendar.Summary
	DefaultColor string
	Email        string
	Role         string
	Elevated     bool
	Error        string
}

func (s *Server) buildView(sess *calendar.Session, now time.Time) calendarView {
	settings := s.calendar.Settings()
	ym := sess.Month
	today := core.NewDate(now.Year(), int(now.Month()), now.Day()).Key()
	selected := sess.Selected.Key()

	v := calendarView{
		Month:        ym.First().Format("January 2006"),
		MonthKey:     ym.String(),
		CanPrev:      settings.Range.Contains(ym.Add(-1)),
		CanNext:      settings.Range.Contains(ym.Add(1)),
		Weekdays:     weekdays,
		SelectedKey:  selected,
		Summary:      s.calendar.Summary(sess),
		DefaultColor: settings.DefaultColor,
		Email:        sess.Identity.Email,
		Role:         string(sess.Identity.Role),
		Elevated:     sess.Identity.Role.Elevated(),
	}

	for _, week := range calendar.Weeks(ym) {
		row := make([]dayCell, len(week))
		for i, d := range week {
			if d.IsZero() {
				row[i] = dayCell{Empty: true}
				continue
			}
			key := d.Key()
			row[i] = dayCell{
				Key:      key,
				Day:      d.Day(),
				Selected: key == selected,
				Today:    key == today,
				Events:   eventViews(sess, sess.Cache.Get(key)),
			}
		}
		v.Weeks = append(v.Weeks, row)
	}
	v.DayEvents = eventViews(sess, sess.Cache.Get(selected))
	return v
}

func eventViews(sess *calendar.Session, events []core.Event) []eventView {
	out := make([]eventView, len(events))
	for i, e := range events {
		out[i] = eventView{
			ID:       e.ID,
			Name:     e.Name,
			Value:    e.Value,
			Color:    sess.Colors.ColorFor(e.Name, e.Color),
			Stored:   e.Color,
			Done:     e.Done,
			Editable: calendar.CanEdit(e, sess.Identity),
			Own:      e.OwnerID == sess.Identity.UserID,
		}
	}
	return out
}

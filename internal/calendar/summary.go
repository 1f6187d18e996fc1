package calendar

import (
	"budgetcal/internal/core"
)

// Summary is the budget view of one day.
type Summary struct {
	Total     float64
	Used      float64
	Remaining float64
	Limit     float64
}

// Summarize totals the events of one day against dailyLimit. Used counts
// done events only and Remaining never drops below zero.
func Summarize(events []core.Event, dailyLimit float64) Summary {
	s := Summary{Limit: dailyLimit}
	for _, e := range events {
		s.Total += e.Value
		if e.Done {
			s.Used += e.Value
		}
	}
	s.Remaining = max(0, dailyLimit-s.Used)
	return s
}

// CanEdit reports whether who may update or delete e.
func CanEdit(e core.Event, who core.Identity) bool {
	return who.Role.Elevated() || e.OwnerID == who.UserID
}

package calendar

import (
	"time"

	"budgetcal/internal/core"
)

// Weeks lays ym out as Sunday-first rows of seven cells. Cells before the
// first and after the last day hold the zero Date.
func Weeks(ym core.YearMonth) [][]core.Date {
	first := ym.First()
	last := ym.Last().Day()
	lead := int(first.Weekday() - time.Sunday)

	cells := make([]core.Date, lead, lead+last+6)
	for d := 1; d <= last; d++ {
		cells = append(cells, core.NewDate(ym.Year, ym.Month, d))
	}
	for len(cells)%7 != 0 {
		cells = append(cells, core.Date{})
	}

	weeks := make([][]core.Date, 0, len(cells)/7)
	for i := 0; i < len(cells); i += 7 {
		weeks = append(weeks, cells[i:i+7])
	}
	return weeks
}

// Package ical renders a month of calendar events as an iCalendar document.
package ical

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"budgetcal/internal/core"
)

const productID = "-//budgetcal//month export//EN"

// ColorFunc resolves the display color of an event.
type ColorFunc func(e core.Event) string

// UID is the stable iCalendar identifier of an event.
func UID(id string) string {
	return id + "@budgetcal"
}

// Summary is the one-line label used for pills and exported events.
func Summary(e core.Event) string {
	return fmt.Sprintf("%s — %s", e.Name, core.FormatValue(e.Value))
}

// ExportMonth renders events as all-day VEVENTs. colorFor may be nil, in
// which case the stored color is used.
func ExportMonth(calendarName string, events []core.Event, colorFor ColorFunc, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if calendarName != "" {
		cal.SetXWRCalName(calendarName)
	}

	for _, e := range events {
		ve := cal.AddEvent(UID(e.ID))
		ve.SetDtStampTime(stamp.UTC())
		if !e.CreatedAt.IsZero() {
			ve.SetCreatedTime(e.CreatedAt.UTC())
		}
		ve.SetAllDayStartAt(e.Date.Time)
		ve.SetAllDayEndAt(e.Date.AddDate(0, 0, 1))
		ve.SetSummary(Summary(e))
		ve.SetDescription(fmt.Sprintf("value: %s", core.FormatValue(e.Value)))

		color := e.Color
		if colorFor != nil {
			color = colorFor(e)
		}
		if color != "" {
			ve.SetProperty(ics.ComponentProperty("COLOR"), color)
		}
		if e.Done {
			ve.SetStatus(ics.ObjectStatusCompleted)
		} else {
			ve.SetStatus(ics.ObjectStatusConfirmed)
		}
	}
	return cal.Serialize()
}

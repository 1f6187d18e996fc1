// Package calendar holds the month-scoped view of the event store: the day
// buckets of one loaded month, the name color registry, the day summary and
// the services that keep them consistent with the store.
package calendar

import (
	"budgetcal/internal/core"
)

// MonthCache is the projection of one month's events keyed by day.
// Buckets keep store order: date, then creation time.
type MonthCache struct {
	month   core.YearMonth
	buckets map[string][]core.Event
}

func NewMonthCache(month core.YearMonth) *MonthCache {
	return &MonthCache{month: month, buckets: map[string][]core.Event{}}
}

// Reset replaces the whole cache with events for month. Events dated outside
// month are dropped.
func (c *MonthCache) Reset(month core.YearMonth, events []core.Event) {
	c.month = month
	c.buckets = make(map[string][]core.Event, len(events))
	for _, e := range events {
		if !month.Contains(e.Date) {
			continue
		}
		key := e.Date.Key()
		c.buckets[key] = append(c.buckets[key], e)
	}
}

func (c *MonthCache) Month() core.YearMonth {
	return c.month
}

// Get returns a copy of the bucket for the day key, or an empty slice.
func (c *MonthCache) Get(dateKey string) []core.Event {
	bucket := c.buckets[dateKey]
	out := make([]core.Event, len(bucket))
	copy(out, bucket)
	return out
}

// Find looks an event up by id across the month.
func (c *MonthCache) Find(id string) (core.Event, bool) {
	for _, bucket := range c.buckets {
		for _, e := range bucket {
			if e.ID == id {
				return e, true
			}
		}
	}
	return core.Event{}, false
}

// Events returns every cached event in date then bucket order.
func (c *MonthCache) Events() []core.Event {
	var out []core.Event
	last := c.month.Last().Day()
	for d := 1; d <= last; d++ {
		out = append(out, c.buckets[core.NewDate(c.month.Year, c.month.Month, d).Key()]...)
	}
	return out
}

// ApplyCreate appends e to the end of its day bucket. Events outside the
// loaded month are ignored.
func (c *MonthCache) ApplyCreate(e core.Event) {
	if !c.month.Contains(e.Date) {
		return
	}
	key := e.Date.Key()
	c.buckets[key] = append(c.buckets[key], e)
}

// ApplyUpdate replaces the event with the same id in its bucket. It reports
// whether a replacement happened.
func (c *MonthCache) ApplyUpdate(e core.Event) bool {
	bucket := c.buckets[e.Date.Key()]
	for i := range bucket {
		if bucket[i].ID == e.ID {
			bucket[i] = e
			return true
		}
	}
	return false
}

// ApplyDelete removes the event with id from the bucket for date. An unknown
// id leaves the bucket unchanged.
func (c *MonthCache) ApplyDelete(id string, date core.Date) {
	key := date.Key()
	bucket := c.buckets[key]
	for i := range bucket {
		if bucket[i].ID != id {
			continue
		}
		next := make([]core.Event, 0, len(bucket)-1)
		next = append(next, bucket[:i]...)
		next = append(next, bucket[i+1:]...)
		if len(next) == 0 {
			delete(c.buckets, key)
		} else {
			c.buckets[key] = next
		}
		return
	}
}

package calendar

import (
	"budgetcal/internal/core"
)

// ColorRegistry maps normalized event names to one display color so every
// event sharing a name renders alike within the loaded month. It caches
// colors; the stored color on each event stays authoritative.
type ColorRegistry struct {
	fallback string
	colors   map[string]string
}

func NewColorRegistry(fallback string) *ColorRegistry {
	if fallback == "" {
		fallback = core.DefaultColor
	}
	return &ColorRegistry{fallback: fallback, colors: map[string]string{}}
}

// Load rebuilds the registry. The first event seen for a name wins.
func (r *ColorRegistry) Load(events []core.Event) {
	r.colors = make(map[string]string, len(events))
	for _, e := range events {
		key := core.NormalizeName(e.Name)
		if _, ok := r.colors[key]; ok {
			continue
		}
		r.colors[key] = r.orFallback(e.Color)
	}
}

// ColorFor returns the registered color for name, else stored, else the
// fallback color.
func (r *ColorRegistry) ColorFor(name, stored string) string {
	if c, ok := r.Lookup(name); ok {
		return c
	}
	return r.orFallback(stored)
}

// Lookup reports the registered color for name.
func (r *ColorRegistry) Lookup(name string) (string, bool) {
	c, ok := r.colors[core.NormalizeName(name)]
	return c, ok
}

// Register sets the color of name, replacing any existing entry.
func (r *ColorRegistry) Register(name, color string) {
	r.colors[core.NormalizeName(name)] = r.orFallback(color)
}

// Rename drops oldName and registers newName with color.
func (r *ColorRegistry) Rename(oldName, newName, color string) {
	delete(r.colors, core.NormalizeName(oldName))
	r.Register(newName, color)
}

func (r *ColorRegistry) Len() int {
	return len(r.colors)
}

func (r *ColorRegistry) orFallback(c string) string {
	if c == "" {
		return r.fallback
	}
	return c
}

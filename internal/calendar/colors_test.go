package calendar

import (
	"testing"

	"budgetcal/internal/core"
)

func TestColorRegistryFirstSeenWins(t *testing.T) {
	r := NewColorRegistry("")
	r.Load([]core.Event{
		{Name: "Gym", Color: "#111"},
		{Name: "gym", Color: "#222"},
		{Name: " Lunch ", Color: ""},
	})
	if got := r.ColorFor("gym", ""); got != "#111" {
		t.Errorf("ColorFor(gym) = %q, want #111", got)
	}
	if got := r.ColorFor("lunch", "#999"); got != core.DefaultColor {
		t.Errorf("empty stored color should register the default, got %q", got)
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", r.Len())
	}
}

func TestColorForFallbacks(t *testing.T) {
	r := NewColorRegistry("#abcdef")
	tests := []struct {
		name, stored, want string
	}{
		{"unknown", "#123", "#123"},
		{"unknown", "", "#abcdef"},
	}
	for _, tt := range tests {
		if got := r.ColorFor(tt.name, tt.stored); got != tt.want {
			t.Errorf("ColorFor(%q, %q) = %q, want %q", tt.name, tt.stored, got, tt.want)
		}
	}
}

func TestColorRegistryRenameAndRegister(t *testing.T) {
	r := NewColorRegistry("")
	r.Load([]core.Event{{Name: "Coffee", Color: "#333"}})

	r.Rename("Coffee", "Coffees", "#ff0000")
	if _, ok := r.Lookup("coffee"); ok {
		t.Error("old key should be dropped")
	}
	if c, ok := r.Lookup("COFFEES"); !ok || c != "#ff0000" {
		t.Errorf("new key = %q, %v", c, ok)
	}

	r.Register("Coffees", "#00ff00")
	if c, _ := r.Lookup("coffees"); c != "#00ff00" {
		t.Errorf("Register should overwrite, got %q", c)
	}
}

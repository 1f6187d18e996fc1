package calendar

import (
	"testing"

	"budgetcal/internal/core"
)

func TestWeeks(t *testing.T) {
	tests := []struct {
		ym        core.YearMonth
		rows      int
		firstCell int // index of day 1 in the first row
	}{
		{core.YearMonth{Year: 2025, Month: 12}, 5, 1}, // Monday
		{core.YearMonth{Year: 2026, Month: 2}, 4, 0},  // Sunday, 28 days
		{core.YearMonth{Year: 2026, Month: 8}, 6, 6},  // Saturday, 31 days
	}
	for _, tt := range tests {
		t.Run(tt.ym.String(), func(t *testing.T) {
			weeks := Weeks(tt.ym)
			if len(weeks) != tt.rows {
				t.Fatalf("rows = %d, want %d", len(weeks), tt.rows)
			}
			days := 0
			for _, w := range weeks {
				if len(w) != 7 {
					t.Fatalf("row has %d cells", len(w))
				}
				for _, d := range w {
					if !d.IsZero() {
						days++
					}
				}
			}
			if days != tt.ym.Last().Day() {
				t.Fatalf("got %d days, want %d", days, tt.ym.Last().Day())
			}
			if weeks[0][tt.firstCell].Day() != 1 {
				t.Fatalf("day 1 not at cell %d", tt.firstCell)
			}
		})
	}
}

package core

import (
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDateRoundTripsKey(t *testing.T) {
	d, err := ParseDate(" 2026-02-09 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Key() != "2026-02-09" || d.Year() != 2026 || d.Month() != 2 || d.Day() != 9 {
		t.Fatalf("unexpected date %v", d)
	}
	if _, err := ParseDate("2026-13-01"); err == nil {
		t.Fatalf("expected error for month 13")
	}
}

func TestYearMonthBounds(t *testing.T) {
	cases := []struct {
		ym          YearMonth
		first, last string
	}{
		{YearMonth{2025, 12}, "2025-12-01", "2025-12-31"},
		{YearMonth{2026, 2}, "2026-02-01", "2026-02-28"},
		{YearMonth{2028, 2}, "2028-02-01", "2028-02-29"},
	}
	for _, tc := range cases {
		if got := tc.ym.First().Key(); got != tc.first {
			t.Fatalf("%v first=%s want %s", tc.ym, got, tc.first)
		}
		if got := tc.ym.Last().Key(); got != tc.last {
			t.Fatalf("%v last=%s want %s", tc.ym, got, tc.last)
		}
	}
}

func TestYearMonthAddAndCompare(t *testing.T) {
	dec := YearMonth{2025, 12}
	jan := dec.Add(1)
	if jan != (YearMonth{2026, 1}) {
		t.Fatalf("expected 2026-01, got %v", jan)
	}
	if jan.Add(-1) != dec {
		t.Fatalf("expected round trip to 2025-12")
	}
	if !dec.Before(jan) || !jan.After(dec) || dec.After(dec) {
		t.Fatalf("unexpected ordering")
	}
	if dec.String() != "2025-12" {
		t.Fatalf("unexpected string %q", dec.String())
	}
	if !dec.Contains(NewDate(2025, 12, 31)) || dec.Contains(NewDate(2026, 1, 1)) {
		t.Fatalf("unexpected Contains result")
	}
}

func TestResolveRole(t *testing.T) {
	cases := map[string]Role{
		"":        RoleNormal,
		"normal":  RoleNormal,
		"leader":  RoleLeader,
		" Leader": RoleLeader,
		"admin":   RoleNormal,
	}
	for attr, want := range cases {
		if got := ResolveRole(attr); got != want {
			t.Fatalf("ResolveRole(%q)=%q want %q", attr, got, want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  GyM "); got != "gym" {
		t.Fatalf("got %q", got)
	}
}

func TestNewEventValidate(t *testing.T) {
	good := NewEvent{OwnerID: "u1", Date: NewDate(2026, 1, 2), Name: "Coffee", Value: 2.5, Color: "#fff"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []NewEvent{
		{OwnerID: "", Date: NewDate(2026, 1, 2), Name: "a", Color: "#fff"},
		{OwnerID: "u1", Date: Date{}, Name: "a", Color: "#fff"},
		{OwnerID: "u1", Date: NewDate(2026, 1, 2), Name: "   ", Color: "#fff"},
		{OwnerID: "u1", Date: NewDate(2026, 1, 2), Name: "a", Color: "red"},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestEventPatchValidateAndApply(t *testing.T) {
	if err := (EventPatch{}).Validate(); err != ErrEmptyPatch {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
	empty := ""
	if err := (EventPatch{Name: &empty}).Validate(); err != ErrEmptyName {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}

	name, done := "Tea", true
	e := EventPatch{Name: &name, Done: &done}.Apply(Event{ID: "1", Name: "Coffee", Value: 3})
	if e.Name != "Tea" || !e.Done || e.Value != 3 {
		t.Fatalf("unexpected patched event %+v", e)
	}
}

package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"budgetcal/internal/core"
)

func TestParseDayParam(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"valid", "2026-01-15", "2026-01-15", false},
		{"surrounding space", " 2025-12-01 ", "2025-12-01", false},
		{"impossible day", "2026-02-30", "", true},
		{"wrong layout", "15/01/2026", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDayParam(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDayParam(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidDay) {
					t.Errorf("error %v should wrap ErrInvalidDay", err)
				}
				return
			}
			if got.Key() != tt.want {
				t.Errorf("ParseDayParam(%q) = %s, want %s", tt.input, got.Key(), tt.want)
			}
		})
	}
}

func TestParseMonthDirection(t *testing.T) {
	tests := []struct {
		dir    string
		want   int
		wantOK bool
	}{
		{"prev", -1, true},
		{"next", 1, true},
		{"NEXT", 1, true},
		{"sideways", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseMonthDirection(tt.dir)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseMonthDirection(%q) = %d, %v; want %d, %v", tt.dir, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseEventForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("name=+Coffee+&value=12%2C5&color=%23ff9900"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseEventForm(req)
	if err != nil {
		t.Fatalf("ParseEventForm() error = %v", err)
	}
	if form.Name != "Coffee" || form.Value != "12,5" || form.Color != "#ff9900" {
		t.Errorf("unexpected form %+v", form)
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"id": "123", "name": "test", "amount": 42.5}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}

	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}

	if name := parser.Get("name"); name != "test" {
		t.Errorf("Get('name') = %q, want 'test'", name)
	}

	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "id=456&name=form+test&value=100"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}

	if id := parser.Get("id"); id != "456" {
		t.Errorf("Get('id') = %q, want '456'", id)
	}

	if name := parser.Get("name"); name != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", name)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestParseFormOrFail(t *testing.T) {
	// Valid form request
	body := "field=value"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	result := ParseFormOrFail(req)
	if result != nil {
		t.Error("Expected nil for valid form, got error response")
	}

	// Verify form was parsed
	if req.Form.Get("field") != "value" {
		t.Error("Form was not parsed correctly")
	}
}

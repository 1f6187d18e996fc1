// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// event form bodies, selected days and month navigation.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
)

const maxBodyBytes = 64 << 10

// EventForm holds the raw fields of the add and edit forms.
type EventForm struct {
	Name  string
	Value string
	Color string
}

// ParseEventForm reads an event form from a JSON or form-encoded body.
func ParseEventForm(r *http.Request) (EventForm, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return EventForm{}, err
	}
	return EventForm{
		Name:  p.Get("name"),
		Value: p.Get("value"),
		Color: p.Get("color"),
	}, nil
}

func (f EventForm) createInput() calendar.CreateInput {
	return calendar.CreateInput{Name: f.Name, Value: f.Value, Color: f.Color}
}

func (f EventForm) editInput() calendar.EditInput {
	return calendar.EditInput{Name: f.Name, Value: f.Value, Color: f.Color}
}

// ParseDayParam parses a YYYY-MM-DD day key. Malformed keys report
// core.ErrInvalidDay.
func ParseDayParam(v string) (core.Date, error) {
	d, err := core.ParseDate(sanitizeInput(v))
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %v", core.ErrInvalidDay, err)
	}
	return d, nil
}

// ParseMonthDirection maps the {dir} path segment to a month delta.
func ParseMonthDirection(dir string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "prev":
		return -1, true
	case "next":
		return 1, true
	default:
		return 0, false
	}
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

// Package core provides value parsing and color handling utilities.
//
// This file contains the parsing rules applied to form input before any
// event reaches the store.
package core

import (
	"math"
	"strconv"
	"strings"
)

// DefaultColor is used when an event carries no color of its own.
const DefaultColor = "#6AA9FF"

// ParseValue converts user input to an event value.
//
// It accepts both dot (12.5) and comma (12,5) decimal separators, a leading
// sign and surrounding whitespace. Empty input, anything non-numeric and
// non-finite results are rejected with ErrInvalidValue.
//
// Examples:
//
//	ParseValue("2000000") -> 2000000, nil
//	ParseValue("12,5")    -> 12.5, nil
//	ParseValue("abc")     -> 0, ErrInvalidValue
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidValue
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidValue
	}
	if err := ValidateValue(v); err != nil {
		return 0, err
	}
	return v, nil
}

// ValidateValue rejects NaN and infinities.
func ValidateValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrInvalidValue
	}
	return nil
}

// ValidateColor accepts #rgb and #rrggbb hex colors.
func ValidateColor(c string) error {
	if len(c) != 4 && len(c) != 7 {
		return ErrInvalidColor
	}
	if c[0] != '#' {
		return ErrInvalidColor
	}
	for _, r := range c[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return ErrInvalidColor
		}
	}
	return nil
}

// NormalizeColor trims input and falls back to fallback when it is empty.
// The result still has to pass ValidateColor.
func NormalizeColor(c, fallback string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return fallback
	}
	return c
}

// FormatValue renders a value without a trailing fractional part when it is whole.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

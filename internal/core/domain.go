package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	RoleLeader Role = "leader"
	RoleNormal Role = "normal"
)

// DateKeyLayout is the canonical day key used by the month cache and the store.
const DateKeyLayout = "2006-01-02"

const maxNameLength = 200

type (
	Role string

	Date struct {
		time.Time
	}

	// YearMonth identifies one calendar month. Month is 1-12.
	YearMonth struct {
		Year  int
		Month int
	}

	Event struct {
		ID        string
		OwnerID   string
		Date      Date
		Name      string
		Value     float64
		Color     string
		Done      bool
		CreatedAt time.Time
	}

	// NewEvent is the insert payload; the store assigns ID and CreatedAt.
	NewEvent struct {
		OwnerID string
		Date    Date
		Name    string
		Value   float64
		Color   string
		Done    bool
	}

	// EventPatch lists the mutable fields of an event. Nil fields are left untouched.
	EventPatch struct {
		Name  *string
		Value *float64
		Color *string
		Done  *bool
	}

	User struct {
		ID           string
		Email        string
		PasswordHash string
		Role         string // optional attribute, see ResolveRole
		TOTPSecret   string
		CreatedAt    time.Time
	}

	// Identity is the acting principal passed to every store operation.
	Identity struct {
		UserID string
		Email  string
		Role   Role
	}
)

var (
	ErrInvalidDay   = errors.New("invalid day")
	ErrInvalidMonth = errors.New("invalid month")
	ErrInvalidValue = errors.New("invalid value")
	ErrEmptyName    = errors.New("empty name")
	ErrNameTooLong  = fmt.Errorf("name too long (max %d characters)", maxNameLength)
	ErrInvalidColor = errors.New("invalid color")
	ErrEmptyOwner   = errors.New("empty owner")
	ErrEmptyPatch   = errors.New("empty patch")
)

// ResolveRole maps the optional role attribute of a user to a Role.
// Anything other than the elevated role resolves to the normal role.
func ResolveRole(attr string) Role {
	if strings.EqualFold(strings.TrimSpace(attr), string(RoleLeader)) {
		return RoleLeader
	}
	return RoleNormal
}

func (r Role) Elevated() bool {
	return r == RoleLeader
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// Key returns the YYYY-MM-DD form of the date.
func (d Date) Key() string {
	return d.Format(DateKeyLayout)
}

// YearMonth returns the month the date falls in.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD day key.
func ParseDate(key string) (Date, error) {
	t, err := time.Parse(DateKeyLayout, strings.TrimSpace(key))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", key, err)
	}
	return Date{Time: t}, nil
}

// ParseYearMonth parses a YYYY-MM month key.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: int(t.Month())}, nil
}

func (ym YearMonth) Validate() error {
	if ym.Month < 1 || ym.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// First returns the first day of the month.
func (ym YearMonth) First() Date {
	return NewDate(ym.Year, ym.Month, 1)
}

// Last returns the last day of the month.
func (ym YearMonth) Last() Date {
	return Date{Time: ym.First().AddDate(0, 1, -1)}
}

// Add shifts the month by n months, normalizing the year.
func (ym YearMonth) Add(n int) YearMonth {
	t := ym.First().AddDate(0, n, 0)
	return YearMonth{Year: t.Year(), Month: int(t.Month())}
}

func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

func (ym YearMonth) After(other YearMonth) bool {
	return other.Before(ym)
}

// Contains reports whether d falls inside the month.
func (ym YearMonth) Contains(d Date) bool {
	return d.Year() == ym.Year && d.Month() == ym.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// NormalizeName is the registry key of an event name: trimmed and case folded.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateName checks a trimmed event name.
func ValidateName(name string) error {
	if len(strings.TrimSpace(name)) == 0 {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func (e NewEvent) Validate() error {
	if strings.TrimSpace(e.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := ValidateName(e.Name); err != nil {
		return err
	}
	if err := ValidateValue(e.Value); err != nil {
		return err
	}
	if err := ValidateColor(e.Color); err != nil {
		return err
	}
	return nil
}

func (p EventPatch) Validate() error {
	if p.Name == nil && p.Value == nil && p.Color == nil && p.Done == nil {
		return ErrEmptyPatch
	}
	if p.Name != nil {
		if err := ValidateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Value != nil {
		if err := ValidateValue(*p.Value); err != nil {
			return err
		}
	}
	if p.Color != nil {
		if err := ValidateColor(*p.Color); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns a copy of e with the patch applied.
func (p EventPatch) Apply(e Event) Event {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Value != nil {
		e.Value = *p.Value
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	if p.Done != nil {
		e.Done = *p.Done
	}
	return e
}

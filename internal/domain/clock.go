package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// minutesPerDay bounds same-day wall-clock values.
const minutesPerDay = 24 * 60

// ClockTime is a same-day wall-clock value stored as minutes after midnight.
// EndOfDay (24:00) is allowed as an exclusive interval end.
type ClockTime int

// EndOfDay is the exclusive upper bound for activity end times.
const EndOfDay ClockTime = minutesPerDay

// NewClockTime builds a clock value from hour and minute parts.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ClockOf extracts the wall-clock part of t in its own location.
func ClockOf(t time.Time) ClockTime {
	return NewClockTime(t.Hour(), t.Minute())
}

// ParseClockTime parses "HH:MM" input.
func ParseClockTime(raw string) (ClockTime, error) {
	raw = strings.TrimSpace(raw)
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, raw)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, raw)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, raw)
	}
	if hour < 0 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, raw)
	}
	ct := NewClockTime(hour, minute)
	if ct > EndOfDay {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, raw)
	}
	return ct, nil
}

// Hour returns the hour component.
func (c ClockTime) Hour() int {
	return int(c) / 60
}

// Minute returns the minute component.
func (c ClockTime) Minute() int {
	return int(c) % 60
}

// Add returns c shifted by the given number of minutes.
func (c ClockTime) Add(minutes int) ClockTime {
	return c + ClockTime(minutes)
}

// Valid reports whether c is inside one day.
func (c ClockTime) Valid() bool {
	return c >= 0 && c <= EndOfDay
}

// String renders c as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// MarshalText encodes c as "HH:MM".
func (c ClockTime) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidClockTime, int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes "HH:MM".
func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the number of minutes in a civil day.
const MinutesPerDay = 24 * 60

// TimeOfDay is a wall-clock time stored as minutes since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hours and minutes.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// TimeOfDayOf extracts the wall-clock portion of t, truncated to the minute.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

// ParseTimeOfDay accepts HH:MM, or HH:MM:SS with zero seconds as Postgres
// renders TIME columns. 24:00 is accepted as end of day.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", raw, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", raw, err)
	}
	if len(parts) == 3 {
		sec, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid time %q: %w", raw, err)
		}
		if sec != 0 {
			return 0, fmt.Errorf("invalid time %q: seconds are not supported", raw)
		}
	}
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", raw)
	}
	if hour == 24 && minute != 0 {
		return 0, fmt.Errorf("invalid time %q: out of range", raw)
	}
	return NewTimeOfDay(hour, minute), nil
}

// MustParseTimeOfDay panics on malformed input. Intended for constants and tests.
func MustParseTimeOfDay(raw string) TimeOfDay {
	t, err := ParseTimeOfDay(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int { return int(t) }

// Valid reports whether t lies within a civil day.
func (t TimeOfDay) Valid() bool { return t >= 0 && t <= MinutesPerDay }

// Sub returns the duration between u and t.
func (t TimeOfDay) Sub(u TimeOfDay) time.Duration {
	return time.Duration(int(t)-int(u)) * time.Minute
}

// On combines the wall-clock time with the given date in loc.
func (t TimeOfDay) On(d Date, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// String renders HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalJSON renders the time as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses "HH:MM" or "HH:MM:00".
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner for Postgres TIME columns.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*t = TimeOfDayOf(v)
		return nil
	case []byte:
		parsed, err := ParseTimeOfDay(string(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:00", t.Hour(), t.Minute()), nil
}

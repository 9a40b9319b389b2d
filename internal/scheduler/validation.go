package scheduler

import (
	"fmt"
	"regexp"
)

// canonicalDays is the accepted weekday vocabulary, lowercase English.
var canonicalDays = map[string]bool{
	"monday":    true,
	"tuesday":   true,
	"wednesday": true,
	"thursday":  true,
	"friday":    true,
	"saturday":  true,
	"sunday":    true,
}

// timePattern matches 24-hour HH:MM times.
var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// validate checks an entry's fields. Returns an error wrapping
// ErrValidation naming the first offending field.
func validate(entry *Entry) error {
	if entry.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(entry.Days) == 0 {
		return fmt.Errorf("%w: at least one weekday is required", ErrValidation)
	}
	for _, day := range entry.Days {
		if !canonicalDays[day] {
			return fmt.Errorf("%w: unknown weekday %q", ErrValidation, day)
		}
	}
	if !timePattern.MatchString(entry.StartTime) {
		return fmt.Errorf("%w: start time %q is not HH:MM", ErrValidation, entry.StartTime)
	}
	if entry.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	return nil
}

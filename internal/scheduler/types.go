package scheduler

import "time"

// Entry is one irrigation schedule: run for a duration at a wall-clock
// time on a set of weekdays. Entries are evaluated in stored order.
type Entry struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Days            []string  `json:"days"`
	StartTime       string    `json:"start_time"` // HH:MM, 24-hour
	DurationSeconds int       `json:"duration_seconds"`
	Active          bool      `json:"active"`
	SortOrder       int       `json:"sort_order"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// matchesDay reports whether the entry's weekday set contains the given
// canonical weekday name.
func (e *Entry) matchesDay(day string) bool {
	for _, d := range e.Days {
		if d == day {
			return true
		}
	}
	return false
}

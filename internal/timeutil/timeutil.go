// Package timeutil converts "HH:mm" daily trigger times into instants and
// decides when scheduled work is due.
package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DateLayout is the local calendar date format used for rotation stamps.
const DateLayout = "2006-01-02"

// DefaultTrigger is used whenever a configured trigger time does not parse.
var DefaultTrigger = Trigger{Hour: 9, Minute: 0}

var triggerPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// Trigger is a time of day.
type Trigger struct {
	Hour   int
	Minute int
}

// String formats the trigger as HH:mm.
func (t Trigger) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTrigger accepts "H:mm" or "HH:mm" with hour 0-23 and minute 00-59.
func ParseTrigger(text string) (Trigger, bool) {
	m := triggerPattern.FindStringSubmatch(text)
	if m == nil {
		return Trigger{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return Trigger{}, false
	}
	return Trigger{Hour: hour, Minute: minute}, true
}

// TriggerOrDefault parses text, falling back to DefaultTrigger.
func TriggerOrDefault(text string) Trigger {
	if t, ok := ParseTrigger(text); ok {
		return t
	}
	return DefaultTrigger
}

// At returns the trigger instant on now's calendar day, in now's location.
func (t Trigger) At(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, now.Location())
}

// NextRunAt returns today's trigger instant if now is strictly before it,
// otherwise the same clock time on the following calendar day.
func NextRunAt(now time.Time, triggerText string) time.Time {
	t := TriggerOrDefault(triggerText)
	today := t.At(now)
	if now.Before(today) {
		return today
	}
	y, m, d := now.Date()
	// time.Date normalizes d+1 across month and year ends.
	return time.Date(y, m, d+1, t.Hour, t.Minute, 0, 0, now.Location())
}

// ShouldCatchUp reports whether a scheduled run was missed today: now is at or
// after today's trigger and no sync happened since that trigger.
func ShouldCatchUp(now time.Time, triggerText string, lastSyncAt *time.Time) bool {
	today := TriggerOrDefault(triggerText).At(now)
	if now.Before(today) {
		return false
	}
	return lastSyncAt == nil || lastSyncAt.Before(today)
}

// NextMidnight returns the start of the calendar day after now, in now's location.
func NextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// LocalDate formats now as YYYY-MM-DD in its own location.
func LocalDate(now time.Time) string {
	return now.Format(DateLayout)
}

package booking

import (
	"strconv"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

// loadLocation returns the first loadable of the given timezones, or UTC.
func loadLocation(timezones ...string) *time.Location {
	for _, tz := range timezones {
		if tz == "" {
			continue
		}
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.UTC
}

func parseHHMM(s string) (hour, min int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	hour, _ = strconv.Atoi(parts[0])
	min, _ = strconv.Atoi(parts[1])
	return hour, min
}

// Occurrences returns the UTC start times of the first sched.TotalSessions sessions strictly after `now`.
// Days are walked chronologically from today in `loc`.
func Occurrences(sched Schedule, loc *time.Location, now time.Time) []time.Time {
	days := make(map[time.Weekday]bool, len(sched.DaysOfWeek))
	for _, name := range sched.DaysOfWeek {
		if wd, ok := weekdays[name]; ok {
			days[wd] = true
		}
	}
	if len(days) == 0 || sched.TotalSessions < 1 {
		return nil
	}

	hour, min := parseHHMM(sched.StartTime)
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	out := make([]time.Time, 0, sched.TotalSessions)
	for len(out) < sched.TotalSessions {
		if days[day.Weekday()] {
			start := time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, loc)
			if start.After(now) {
				out = append(out, start.UTC())
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

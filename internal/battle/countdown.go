package battle

import (
	"fmt"
	"time"
)

const (
	secondsPerDay    = 60 * 60 * 24
	secondsPerHour   = 60 * 60
	secondsPerMinute = 60
)

// TimeLeft is the remaining time until a battle ends, floored at zero.
type TimeLeft struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
	Total   int64 `json:"total"`
}

// Countdown computes the time left from now until endTime (unix seconds).
func Countdown(endTime int64, now time.Time) TimeLeft {
	total := endTime - now.Unix()
	if total <= 0 {
		return TimeLeft{}
	}
	return TimeLeft{
		Days:    total / secondsPerDay,
		Hours:   (total % secondsPerDay) / secondsPerHour,
		Minutes: (total % secondsPerHour) / secondsPerMinute,
		Seconds: total % secondsPerMinute,
		Total:   total,
	}
}

// Ended reports whether the countdown reached zero.
func (t TimeLeft) Ended() bool { return t.Total <= 0 }

func (t TimeLeft) String() string {
	switch {
	case t.Ended():
		return "Ended"
	case t.Days > 0:
		return fmt.Sprintf("%dd %02d:%02d:%02d", t.Days, t.Hours, t.Minutes, t.Seconds)
	case t.Hours > 0:
		return fmt.Sprintf("%02d:%02d:%02d", t.Hours, t.Minutes, t.Seconds)
	default:
		return fmt.Sprintf("%02d:%02d", t.Minutes, t.Seconds)
	}
}

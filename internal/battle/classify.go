package battle

import (
	"sort"
	"time"

	"github.com/memed/arena/internal/domain"
)

// Clock returns the current time. time.Now satisfies it.
type Clock func() time.Time

// Status strings shown on battle cards.
const (
	StatusActive        = "active"
	StatusReadyToSettle = "ready_to_settle"
	StatusSettled       = "settled"
)

// Classification partitions battles at a single instant.
type Classification struct {
	Active []domain.Battle `json:"active"`
	Ended  []domain.Battle `json:"ended"`
	Now    int64           `json:"now"`
}

// Classify splits battles into active (source order) and ended (EndTime
// descending, ties in source order). now is read once by the caller so every
// battle in a pass is judged against the same instant.
func Classify(battles []domain.Battle, now time.Time) Classification {
	ts := now.Unix()
	c := Classification{
		Active: make([]domain.Battle, 0, len(battles)),
		Ended:  make([]domain.Battle, 0),
		Now:    ts,
	}
	for _, b := range battles {
		if isActive(b, ts) {
			c.Active = append(c.Active, b)
		} else {
			c.Ended = append(c.Ended, b)
		}
	}
	sort.SliceStable(c.Ended, func(i, j int) bool {
		return c.Ended[i].EndTime > c.Ended[j].EndTime
	})
	return c
}

func isActive(b domain.Battle, now int64) bool {
	return !b.Settled && b.EndTime > now
}

// IsSettleable reports whether anyone may call settle on b right now.
func IsSettleable(b domain.Battle, now time.Time) bool {
	return !b.Settled && b.EndTime <= now.Unix()
}

// Settleable returns the ended battles that are not yet settled.
func (c Classification) Settleable() []domain.Battle {
	var out []domain.Battle
	for _, b := range c.Ended {
		if !b.Settled && b.EndTime <= c.Now {
			out = append(out, b)
		}
	}
	return out
}

// View is a battle plus everything a card needs to render it.
type View struct {
	domain.Battle
	ProgressA  float64  `json:"progressA"`
	ProgressB  float64  `json:"progressB"`
	Countdown  TimeLeft `json:"countdown"`
	Settleable bool     `json:"settleable"`
	Status     string   `json:"status"`
}

// BuildViews derives card views for battles against one instant.
func BuildViews(battles []domain.Battle, now time.Time) []View {
	views := make([]View, 0, len(battles))
	for _, b := range battles {
		v := View{
			Battle:     b,
			ProgressA:  VoteProgress(b.VotesA, b.VotesB),
			ProgressB:  VoteProgressB(b.VotesA, b.VotesB),
			Countdown:  Countdown(b.EndTime, now),
			Settleable: IsSettleable(b, now),
		}
		switch {
		case b.Settled:
			v.Status = StatusSettled
		case v.Settleable:
			v.Status = StatusReadyToSettle
		default:
			v.Status = StatusActive
		}
		views = append(views, v)
	}
	return views
}

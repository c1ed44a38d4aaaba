package reputation

import (
	"fmt"
	"time"
)

// Category is the closed set of leaderboard scoring dimensions. Dispatch is
// an exhaustive switch; an unknown string fails at parse time instead of
// silently scoring zero.
type Category int

const (
	CategoryEarnings Category = iota
	CategoryAccuracy
	CategoryChallenges
	CategoryContributions
	CategoryExpertise
	CategoryRisingStars
)

func Categories() []Category {
	return []Category{
		CategoryEarnings,
		CategoryAccuracy,
		CategoryChallenges,
		CategoryContributions,
		CategoryExpertise,
		CategoryRisingStars,
	}
}

func (c Category) String() string {
	switch c {
	case CategoryEarnings:
		return "earnings"
	case CategoryAccuracy:
		return "accuracy"
	case CategoryChallenges:
		return "challenges"
	case CategoryContributions:
		return "contributions"
	case CategoryExpertise:
		return "expertise"
	case CategoryRisingStars:
		return "risingStars"
	}
	panic(fmt.Sprintf("unhandled category %d", int(c)))
}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// Period is the time bucket a board is computed over.
type Period int

const (
	PeriodAllTime Period = iota
	PeriodWeekly
	PeriodMonthly
)

func Periods() []Period {
	return []Period{PeriodAllTime, PeriodWeekly, PeriodMonthly}
}

func (p Period) String() string {
	switch p {
	case PeriodAllTime:
		return "all-time"
	case PeriodWeekly:
		return "weekly"
	case PeriodMonthly:
		return "monthly"
	}
	panic(fmt.Sprintf("unhandled period %d", int(p)))
}

func ParsePeriod(s string) (Period, error) {
	for _, p := range Periods() {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown period %q", s)
}

// Start returns the unix timestamp activity must be at or after to count
// toward this period. All-time is the epoch.
func (p Period) Start(now time.Time) int64 {
	switch p {
	case PeriodAllTime:
		return 0
	case PeriodWeekly:
		return now.AddDate(0, 0, -7).Unix()
	case PeriodMonthly:
		return now.AddDate(0, 0, -30).Unix()
	}
	panic(fmt.Sprintf("unhandled period %d", int(p)))
}

package models

import "time"

// DateRange is the half-open interval [From, To).
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Years returns the inclusive calendar-year span touched by the range.
func (r DateRange) Years() YearRange {
	last := r.To
	if last.After(r.From) {
		last = last.Add(-time.Nanosecond)
	}
	return YearRange{From: r.From.Year(), To: last.Year()}
}

// YearRange is an inclusive span of calendar years.
type YearRange struct {
	From int
	To   int
}

func (r YearRange) Contains(year int) bool {
	return year >= r.From && year <= r.To
}

// Day returns the range covering the calendar day of t in t's location.
func Day(t time.Time) DateRange {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return DateRange{From: start, To: start.AddDate(0, 0, 1)}
}

package timecalc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "juju/internal/errors"
	"juju/internal/structures"
)

// DefaultEarlyMorningMaxHour is the last hour (inclusive) of the window in which
// an end time-of-day earlier than the start is read as belonging to the next day.
const DefaultEarlyMorningMaxHour = 3

const dateLayout = "2006-01-02"

// ambiguousHour is the hour some exports wrote for "just after midnight".
const ambiguousHour = 12

// Interval is a normalized pair of absolute timestamps.
type Interval struct {
	Start           time.Time
	End             time.Time
	CrossedMidnight bool
}

// Minutes rounds the interval half-up to whole minutes.
func (i Interval) Minutes() int {
	return roundMinutes(i.End.Sub(i.Start))
}

// Calculator turns start/end representations into durations.
type Calculator struct {
	EarlyMorningMaxHour int
	Location            *time.Location
}

func NewCalculator(earlyMorningMaxHour int, loc *time.Location) *Calculator {
	if earlyMorningMaxHour < 0 || earlyMorningMaxHour > 23 {
		earlyMorningMaxHour = DefaultEarlyMorningMaxHour
	}
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{EarlyMorningMaxHour: earlyMorningMaxHour, Location: loc}
}

// NewCalculatorFromConfig uses duration.earlyMorningMaxHour and storage.timezone.
func NewCalculatorFromConfig(conf *structures.Config) *Calculator {
	return NewCalculator(conf.Duration.EarlyMorningMaxHour, conf.Location())
}

// Minutes is the wall-clock difference between two absolute timestamps,
// rounded half-up to whole minutes. No day-boundary correction is applied.
func (c *Calculator) Minutes(start, end time.Time) (int, error) {
	if !end.After(start) {
		return 0, apperrors.NewInvalidIntervalError(start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return roundMinutes(end.Sub(start)), nil
}

// NormalizeLegacy combines a calendar date with start/end time-of-day strings.
// An end that lands at or before the start is moved to the next day only when
// its hour falls inside the early-morning window. When either time has hour 12
// and the interval crossed or failed to order, the record is flagged as
// ambiguous instead.
func (c *Calculator) NormalizeLegacy(date, startTOD, endTOD string) (Interval, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), c.location())
	if err != nil {
		return Interval{}, apperrors.NewMalformedRecordError(fmt.Sprintf("invalid date %q", date), err)
	}
	startClock, err := ParseTimeOfDay(startTOD)
	if err != nil {
		return Interval{}, err
	}
	endClock, err := ParseTimeOfDay(endTOD)
	if err != nil {
		return Interval{}, err
	}

	iv := Interval{
		Start: startClock.On(day),
		End:   endClock.On(day),
	}
	if !iv.End.After(iv.Start) && c.inEarlyMorning(endClock.Hour) {
		iv.End = endClock.On(day.AddDate(0, 0, 1))
		iv.CrossedMidnight = true
	}
	twelve := startClock.Hour == ambiguousHour || endClock.Hour == ambiguousHour
	// A 12 next to a day-boundary decision may have meant 00.
	if twelve && (iv.CrossedMidnight || !iv.End.After(iv.Start)) {
		return Interval{}, apperrors.NewAmbiguousHourError(date, startTOD, endTOD)
	}
	if !iv.End.After(iv.Start) {
		return Interval{}, apperrors.NewInvalidIntervalError(date+" "+startTOD, date+" "+endTOD)
	}
	return iv, nil
}

// LegacyMinutes is NormalizeLegacy followed by Minutes.
func (c *Calculator) LegacyMinutes(date, startTOD, endTOD string) (int, error) {
	iv, err := c.NormalizeLegacy(date, startTOD, endTOD)
	if err != nil {
		return 0, err
	}
	return iv.Minutes(), nil
}

// CorrectCrossing applies the day-boundary rule to absolute timestamps whose end
// was entered on the start's calendar date. It returns the corrected end.
func (c *Calculator) CorrectCrossing(start, end time.Time) (time.Time, error) {
	if end.After(start) {
		return end, nil
	}
	sameDay := start.Year() == end.Year() && start.YearDay() == end.YearDay()
	if sameDay && c.inEarlyMorning(end.Hour()) {
		end = end.AddDate(0, 0, 1)
	}
	if !end.After(start) {
		return end, apperrors.NewInvalidIntervalError(start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return end, nil
}

func (c *Calculator) inEarlyMorning(hour int) bool {
	return hour >= 0 && hour <= c.EarlyMorningMaxHour
}

// Zone is the location used to place wall-clock times and years.
func (c *Calculator) Zone() *time.Location {
	return c.location()
}

func (c *Calculator) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func roundMinutes(d time.Duration) int {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return 0
	}
	return int((secs + 30) / 60)
}

// Clock is a parsed time-of-day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// On places the clock on the calendar day of d, in d's location.
func (c Clock) On(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, c.Second, 0, d.Location())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// ParseTimeOfDay accepts "H:MM", "HH:MM" and "HH:MM:SS".
func ParseTimeOfDay(s string) (Clock, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, apperrors.NewMalformedRecordError(fmt.Sprintf("invalid time of day %q", s), nil)
	}
	var vals [3]int
	limits := [3]int{23, 59, 59}
	for i, p := range parts {
		if p == "" || len(p) > 2 {
			return Clock{}, apperrors.NewMalformedRecordError(fmt.Sprintf("invalid time of day %q", s), nil)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return Clock{}, apperrors.NewMalformedRecordError(fmt.Sprintf("invalid time of day %q", s), err)
		}
		vals[i] = n
	}
	return Clock{Hour: vals[0], Minute: vals[1], Second: vals[2]}, nil
}

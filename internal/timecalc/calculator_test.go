package timecalc

import (
	"testing"
	"time"

	apperrors "juju/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCalc() *Calculator {
	return NewCalculator(DefaultEarlyMorningMaxHour, time.UTC)
}

func TestNormalizeLegacy_CrossesMidnight(t *testing.T) {
	iv, err := newCalc().NormalizeLegacy("2024-12-15", "22:30", "00:02")
	require.NoError(t, err)

	assert.True(t, iv.CrossedMidnight)
	assert.Equal(t, time.Date(2024, 12, 15, 22, 30, 0, 0, time.UTC), iv.Start)
	assert.Equal(t, time.Date(2024, 12, 16, 0, 2, 0, 0, time.UTC), iv.End)
	assert.Equal(t, 92, iv.Minutes())
}

func TestLegacyMinutes(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		start    string
		end      string
		expected int
	}{
		{name: "same day", date: "2024-03-01", start: "09:00", end: "10:15", expected: 75},
		{name: "with seconds", date: "2024-03-01", start: "09:00:00", end: "10:15:00", expected: 75},
		{name: "mixed precision", date: "2024-03-01", start: "9:00", end: "10:15:40", expected: 76},
		{name: "half minute rounds up", date: "2024-03-01", start: "09:00:00", end: "09:00:30", expected: 1},
		{name: "under half minute rounds down", date: "2024-03-01", start: "09:00:00", end: "09:01:29", expected: 1},
		{name: "midnight crossing into 03", date: "2024-12-31", start: "23:50", end: "03:10", expected: 200},
		{name: "end exactly midnight", date: "2024-06-01", start: "23:00", end: "00:00", expected: 60},
	}

	calc := newCalc()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.LegacyMinutes(tt.date, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeLegacy_OutsideWindowIsInvalid(t *testing.T) {
	_, err := newCalc().NormalizeLegacy("2024-03-01", "22:00", "04:00")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInterval))
}

func TestNormalizeLegacy_EqualTimesOutsideWindowIsInvalid(t *testing.T) {
	_, err := newCalc().NormalizeLegacy("2024-03-01", "10:00", "10:00")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInterval))
}

func TestNormalizeLegacy_AmbiguousTwelveIsFlagged(t *testing.T) {
	_, err := newCalc().NormalizeLegacy("2024-03-01", "23:00", "12:30")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeAmbiguousHour))
}

func TestNormalizeLegacy_TwelveBeforeCrossingIsFlagged(t *testing.T) {
	_, err := newCalc().NormalizeLegacy("2024-03-01", "12:05", "01:00")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeAmbiguousHour))
}

func TestNormalizeLegacy_CrossingWithoutTwelveIsNotFlagged(t *testing.T) {
	iv, err := newCalc().NormalizeLegacy("2024-03-01", "23:30", "00:15")
	require.NoError(t, err)
	assert.True(t, iv.CrossedMidnight)
	assert.Equal(t, 45, iv.Minutes())
}

func TestNormalizeLegacy_NoonSessionIsNotFlagged(t *testing.T) {
	min, err := newCalc().LegacyMinutes("2024-03-01", "12:00", "12:45")
	require.NoError(t, err)
	assert.Equal(t, 45, min)
}

func TestNormalizeLegacy_ConfigurableWindow(t *testing.T) {
	calc := NewCalculator(5, time.UTC)
	min, err := calc.LegacyMinutes("2024-03-01", "23:00", "05:00")
	require.NoError(t, err)
	assert.Equal(t, 360, min)

	_, err = newCalc().LegacyMinutes("2024-03-01", "23:00", "05:00")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInterval))
}

func TestNormalizeLegacy_MalformedInput(t *testing.T) {
	calc := newCalc()
	_, err := calc.NormalizeLegacy("15/12/2024", "22:30", "23:00")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeMalformedRecord))

	_, err = calc.NormalizeLegacy("2024-12-15", "25:00", "23:00")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeMalformedRecord))

	_, err = calc.NormalizeLegacy("2024-12-15", "22:30", "noon")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeMalformedRecord))
}

func TestMinutes_Canonical(t *testing.T) {
	calc := newCalc()
	start := time.Date(2024, 12, 15, 22, 30, 0, 0, time.UTC)

	min, err := calc.Minutes(start, start.Add(92*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 92, min)

	min, err = calc.Minutes(start, start.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, min)

	min, err = calc.Minutes(start, start.Add(89*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, min)
}

func TestMinutes_CanonicalNeverCorrects(t *testing.T) {
	calc := newCalc()
	start := time.Date(2024, 12, 15, 22, 30, 0, 0, time.UTC)
	end := time.Date(2024, 12, 15, 0, 2, 0, 0, time.UTC)

	_, err := calc.Minutes(start, end)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInterval))

	_, err = calc.Minutes(start, start)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInterval))
}

func TestCorrectCrossing(t *testing.T) {
	calc := newCalc()
	start := time.Date(2024, 12, 15, 22, 30, 0, 0, time.UTC)

	end, err := calc.CorrectCrossing(start, time.Date(2024, 12, 15, 0, 2, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 16, 0, 2, 0, 0, time.UTC), end)

	already := time.Date(2024, 12, 16, 0, 2, 0, 0, time.UTC)
	end, err = calc.CorrectCrossing(start, already)
	require.NoError(t, err)
	assert.Equal(t, already, end)

	_, err = calc.CorrectCrossing(start, time.Date(2024, 12, 15, 21, 0, 0, 0, time.UTC))
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeInvalidInterval))
}

func TestParseTimeOfDay(t *testing.T) {
	c, err := ParseTimeOfDay(" 7:05 ")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 7, Minute: 5}, c)
	assert.Equal(t, "07:05:00", c.String())

	for _, bad := range []string{"", "7", "07:60", "07:00:61", "1:2:3:4", "007:00", "aa:bb"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewCalculator_Defaults(t *testing.T) {
	calc := NewCalculator(-1, nil)
	assert.Equal(t, DefaultEarlyMorningMaxHour, calc.EarlyMorningMaxHour)
	assert.Equal(t, time.Local, calc.Location)
}

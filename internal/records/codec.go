package records

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	apperrors "juju/internal/errors"
	"juju/internal/models"
	"juju/internal/timecalc"
)

// legacyIDNamespace derives stable ids for legacy rows that were stored without one.
var legacyIDNamespace = uuid.MustParse("6f1c39a4-5d2e-4c7b-9a0e-1f3b8d2c4e51")

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05Z07:00",
}

// Codec converts between stored rows and session values.
type Codec struct {
	calc *timecalc.Calculator
}

func NewCodec(calc *timecalc.Calculator) *Codec {
	return &Codec{calc: calc}
}

func (c *Codec) Calculator() *timecalc.Calculator {
	return c.calc
}

// Decode turns one row into a legacy or canonical record. line is the 1-based
// data row number and only feeds the derived id of legacy rows without one.
func (c *Codec) Decode(h Header, row []string, line int) (models.SessionRecord, error) {
	switch h.Schema {
	case models.SchemaCanonical:
		return c.decodeCanonical(h, row)
	case models.SchemaLegacy:
		return c.decodeLegacy(h, row, line)
	default:
		return nil, apperrors.NewMalformedRecordError("unknown schema", nil)
	}
}

func (c *Codec) decodeCanonical(h Header, row []string) (models.SessionRecord, error) {
	id := h.Field(row, ColID)
	if id == "" {
		return nil, apperrors.NewMalformedRecordError("missing id", nil)
	}
	start, err := c.parseTimestamp(h.Field(row, ColStartTimestamp))
	if err != nil {
		return nil, apperrors.NewMalformedRecordError("invalid start_timestamp", err)
	}
	end, err := c.parseTimestamp(h.Field(row, ColEndTimestamp))
	if err != nil {
		return nil, apperrors.NewMalformedRecordError("invalid end_timestamp", err)
	}
	mood, err := parseMood(h.Field(row, ColMood))
	if err != nil {
		return nil, err
	}
	return models.CanonicalSessionRecord{Session: models.Session{
		ID:             id,
		Start:          start,
		End:            end,
		ProjectID:      h.Field(row, ColProjectID),
		ProjectName:    h.Field(row, ColProject),
		ActivityTypeID: models.StringPtr(h.Field(row, ColActivityTypeID)),
		PhaseID:        models.StringPtr(h.Field(row, ColPhaseID)),
		MilestoneText:  h.RawField(row, ColMilestoneText),
		Notes:          h.RawField(row, ColNotes),
		Mood:           mood,
	}}, nil
}

func (c *Codec) decodeLegacy(h Header, row []string, line int) (models.SessionRecord, error) {
	rec := models.LegacySessionRecord{
		ID:             h.Field(row, ColID),
		Date:           h.Field(row, ColDate),
		StartTime:      h.Field(row, ColStartTime),
		EndTime:        h.Field(row, ColEndTime),
		ProjectName:    h.Field(row, ColProject),
		ProjectID:      models.StringPtr(h.Field(row, ColProjectID)),
		ActivityTypeID: models.StringPtr(h.Field(row, ColActivityTypeID)),
		PhaseID:        models.StringPtr(h.Field(row, ColPhaseID)),
		MilestoneText:  h.RawField(row, ColMilestoneText),
		Notes:          h.RawField(row, ColNotes),
	}
	if rec.Date == "" || rec.StartTime == "" || rec.EndTime == "" {
		return nil, apperrors.NewMalformedRecordError("legacy row without date or times", nil)
	}
	if _, err := timecalc.ParseTimeOfDay(rec.StartTime); err != nil {
		return nil, err
	}
	if _, err := timecalc.ParseTimeOfDay(rec.EndTime); err != nil {
		return nil, err
	}
	if raw := h.Field(row, ColDurationMinutes); raw != "" {
		// the stored duration is informational only, an unreadable value is dropped
		if n, err := cast.ToIntE(raw); err == nil {
			rec.DurationMinutes = &n
		}
	}
	mood, err := parseMood(h.Field(row, ColMood))
	if err != nil {
		return nil, err
	}
	rec.Mood = mood
	if rec.ID == "" {
		seed := strings.Join([]string{rec.Date, rec.StartTime, rec.EndTime, rec.ProjectName, strconv.Itoa(line)}, "|")
		rec.ID = uuid.NewSHA1(legacyIDNamespace, []byte(seed)).String()
	}
	return rec, nil
}

// ToSession returns the canonical session for a record, normalizing legacy
// date/time-of-day fields through the calculator.
func (c *Codec) ToSession(rec models.SessionRecord) (models.Session, error) {
	switch r := rec.(type) {
	case models.CanonicalSessionRecord:
		return r.Session, nil
	case models.LegacySessionRecord:
		iv, err := c.calc.NormalizeLegacy(r.Date, r.StartTime, r.EndTime)
		if err != nil {
			return models.Session{}, err
		}
		s := models.Session{
			ID:             r.ID,
			Start:          iv.Start,
			End:            iv.End,
			ProjectName:    r.ProjectName,
			ActivityTypeID: r.ActivityTypeID,
			PhaseID:        r.PhaseID,
			MilestoneText:  r.MilestoneText,
			Notes:          r.Notes,
			Mood:           r.Mood,
		}
		if r.ProjectID != nil {
			s.ProjectID = *r.ProjectID
		}
		return s, nil
	default:
		return models.Session{}, apperrors.NewMalformedRecordError(fmt.Sprintf("unsupported record %T", rec), nil)
	}
}

// Encode renders a session as a canonical row in CanonicalColumns order.
func (c *Codec) Encode(s models.Session) []string {
	return []string{
		s.ID,
		c.formatTimestamp(s.Start),
		c.formatTimestamp(s.End),
		s.ProjectID,
		s.ProjectName,
		deref(s.ActivityTypeID),
		deref(s.PhaseID),
		s.MilestoneText,
		s.Notes,
		formatMood(s.Mood),
	}
}

// EncodeLegacy renders a legacy record in LegacyColumns order.
func EncodeLegacy(r models.LegacySessionRecord) []string {
	duration := ""
	if r.DurationMinutes != nil {
		duration = strconv.Itoa(*r.DurationMinutes)
	}
	return []string{
		r.ID,
		r.Date,
		r.StartTime,
		r.EndTime,
		duration,
		r.ProjectName,
		deref(r.ProjectID),
		deref(r.ActivityTypeID),
		deref(r.PhaseID),
		r.MilestoneText,
		r.Notes,
		formatMood(r.Mood),
	}
}

func (c *Codec) parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.In(c.location()), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func (c *Codec) formatTimestamp(t time.Time) string {
	return t.In(c.location()).Format(time.RFC3339)
}

func (c *Codec) location() *time.Location {
	if c.calc == nil || c.calc.Location == nil {
		return time.Local
	}
	return c.calc.Location
}

func parseMood(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return nil, apperrors.NewMalformedRecordError(fmt.Sprintf("invalid mood %q", raw), err)
	}
	if n < models.MoodMin || n > models.MoodMax {
		return nil, apperrors.NewMalformedRecordError(fmt.Sprintf("mood %d outside %d-%d", n, models.MoodMin, models.MoodMax), nil)
	}
	return &n, nil
}

func formatMood(m *int) string {
	if m == nil {
		return ""
	}
	return strconv.Itoa(*m)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

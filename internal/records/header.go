package records

import (
	"fmt"
	"strings"

	apperrors "juju/internal/errors"
	"juju/internal/models"
)

// Column names shared by both schemas.
const (
	ColID             = "id"
	ColProjectID      = "project_id"
	ColProject        = "project"
	ColActivityTypeID = "activity_type_id"
	ColPhaseID        = "project_phase_id"
	ColMilestoneText  = "milestone_text"
	ColNotes          = "notes"
	ColMood           = "mood"

	ColStartTimestamp = "start_timestamp"
	ColEndTimestamp   = "end_timestamp"

	ColDate            = "date"
	ColStartTime       = "start_time"
	ColEndTime         = "end_time"
	ColDurationMinutes = "duration_minutes"
)

var CanonicalColumns = []string{
	ColID, ColStartTimestamp, ColEndTimestamp, ColProjectID, ColProject,
	ColActivityTypeID, ColPhaseID, ColMilestoneText, ColNotes, ColMood,
}

var LegacyColumns = []string{
	ColID, ColDate, ColStartTime, ColEndTime, ColDurationMinutes, ColProject,
	ColProjectID, ColActivityTypeID, ColPhaseID, ColMilestoneText, ColNotes, ColMood,
}

// Header is a parsed column set with its detected schema.
type Header struct {
	Schema  models.Schema
	Columns []string
	index   map[string]int
}

// ParseHeader normalizes column names and detects the schema from which
// timestamp columns are present. Canonical wins when both sets exist.
func ParseHeader(columns []string) (Header, error) {
	h := Header{
		Columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		h.Columns[i] = name
		if _, dup := h.index[name]; !dup {
			h.index[name] = i
		}
	}
	switch {
	case h.Has(ColStartTimestamp) && h.Has(ColEndTimestamp):
		h.Schema = models.SchemaCanonical
	case h.Has(ColDate) && h.Has(ColStartTime) && h.Has(ColEndTime):
		h.Schema = models.SchemaLegacy
	default:
		return h, apperrors.NewMalformedRecordError(
			fmt.Sprintf("header %v matches neither session schema", h.Columns), nil)
	}
	return h, nil
}

// DetectSchema reports which session schema a header row belongs to.
func DetectSchema(columns []string) (models.Schema, error) {
	h, err := ParseHeader(columns)
	if err != nil {
		return models.SchemaUnknown, err
	}
	return h.Schema, nil
}

// CanonicalHeader is the header written for every saved unit.
func CanonicalHeader() Header {
	h, _ := ParseHeader(CanonicalColumns)
	return h
}

func (h Header) Has(col string) bool {
	_, ok := h.index[col]
	return ok
}

// Field returns the trimmed value of col, or "" when the column is absent or the row is short.
func (h Header) Field(row []string, col string) string {
	i, ok := h.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// RawField returns the untrimmed value, used for free text.
func (h Header) RawField(row []string, col string) string {
	i, ok := h.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

package models

// Schema identifies which historical layout a stored session row uses.
type Schema int

const (
	SchemaUnknown Schema = iota
	SchemaLegacy
	SchemaCanonical
)

func (s Schema) String() string {
	switch s {
	case SchemaLegacy:
		return "legacy"
	case SchemaCanonical:
		return "canonical"
	default:
		return "unknown"
	}
}

// SessionRecord is either a LegacySessionRecord or a CanonicalSessionRecord.
type SessionRecord interface {
	Schema() Schema
	RecordID() string
}

// LegacySessionRecord is a row from the old layout: a calendar date plus
// start/end time-of-day strings and a separately stored duration.
// ProjectID is nil until migration resolves it from ProjectName.
type LegacySessionRecord struct {
	ID              string
	Date            string
	StartTime       string
	EndTime         string
	DurationMinutes *int
	ProjectName     string
	ProjectID       *string
	ActivityTypeID  *string
	PhaseID         *string
	MilestoneText   string
	Notes           string
	Mood            *int
}

func (r LegacySessionRecord) Schema() Schema   { return SchemaLegacy }
func (r LegacySessionRecord) RecordID() string { return r.ID }

// CanonicalSessionRecord is a row already stored with absolute timestamps.
type CanonicalSessionRecord struct {
	Session Session
}

func (r CanonicalSessionRecord) Schema() Schema   { return SchemaCanonical }
func (r CanonicalSessionRecord) RecordID() string { return r.Session.ID }

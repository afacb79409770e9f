package models

import (
	"time"
)

// MoodMin and MoodMax bound the optional mood rating.
const (
	MoodMin = 0
	MoodMax = 10
)

// Session is one tracked interval of work in canonical form.
// Duration is always derived from Start and End.
type Session struct {
	ID             string    `json:"id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	ProjectID      string    `json:"project_id"`
	ProjectName    string    `json:"project"`
	ActivityTypeID *string   `json:"activity_type_id,omitempty"`
	PhaseID        *string   `json:"phase_id,omitempty"`
	MilestoneText  string    `json:"milestone_text,omitempty"`
	Notes          string    `json:"notes"`
	Mood           *int      `json:"mood,omitempty"`
}

func (s Session) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// DurationMinutes rounds half-up to whole minutes and never goes below zero.
func (s Session) DurationMinutes() int {
	secs := int64(s.Duration() / time.Second)
	if secs <= 0 {
		return 0
	}
	return int((secs + 30) / 60)
}

// Year is the calendar year owning the session, in the start's location.
func (s Session) Year() int {
	return s.Start.Year()
}

func (s Session) HasProject() bool {
	return s.ProjectID != ""
}

// Clone returns a copy that shares no pointers with s.
func (s Session) Clone() Session {
	c := s
	if s.ActivityTypeID != nil {
		v := *s.ActivityTypeID
		c.ActivityTypeID = &v
	}
	if s.PhaseID != nil {
		v := *s.PhaseID
		c.PhaseID = &v
	}
	if s.Mood != nil {
		v := *s.Mood
		c.Mood = &v
	}
	return c
}

// StringPtr returns nil for an empty string.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func IntPtr(v int) *int {
	return &v
}

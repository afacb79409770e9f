package models

import "time"

// Aggregate is the derived per-project statistic held by the cache.
type Aggregate struct {
	ProjectID            string     `json:"project_id"`
	TotalDurationMinutes int        `json:"total_duration_minutes"`
	SessionCount         int        `json:"session_count"`
	LastSessionAt        *time.Time `json:"last_session_at,omitempty"`
	ComputedAt           time.Time  `json:"computed_at"`
}

// Add folds one session into the aggregate.
func (a *Aggregate) Add(s Session) {
	a.TotalDurationMinutes += s.DurationMinutes()
	a.SessionCount++
	if a.LastSessionAt == nil || s.Start.After(*a.LastSessionAt) {
		start := s.Start
		a.LastSessionAt = &start
	}
}

// AggregateByProject computes aggregates for every project seen in sessions.
func AggregateByProject(sessions []Session, computedAt time.Time) map[string]Aggregate {
	out := make(map[string]Aggregate)
	for _, s := range sessions {
		if !s.HasProject() {
			continue
		}
		agg, ok := out[s.ProjectID]
		if !ok {
			agg = Aggregate{ProjectID: s.ProjectID}
		}
		agg.Add(s)
		agg.ComputedAt = computedAt
		out[s.ProjectID] = agg
	}
	return out
}

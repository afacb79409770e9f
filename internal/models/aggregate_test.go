package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateByProject(t *testing.T) {
	computed := at("2024-06-01T12:00:00Z")
	sessions := []Session{
		{ProjectID: "p1", Start: at("2024-01-01T09:00:00Z"), End: at("2024-01-01T10:00:00Z")},
		{ProjectID: "p1", Start: at("2024-02-01T09:00:00Z"), End: at("2024-02-01T09:30:00Z")},
		{ProjectID: "p2", Start: at("2024-01-05T09:00:00Z"), End: at("2024-01-05T09:10:00Z")},
		{ProjectID: "", Start: at("2024-01-06T09:00:00Z"), End: at("2024-01-06T09:10:00Z")},
	}

	aggs := AggregateByProject(sessions, computed)
	require.Len(t, aggs, 2)

	p1 := aggs["p1"]
	assert.Equal(t, 90, p1.TotalDurationMinutes)
	assert.Equal(t, 2, p1.SessionCount)
	require.NotNil(t, p1.LastSessionAt)
	assert.True(t, p1.LastSessionAt.Equal(at("2024-02-01T09:00:00Z")))
	assert.Equal(t, computed, p1.ComputedAt)

	assert.Equal(t, 10, aggs["p2"].TotalDurationMinutes)
}

func TestAggregate_AddKeepsLatestStart(t *testing.T) {
	var a Aggregate
	a.Add(Session{Start: at("2024-05-01T09:00:00Z"), End: at("2024-05-01T10:00:00Z")})
	a.Add(Session{Start: at("2024-04-01T09:00:00Z"), End: at("2024-04-01T09:01:00Z")})

	assert.Equal(t, 61, a.TotalDurationMinutes)
	assert.True(t, a.LastSessionAt.Equal(at("2024-05-01T09:00:00Z")))
}

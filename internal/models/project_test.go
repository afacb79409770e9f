package models

import (
	"testing"

	"github.com/gookit/validate"
	"github.com/stretchr/testify/assert"
)

func TestProject_Phase(t *testing.T) {
	p := Project{ID: "p1", Phases: []Phase{{ID: "ph1", Name: "Draft"}, {ID: "ph2", Name: "Edit"}}}

	ph, ok := p.Phase("ph2")
	assert.True(t, ok)
	assert.Equal(t, "Edit", ph.Name)

	_, ok = p.Phase("missing")
	assert.False(t, ok)
}

func TestProject_NameEquals(t *testing.T) {
	p := Project{Name: "Novel"}
	assert.True(t, p.NameEquals("novel"))
	assert.True(t, p.NameEquals("  NOVEL "))
	assert.False(t, p.NameEquals("Novella"))
}

func TestProject_ValidationTags(t *testing.T) {
	ok := Project{ID: "p1", Name: "Novel", ColorHex: "#a1B2c3"}
	assert.True(t, validate.Struct(&ok).Validate())

	bad := Project{ID: "p1", Name: "Novel", ColorHex: "red"}
	assert.False(t, validate.Struct(&bad).Validate())

	noName := Project{ID: "p1", ColorHex: "#000000"}
	assert.False(t, validate.Struct(&noName).Validate())
}

func TestIndexes(t *testing.T) {
	pi := IndexProjects([]Project{{ID: "p1"}, {ID: "p2"}})
	assert.Len(t, pi, 2)
	assert.Equal(t, "p2", pi["p2"].ID)

	ai := IndexActivityTypes([]ActivityType{{ID: "a1", Name: "Writing"}})
	assert.Equal(t, "Writing", ai["a1"].Name)
}

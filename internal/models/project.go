package models

import "strings"

// Project groups sessions. Projects referenced by sessions are archived, not deleted.
type Project struct {
	ID           string  `json:"id" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	ColorHex     string  `json:"color" validate:"required|regex:^#[0-9A-Fa-f]{6}$"`
	Emoji        string  `json:"emoji"`
	About        *string `json:"about,omitempty"`
	DisplayOrder int     `json:"order"`
	Archived     bool    `json:"archived"`
	Phases       []Phase `json:"phases"`
}

// Phase belongs to exactly one project.
type Phase struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Order    int    `json:"order"`
	Archived bool   `json:"archived"`
}

type ActivityType struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Emoji       string `json:"emoji"`
	Description string `json:"description"`
	Archived    bool   `json:"archived"`
}

// Phase looks up a phase of the project by id.
func (p Project) Phase(id string) (Phase, bool) {
	for _, ph := range p.Phases {
		if ph.ID == id {
			return ph, true
		}
	}
	return Phase{}, false
}

// NameEquals compares project names case-insensitively, ignoring surrounding space.
func (p Project) NameEquals(name string) bool {
	return strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name))
}

// ProjectIndex maps project ids to projects.
type ProjectIndex map[string]Project

func IndexProjects(projects []Project) ProjectIndex {
	idx := make(ProjectIndex, len(projects))
	for _, p := range projects {
		idx[p.ID] = p
	}
	return idx
}

type ActivityTypeIndex map[string]ActivityType

func IndexActivityTypes(types []ActivityType) ActivityTypeIndex {
	idx := make(ActivityTypeIndex, len(types))
	for _, a := range types {
		idx[a.ID] = a
	}
	return idx
}

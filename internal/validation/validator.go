package validation

import (
	"context"
	"fmt"
	"strings"

	apperrors "juju/internal/errors"
	"juju/internal/models"
	"juju/internal/providers"
)

// UnsortedProjectName receives orphaned sessions under PolicyReassign.
const UnsortedProjectName = "Unsorted"

// Policy decides what Repair does with orphaned sessions.
type Policy string

const (
	PolicyReassign Policy = "reassign"
	PolicyFlag     Policy = "flag"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyReassign:
		return PolicyReassign, nil
	case PolicyFlag, "":
		return PolicyFlag, nil
	default:
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown repair policy %q", s), nil)
	}
}

// ProjectCreator finds an active project by name, restoring an archived match
// or creating it when missing.
type ProjectCreator interface {
	FindOrCreateActiveProject(name string) (models.Project, bool, error)
}

// RepairResult lists what Repair changed or reported. Reassigned sessions
// still have to be persisted by the caller.
type RepairResult struct {
	Reassigned     []models.Session `json:"reassigned"`
	Flagged        []models.Session `json:"flagged"`
	CreatedProject *models.Project  `json:"created_project,omitempty"`
}

type Validator struct {
	creator ProjectCreator
	logger  providers.Logger
}

func NewValidator(creator ProjectCreator, logger providers.Logger) *Validator {
	return &Validator{creator: creator, logger: logger}
}

// ValidateFields checks a session on its own: a project id, end after start
// and a mood inside 0..10.
func ValidateFields(s models.Session) error {
	if strings.TrimSpace(s.ProjectID) == "" {
		return apperrors.NewValidationError("session has no project", nil)
	}
	if !s.End.After(s.Start) {
		return apperrors.NewInvalidIntervalError(s.Start, s.End)
	}
	if s.Mood != nil && (*s.Mood < models.MoodMin || *s.Mood > models.MoodMax) {
		return apperrors.NewValidationError(
			fmt.Sprintf("mood %d is outside %d..%d", *s.Mood, models.MoodMin, models.MoodMax), nil)
	}
	return nil
}

// Validate checks the references of a session in order: project, phase of
// that project, activity type.
func Validate(s models.Session, projects models.ProjectIndex, activityTypes models.ActivityTypeIndex) error {
	project, ok := projects[s.ProjectID]
	if !ok {
		return apperrors.NewReferentialError("project_id", s.ProjectID, "project does not exist")
	}
	if s.PhaseID != nil {
		if _, ok := project.Phase(*s.PhaseID); !ok {
			return apperrors.NewReferentialError("project_phase_id", *s.PhaseID,
				fmt.Sprintf("phase does not belong to project %q", project.Name))
		}
	}
	if s.ActivityTypeID != nil {
		if _, ok := activityTypes[*s.ActivityTypeID]; !ok {
			return apperrors.NewReferentialError("activity_type_id", *s.ActivityTypeID, "activity type does not exist")
		}
	}
	return nil
}

// FindOrphans returns the sessions whose project id is absent or unknown.
func FindOrphans(sessions []models.Session, projects models.ProjectIndex) []models.Session {
	var orphans []models.Session
	for _, s := range sessions {
		if _, ok := projects[s.ProjectID]; !ok || !s.HasProject() {
			orphans = append(orphans, s)
		}
	}
	return orphans
}

// Repair applies policy to the orphans among sessions. Reassigned sessions
// move to the Unsorted project and lose their phase, which belonged to the
// missing project.
func (v *Validator) Repair(ctx context.Context, sessions []models.Session, projects models.ProjectIndex, policy Policy) (RepairResult, error) {
	var result RepairResult
	orphans := FindOrphans(sessions, projects)
	if len(orphans) == 0 {
		return result, nil
	}
	if policy != PolicyReassign {
		result.Flagged = orphans
		v.logger.Warnf(providers.TypeApp, "%d sessions reference missing projects", len(orphans))
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	unsorted, created, err := v.creator.FindOrCreateActiveProject(UnsortedProjectName)
	if err != nil {
		return result, err
	}
	if created {
		result.CreatedProject = &unsorted
	}
	for _, s := range orphans {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		moved := s.Clone()
		moved.ProjectID = unsorted.ID
		moved.ProjectName = unsorted.Name
		moved.PhaseID = nil
		result.Reassigned = append(result.Reassigned, moved)
	}
	v.logger.Infof(providers.TypeApp, "Reassigned %d orphaned sessions to %s", len(result.Reassigned), unsorted.Name)
	return result, nil
}

package services

import (
	"context"

	"juju/internal/models"
	"juju/internal/providers"
	"juju/internal/validation"
)

func (ss *SessionService) ListProjects() []models.Project {
	return ss.catalog.Projects()
}

func (ss *SessionService) CreateProject(p models.Project) (models.Project, error) {
	created, err := ss.catalog.CreateProject(p)
	if err != nil {
		return models.Project{}, err
	}
	ss.publish(Event{Kind: ProjectsChanged, ProjectIDs: []string{created.ID}})
	return created, nil
}

// UpdateProject saves p with its phases. A phase dropped from p that sessions
// still reference is kept, archived.
func (ss *SessionService) UpdateProject(ctx context.Context, p models.Project) (models.Project, error) {
	if previous, ok := ss.catalog.Project(p.ID); ok {
		kept, err := ss.keepReferencedPhases(ctx, previous, p)
		if err != nil {
			return models.Project{}, err
		}
		p.Phases = kept
	}
	updated, err := ss.catalog.UpdateProject(p)
	if err != nil {
		return models.Project{}, err
	}
	ss.cache.Invalidate(updated.ID)
	ss.publish(Event{Kind: ProjectsChanged, ProjectIDs: []string{updated.ID}})
	return updated, nil
}

func (ss *SessionService) ArchiveProject(id string) (models.Project, error) {
	archived, err := ss.catalog.ArchiveProject(id)
	if err != nil {
		return models.Project{}, err
	}
	ss.publish(Event{Kind: ProjectsChanged, ProjectIDs: []string{id}})
	return archived, nil
}

// DeleteProject removes the project, or archives it when any session still
// references it. It reports whether the project was archived instead.
func (ss *SessionService) DeleteProject(ctx context.Context, id string) (bool, error) {
	referenced, err := ss.referenced(ctx, func(s models.Session) bool { return s.ProjectID == id })
	if err != nil {
		return false, err
	}
	if referenced {
		if _, err := ss.ArchiveProject(id); err != nil {
			return false, err
		}
		ss.logger.Infof(providers.TypeApp, "Project %s is referenced by sessions, archived instead of deleted", id)
		return true, nil
	}
	if err := ss.catalog.DeleteProject(id); err != nil {
		return false, err
	}
	ss.cache.Invalidate(id)
	ss.publish(Event{Kind: ProjectsChanged, ProjectIDs: []string{id}})
	return false, nil
}

func (ss *SessionService) ListActivityTypes() []models.ActivityType {
	return ss.catalog.ActivityTypes()
}

func (ss *SessionService) CreateActivityType(a models.ActivityType) (models.ActivityType, error) {
	created, err := ss.catalog.CreateActivityType(a)
	if err != nil {
		return models.ActivityType{}, err
	}
	ss.publish(Event{Kind: ActivityTypesChanged})
	return created, nil
}

func (ss *SessionService) UpdateActivityType(a models.ActivityType) (models.ActivityType, error) {
	updated, err := ss.catalog.UpdateActivityType(a)
	if err != nil {
		return models.ActivityType{}, err
	}
	ss.publish(Event{Kind: ActivityTypesChanged})
	return updated, nil
}

func (ss *SessionService) ArchiveActivityType(id string) (models.ActivityType, error) {
	archived, err := ss.catalog.ArchiveActivityType(id)
	if err != nil {
		return models.ActivityType{}, err
	}
	ss.publish(Event{Kind: ActivityTypesChanged})
	return archived, nil
}

// DeleteActivityType works like DeleteProject.
func (ss *SessionService) DeleteActivityType(ctx context.Context, id string) (bool, error) {
	referenced, err := ss.referenced(ctx, func(s models.Session) bool {
		return s.ActivityTypeID != nil && *s.ActivityTypeID == id
	})
	if err != nil {
		return false, err
	}
	if referenced {
		if _, err := ss.ArchiveActivityType(id); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := ss.catalog.DeleteActivityType(id); err != nil {
		return false, err
	}
	ss.publish(Event{Kind: ActivityTypesChanged})
	return false, nil
}

// RepairOrphans applies policy to sessions whose project is missing and
// persists the reassigned ones.
func (ss *SessionService) RepairOrphans(ctx context.Context, policy validation.Policy) (validation.RepairResult, error) {
	sessions, _, err := ss.store.Load(ctx, nil)
	if err != nil {
		return validation.RepairResult{}, err
	}
	result, err := ss.validator.Repair(ctx, sessions, models.IndexProjects(ss.catalog.Projects()), policy)
	if err != nil {
		return result, err
	}
	if result.CreatedProject != nil {
		ss.publish(Event{Kind: ProjectsChanged, ProjectIDs: []string{result.CreatedProject.ID}})
	}
	if len(result.Reassigned) == 0 {
		return result, nil
	}

	for _, s := range result.Reassigned {
		if err := ss.store.Replace(ctx, s.ID, s); err != nil {
			return result, err
		}
	}
	ss.cache.Invalidate(result.Reassigned[0].ProjectID)
	ss.publishSession("", result.Reassigned[0].ProjectID)
	return result, nil
}

// CountOrphans reports how many sessions reference a missing project.
func (ss *SessionService) CountOrphans(ctx context.Context) (int, error) {
	sessions, _, err := ss.store.Load(ctx, nil)
	if err != nil {
		return 0, err
	}
	return len(validation.FindOrphans(sessions, models.IndexProjects(ss.catalog.Projects()))), nil
}

func (ss *SessionService) referenced(ctx context.Context, match func(models.Session) bool) (bool, error) {
	sessions, _, err := ss.store.Load(ctx, nil)
	if err != nil {
		return false, err
	}
	for _, s := range sessions {
		if match(s) {
			return true, nil
		}
	}
	return false, nil
}

func (ss *SessionService) keepReferencedPhases(ctx context.Context, previous, next models.Project) ([]models.Phase, error) {
	present := make(map[string]struct{}, len(next.Phases))
	for _, ph := range next.Phases {
		present[ph.ID] = struct{}{}
	}
	var dropped []models.Phase
	for _, ph := range previous.Phases {
		if _, ok := present[ph.ID]; !ok {
			dropped = append(dropped, ph)
		}
	}
	if len(dropped) == 0 {
		return next.Phases, nil
	}

	phases := next.Phases
	for _, ph := range dropped {
		id := ph.ID
		used, err := ss.referenced(ctx, func(s models.Session) bool {
			return s.ProjectID == previous.ID && s.PhaseID != nil && *s.PhaseID == id
		})
		if err != nil {
			return nil, err
		}
		if used {
			ph.Archived = true
			phases = append(phases, ph)
		}
	}
	return phases, nil
}

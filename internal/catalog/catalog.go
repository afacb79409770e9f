package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gookit/validate"

	apperrors "juju/internal/errors"
	"juju/internal/models"
	"juju/internal/providers"
	"juju/internal/storage"
	"juju/internal/structures"
)

const (
	ProjectsFile      = "projects.json"
	ActivityTypesFile = "activity-types.json"

	DefaultProjectColor = "#808080"
)

// Catalog owns the project and activity type documents. Both are small and
// rewritten in full on every change.
type Catalog struct {
	mu            sync.RWMutex
	projectsPath  string
	typesPath     string
	projects      []models.Project
	activityTypes []models.ActivityType
	logger        providers.Logger
}

func NewCatalog(conf *structures.Config, logger providers.Logger) (*Catalog, error) {
	if err := os.MkdirAll(conf.Storage.DataDir, 0o755); err != nil {
		return nil, apperrors.NewIOError("create data dir", conf.Storage.DataDir, err)
	}
	c := &Catalog{
		projectsPath: filepath.Join(conf.Storage.DataDir, ProjectsFile),
		typesPath:    filepath.Join(conf.Storage.DataDir, ActivityTypesFile),
		logger:       logger,
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rereads both documents from disk. A missing document is empty.
func (c *Catalog) Reload() error {
	var projects []models.Project
	if err := readDocument(c.projectsPath, &projects); err != nil {
		return err
	}
	var types []models.ActivityType
	if err := readDocument(c.typesPath, &types); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects = projects
	c.activityTypes = types
	return nil
}

// Projects returns every project, archived included, in display order.
func (c *Catalog) Projects() []models.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Project, len(c.projects))
	for i, p := range c.projects {
		out[i] = cloneProject(p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out
}

func (c *Catalog) Project(id string) (models.Project, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.projectIndex(id); i >= 0 {
		return cloneProject(c.projects[i]), true
	}
	return models.Project{}, false
}

// FindByName matches case-insensitively, preferring active projects over archived ones.
func (c *Catalog) FindByName(name string) (models.Project, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findByName(name)
}

func (c *Catalog) findByName(name string) (models.Project, bool) {
	var archived *models.Project
	for i := range c.projects {
		p := c.projects[i]
		if !p.NameEquals(name) {
			continue
		}
		if !p.Archived {
			return cloneProject(p), true
		}
		if archived == nil {
			archived = &c.projects[i]
		}
	}
	if archived != nil {
		return cloneProject(*archived), true
	}
	return models.Project{}, false
}

// CreateProject assigns ids, a default colour and the last display slot where missing.
func (c *Catalog) CreateProject(p models.Project) (models.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createProject(p)
}

func (c *Catalog) createProject(p models.Project) (models.Project, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.ColorHex == "" {
		p.ColorHex = DefaultProjectColor
	}
	if p.DisplayOrder == 0 {
		p.DisplayOrder = c.nextOrder()
	}
	p.Phases = normalizePhases(p.Phases)
	if err := validateProject(p); err != nil {
		return models.Project{}, err
	}
	if c.projectIndex(p.ID) >= 0 {
		return models.Project{}, apperrors.NewValidationError(fmt.Sprintf("project %s already exists", p.ID), nil)
	}
	if existing, ok := c.findByName(p.Name); ok && !existing.Archived {
		return models.Project{}, apperrors.NewValidationError(fmt.Sprintf("project %q already exists", p.Name), nil)
	}

	next := append(c.cloneProjects(), p)
	if err := writeDocument(c.projectsPath, next); err != nil {
		return models.Project{}, err
	}
	c.projects = next
	c.logger.Infof(providers.TypeApp, "Created project %s (%s)", p.Name, p.ID)
	return cloneProject(p), nil
}

// FindOrCreateProject returns the project named name, creating it when no
// project, active or archived, has that name.
func (c *Catalog) FindOrCreateProject(name string) (models.Project, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.findByName(name); ok {
		return p, false, nil
	}
	p, err := c.createProject(models.Project{Name: name})
	if err != nil {
		return models.Project{}, false, err
	}
	return p, true, nil
}

// FindOrCreateActiveProject is FindOrCreateProject for callers that must not
// file sessions under an archived project: an archived match is restored.
func (c *Catalog) FindOrCreateActiveProject(name string) (models.Project, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.findByName(name)
	if !ok {
		p, err := c.createProject(models.Project{Name: name})
		if err != nil {
			return models.Project{}, false, err
		}
		return p, true, nil
	}
	if !p.Archived {
		return p, false, nil
	}

	next := c.cloneProjects()
	i := c.projectIndex(p.ID)
	next[i].Archived = false
	if err := writeDocument(c.projectsPath, next); err != nil {
		return models.Project{}, false, err
	}
	c.projects = next
	c.logger.Infof(providers.TypeApp, "Restored archived project %s (%s)", p.Name, p.ID)
	return cloneProject(next[i]), false, nil
}

func (c *Catalog) UpdateProject(p models.Project) (models.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.projectIndex(p.ID)
	if i < 0 {
		return models.Project{}, apperrors.NewNotFoundError("project", p.ID)
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Phases = normalizePhases(p.Phases)
	if err := validateProject(p); err != nil {
		return models.Project{}, err
	}
	for j, other := range c.projects {
		if j != i && !other.Archived && other.NameEquals(p.Name) {
			return models.Project{}, apperrors.NewValidationError(fmt.Sprintf("project %q already exists", p.Name), nil)
		}
	}

	next := c.cloneProjects()
	next[i] = p
	if err := writeDocument(c.projectsPath, next); err != nil {
		return models.Project{}, err
	}
	c.projects = next
	return cloneProject(p), nil
}

func (c *Catalog) ArchiveProject(id string) (models.Project, error) {
	p, ok := c.Project(id)
	if !ok {
		return models.Project{}, apperrors.NewNotFoundError("project", id)
	}
	p.Archived = true
	return c.UpdateProject(p)
}

// DeleteProject removes the project document entry. Callers check references first.
func (c *Catalog) DeleteProject(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.projectIndex(id)
	if i < 0 {
		return apperrors.NewNotFoundError("project", id)
	}
	next := c.cloneProjects()
	next = append(next[:i], next[i+1:]...)
	if err := writeDocument(c.projectsPath, next); err != nil {
		return err
	}
	c.projects = next
	return nil
}

func (c *Catalog) ActivityTypes() []models.ActivityType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.ActivityType, len(c.activityTypes))
	copy(out, c.activityTypes)
	return out
}

func (c *Catalog) ActivityType(id string) (models.ActivityType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.activityTypeIndex(id); i >= 0 {
		return c.activityTypes[i], true
	}
	return models.ActivityType{}, false
}

func (c *Catalog) CreateActivityType(a models.ActivityType) (models.ActivityType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a.Name = strings.TrimSpace(a.Name)
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := validateEntity(&a, "activity type"); err != nil {
		return models.ActivityType{}, err
	}
	if c.activityTypeIndex(a.ID) >= 0 {
		return models.ActivityType{}, apperrors.NewValidationError(fmt.Sprintf("activity type %s already exists", a.ID), nil)
	}

	next := append(c.cloneActivityTypes(), a)
	if err := writeDocument(c.typesPath, next); err != nil {
		return models.ActivityType{}, err
	}
	c.activityTypes = next
	return a, nil
}

func (c *Catalog) UpdateActivityType(a models.ActivityType) (models.ActivityType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.activityTypeIndex(a.ID)
	if i < 0 {
		return models.ActivityType{}, apperrors.NewNotFoundError("activity type", a.ID)
	}
	a.Name = strings.TrimSpace(a.Name)
	if err := validateEntity(&a, "activity type"); err != nil {
		return models.ActivityType{}, err
	}

	next := c.cloneActivityTypes()
	next[i] = a
	if err := writeDocument(c.typesPath, next); err != nil {
		return models.ActivityType{}, err
	}
	c.activityTypes = next
	return a, nil
}

func (c *Catalog) ArchiveActivityType(id string) (models.ActivityType, error) {
	a, ok := c.ActivityType(id)
	if !ok {
		return models.ActivityType{}, apperrors.NewNotFoundError("activity type", id)
	}
	a.Archived = true
	return c.UpdateActivityType(a)
}

func (c *Catalog) DeleteActivityType(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.activityTypeIndex(id)
	if i < 0 {
		return apperrors.NewNotFoundError("activity type", id)
	}
	next := c.cloneActivityTypes()
	next = append(next[:i], next[i+1:]...)
	if err := writeDocument(c.typesPath, next); err != nil {
		return err
	}
	c.activityTypes = next
	return nil
}

func (c *Catalog) projectIndex(id string) int {
	for i, p := range c.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) activityTypeIndex(id string) int {
	for i, a := range c.activityTypes {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) nextOrder() int {
	last := 0
	for _, p := range c.projects {
		if p.DisplayOrder > last {
			last = p.DisplayOrder
		}
	}
	return last + 1
}

func (c *Catalog) cloneProjects() []models.Project {
	out := make([]models.Project, len(c.projects), len(c.projects)+1)
	for i, p := range c.projects {
		out[i] = cloneProject(p)
	}
	return out
}

func (c *Catalog) cloneActivityTypes() []models.ActivityType {
	out := make([]models.ActivityType, len(c.activityTypes), len(c.activityTypes)+1)
	copy(out, c.activityTypes)
	return out
}

func cloneProject(p models.Project) models.Project {
	if p.Phases != nil {
		phases := make([]models.Phase, len(p.Phases))
		copy(phases, p.Phases)
		p.Phases = phases
	}
	if p.About != nil {
		about := *p.About
		p.About = &about
	}
	return p
}

func normalizePhases(phases []models.Phase) []models.Phase {
	out := make([]models.Phase, 0, len(phases))
	for i, ph := range phases {
		ph.Name = strings.TrimSpace(ph.Name)
		if ph.ID == "" {
			ph.ID = uuid.NewString()
		}
		if ph.Order == 0 {
			ph.Order = i + 1
		}
		out = append(out, ph)
	}
	return out
}

func validateProject(p models.Project) error {
	if err := validateEntity(&p, "project"); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(p.Phases))
	for _, ph := range p.Phases {
		if ph.Name == "" {
			return apperrors.NewValidationError(fmt.Sprintf("phase %s of project %q has no name", ph.ID, p.Name), nil)
		}
		if _, dup := seen[ph.ID]; dup {
			return apperrors.NewValidationError(fmt.Sprintf("phase %s appears twice in project %q", ph.ID, p.Name), nil)
		}
		seen[ph.ID] = struct{}{}
	}
	return nil
}

func validateEntity(v interface{}, kind string) error {
	vd := validate.Struct(v)
	if !vd.Validate() {
		return apperrors.NewValidationError(fmt.Sprintf("invalid %s: %s", kind, vd.Errors.One()), nil)
	}
	return nil
}

func readDocument(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.NewIOError("read document", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.NewMalformedRecordError(fmt.Sprintf("document %s is not valid JSON", path), err)
	}
	return nil
}

func writeDocument(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperrors.NewIOError("encode document", path, err)
	}
	if err := storage.WriteFileAtomic(path, data, 0o644); err != nil {
		return apperrors.NewIOError("write document", path, err)
	}
	return nil
}

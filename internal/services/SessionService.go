package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"juju/internal/catalog"
	apperrors "juju/internal/errors"
	"juju/internal/migration"
	"juju/internal/models"
	"juju/internal/providers"
	"juju/internal/statistic"
	"juju/internal/storage"
	"juju/internal/structures"
	"juju/internal/timecalc"
	"juju/internal/validation"
)

// SessionHandle describes the running session.
type SessionHandle struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	ProjectName    string    `json:"project"`
	ActivityTypeID *string   `json:"activity_type_id,omitempty"`
	Start          time.Time `json:"start"`
}

// EndRequest carries the fields entered when a session is stopped.
type EndRequest struct {
	Notes         string  `json:"notes"`
	Mood          *int    `json:"mood,omitempty"`
	PhaseID       *string `json:"phase_id,omitempty"`
	MilestoneText string  `json:"milestone_text,omitempty"`
}

type SessionServiceInterface interface {
	StartSession(ctx context.Context, projectID string, activityTypeID *string) (SessionHandle, error)
	ActiveSession() (SessionHandle, bool)
	CancelActive() (SessionHandle, bool)
	EndSession(ctx context.Context, req EndRequest) (models.Session, error)
	CreateSession(ctx context.Context, s models.Session) (models.Session, error)
	UpdateSessionFull(ctx context.Context, id string, s models.Session) (models.Session, error)
	DeleteSession(ctx context.Context, id string) error

	QueryAllSessions(ctx context.Context, r *models.DateRange) ([]models.Session, storage.LoadReport, error)
	QueryByProject(ctx context.Context, projectID string) ([]models.Session, storage.LoadReport, error)
	QueryByDateInterval(ctx context.Context, r models.DateRange) ([]models.Session, storage.LoadReport, error)
	GetProjectAggregate(ctx context.Context, projectID string) (models.Aggregate, error)

	ListProjects() []models.Project
	CreateProject(p models.Project) (models.Project, error)
	UpdateProject(ctx context.Context, p models.Project) (models.Project, error)
	ArchiveProject(id string) (models.Project, error)
	DeleteProject(ctx context.Context, id string) (bool, error)

	ListActivityTypes() []models.ActivityType
	CreateActivityType(a models.ActivityType) (models.ActivityType, error)
	UpdateActivityType(a models.ActivityType) (models.ActivityType, error)
	ArchiveActivityType(id string) (models.ActivityType, error)
	DeleteActivityType(ctx context.Context, id string) (bool, error)

	RepairOrphans(ctx context.Context, policy validation.Policy) (validation.RepairResult, error)
	CountOrphans(ctx context.Context) (int, error)
	Migrate(ctx context.Context) (migration.Report, error)

	Subscribe(buffer int) *Subscription
	Subscribers() int
}

// SessionService is the single entry point for reading and changing
// sessions, projects and activity types. Events go out only after the
// change is on disk.
type SessionService struct {
	config    *structures.Config
	store     *storage.YearStore
	catalog   *catalog.Catalog
	validator *validation.Validator
	cache     *statistic.StatisticsCache
	migrator  *migration.Migrator
	calc      *timecalc.Calculator
	logger    providers.Logger
	events    *broker
	now       func() time.Time

	mu     sync.Mutex
	active *SessionHandle
	// ending serializes EndSession so one handle is persisted once.
	ending sync.Mutex
}

func NewSessionService(
	config *structures.Config,
	store *storage.YearStore,
	catalog *catalog.Catalog,
	validator *validation.Validator,
	cache *statistic.StatisticsCache,
	migrator *migration.Migrator,
	logger providers.Logger,
) *SessionService {
	return &SessionService{
		config:    config,
		store:     store,
		catalog:   catalog,
		validator: validator,
		cache:     cache,
		migrator:  migrator,
		calc:      store.Codec().Calculator(),
		logger:    logger,
		events:    newBroker(logger),
		now:       time.Now,
	}
}

// SetClock replaces the time source used to start and end sessions.
func (ss *SessionService) SetClock(now func() time.Time) {
	ss.now = now
}

// Location is the zone sessions are recorded in.
func (ss *SessionService) Location() *time.Location {
	return ss.calc.Zone()
}

func (ss *SessionService) clock() time.Time {
	return ss.now().In(ss.calc.Zone()).Truncate(time.Second)
}

// Start runs the migrator when storage.migrateOnStart is set.
func (ss *SessionService) Start(ctx context.Context) error {
	if !ss.config.Storage.MigrateOnStart {
		return nil
	}
	report, err := ss.Migrate(ctx)
	if err != nil {
		return err
	}
	for _, e := range report.Errors {
		ss.logger.Warnf(providers.TypeMigration, "%s", e)
	}
	return nil
}

// Close ends every subscription.
func (ss *SessionService) Close() {
	ss.events.closeAll()
}

func (ss *SessionService) StartSession(ctx context.Context, projectID string, activityTypeID *string) (SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return SessionHandle{}, err
	}
	project, ok := ss.catalog.Project(strings.TrimSpace(projectID))
	if !ok {
		return SessionHandle{}, apperrors.NewUnknownProjectError(projectID)
	}
	if activityTypeID != nil {
		if _, ok := ss.catalog.ActivityType(*activityTypeID); !ok {
			return SessionHandle{}, apperrors.NewReferentialError("activity_type_id", *activityTypeID, "activity type does not exist")
		}
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.active != nil {
		return SessionHandle{}, apperrors.NewSessionAlreadyActiveError(ss.active.ID)
	}
	handle := SessionHandle{
		ID:             uuid.NewString(),
		ProjectID:      project.ID,
		ProjectName:    project.Name,
		ActivityTypeID: activityTypeID,
		Start:          ss.clock(),
	}
	ss.active = &handle
	ss.logger.Infof(providers.TypeApp, "Started session %s on %s", handle.ID, project.Name)
	return handle, nil
}

func (ss *SessionService) ActiveSession() (SessionHandle, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.active == nil {
		return SessionHandle{}, false
	}
	return *ss.active, true
}

// CancelActive discards the running session without persisting it.
func (ss *SessionService) CancelActive() (SessionHandle, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.active == nil {
		return SessionHandle{}, false
	}
	handle := *ss.active
	ss.active = nil
	ss.logger.Infof(providers.TypeApp, "Cancelled session %s", handle.ID)
	return handle, true
}

// EndSession stops the running session at the current time and persists it.
// When validation or the write fails the session stays active.
func (ss *SessionService) EndSession(ctx context.Context, req EndRequest) (models.Session, error) {
	ss.ending.Lock()
	defer ss.ending.Unlock()

	handle, ok := ss.ActiveSession()
	if !ok {
		return models.Session{}, apperrors.NewNoActiveSessionError()
	}

	session := models.Session{
		ID:             handle.ID,
		Start:          handle.Start,
		End:            ss.clock(),
		ProjectID:      handle.ProjectID,
		ProjectName:    handle.ProjectName,
		ActivityTypeID: handle.ActivityTypeID,
		PhaseID:        req.PhaseID,
		MilestoneText:  strings.TrimSpace(req.MilestoneText),
		Notes:          strings.TrimSpace(req.Notes),
		Mood:           req.Mood,
	}
	if _, err := ss.calc.Minutes(session.Start, session.End); err != nil {
		return models.Session{}, err
	}
	if err := ss.check(session); err != nil {
		return models.Session{}, err
	}
	if err := ss.store.Append(ctx, session); err != nil {
		return models.Session{}, err
	}

	ss.mu.Lock()
	if ss.active != nil && ss.active.ID == handle.ID {
		ss.active = nil
	}
	ss.mu.Unlock()

	ss.cache.Invalidate(session.ProjectID)
	ss.publishSession(session.ID, session.ProjectID)
	ss.logger.Infof(providers.TypeStore, "Ended session %s after %d minutes", session.ID, session.DurationMinutes())
	return session, nil
}

// CreateSession stores a session entered after the fact.
func (ss *SessionService) CreateSession(ctx context.Context, s models.Session) (models.Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s = ss.normalize(s)
	if err := ss.check(s); err != nil {
		return models.Session{}, err
	}
	if err := ss.store.Append(ctx, s); err != nil {
		return models.Session{}, err
	}
	ss.cache.Invalidate(s.ProjectID)
	ss.publishSession(s.ID, s.ProjectID)
	return s, nil
}

// UpdateSessionFull replaces the whole session id with s. An end typed on
// the start's date gets the same day-boundary correction as imported records.
func (ss *SessionService) UpdateSessionFull(ctx context.Context, id string, s models.Session) (models.Session, error) {
	previous, err := ss.find(ctx, id)
	if err != nil {
		return models.Session{}, err
	}

	s.ID = previous.ID
	s = ss.normalize(s)
	if !s.End.After(s.Start) {
		end, err := ss.calc.CorrectCrossing(s.Start, s.End)
		if err != nil {
			return models.Session{}, err
		}
		s.End = end
	}
	if err := ss.check(s); err != nil {
		return models.Session{}, err
	}
	if err := ss.store.Replace(ctx, id, s); err != nil {
		return models.Session{}, err
	}

	ss.cache.Invalidate(previous.ProjectID)
	ss.cache.Invalidate(s.ProjectID)
	ss.publishSession(s.ID, previous.ProjectID, s.ProjectID)
	return s, nil
}

// DeleteSession removes one session; the rest of its year unit is rewritten unchanged.
func (ss *SessionService) DeleteSession(ctx context.Context, id string) error {
	removed, err := ss.store.Remove(ctx, id)
	if err != nil {
		return err
	}
	ss.cache.Invalidate(removed.ProjectID)
	ss.publishSession(removed.ID, removed.ProjectID)
	ss.logger.Infof(providers.TypeStore, "Deleted session %s", removed.ID)
	return nil
}

// QueryAllSessions loads every session, or only those starting inside r.
func (ss *SessionService) QueryAllSessions(ctx context.Context, r *models.DateRange) ([]models.Session, storage.LoadReport, error) {
	if r == nil {
		return ss.store.Load(ctx, nil)
	}
	return ss.store.LoadRange(ctx, *r)
}

func (ss *SessionService) QueryByProject(ctx context.Context, projectID string) ([]models.Session, storage.LoadReport, error) {
	sessions, report, err := ss.store.Load(ctx, nil)
	if err != nil {
		return nil, report, err
	}
	out := make([]models.Session, 0)
	for _, s := range sessions {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out, report, nil
}

func (ss *SessionService) QueryByDateInterval(ctx context.Context, r models.DateRange) ([]models.Session, storage.LoadReport, error) {
	if !r.To.After(r.From) {
		return nil, storage.LoadReport{}, apperrors.NewValidationError("date range must end after it starts", nil)
	}
	return ss.store.LoadRange(ctx, r)
}

func (ss *SessionService) GetProjectAggregate(ctx context.Context, projectID string) (models.Aggregate, error) {
	if _, ok := ss.catalog.Project(projectID); !ok {
		return models.Aggregate{}, apperrors.NewUnknownProjectError(projectID)
	}
	return ss.cache.Get(ctx, projectID)
}

// Migrate converts legacy year units and drops every cached aggregate.
func (ss *SessionService) Migrate(ctx context.Context) (migration.Report, error) {
	report, err := ss.migrator.Migrate(ctx)
	if report.Migrated > 0 {
		ss.cache.InvalidateAll()
		ss.publishSession("")
	}
	if len(report.CreatedProjects) > 0 {
		ss.publish(Event{Kind: ProjectsChanged})
	}
	return report, err
}

func (ss *SessionService) Subscribe(buffer int) *Subscription {
	return ss.events.subscribe(buffer)
}

func (ss *SessionService) Subscribers() int {
	return ss.events.count()
}

// check runs the field and reference validation against the current catalog.
func (ss *SessionService) check(s models.Session) error {
	if err := validation.ValidateFields(s); err != nil {
		return err
	}
	return validation.Validate(s,
		models.IndexProjects(ss.catalog.Projects()),
		models.IndexActivityTypes(ss.catalog.ActivityTypes()))
}

func (ss *SessionService) normalize(s models.Session) models.Session {
	zone := ss.calc.Zone()
	s.Start = s.Start.In(zone).Truncate(time.Second)
	s.End = s.End.In(zone).Truncate(time.Second)
	s.ProjectID = strings.TrimSpace(s.ProjectID)
	s.Notes = strings.TrimSpace(s.Notes)
	s.MilestoneText = strings.TrimSpace(s.MilestoneText)
	if p, ok := ss.catalog.Project(s.ProjectID); ok {
		s.ProjectName = p.Name
	}
	return s
}

func (ss *SessionService) find(ctx context.Context, id string) (models.Session, error) {
	sessions, _, err := ss.store.Load(ctx, nil)
	if err != nil {
		return models.Session{}, err
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return models.Session{}, apperrors.NewNotFoundError("session", id)
}

func (ss *SessionService) publishSession(sessionID string, projectIDs ...string) {
	ids := make([]string, 0, len(projectIDs))
	for _, id := range projectIDs {
		if id != "" && !contains(ids, id) {
			ids = append(ids, id)
		}
	}
	ss.publish(Event{Kind: SessionChanged, SessionID: sessionID, ProjectIDs: ids})
}

func (ss *SessionService) publish(e Event) {
	e.At = ss.now()
	ss.events.publish(e)
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

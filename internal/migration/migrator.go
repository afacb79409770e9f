package migration

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	apperrors "juju/internal/errors"
	"juju/internal/models"
	"juju/internal/providers"
	"juju/internal/records"
	"juju/internal/storage"
	"juju/internal/storage/interfaces"
	"juju/internal/structures"
)

// ProjectResolver finds a project by name, creating it when none matches.
type ProjectResolver interface {
	FindOrCreateProject(name string) (models.Project, bool, error)
}

// Report summarizes one migration run.
type Report struct {
	Success         bool     `json:"success"`
	Migrated        int      `json:"migrated"`
	CreatedProjects []string `json:"created_projects"`
	Errors          []string `json:"errors"`
	BackedUp        []string `json:"backed_up"`
	Unmigrated      int      `json:"unmigrated"`
}

func (r *Report) fail(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Migrator rewrites legacy year units into the canonical schema.
type Migrator struct {
	store      *storage.YearStore
	projects   ProjectResolver
	compressor interfaces.CompressorInterface
	backupDir  string
	logger     providers.Logger
	metrics    providers.MetricsProviderInterface
	check      func(ctx context.Context, year int, want []models.Session) error
}

func NewMigrator(conf *structures.Config, store *storage.YearStore, projects ProjectResolver, compressor interfaces.CompressorInterface, logger providers.Logger, metrics providers.MetricsProviderInterface) *Migrator {
	m := &Migrator{
		store:      store,
		projects:   projects,
		compressor: compressor,
		backupDir:  conf.Storage.BackupDir,
		logger:     logger,
		metrics:    metrics,
	}
	m.check = m.verify
	return m
}

// carried holds converted records that belong to another year's unit.
type carried struct {
	sessions []models.Session
	raw      [][]string
	extras   records.Extras
}

func (c *carried) add(session models.Session, raw []string, extras records.Extras, id string) {
	c.sessions = append(c.sessions, session)
	c.raw = append(c.raw, raw)
	c.extras = c.extras.Carry(extras, id, session.ID)
}

// Migrate converts every legacy unit. Each unit is backed up before it is
// rewritten and verified after; records that cannot be converted go to the
// unit's unmigrated sidecar once the rewrite is verified. Records whose start
// falls in another year are moved to that year's unit. Canonical units are
// left untouched, so running it again is a no-op. A cancelled context leaves
// the remaining units for the next run.
func (m *Migrator) Migrate(ctx context.Context) (Report, error) {
	report := Report{CreatedProjects: []string{}, Errors: []string{}, BackedUp: []string{}}

	years, err := m.store.Years()
	if err != nil {
		report.fail("list units: %v", err)
		return report, err
	}

	pending := make(map[int]*carried)
	for _, year := range years {
		if err := ctx.Err(); err != nil {
			report.fail("cancelled before %d", year)
			m.flushPending(context.WithoutCancel(ctx), pending, &report)
			return report, err
		}
		m.migrateUnit(ctx, year, pending, &report)
	}
	m.flushPending(ctx, pending, &report)

	report.Success = len(report.Errors) == 0
	m.logger.Infof(providers.TypeMigration, "Migration finished: %d migrated, %d unmigrated, %d errors",
		report.Migrated, report.Unmigrated, len(report.Errors))
	return report, nil
}

func (m *Migrator) migrateUnit(ctx context.Context, year int, pending map[int]*carried, report *Report) {
	incoming := pending[year]
	delete(pending, year)
	setAside := func() {
		if incoming != nil {
			m.setAside(ctx, year, incoming, report)
		}
	}

	unit, loadReport, err := m.store.ReadUnit(ctx, year)
	if err != nil {
		report.fail("%d: %v", year, err)
		setAside()
		return
	}
	for _, q := range loadReport.Quarantined {
		report.fail("%d: unit unreadable, moved to %s", year, q)
	}
	if !unit.Legacy() {
		if incoming != nil {
			m.place(ctx, year, incoming, report)
		}
		return
	}

	backup, err := m.store.Backup(ctx, year, m.backupDir, m.compressor)
	if err != nil {
		report.fail("%d: backup failed, unit left as is: %v", year, err)
		setAside()
		return
	}
	report.BackedUp = append(report.BackedUp, backup)
	m.logger.Infof(providers.TypeMigration, "Backed up %s to %s", unit.Path, backup)

	var (
		sessions   []models.Session
		unmigrated [][]string
		elsewhere  = make(map[int]*carried)
		extras     = unit.Extras()
	)
	for _, row := range unit.Batch.Rows {
		legacy, ok := row.Record.(models.LegacySessionRecord)
		if !ok {
			continue
		}
		raw := records.EncodeLegacy(legacy)
		session, err := m.convert(legacy, report)
		if err != nil {
			report.fail("%d row %d (%s): %v", year, row.Line, legacy.ID, err)
			unmigrated = append(unmigrated, raw)
			continue
		}
		if target := m.store.YearOf(session); target != year {
			if elsewhere[target] == nil {
				elsewhere[target] = &carried{}
			}
			elsewhere[target].add(session, raw, extras, legacy.ID)
			continue
		}
		sessions = append(sessions, session)
	}
	for _, rowErr := range unit.Batch.Errors {
		report.fail("%d row %d: %v", year, rowErr.Line, rowErr.Err)
		unmigrated = append(unmigrated, records.RealignTo(unit.Batch.Header, rowErr.Raw, records.LegacyColumns))
	}
	if incoming != nil {
		own := make(map[string]struct{}, len(sessions))
		for _, s := range sessions {
			own[s.ID] = struct{}{}
		}
		for _, s := range incoming.sessions {
			if _, ok := own[s.ID]; ok {
				continue
			}
			sessions = append(sessions, s)
			extras = extras.Carry(incoming.extras, s.ID, s.ID)
		}
	}

	for target, c := range elsewhere {
		if err := m.store.Merge(ctx, target, c.sessions, c.extras); err != nil {
			if apperrors.IsErrorType(err, apperrors.ErrorTypeMigrationRequired) && target > year {
				if pending[target] == nil {
					pending[target] = &carried{}
				}
				for i, s := range c.sessions {
					pending[target].add(s, c.raw[i], c.extras, s.ID)
				}
				continue
			}
			report.fail("%d: moving %d records to %d failed, unit left as is: %v", year, len(c.sessions), target, err)
			setAside()
			return
		}
		report.Migrated += len(c.sessions)
		m.metrics.AddMigratedRecords(len(c.sessions))
		m.logger.Infof(providers.TypeMigration, "Moved %d records of %d to %d", len(c.sessions), year, target)
	}

	if err := m.store.WriteUnit(ctx, year, sessions, nil, extras); err != nil {
		report.fail("%d: rewrite failed: %v", year, err)
		m.restore(ctx, year, backup, report)
		setAside()
		return
	}
	if err := m.check(ctx, year, sessions); err != nil {
		report.fail("%d: verification failed: %v", year, err)
		m.restore(ctx, year, backup, report)
		setAside()
		return
	}
	if err := m.store.AppendUnmigrated(ctx, year, unmigrated); err != nil {
		report.fail("%d: sidecar write failed: %v", year, err)
		m.restore(ctx, year, backup, report)
		setAside()
		return
	}

	report.Migrated += len(sessions)
	report.Unmigrated += len(unmigrated)
	m.metrics.AddMigratedRecords(len(sessions))
	m.logger.Infof(providers.TypeMigration, "Migrated %d records of %d, %d set aside", len(sessions), year, len(unmigrated))
}

// place merges records moved from other units into a canonical unit.
func (m *Migrator) place(ctx context.Context, year int, c *carried, report *Report) {
	if err := m.store.Merge(ctx, year, c.sessions, c.extras); err != nil {
		report.fail("%d: placing %d moved records failed: %v", year, len(c.sessions), err)
		m.setAside(ctx, year, c, report)
		return
	}
	report.Migrated += len(c.sessions)
	m.metrics.AddMigratedRecords(len(c.sessions))
}

// setAside writes moved records that found no unit to the year's sidecar.
func (m *Migrator) setAside(ctx context.Context, year int, c *carried, report *Report) {
	if err := m.store.AppendUnmigrated(ctx, year, c.raw); err != nil {
		report.fail("%d: %d moved records only remain in the backups: %v", year, len(c.raw), err)
		return
	}
	report.Unmigrated += len(c.raw)
	m.logger.Warnf(providers.TypeMigration, "Set aside %d records moved to %d", len(c.raw), year)
}

// flushPending places records still waiting for a unit that was never migrated.
func (m *Migrator) flushPending(ctx context.Context, pending map[int]*carried, report *Report) {
	years := make([]int, 0, len(pending))
	for year := range pending {
		years = append(years, year)
	}
	sort.Ints(years)
	for _, year := range years {
		m.place(ctx, year, pending[year], report)
	}
}

// convert normalizes one legacy record and resolves its project by name.
func (m *Migrator) convert(legacy models.LegacySessionRecord, report *Report) (models.Session, error) {
	session, err := m.store.Codec().ToSession(legacy)
	if err != nil {
		return models.Session{}, apperrors.NewMigrationError(legacy.ID, err)
	}
	if session.ProjectID != "" {
		return session, nil
	}

	name := strings.TrimSpace(legacy.ProjectName)
	if name == "" {
		return models.Session{}, apperrors.NewMigrationError(legacy.ID,
			apperrors.NewValidationError("record has neither project id nor project name", nil))
	}
	project, created, err := m.projects.FindOrCreateProject(name)
	if err != nil {
		return models.Session{}, apperrors.NewMigrationError(legacy.ID, err)
	}
	if created {
		report.CreatedProjects = append(report.CreatedProjects, project.Name)
		m.logger.Infof(providers.TypeMigration, "Created project %q for legacy records", project.Name)
	}
	session.ProjectID = project.ID
	session.ProjectName = project.Name
	return session, nil
}

// verify re-reads the rewritten unit and compares ids and count.
func (m *Migrator) verify(ctx context.Context, year int, want []models.Session) error {
	unit, _, err := m.store.ReadUnit(ctx, year)
	if err != nil {
		return err
	}
	if unit.Legacy() {
		return fmt.Errorf("unit is still in the legacy schema")
	}
	if len(unit.Batch.Errors) > 0 {
		return fmt.Errorf("%d rows do not decode", len(unit.Batch.Errors))
	}
	if len(unit.Batch.Rows) != len(want) {
		return fmt.Errorf("expected %d records, found %d", len(want), len(unit.Batch.Rows))
	}
	ids := make(map[string]struct{}, len(want))
	for _, s := range want {
		ids[s.ID] = struct{}{}
	}
	for _, row := range unit.Batch.Rows {
		if _, ok := ids[row.Record.RecordID()]; !ok {
			return fmt.Errorf("unexpected record %s", row.Record.RecordID())
		}
	}
	return nil
}

func (m *Migrator) restore(ctx context.Context, year int, backup string, report *Report) {
	compressed, err := os.ReadFile(backup)
	if err != nil {
		report.fail("%d: restore failed, backup kept at %s: %v", year, backup, err)
		return
	}
	data, err := m.compressor.Decompress(compressed)
	if err != nil {
		report.fail("%d: restore failed, backup kept at %s: %v", year, backup, err)
		return
	}
	if err := m.store.RestoreUnit(ctx, year, data); err != nil {
		report.fail("%d: restore failed, backup kept at %s: %v", year, backup, err)
		return
	}
	m.logger.Warnf(providers.TypeMigration, "Restored %d from %s", year, backup)
}

package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "juju/internal/errors"
	"juju/internal/models"
	"juju/internal/providers"
	"juju/internal/records"
	"juju/internal/storage/interfaces"
	"juju/internal/structures"
)

const (
	unitSuffix       = "-data.csv"
	unmigratedSuffix = "-data.unmigrated.csv"
	quarantineDir    = "quarantine"
	filePerm         = 0o644
)

var unitName = regexp.MustCompile(`^(\d{4})-data\.csv$`)

// RowIssue is a row that was skipped while loading a unit.
type RowIssue struct {
	Year int
	Line int
	Err  error
}

func (r RowIssue) Error() string {
	return fmt.Sprintf("%d%s row %d: %v", r.Year, unitSuffix, r.Line, r.Err)
}

// LoadReport lists everything a load had to leave out.
type LoadReport struct {
	Quarantined []string
	RowErrors   []RowIssue
}

func (r LoadReport) Clean() bool {
	return len(r.Quarantined) == 0 && len(r.RowErrors) == 0
}

func (r *LoadReport) merge(o LoadReport) {
	r.Quarantined = append(r.Quarantined, o.Quarantined...)
	r.RowErrors = append(r.RowErrors, o.RowErrors...)
}

// Unit is the raw decoded content of one year file.
type Unit struct {
	Year   int
	Path   string
	Exists bool
	Batch  *records.Batch
}

// Legacy reports whether the unit still has to be migrated.
func (u *Unit) Legacy() bool {
	return u.Batch != nil && u.Batch.Legacy()
}

// Extras returns the columns the unit carries beyond the canonical set.
func (u *Unit) Extras() records.Extras {
	if u.Batch == nil {
		return records.Extras{}
	}
	return u.Batch.Extras()
}

// Preserved returns the undecodable rows realigned to the layout the unit is
// written back in.
func (u *Unit) Preserved(extras records.Extras) [][]string {
	if u.Batch == nil {
		return nil
	}
	layout := extras.Layout()
	out := make([][]string, 0, len(u.Batch.Errors))
	for _, e := range u.Batch.Errors {
		out = append(out, records.RealignTo(u.Batch.Header, e.Raw, layout))
	}
	return out
}

// YearStore keeps sessions in one CSV file per calendar year.
// Operations on different years run concurrently; the same year is serialized.
type YearStore struct {
	dir     string
	codec   *records.Codec
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
	now     func() time.Time

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewYearStore(conf *structures.Config, codec *records.Codec, logger providers.Logger, metrics providers.MetricsProviderInterface) (*YearStore, error) {
	if err := os.MkdirAll(conf.Storage.DataDir, 0o755); err != nil {
		return nil, apperrors.NewIOError("create data dir", conf.Storage.DataDir, err)
	}
	return &YearStore{
		dir:     conf.Storage.DataDir,
		codec:   codec,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		locks:   make(map[int]*sync.Mutex),
	}, nil
}

func (s *YearStore) Dir() string {
	return s.dir
}

func (s *YearStore) Codec() *records.Codec {
	return s.codec
}

// UnitPath is the file holding the sessions of year.
func (s *YearStore) UnitPath(year int) string {
	return filepath.Join(s.dir, strconv.Itoa(year)+unitSuffix)
}

// UnmigratedPath is the sidecar collecting legacy rows the migrator could not convert.
func (s *YearStore) UnmigratedPath(year int) string {
	return filepath.Join(s.dir, strconv.Itoa(year)+unmigratedSuffix)
}

// YearOf returns the unit a session belongs to.
func (s *YearStore) YearOf(session models.Session) int {
	return session.Start.In(s.codec.Calculator().Zone()).Year()
}

// Years lists the year units present on disk in ascending order.
func (s *YearStore) Years() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewIOError("list units", s.dir, err)
	}
	var years []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := unitName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		years = append(years, year)
	}
	sort.Ints(years)
	return years, nil
}

func (s *YearStore) yearLock(year int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[year]
	if !ok {
		l = &sync.Mutex{}
		s.locks[year] = l
	}
	return l
}

// Load reads every unit in yr, or every unit on disk when yr is nil.
// Units are read concurrently and the result is sorted by start, then id.
func (s *YearStore) Load(ctx context.Context, yr *models.YearRange) ([]models.Session, LoadReport, error) {
	years, err := s.Years()
	if err != nil {
		return nil, LoadReport{}, err
	}

	var (
		mu       sync.Mutex
		sessions []models.Session
		report   LoadReport
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, year := range years {
		if yr != nil && !yr.Contains(year) {
			continue
		}
		year := year
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			l := s.yearLock(year)
			l.Lock()
			unit, rep, err := s.readUnit(year)
			l.Unlock()
			if err != nil {
				return err
			}
			loaded, issues := s.sessionsOf(unit)
			rep.RowErrors = append(rep.RowErrors, issues...)
			if unit.Exists {
				s.metrics.SetSessionsTotal(year, len(loaded))
			}

			mu.Lock()
			sessions = append(sessions, loaded...)
			report.merge(rep)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, err
	}

	sortSessions(sessions)
	sort.Slice(report.RowErrors, func(i, j int) bool {
		a, b := report.RowErrors[i], report.RowErrors[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Line < b.Line
	})
	for _, issue := range report.RowErrors {
		s.logger.Warnf(providers.TypeStore, "Skipped %s", issue.Error())
	}
	return sessions, report, nil
}

// LoadRange returns the sessions starting inside r.
func (s *YearStore) LoadRange(ctx context.Context, r models.DateRange) ([]models.Session, LoadReport, error) {
	zone := s.codec.Calculator().Zone()
	years := models.DateRange{From: r.From.In(zone), To: r.To.In(zone)}.Years()
	all, report, err := s.Load(ctx, &years)
	if err != nil {
		return nil, report, err
	}
	out := all[:0]
	for _, session := range all {
		if r.Contains(session.Start) {
			out = append(out, session)
		}
	}
	return out, report, nil
}

// ReadUnit returns the raw content of one unit for the migrator.
func (s *YearStore) ReadUnit(ctx context.Context, year int) (*Unit, LoadReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, LoadReport{}, err
	}
	l := s.yearLock(year)
	l.Lock()
	defer l.Unlock()
	return s.readUnit(year)
}

// Append stores a new session in the unit of its start year.
func (s *YearStore) Append(ctx context.Context, session models.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	year := s.YearOf(session)
	l := s.yearLock(year)
	l.Lock()
	defer l.Unlock()

	unit, sessions, err := s.writableUnit(year)
	if err != nil {
		return err
	}
	for _, existing := range sessions {
		if existing.ID == session.ID {
			return apperrors.NewValidationError(fmt.Sprintf("session %s already exists", session.ID), nil)
		}
	}
	sessions = append(sessions, session)
	extras := unit.Extras()
	return s.writeUnit(year, sessions, unit.Preserved(extras), extras)
}

// Replace swaps the stored session id for updated. When the start moves to
// another year both units are rewritten, locked in ascending year order.
func (s *YearStore) Replace(ctx context.Context, id string, updated models.Session) error {
	owner, err := s.findOwner(ctx, id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	target := s.YearOf(updated)

	for _, year := range lockOrder(owner, target) {
		l := s.yearLock(year)
		l.Lock()
		defer l.Unlock()
	}

	srcUnit, srcSessions, err := s.writableUnit(owner)
	if err != nil {
		return err
	}
	idx := indexOf(srcSessions, id)
	if idx < 0 {
		return apperrors.NewNotFoundError("session", id)
	}

	srcExtras := srcUnit.Extras()
	if owner == target {
		srcSessions[idx] = updated
		extras := srcExtras
		if updated.ID != id {
			extras = srcExtras.Carry(srcExtras, id, updated.ID)
		}
		return s.writeUnit(owner, srcSessions, srcUnit.Preserved(extras), extras)
	}

	dstUnit, dstSessions, err := s.writableUnit(target)
	if err != nil {
		return err
	}
	dstExtras := dstUnit.Extras().Carry(srcExtras, id, updated.ID)
	if err := s.writeUnit(target, append(dstSessions, updated), dstUnit.Preserved(dstExtras), dstExtras); err != nil {
		return err
	}
	srcSessions = append(srcSessions[:idx], srcSessions[idx+1:]...)
	return s.writeUnit(owner, srcSessions, srcUnit.Preserved(srcExtras), srcExtras)
}

// Remove deletes exactly one session; every other row of its unit is kept.
func (s *YearStore) Remove(ctx context.Context, id string) (models.Session, error) {
	owner, err := s.findOwner(ctx, id)
	if err != nil {
		return models.Session{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Session{}, err
	}
	l := s.yearLock(owner)
	l.Lock()
	defer l.Unlock()

	unit, sessions, err := s.writableUnit(owner)
	if err != nil {
		return models.Session{}, err
	}
	idx := indexOf(sessions, id)
	if idx < 0 {
		return models.Session{}, apperrors.NewNotFoundError("session", id)
	}
	removed := sessions[idx]
	sessions = append(sessions[:idx], sessions[idx+1:]...)
	extras := unit.Extras()
	return removed, s.writeUnit(owner, sessions, unit.Preserved(extras), extras)
}

// Merge stores sessions in the unit of year, replacing rows with the same id
// and keeping every other row. Cells extras holds for the merged sessions are
// carried over.
func (s *YearStore) Merge(ctx context.Context, year int, sessions []models.Session, extras records.Extras) error {
	if len(sessions) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.yearLock(year)
	l.Lock()
	defer l.Unlock()

	unit, stored, err := s.writableUnit(year)
	if err != nil {
		return err
	}
	unitExtras := unit.Extras()
	for _, session := range sessions {
		if idx := indexOf(stored, session.ID); idx >= 0 {
			stored[idx] = session
		} else {
			stored = append(stored, session)
		}
		unitExtras = unitExtras.Carry(extras, session.ID, session.ID)
	}
	return s.writeUnit(year, stored, unit.Preserved(unitExtras), unitExtras)
}

// WriteUnit rewrites a whole unit in canonical form, followed by the extra
// columns. Used by the migrator.
func (s *YearStore) WriteUnit(ctx context.Context, year int, sessions []models.Session, preserved [][]string, extras records.Extras) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.yearLock(year)
	l.Lock()
	defer l.Unlock()
	return s.writeUnit(year, sessions, preserved, extras)
}

// Backup writes a compressed copy of the unit into dir and returns its path.
// A missing unit yields an empty path.
func (s *YearStore) Backup(ctx context.Context, year int, dir string, compressor interfaces.CompressorInterface) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l := s.yearLock(year)
	l.Lock()
	defer l.Unlock()

	path := s.UnitPath(year)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", apperrors.NewIOError("read unit", path, err)
	}
	compressed, err := compressor.Compress(data)
	if err != nil {
		return "", apperrors.NewIOError("compress unit", path, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.NewIOError("create backup dir", dir, err)
	}
	target := filepath.Join(dir, fmt.Sprintf("%s.%d.zst", filepath.Base(path), s.now().Unix()))
	if err := WriteFileAtomic(target, compressed, filePerm); err != nil {
		return "", apperrors.NewIOError("write backup", target, err)
	}
	return target, nil
}

// AppendUnmigrated adds rows in legacy column order to the year's sidecar
// file, writing the legacy header when the file is new. Rows the sidecar
// already holds are not written again.
func (s *YearStore) AppendUnmigrated(ctx context.Context, year int, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.yearLock(year)
	l.Lock()
	defer l.Unlock()

	path := s.UnmigratedPath(year)
	var header []string
	seen := make(map[string]struct{})
	existing, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		header = records.LegacyColumns
	case err != nil:
		return apperrors.NewIOError("read sidecar", path, err)
	default:
		reader := csv.NewReader(bytes.NewReader(existing))
		reader.FieldsPerRecord = -1
		stored, err := reader.ReadAll()
		if err != nil {
			return apperrors.NewIOError("read sidecar", path, err)
		}
		for _, row := range stored {
			seen[strings.Join(row, "\x1f")] = struct{}{}
		}
	}

	fresh := rows[:0:0]
	for _, row := range rows {
		key := strings.Join(row, "\x1f")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, row)
	}
	if len(fresh) == 0 {
		return nil
	}
	rows = fresh

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return apperrors.NewIOError("open sidecar", path, err)
	}
	if err := records.WriteRows(f, header, rows); err != nil {
		f.Close()
		return apperrors.NewIOError("write sidecar", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return apperrors.NewIOError("sync sidecar", path, err)
	}
	if err := f.Close(); err != nil {
		return apperrors.NewIOError("close sidecar", path, err)
	}
	return nil
}

// RestoreUnit puts a previous copy of a unit back in place.
func (s *YearStore) RestoreUnit(ctx context.Context, year int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.yearLock(year)
	l.Lock()
	defer l.Unlock()

	path := s.UnitPath(year)
	if err := WriteFileAtomic(path, data, filePerm); err != nil {
		return apperrors.NewIOError("restore unit", path, err)
	}
	return nil
}

// readUnit must be called with the year lock held. A unit that cannot be
// decoded is moved into quarantine and reported; it reads as empty.
func (s *YearStore) readUnit(year int) (*Unit, LoadReport, error) {
	path := s.UnitPath(year)
	unit := &Unit{Year: year, Path: path, Batch: &records.Batch{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return unit, LoadReport{}, nil
		}
		return nil, LoadReport{}, apperrors.NewIOError("read unit", path, err)
	}
	unit.Exists = true

	batch, err := s.codec.ReadAll(bytes.NewReader(data))
	if err != nil {
		moved, qerr := s.quarantine(path)
		if qerr != nil {
			return nil, LoadReport{}, qerr
		}
		s.logger.Errorf(providers.TypeStore, "Unit %s is unreadable (%v), moved to %s", path, err, moved)
		unit.Exists = false
		return unit, LoadReport{Quarantined: []string{moved}}, nil
	}
	unit.Batch = batch

	var report LoadReport
	for _, e := range batch.Errors {
		report.RowErrors = append(report.RowErrors, RowIssue{Year: year, Line: e.Line, Err: e.Err})
	}
	return unit, report, nil
}

// sessionsOf normalizes every decoded row, reporting rows whose legacy
// times cannot be resolved.
func (s *YearStore) sessionsOf(unit *Unit) ([]models.Session, []RowIssue) {
	if unit.Batch == nil {
		return nil, nil
	}
	sessions := make([]models.Session, 0, len(unit.Batch.Rows))
	var issues []RowIssue
	for _, row := range unit.Batch.Rows {
		session, err := s.codec.ToSession(row.Record)
		if err != nil {
			issues = append(issues, RowIssue{Year: unit.Year, Line: row.Line, Err: err})
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, issues
}

// writableUnit reads a unit for rewriting. Legacy units must be migrated first.
func (s *YearStore) writableUnit(year int) (*Unit, []models.Session, error) {
	unit, _, err := s.readUnit(year)
	if err != nil {
		return nil, nil, err
	}
	if unit.Legacy() {
		return nil, nil, apperrors.NewMigrationRequiredError(year)
	}
	sessions, _ := s.sessionsOf(unit)
	return unit, sessions, nil
}

// writeUnit must be called with the year lock held.
func (s *YearStore) writeUnit(year int, sessions []models.Session, preserved [][]string, extras records.Extras) error {
	start := time.Now()
	path := s.UnitPath(year)

	var buf bytes.Buffer
	if err := s.codec.WriteCanonical(&buf, sessions, preserved, extras); err != nil {
		return apperrors.NewIOError("encode unit", path, err)
	}
	if err := WriteFileAtomic(path, buf.Bytes(), filePerm); err != nil {
		return apperrors.NewIOError("write unit", path, err)
	}

	s.metrics.ObservePersistenceDuration(time.Since(start))
	s.metrics.SetSessionsTotal(year, len(sessions))
	s.logger.Debugf(providers.TypeStore, "Wrote %d sessions to %s", len(sessions), path)
	return nil
}

// findOwner locates the unit holding id, taking each year lock only while reading it.
func (s *YearStore) findOwner(ctx context.Context, id string) (int, error) {
	years, err := s.Years()
	if err != nil {
		return 0, err
	}
	for _, year := range years {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		l := s.yearLock(year)
		l.Lock()
		unit, _, err := s.readUnit(year)
		l.Unlock()
		if err != nil {
			return 0, err
		}
		if unit.Batch == nil {
			continue
		}
		for _, row := range unit.Batch.Rows {
			if row.Record.RecordID() == id {
				return year, nil
			}
		}
	}
	return 0, apperrors.NewNotFoundError("session", id)
}

func (s *YearStore) quarantine(path string) (string, error) {
	dir := filepath.Join(s.dir, quarantineDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.NewIOError("create quarantine dir", dir, err)
	}
	target := filepath.Join(dir, fmt.Sprintf("%s.%d", filepath.Base(path), s.now().Unix()))
	if err := os.Rename(path, target); err != nil {
		return "", apperrors.NewIOError("quarantine unit", path, err)
	}
	s.metrics.IncQuarantinedUnits()
	return target, nil
}

// WriteFileAtomic writes data to a temp file beside path, syncs it and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmpFile := path + ".tmp"
	file, err := os.OpenFile(tmpFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	if err = os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return nil
}

func sortSessions(sessions []models.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})
}

func indexOf(sessions []models.Session, id string) int {
	for i, s := range sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func lockOrder(a, b int) []int {
	switch {
	case a == b:
		return []int{a}
	case a < b:
		return []int{a, b}
	default:
		return []int{b, a}
	}
}

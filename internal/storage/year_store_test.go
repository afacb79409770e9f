package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "juju/internal/errors"
	"juju/internal/models"
	"juju/internal/records"
	"juju/internal/testutil"
	"juju/internal/timecalc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFixture struct {
	store   *YearStore
	logger  *testutil.MockLogger
	metrics *testutil.MockMetrics
	dir     string
}

func newStore(t *testing.T) *storeFixture {
	t.Helper()
	conf := testutil.Config(t.TempDir())
	logger := &testutil.MockLogger{}
	metrics := testutil.NewMockMetrics()
	codec := records.NewCodec(timecalc.NewCalculator(timecalc.DefaultEarlyMorningMaxHour, time.UTC))
	store, err := NewYearStore(conf, codec, logger, metrics)
	require.NoError(t, err)
	store.now = func() time.Time { return time.Unix(1700000000, 0) }
	return &storeFixture{store: store, logger: logger, metrics: metrics, dir: conf.Storage.DataDir}
}

func session(id string, start time.Time, minutes int, project string) models.Session {
	return models.Session{
		ID:          id,
		Start:       start,
		End:         start.Add(time.Duration(minutes) * time.Minute),
		ProjectID:   project,
		ProjectName: "Project " + project,
		Notes:       "notes for " + id,
		Mood:        models.IntPtr(5),
	}
}

func day(year int, month time.Month, d, hour, min int) time.Time {
	return time.Date(year, month, d, hour, min, 0, 0, time.UTC)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestYearStore_LoadEmptyDir(t *testing.T) {
	f := newStore(t)

	sessions, report, err := f.store.Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.True(t, report.Clean())
}

func TestYearStore_AppendShardsByStartYear(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()

	require.NoError(t, f.store.Append(ctx, session("b", day(2024, 3, 1, 9, 0), 60, "p1")))
	require.NoError(t, f.store.Append(ctx, session("a", day(2023, 12, 31, 23, 30), 60, "p1")))
	require.NoError(t, f.store.Append(ctx, session("c", day(2024, 1, 2, 9, 0), 30, "p2")))

	assert.FileExists(t, filepath.Join(f.dir, "2023-data.csv"))
	assert.FileExists(t, filepath.Join(f.dir, "2024-data.csv"))

	years, err := f.store.Years()
	require.NoError(t, err)
	assert.Equal(t, []int{2023, 2024}, years)

	sessions, report, err := f.store.Load(ctx, nil)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	require.Len(t, sessions, 3)
	assert.Equal(t, []string{"a", "c", "b"}, []string{sessions[0].ID, sessions[1].ID, sessions[2].ID})
	assert.Equal(t, session("a", day(2023, 12, 31, 23, 30), 60, "p1"), sessions[0])

	only2024, _, err := f.store.Load(ctx, &models.YearRange{From: 2024, To: 2024})
	require.NoError(t, err)
	assert.Len(t, only2024, 2)

	assert.Equal(t, 2, f.metrics.SessionsTotal[2024])
	assert.Equal(t, 1, f.metrics.SessionsTotal[2023])
}

func TestYearStore_AppendDuplicateID(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()

	require.NoError(t, f.store.Append(ctx, session("a", day(2024, 3, 1, 9, 0), 60, "p1")))
	err := f.store.Append(ctx, session("a", day(2024, 3, 2, 9, 0), 60, "p1"))
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
}

func TestYearStore_LoadRangeIsHalfOpen(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()

	require.NoError(t, f.store.Append(ctx, session("a", day(2024, 3, 1, 0, 0), 10, "p1")))
	require.NoError(t, f.store.Append(ctx, session("b", day(2024, 3, 1, 23, 59), 10, "p1")))
	require.NoError(t, f.store.Append(ctx, session("c", day(2024, 3, 2, 0, 0), 10, "p1")))

	sessions, _, err := f.store.LoadRange(ctx, models.Day(day(2024, 3, 1, 12, 0)))
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].ID)
	assert.Equal(t, "b", sessions[1].ID)
}

func TestYearStore_RemoveKeepsSiblings(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()

	a := session("a", day(2024, 3, 1, 9, 0), 60, "p1")
	b := session("b", day(2024, 3, 2, 9, 0), 45, "p2")
	c := session("c", day(2024, 3, 3, 9, 0), 30, "p1")
	other := session("o", day(2023, 5, 1, 9, 0), 15, "p1")
	for _, s := range []models.Session{a, b, c, other} {
		require.NoError(t, f.store.Append(ctx, s))
	}
	before2023 := readFile(t, f.store.UnitPath(2023))

	removed, err := f.store.Remove(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, b, removed)

	sessions, _, err := f.store.Load(ctx, &models.YearRange{From: 2024, To: 2024})
	require.NoError(t, err)
	assert.Equal(t, []models.Session{a, c}, sessions)
	assert.Equal(t, before2023, readFile(t, f.store.UnitPath(2023)))
}

func TestYearStore_RemoveUnknown(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, session("a", day(2024, 3, 1, 9, 0), 60, "p1")))

	_, err := f.store.Remove(ctx, "missing")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestYearStore_ReplaceSameYear(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, session("a", day(2024, 3, 1, 9, 0), 60, "p1")))
	require.NoError(t, f.store.Append(ctx, session("b", day(2024, 3, 2, 9, 0), 60, "p1")))

	updated := session("a", day(2024, 3, 1, 10, 0), 90, "p2")
	require.NoError(t, f.store.Replace(ctx, "a", updated))

	sessions, _, err := f.store.Load(ctx, nil)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, updated, sessions[0])
	assert.Equal(t, "b", sessions[1].ID)
}

func TestYearStore_ReplaceMovesAcrossYears(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, session("a", day(2024, 1, 1, 9, 0), 60, "p1")))
	require.NoError(t, f.store.Append(ctx, session("b", day(2024, 2, 1, 9, 0), 60, "p1")))

	moved := session("a", day(2023, 12, 30, 9, 0), 60, "p1")
	require.NoError(t, f.store.Replace(ctx, "a", moved))

	in2023, _, err := f.store.Load(ctx, &models.YearRange{From: 2023, To: 2023})
	require.NoError(t, err)
	assert.Equal(t, []models.Session{moved}, in2023)

	in2024, _, err := f.store.Load(ctx, &models.YearRange{From: 2024, To: 2024})
	require.NoError(t, err)
	require.Len(t, in2024, 1)
	assert.Equal(t, "b", in2024[0].ID)
}

func TestYearStore_MalformedRowsSurviveRewrite(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	path := f.store.UnitPath(2024)
	writeFile(t, path, strings.Join(records.CanonicalColumns, ",")+"\n"+
		"a,2024-03-01T09:00:00Z,2024-03-01T10:00:00Z,p1,Novel,,,,,\n"+
		"bad,yesterday,today,p1,Novel,,,,kept note,\n")

	sessions, report, err := f.store.Load(ctx, nil)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Len(t, report.RowErrors, 1)
	assert.Equal(t, 2024, report.RowErrors[0].Year)
	assert.Equal(t, 2, report.RowErrors[0].Line)
	assert.True(t, f.logger.Contains("warn", "row 2"))

	require.NoError(t, f.store.Append(ctx, session("n", day(2024, 4, 1, 9, 0), 30, "p1")))

	content := readFile(t, path)
	assert.Contains(t, content, "bad,yesterday,today,p1,Novel,,,,kept note,")

	sessions, _, err = f.store.Load(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestYearStore_RemoveKeepsExtraColumns(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	path := f.store.UnitPath(2024)
	writeFile(t, path, strings.Join(records.CanonicalColumns, ",")+",action,is_milestone\n"+
		"x,2024-03-01T09:00:00Z,2024-03-01T10:00:00Z,p1,Novel,,,,,,stop,false\n"+
		"y,2024-03-02T09:00:00Z,2024-03-02T10:00:00Z,p1,Novel,,,,,,draft,true\n"+
		"bad,yesterday,today,p1,Novel,,,,,,keep,true\n")

	_, err := f.store.Remove(ctx, "x")
	require.NoError(t, err)

	unit, _, err := f.store.ReadUnit(ctx, 2024)
	require.NoError(t, err)
	assert.True(t, unit.Batch.Header.Has("action"))
	assert.True(t, unit.Batch.Header.Has("is_milestone"))
	require.Len(t, unit.Batch.Rows, 1)
	row := unit.Batch.Rows[0]
	assert.Equal(t, "y", row.Record.RecordID())
	assert.Equal(t, "draft", unit.Batch.Header.Field(row.Raw, "action"))
	assert.Equal(t, "true", unit.Batch.Header.Field(row.Raw, "is_milestone"))

	require.Len(t, unit.Batch.Errors, 1)
	assert.Equal(t, "keep", unit.Batch.Header.Field(unit.Batch.Errors[0].Raw, "action"))
}

func TestYearStore_AppendAndReplaceKeepExtraColumns(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	writeFile(t, f.store.UnitPath(2024), strings.Join(records.CanonicalColumns, ",")+",action\n"+
		"y,2024-03-02T09:00:00Z,2024-03-02T10:00:00Z,p1,Novel,,,,,,draft\n")

	require.NoError(t, f.store.Append(ctx, session("n", day(2024, 4, 1, 9, 0), 30, "p1")))
	require.NoError(t, f.store.Replace(ctx, "y", session("y", day(2023, 12, 30, 9, 0), 60, "p1")))

	moved, _, err := f.store.ReadUnit(ctx, 2023)
	require.NoError(t, err)
	require.Len(t, moved.Batch.Rows, 1)
	assert.Equal(t, "draft", moved.Batch.Header.Field(moved.Batch.Rows[0].Raw, "action"))

	left, _, err := f.store.ReadUnit(ctx, 2024)
	require.NoError(t, err)
	assert.True(t, left.Batch.Header.Has("action"))
	require.Len(t, left.Batch.Rows, 1)
	assert.Equal(t, "", left.Batch.Header.Field(left.Batch.Rows[0].Raw, "action"))
}

func TestYearStore_CorruptUnitIsQuarantined(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	path := f.store.UnitPath(2022)
	writeFile(t, path, "what,is,this\n1,2,3\n")
	require.NoError(t, f.store.Append(ctx, session("a", day(2024, 3, 1, 9, 0), 60, "p1")))

	sessions, report, err := f.store.Load(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	require.Len(t, report.Quarantined, 1)

	expected := filepath.Join(f.dir, "quarantine", fmt.Sprintf("2022-data.csv.%d", int64(1700000000)))
	assert.Equal(t, expected, report.Quarantined[0])
	assert.FileExists(t, expected)
	assert.NoFileExists(t, path)
	assert.Equal(t, 1, f.metrics.QuarantinedUnits)
	assert.True(t, f.logger.Contains("error", "unreadable"))

	years, err := f.store.Years()
	require.NoError(t, err)
	assert.Equal(t, []int{2024}, years)
}

func TestYearStore_LegacyUnitLoadsButRejectsWrites(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	writeFile(t, f.store.UnitPath(2024), strings.Join(records.LegacyColumns, ",")+"\n"+
		"l1,2024-12-15,22:30,00:02,92,Novel,,,,,,\n"+
		"l2,2024-12-16,23:00,12:30,0,Novel,,,,,,\n")

	sessions, report, err := f.store.Load(ctx, nil)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "l1", sessions[0].ID)
	assert.Equal(t, 92, sessions[0].DurationMinutes())
	require.Len(t, report.RowErrors, 1)
	assert.True(t, apperrors.IsErrorType(report.RowErrors[0].Err, apperrors.ErrorTypeAmbiguousHour))

	unit, _, err := f.store.ReadUnit(ctx, 2024)
	require.NoError(t, err)
	assert.True(t, unit.Legacy())
	assert.Len(t, unit.Batch.Rows, 2)

	err = f.store.Append(ctx, session("n", day(2024, 5, 1, 9, 0), 30, "p1"))
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeMigrationRequired))

	_, err = f.store.Remove(ctx, "l1")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeMigrationRequired))
}

func TestYearStore_WriteUnitConvertsToCanonical(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	writeFile(t, f.store.UnitPath(2024), strings.Join(records.LegacyColumns, ",")+"\n"+
		"l1,2024-12-15,22:30,00:02,92,Novel,,,,,,\n")

	migrated := session("l1", day(2024, 12, 15, 22, 30), 92, "p1")
	require.NoError(t, f.store.WriteUnit(ctx, 2024, []models.Session{migrated}, nil, records.Extras{}))

	unit, _, err := f.store.ReadUnit(ctx, 2024)
	require.NoError(t, err)
	assert.False(t, unit.Legacy())
	require.NoError(t, f.store.Append(ctx, session("n", day(2024, 5, 1, 9, 0), 30, "p1")))
}

func TestYearStore_Backup(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, session("a", day(2024, 3, 1, 9, 0), 60, "p1")))

	compressor, err := NewZstdCompressor()
	require.NoError(t, err)
	defer compressor.Close()

	backupDir := filepath.Join(t.TempDir(), "backup")
	path, err := f.store.Backup(ctx, 2024, backupDir, compressor)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(backupDir, "2024-data.csv.1700000000.zst"), path)

	compressed, err := os.ReadFile(path)
	require.NoError(t, err)
	restored, err := compressor.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, readFile(t, f.store.UnitPath(2024)), string(restored))

	path, err = f.store.Backup(ctx, 1999, backupDir, compressor)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestYearStore_AppendUnmigratedWritesHeaderOnce(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	row := func(id string) []string {
		return records.EncodeLegacy(models.LegacySessionRecord{ID: id, Date: "2024-01-01", StartTime: "23:00", EndTime: "12:30", ProjectName: "Novel"})
	}

	require.NoError(t, f.store.AppendUnmigrated(ctx, 2024, [][]string{row("x1")}))
	require.NoError(t, f.store.AppendUnmigrated(ctx, 2024, [][]string{row("x2"), row("x3")}))
	require.NoError(t, f.store.AppendUnmigrated(ctx, 2024, nil))

	content := readFile(t, f.store.UnmigratedPath(2024))
	assert.Equal(t, 1, strings.Count(content, strings.Join(records.LegacyColumns, ",")))
	assert.Equal(t, 4, strings.Count(content, "\n"))

	years, err := f.store.Years()
	require.NoError(t, err)
	assert.Empty(t, years)
}

func TestYearStore_AppendUnmigratedSkipsRowsAlreadyStored(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	row := records.EncodeLegacy(models.LegacySessionRecord{ID: "x1", Date: "2024-01-01", StartTime: "23:00", EndTime: "12:30", ProjectName: "Novel, the sequel"})

	require.NoError(t, f.store.AppendUnmigrated(ctx, 2024, [][]string{row}))
	require.NoError(t, f.store.AppendUnmigrated(ctx, 2024, [][]string{row, row}))

	content := readFile(t, f.store.UnmigratedPath(2024))
	assert.Equal(t, 1, strings.Count(content, "x1,"))
	assert.Equal(t, 2, strings.Count(content, "\n"))
}

func TestYearStore_MergeUpsertsAndKeepsExtras(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, session("a", day(2024, 3, 1, 9, 0), 60, "p1")))

	extras := records.Extras{Columns: []string{"action"}, Cells: map[string][]string{"b": {"draft"}}}
	b := session("b", day(2024, 3, 2, 9, 0), 30, "p1")
	require.NoError(t, f.store.Merge(ctx, 2024, []models.Session{b}, extras))
	require.NoError(t, f.store.Merge(ctx, 2024, []models.Session{b}, extras))

	unit, _, err := f.store.ReadUnit(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, unit.Batch.Rows, 2)
	for _, row := range unit.Batch.Rows {
		want := ""
		if row.Record.RecordID() == "b" {
			want = "draft"
		}
		assert.Equal(t, want, unit.Batch.Header.Field(row.Raw, "action"))
	}
}

func TestYearStore_RestoreUnit(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, session("a", day(2024, 3, 1, 9, 0), 60, "p1")))
	original := readFile(t, f.store.UnitPath(2024))

	require.NoError(t, f.store.Append(ctx, session("b", day(2024, 3, 2, 9, 0), 60, "p1")))
	require.NoError(t, f.store.RestoreUnit(ctx, 2024, []byte(original)))

	assert.Equal(t, original, readFile(t, f.store.UnitPath(2024)))
}

func TestYearStore_ConcurrentAppendsAcrossYears(t *testing.T) {
	f := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, year := range []int{2023, 2024} {
			wg.Add(1)
			go func(i, year int) {
				defer wg.Done()
				s := session(fmt.Sprintf("%d-%02d", year, i), day(year, 6, 1, 0, i), 1, "p1")
				assert.NoError(t, f.store.Append(ctx, s))
			}(i, year)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.store.Load(ctx, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sessions, report, err := f.store.Load(ctx, nil)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Len(t, sessions, 40)
}

func TestYearStore_CancelledContext(t *testing.T) {
	f := newStore(t)
	require.NoError(t, f.store.Append(context.Background(), session("a", day(2024, 3, 1, 9, 0), 60, "p1")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := f.store.Load(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, f.store.Append(ctx, session("b", day(2024, 3, 2, 9, 0), 60, "p1")), context.Canceled)
}

func TestWriteFileAtomic_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "projects.json")

	require.NoError(t, WriteFileAtomic(path, []byte("[]"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte(`[{"id":"p1"}]`), 0o644))

	assert.Equal(t, `[{"id":"p1"}]`, readFile(t, path))
	assert.NoFileExists(t, path+".tmp")
}

package providers

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juju/internal/structures"
)

func TestGetLogTypeByRequestType(t *testing.T) {
	assert.Equal(t, TypePost, GetLogTypeByRequestType("POST"))
	assert.Equal(t, TypeGet, GetLogTypeByRequestType("GET"))
	assert.Equal(t, TypeGet, GetLogTypeByRequestType("PUT"))
	assert.Equal(t, TypeGet, GetLogTypeByRequestType("DELETE"))
}

func logConfig(dir, level string) *structures.Config {
	return &structures.Config{
		Logger: structures.LoggerConfig{
			Level: level,
			Mode:  0644,
			Dir:   dir,
		},
	}
}

func readLogLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestNewLogProvider_WritesTypedLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, err := NewLogProvider(logConfig(dir, "info"))
	require.NoError(t, err)

	logger.Infof(TypeApp, "Starting %s", "juju")
	logger.Debugf(TypeGet, "filtered out at info")
	logger.Warnf(TypeMigration, "2019: %d rows left unmigrated", 3)
	logger.Close()

	lines := readLogLines(t, filepath.Join(dir, "app.log"))
	require.Len(t, lines, 2)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "app", lines[0]["type"])
	assert.Equal(t, "Starting juju", lines[0]["message"])
	assert.Equal(t, "warn", lines[1]["level"])
	assert.Equal(t, "migration", lines[1]["type"])
	assert.Equal(t, "2019: 3 rows left unmigrated", lines[1]["message"])
	assert.Contains(t, lines[1], "time")
}

func TestNewLogProvider_InvalidLevel(t *testing.T) {
	_, err := NewLogProvider(logConfig(t.TempDir(), "loud"))
	assert.ErrorContains(t, err, "invalid log level")
}

func TestNewLogProvider_DirIsAFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewLogProvider(logConfig(filepath.Join(file, "log"), "info"))
	assert.Error(t, err)
}

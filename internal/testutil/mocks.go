package testutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"juju/internal/providers"
	"juju/internal/structures"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (e LogEntry) Message() string {
	return fmt.Sprintf(e.Format, e.Args...)
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Entries returns the recorded entries at level.
func (m *MockLogger) Entries(level string) []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LogEntry
	for _, e := range m.Logs {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether any entry at level has a message containing substr.
func (m *MockLogger) Contains(level, substr string) bool {
	for _, e := range m.Entries(level) {
		if strings.Contains(e.Message(), substr) {
			return true
		}
	}
	return false
}

// MockMetrics implements providers.MetricsProviderInterface and counts calls.
type MockMetrics struct {
	mu                 sync.Mutex
	Requests           int
	CacheHits          int
	CacheMisses        int
	CacheInvalidations int
	PersistenceWrites  int
	SessionsTotal      map[int]int
	QuarantinedUnits   int
	MigratedRecords    int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{SessionsTotal: make(map[int]int)}
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests++
}
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}
func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}
func (m *MockMetrics) IncCacheInvalidations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheInvalidations++
}
func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistenceWrites++
}
func (m *MockMetrics) SetSessionsTotal(year int, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SessionsTotal[year] = count
}
func (m *MockMetrics) IncQuarantinedUnits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QuarantinedUnits++
}
func (m *MockMetrics) AddMigratedRecords(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MigratedRecords += count
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu      sync.Mutex
	Data    map[string][]byte
	Deletes int
	Clears  int
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

func (m *MockCache) Del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes++
	delete(m.Data, key)
}

func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Clears++
	m.Data = make(map[string][]byte)
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
	Closed       bool
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// Default: return as-is (identity)
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {
	m.Closed = true
}

// Config returns a valid configuration rooted at dir, with UTC as the zone.
func Config(dir string) *structures.Config {
	return &structures.Config{
		AppName: "juju",
		Storage: structures.StorageConfig{
			DataDir:        filepath.Join(dir, "data"),
			BackupDir:      filepath.Join(dir, "backup"),
			MigrateOnStart: true,
			Timezone:       "UTC",
		},
		Duration: structures.DurationConfig{EarlyMorningMaxHour: 3},
		WebServer: structures.Server{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Logger: structures.LoggerConfig{
			Level: "debug",
			Mode:  0o644,
			Dir:   dir,
		},
		Cache: structures.CacheConfig{
			Enabled:    true,
			Size:       1,
			TTL:        structures.DefaultCacheTTL,
			BatchSize:  2,
			BatchPause: time.Millisecond,
		},
		Scheduler: structures.SchedulerConfig{
			PrecomputeInterval:  time.Minute,
			OrphanSweepInterval: time.Hour,
		},
	}
}

package structures

import (
	"net/http"
	"time"
)

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}

type Route struct {
	Method  string
	Url     string
	Handler http.Handler
}

// Pattern is the method-qualified ServeMux pattern of the route.
func (r Route) Pattern() string {
	return r.Method + " " + r.Url
}

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type StorageConfig struct {
	DataDir        string `yaml:"dataDir" validate:"required|unixPath"`
	BackupDir      string `yaml:"backupDir" validate:"required|unixPath"`
	MigrateOnStart bool   `yaml:"migrateOnStart"`
	Timezone       string `yaml:"timezone"`
}

type DurationConfig struct {
	EarlyMorningMaxHour int `yaml:"earlyMorningMaxHour" validate:"min:0|max:23"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Size       int           `yaml:"size"`
	TTL        time.Duration `yaml:"ttl"`
	BatchSize  int           `yaml:"batchSize"`
	BatchPause time.Duration `yaml:"batchPause"`
}

type SchedulerConfig struct {
	PrecomputeInterval  time.Duration `yaml:"precomputeInterval"`
	OrphanSweepInterval time.Duration `yaml:"orphanSweepInterval"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName   string
	Debug     bool
	Path      string
	Storage   StorageConfig   `yaml:"storage"`
	Duration  DurationConfig  `yaml:"duration"`
	WebServer Server          `yaml:"webServer"`
	Logger    LoggerConfig    `yaml:"logger"`
	Cache     CacheConfig     `yaml:"cache"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

const (
	DefaultCacheTTL        = 30 * time.Second
	DefaultCacheBatchSize  = 8
	DefaultCacheBatchPause = 25 * time.Millisecond
)

// CacheTTL falls back to the 30 second staleness window.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTL <= 0 {
		return DefaultCacheTTL
	}
	return c.Cache.TTL
}

// Location resolves the configured timezone, defaulting to the process local zone.
func (c *Config) Location() *time.Location {
	if c.Storage.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Storage.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

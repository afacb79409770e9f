package providers

import (
	"juju/internal/structures"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *structures.Config {
	return &structures.Config{
		WebServer: structures.Server{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: structures.StorageConfig{
			DataDir:   "/tmp/juju/data",
			BackupDir: "/tmp/juju/backup",
		},
		Duration: structures.DurationConfig{
			EarlyMorningMaxHour: 3,
		},
		Logger: structures.LoggerConfig{
			Level: "info",
			Mode:  0644,
			Dir:   "/tmp/logs",
		},
		Cache: structures.CacheConfig{
			Enabled: true,
			Size:    4,
			TTL:     30 * time.Second,
		},
	}
}

func TestConfigValidator_ValidConfig(t *testing.T) {
	v := NewCnfValidator(validConfig())
	assert.NoError(t, v.Validate())
}

func TestConfigValidator_EmptyHost(t *testing.T) {
	c := validConfig()
	c.WebServer.Host = ""
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_ZeroPort(t *testing.T) {
	c := validConfig()
	c.WebServer.Port = 0
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_EmptyLogLevel(t *testing.T) {
	c := validConfig()
	c.Logger.Level = ""
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_InvalidLogLevel(t *testing.T) {
	c := validConfig()
	c.Logger.Level = "verbose"
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_MissingDataDir(t *testing.T) {
	c := validConfig()
	c.Storage.DataDir = ""
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_EarlyMorningHourOutOfRange(t *testing.T) {
	c := validConfig()
	c.Duration.EarlyMorningMaxHour = 24
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())
}

func TestConfigValidator_EnabledCacheNeedsSize(t *testing.T) {
	c := validConfig()
	c.Cache.Size = 0
	v := NewCnfValidator(c)
	assert.Error(t, v.Validate())

	c.Cache.Enabled = false
	assert.NoError(t, NewCnfValidator(c).Validate())
}

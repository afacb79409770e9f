package providers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"juju/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.SetDefault("duration.earlyMorningMaxHour", 3)
	viper.SetDefault("storage.migrateOnStart", true)
	viper.SetDefault("cache.ttl", structures.DefaultCacheTTL)
	viper.SetDefault("cache.batchSize", structures.DefaultCacheBatchSize)
	viper.SetDefault("cache.batchPause", structures.DefaultCacheBatchPause)
	viper.SetDefault("scheduler.precomputeInterval", "5m")
	viper.SetDefault("scheduler.orphanSweepInterval", "1h")

	viper.BindEnv("storage.dataDir", "JUJU_DATA_DIR")
	viper.BindEnv("logger.level", "JUJU_LOG_LEVEL")
	viper.BindEnv("cache.ttl", "JUJU_CACHE_TTL")
	viper.BindEnv("cache.enabled", "JUJU_CACHE_ENABLED")
	viper.BindEnv("cache.size", "JUJU_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "juju"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}

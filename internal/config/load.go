package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: SQLSINK_STORAGE_DSN overrides
// storage.dsn.
const EnvPrefix = "sqlsink"

// Load reads the config file at path. The format follows the extension
// (.json, .yaml, .yml, .toml). An empty path loads only defaults and
// environment overrides.
func Load(path string) (Sink, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Keys need a default for AutomaticEnv to reach them during Unmarshal.
	v.SetDefault("job", "sqlsink")
	v.SetDefault("storage.kind", "")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("buffer.default_batch_size", 1)
	v.SetDefault("buffer.flush_interval_seconds", 0)
	v.SetDefault("buffer.flush_workers", 1)
	v.SetDefault("metrics.backend", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.datadog_addr", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Sink{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var s Sink
	if err := v.Unmarshal(&s); err != nil {
		return Sink{}, fmt.Errorf("config: decode: %w", err)
	}
	return s, nil
}

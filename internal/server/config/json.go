package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/debtorkeeper/internal/flagx"
	"github.com/dmitrijs2005/debtorkeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Fields are pointers so a key
// present with an empty or zero value ("metrics_address": "",
// "refresh_interval": "0s") is told apart from a missing key. Durations use
// timex.Duration so both "5m" and integer nanoseconds are accepted.
type JsonConfig struct {
	DatabaseDSN          *string         `json:"database_dsn"`
	EncryptionKey        *string         `json:"encryption_key"`
	EncryptionPassphrase *string         `json:"encryption_passphrase"`
	EncryptionSalt       *string         `json:"encryption_salt"`
	RefreshInterval      *timex.Duration `json:"refresh_interval"`
	DefaultWindowDays    *int            `json:"default_window_days"`
	MaxWindowDays        *int            `json:"max_window_days"`
	CacheCapacity        *int            `json:"cache_capacity"`
	CacheTTL             *timex.Duration `json:"cache_ttl"`
	LogLevel             *string         `json:"log_level"`
	MetricsAddr          *string         `json:"metrics_address"`
}

// parseJson overlays values from the file named by -c/-config. Without the
// flag nothing happens. Keys missing from the file keep their current value.
// An unreadable or malformed file panics: the process cannot start with a
// half-understood configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.EncryptionKey, c.EncryptionKey)
	set(&config.EncryptionPassphrase, c.EncryptionPassphrase)
	set(&config.EncryptionSalt, c.EncryptionSalt)
	set(&config.LogLevel, c.LogLevel)
	set(&config.MetricsAddr, c.MetricsAddr)
	set(&config.DefaultWindowDays, c.DefaultWindowDays)
	set(&config.MaxWindowDays, c.MaxWindowDays)
	set(&config.CacheCapacity, c.CacheCapacity)

	if c.RefreshInterval != nil {
		config.RefreshInterval = c.RefreshInterval.Duration
	}
	if c.CacheTTL != nil {
		config.CacheTTL = c.CacheTTL.Duration
	}
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

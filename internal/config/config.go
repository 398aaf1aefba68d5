// Package config loads the detection engine's YAML policy file via
// koanf, mirroring the teacher's load-into-struct pattern.
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Server is the HTTP listener configuration.
type Server struct {
	Addr string `yaml:"addr"`
}

// Redis configures the window-cache backend.
type Redis struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}

// Postgres configures the record store backend.
type Postgres struct {
	DSN            string `yaml:"dsn"`
	MigrationsDir  string `yaml:"migrations_dir"`
}

// InfluxDB configures the time-series sink.
type InfluxDB struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Detection holds the window detector's tunable policy (§6.4).
type Detection struct {
	WindowSeconds      int  `yaml:"window_seconds"`
	Threshold          int  `yaml:"threshold"`
	CooldownSeconds    int  `yaml:"cooldown_seconds"`
	AutoBlockEnabled   bool `yaml:"auto_block_enabled"`
}

// Behavioral holds the CPM/ACD/fan-out thresholds that cmd/detectord
// applies over behavior.DefaultThresholds for the detector's scoring
// step. WindowSeconds is loaded but not read: the behavioral tracker is
// built from behavior.DefaultConfig.
type Behavioral struct {
	CPMWarning               int     `yaml:"cpm_warning"`
	CPMCritical              int     `yaml:"cpm_critical"`
	ACDWarningSeconds        float64 `yaml:"acd_warning_seconds"`
	ACDCriticalSeconds       float64 `yaml:"acd_critical_seconds"`
	UniqueDestinationsCritical int   `yaml:"unique_destinations_critical"`
	WindowSeconds            int     `yaml:"window_seconds"`
}

// CacheTimeouts bounds every external call the detector makes per
// registration (§5).
type CacheTimeouts struct {
	CacheTimeoutMs int `yaml:"cache_timeout_ms"`
	StoreTimeoutMs int `yaml:"store_timeout_ms"`
	SinkTimeoutMs  int `yaml:"sink_timeout_ms"`
}

// Retention holds the unflagged-call purge horizon. Nothing in this
// repository reads it or schedules RecordStore.CleanupUnflaggedBefore.
type Retention struct {
	UnflaggedCallsSeconds int `yaml:"unflagged_calls_seconds"`
}

// Outbox bounds the event buffer's per-priority channel capacities.
type Outbox struct {
	AlertCapacity   int `yaml:"alert_capacity"`
	RoutineCapacity int `yaml:"routine_capacity"`
}

// Config is the full detection engine configuration tree.
type Config struct {
	Server     Server        `yaml:"server"`
	Redis      Redis         `yaml:"redis"`
	Postgres   Postgres      `yaml:"postgres"`
	InfluxDB   InfluxDB      `yaml:"influxdb"`
	Detection  Detection     `yaml:"detection"`
	Behavioral Behavioral    `yaml:"behavioral"`
	Cache      CacheTimeouts `yaml:"cache"`
	Retention  Retention     `yaml:"retention"`
	Outbox     Outbox        `yaml:"outbox"`
}

// Load reads the YAML file named by VOXGUARD_CONFIG, defaulting to
// configs/detectord.yaml.
func Load() (*Config, error) {
	path := os.Getenv("VOXGUARD_CONFIG")
	if path == "" {
		path = "configs/detectord.yaml"
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustEnv returns the environment variable's value, or def if unset.
func MustEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

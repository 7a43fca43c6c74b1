// Package config loads daemon configuration: defaults, merged with an
// optional yaml file, overridden by environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	TransportBLE  = "ble"
	TransportMock = "mock"
)

type Config struct {
	DataDir         string
	StoreSecret     string
	FreshnessWindow time.Duration
	JournalCapacity int
	MetricsAddr     string
	Transport       Transport
}

type Transport struct {
	Backend string
	// ServiceUUID selects peripherals during scans and hosts the config and
	// data characteristics.
	ServiceUUID    string
	CandidateRPS   float64
	CandidateBurst int
	ConnectTimeout time.Duration
}

func Default() Config {
	return Config{
		DataDir:         defaultDataDir(),
		FreshnessWindow: 5 * time.Minute,
		JournalCapacity: 288,
		MetricsAddr:     "127.0.0.1:9321",
		Transport: Transport{
			Backend:        TransportBLE,
			ServiceUUID:    "0000f0a0-0000-1000-8000-00805f9b34fb",
			CandidateRPS:   0.2,
			CandidateBurst: 2,
			ConnectTimeout: 15 * time.Second,
		},
	}
}

// StorePath is the device snapshot location under the data dir.
func (c Config) StorePath() string {
	return filepath.Join(c.DataDir, "devices.state")
}

type fileConfig struct {
	DataDir         string              `yaml:"dataDir"`
	StoreSecret     string              `yaml:"storeSecret"`
	FreshnessWindow time.Duration       `yaml:"freshnessWindow"`
	JournalCapacity int                 `yaml:"journalCapacity"`
	MetricsAddr     string              `yaml:"metricsAddr"`
	Transport       fileTransportConfig `yaml:"transport"`
}

type fileTransportConfig struct {
	Backend        string        `yaml:"backend"`
	ServiceUUID    string        `yaml:"serviceUuid"`
	CandidateRPS   float64       `yaml:"candidateRps"`
	CandidateBurst int           `yaml:"candidateBurst"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// LoadFromPath returns defaults merged with the yaml file at configPath
// (or the first existing well-known location when empty) and environment
// overrides. Unreadable or unparsable candidates are skipped.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"fleetd.yaml",
			"configs/fleetd.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

// Merge applies non-zero file values onto dst.
func Merge(dst *Config, src fileConfig) {
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.StoreSecret != "" {
		dst.StoreSecret = src.StoreSecret
	}
	if src.FreshnessWindow > 0 {
		dst.FreshnessWindow = src.FreshnessWindow
	}
	if src.JournalCapacity > 0 {
		dst.JournalCapacity = src.JournalCapacity
	}
	if src.MetricsAddr != "" {
		dst.MetricsAddr = src.MetricsAddr
	}
	if src.Transport.Backend != "" {
		dst.Transport.Backend = src.Transport.Backend
	}
	if src.Transport.ServiceUUID != "" {
		dst.Transport.ServiceUUID = src.Transport.ServiceUUID
	}
	if src.Transport.CandidateRPS > 0 {
		dst.Transport.CandidateRPS = src.Transport.CandidateRPS
	}
	if src.Transport.CandidateBurst > 0 {
		dst.Transport.CandidateBurst = src.Transport.CandidateBurst
	}
	if src.Transport.ConnectTimeout > 0 {
		dst.Transport.ConnectTimeout = src.Transport.ConnectTimeout
	}
}

// ApplyEnvOverrides applies WRISTLINK_* variables on top of cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("WRISTLINK_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("WRISTLINK_STORE_SECRET")); v != "" {
		cfg.StoreSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("WRISTLINK_METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WRISTLINK_TRANSPORT")); v != "" {
		cfg.Transport.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("WRISTLINK_FRESHNESS_WINDOW")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.FreshnessWindow = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("WRISTLINK_JOURNAL_CAPACITY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.JournalCapacity = n
		}
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "wristlink-data"
	}
	return filepath.Join(home, ".wristlink")
}

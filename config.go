package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"skillgap/skill"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for skillgap.
type Config struct {
	Workspace string       `yaml:"workspace"`
	GlobalDir string       `yaml:"global_dir"`
	SkillFile string       `yaml:"skill_file"`
	Scan      ScanConfig   `yaml:"scan"`
	Remote    RemoteConfig `yaml:"remote"`
	Import    ImportConfig `yaml:"import"`
	Trash     TrashConfig  `yaml:"trash"`
	Store     StoreConfig  `yaml:"store"`
	Logger    LoggerConfig `yaml:"logger"`
	API       APIConfig    `yaml:"api"`
	Serve     ServeConfig  `yaml:"serve"`
}

type ScanConfig struct {
	RootSuffixes []string `yaml:"root_suffixes"`
	ExtraRoots   []string `yaml:"extra_roots"`
}

type RemoteConfig struct {
	Token           string             `yaml:"token"`
	CacheTTLSeconds int                `yaml:"cache_ttl_seconds"`
	APIBaseURL      string             `yaml:"api_base_url"`
	RawBaseURL      string             `yaml:"raw_base_url"`
	BatchSize       int                `yaml:"batch_size"`
	BatchDelay      string             `yaml:"batch_delay"`
	HTTPTimeout     string             `yaml:"http_timeout"`
	NoDefaults      bool               `yaml:"no_default_sources"`
	Sources         []skill.RepoSource `yaml:"sources"`
}

type ImportConfig struct {
	TargetDir string `yaml:"target_dir"`
}

type TrashConfig struct {
	Dir string `yaml:"dir"`
}

type StoreConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteCfg    `yaml:"sqlite"`
	MySQL  MySQLCfg     `yaml:"mysql"`
	JSON   JSONStoreCfg `yaml:"json"`
}

type SQLiteCfg struct {
	Path string `yaml:"path"`
}

type MySQLCfg struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

type JSONStoreCfg struct {
	Path          string `yaml:"path"`
	FlushInterval string `yaml:"flush_interval"`
}

type LoggerConfig struct {
	Level      string        `yaml:"level"`
	Console    ConsoleLogCfg `yaml:"console"`
	File       FileLogCfg    `yaml:"file"`
	Structured StructLogCfg  `yaml:"structured"`
}

type ConsoleLogCfg struct {
	Enabled *bool `yaml:"enabled"`
	Color   *bool `yaml:"color"`
}

type FileLogCfg struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type StructLogCfg struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type APIConfig struct {
	Listen    string `yaml:"listen"`
	AuthToken string `yaml:"auth_token"`
}

// ServeConfig schedules background work for the serve command. Empty
// intervals disable the job.
type ServeConfig struct {
	RescanInterval  string `yaml:"rescan_interval"`
	RefreshInterval string `yaml:"refresh_interval"`
}

// LoadConfig reads and parses the config file, expanding environment
// variables. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		// Expand ${ENV_VAR} references
		expanded := os.Expand(string(data), func(key string) string {
			return os.Getenv(key)
		})
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Workspace == "" {
		c.Workspace = "."
	}
	if c.GlobalDir == "" {
		c.GlobalDir = "~/.skills"
	}
	if c.SkillFile == "" {
		c.SkillFile = skill.DefaultFileName
	}
	if c.Remote.Token == "" {
		c.Remote.Token = os.Getenv("GITHUB_TOKEN")
	}
	if c.Remote.CacheTTLSeconds <= 0 {
		c.Remote.CacheTTLSeconds = 3600
	}
	if c.Remote.BatchSize <= 0 {
		c.Remote.BatchSize = 5
	}
	if c.Remote.BatchDelay == "" {
		c.Remote.BatchDelay = "150ms"
	}
	if c.Remote.HTTPTimeout == "" {
		c.Remote.HTTPTimeout = "30s"
	}
	if c.Import.TargetDir == "" {
		c.Import.TargetDir = ".agent/skills"
	}
	if c.Store.Type == "" {
		c.Store.Type = "sqlite"
	}
	if c.Store.SQLite.Path == "" {
		c.Store.SQLite.Path = "~/.skillgap/ledger.db"
	}
	if c.Store.JSON.Path == "" {
		c.Store.JSON.Path = "~/.skillgap/ledger.json"
	}
	if c.Store.JSON.FlushInterval == "" {
		c.Store.JSON.FlushInterval = "30s"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "warn"
	}
	if c.Logger.Console.Enabled == nil {
		c.Logger.Console.Enabled = boolPtr(true)
	}
	if c.Logger.File.Enabled && c.Logger.File.Dir == "" {
		c.Logger.File.Dir = "~/.skillgap/logs"
	}
	if c.Logger.Structured.Enabled && c.Logger.Structured.Path == "" {
		c.Logger.Structured.Path = "~/.skillgap/logs/skillgap.ndjson"
	}
	if c.API.Listen == "" {
		c.API.Listen = ":8787"
	}
	if c.API.AuthToken == "" {
		c.API.AuthToken = os.Getenv("SKILLGAP_API_TOKEN")
	}
}

func boolPtr(b bool) *bool { return &b }

// ParseDuration parses a duration string, returning a fallback on error.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

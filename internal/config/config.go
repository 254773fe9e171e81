package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/stlalpha/v3toss/internal/ftn"
)

// LinkConfig defines a peer node and the areas it is subscribed to.
type LinkConfig struct {
	Address  string   `json:"address"`  // e.g., "2:5020/1"
	Name     string   `json:"name"`     // Human-readable name
	Password string   `json:"password"` // Packet password
	Host     string   `json:"host"`     // Empty = no transport endpoint, never polled
	Port     int      `json:"port"`
	Flavour  string   `json:"flavour"` // normal, crash, hold, direct
	Areas    []string `json:"areas"`   // Echo tags subscribed at startup
}

// RouteConfig routes netmail matching the masks via the link at Via.
type RouteConfig struct {
	Priority int    `json:"priority"`
	FromAddr string `json:"from_addr"`
	ToAddr   string `json:"to_addr"`
	FromName string `json:"from_name"`
	ToName   string `json:"to_name"`
	Subject  string `json:"subject"`
	Via      string `json:"via"` // Link address
}

// RewriteFields is the five-field pattern or replacement of a rewrite rule.
// Empty and "*" both mean "any" / "unchanged".
type RewriteFields struct {
	FromAddr string `json:"from_addr"`
	ToAddr   string `json:"to_addr"`
	FromName string `json:"from_name"`
	ToName   string `json:"to_name"`
	Subject  string `json:"subject"`
}

// RewriteConfig defines a rewrite rule.
type RewriteConfig struct {
	Type     string        `json:"type"` // NETMAIL or ECHOMAIL
	Priority int           `json:"priority"`
	Last     bool          `json:"last"`
	Match    RewriteFields `json:"match"`
	Set      RewriteFields `json:"set"`
}

// DatabaseConfig selects the message store.
type DatabaseConfig struct {
	Driver         string `json:"driver"` // memory or postgres
	DSN            string `json:"dsn"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// DedupConfig selects where echomail dupe records are kept.
type DedupConfig struct {
	Backend       string `json:"backend"` // store, redis or file
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	FilePath      string `json:"file_path"`
	MaxAgeDays    int    `json:"max_age_days"` // 0 = keep forever
}

// MailerConfig is the external mailer run after a link's bundles are spooled.
type MailerConfig struct {
	Command          string            `json:"command"` // Empty = spool only
	Args             []string          `json:"args"`
	WorkingDirectory string            `json:"working_directory"`
	TimeoutSeconds   int               `json:"timeout_seconds"`
	EnvironmentVars  map[string]string `json:"environment_vars,omitempty"`
}

// PollConfig drives periodic polling of links.
type PollConfig struct {
	Enabled            bool         `json:"enabled"`
	Schedule           string       `json:"schedule"` // Cron syntax with seconds
	MaxConcurrentPolls int          `json:"max_concurrent_polls"`
	HistoryPath        string       `json:"history_path"`
	Mailer             MailerConfig `json:"mailer"`
}

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	File       string `json:"file"` // Empty = stderr only
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Debug      bool   `json:"debug"`
}

// TossConfig holds all tosser settings. Loaded from configs/toss.json.
type TossConfig struct {
	Address           string          `json:"address"` // e.g., "2:5020/9999"
	StationName       string          `json:"station_name"`
	Charset           string          `json:"charset"`
	InboundPath       string          `json:"inbound_path"`
	SecureInboundPath string          `json:"secure_inbound_path"`
	FilesPath         string          `json:"files_path"`
	BadPath           string          `json:"bad_path"` // Malformed or rejected inbound artifacts
	OutboundPath      string          `json:"outbound_path"`
	NodelistPath      string          `json:"nodelist_path"` // Empty = every address is listed
	MetricsListen     string          `json:"metrics_listen"`
	Robots            []string        `json:"robots"`
	Database          DatabaseConfig  `json:"database"`
	Dedup             DedupConfig     `json:"dedup"`
	Poll              PollConfig      `json:"poll"`
	Log               LogConfig       `json:"log"`
	Links             []LinkConfig    `json:"links"`
	Routes            []RouteConfig   `json:"routes"`
	Rewrites          []RewriteConfig `json:"rewrites"`
}

// DefaultTossConfig returns the settings used for anything toss.json omits.
func DefaultTossConfig() TossConfig {
	return TossConfig{
		StationName:       "v3toss",
		Charset:           "cp866",
		InboundPath:       "data/ftn/inbound",
		SecureInboundPath: "data/ftn/secure_inbound",
		FilesPath:         "data/ftn/files",
		BadPath:           "data/ftn/bad",
		OutboundPath:      "data/ftn/outbound",
		Robots:            []string{"ping"},
		Database:          DatabaseConfig{Driver: "memory", TimeoutSeconds: 10},
		Dedup:             DedupConfig{Backend: "store", FilePath: "data/ftn/dupes.json"},
		Poll: PollConfig{
			Schedule:           "0 */15 * * * *",
			MaxConcurrentPolls: 3,
			HistoryPath:        "data/ftn/poll_history.json",
		},
		Log: LogConfig{MaxSizeMB: 10, MaxBackups: 5, MaxAgeDays: 30},
	}
}

// LoadTossConfig loads the tosser configuration from toss.json in
// configPath. A missing file yields the defaults, which fail Validate until
// an address is set.
func LoadTossConfig(configPath string) (TossConfig, error) {
	filePath := filepath.Join(configPath, "toss.json")
	log.Printf("INFO: Loading tosser configuration from %s", filePath)

	defaultConfig := DefaultTossConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("WARN: toss.json not found at %s. Using default settings.", filePath)
			return defaultConfig, nil
		}
		return defaultConfig, fmt.Errorf("failed to read tosser config file %s: %w", filePath, err)
	}

	config := defaultConfig
	if err := json.Unmarshal(data, &config); err != nil {
		log.Printf("ERROR: Failed to parse tosser config JSON from %s: %v", filePath, err)
		return defaultConfig, fmt.Errorf("failed to parse tosser config JSON from %s: %w", filePath, err)
	}

	if config.Poll.MaxConcurrentPolls <= 0 {
		config.Poll.MaxConcurrentPolls = 3
	}

	log.Printf("INFO: Loaded tosser configuration: address=%s, %d link(s), %d route(s), %d rewrite(s)",
		config.Address, len(config.Links), len(config.Routes), len(config.Rewrites))
	return config, nil
}

// OwnAddress parses the station address.
func (c TossConfig) OwnAddress() (ftn.Address, error) {
	return ftn.ParseAddress(c.Address)
}

// Validate reports the first setting that cannot work.
func (c TossConfig) Validate() error {
	if _, err := c.OwnAddress(); err != nil {
		return fmt.Errorf("address: %w", err)
	}
	if _, err := ftn.NewCodec(c.Charset); err != nil {
		return fmt.Errorf("charset: %w", err)
	}
	switch strings.ToLower(c.Database.Driver) {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database: postgres requires a dsn")
		}
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	switch strings.ToLower(c.Dedup.Backend) {
	case "store", "file":
	case "redis":
		if c.Dedup.RedisAddr == "" {
			return fmt.Errorf("dedup: redis requires redis_addr")
		}
	default:
		return fmt.Errorf("dedup: unknown backend %q", c.Dedup.Backend)
	}
	for i, l := range c.Links {
		if _, err := ftn.ParseAddress(l.Address); err != nil {
			return fmt.Errorf("links[%d]: %w", i, err)
		}
	}
	for i, r := range c.Rewrites {
		switch strings.ToUpper(r.Type) {
		case "NETMAIL", "ECHOMAIL":
		default:
			return fmt.Errorf("rewrites[%d]: unknown type %q", i, r.Type)
		}
	}
	return nil
}

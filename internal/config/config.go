package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime settings for the famfin server.
type Config struct {
	Port           string        `yaml:"port"`
	DBPath         string        `yaml:"db_path"`
	BaseURL        string        `yaml:"base_url"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	MetricsEnabled bool          `yaml:"metrics_enabled"`
	Push           PushConfig    `yaml:"push"`
	WebSocket      WSConfig      `yaml:"websocket"`
	Email          EmailConfig   `yaml:"email"`
	Backup         BackupConfig  `yaml:"backup"`
}

// WSConfig controls the /ws endpoint. With RequireSession set, upgrades
// without a valid session are rejected and a connection may only
// authenticate as its session's user.
type WSConfig struct {
	RequireSession bool     `yaml:"require_session"`
	OriginPatterns []string `yaml:"origin_patterns"`
}

// PushConfig holds VAPID keys for web push. Push is disabled when either is empty.
type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

// EmailConfig holds Postmark settings. Email is disabled without a token.
type EmailConfig struct {
	PostmarkToken string `yaml:"postmark_token"`
	From          string `yaml:"from"`
}

// BackupConfig points at S3-compatible storage for encrypted database
// snapshots. Interval of zero disables scheduled backups; the passphrase is
// only read from FAMFIN_BACKUP_PASSPHRASE.
type BackupConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	Bucket    string        `yaml:"bucket"`
	Region    string        `yaml:"region"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	Prefix    string        `yaml:"prefix"`
	Interval  time.Duration `yaml:"interval"`
	Retention time.Duration `yaml:"retention"`
}

// Enabled reports whether a bucket and credentials are configured.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != "" && b.AccessKey != "" && b.SecretKey != ""
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Port:           "8080",
		DBPath:         "famfin.db",
		LogLevel:       "info",
		LogFormat:      "text",
		SessionTTL:     30 * 24 * time.Hour,
		MetricsEnabled: true,
		Push: PushConfig{
			Subscriber: "mailto:noreply@famfin.app",
		},
		WebSocket: WSConfig{
			RequireSession: true,
		},
		Email: EmailConfig{
			From: "noreply@famfin.app",
		},
		Backup: BackupConfig{
			Region:    "us-east-1",
			Prefix:    "famfin",
			Retention: 30 * 24 * time.Hour,
		},
	}
}

// Load reads the YAML file at path (if non-empty) over the defaults, then
// applies FAMFIN_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("FAMFIN_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("FAMFIN_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FAMFIN_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("FAMFIN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FAMFIN_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("FAMFIN_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FAMFIN_SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}
	if v := os.Getenv("FAMFIN_METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FAMFIN_METRICS_ENABLED: %w", err)
		}
		cfg.MetricsEnabled = b
	}
	if v := os.Getenv("FAMFIN_VAPID_PUBLIC_KEY"); v != "" {
		cfg.Push.VAPIDPublicKey = v
	}
	if v := os.Getenv("FAMFIN_VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.VAPIDPrivateKey = v
	}
	if v := os.Getenv("FAMFIN_WS_REQUIRE_SESSION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FAMFIN_WS_REQUIRE_SESSION: %w", err)
		}
		cfg.WebSocket.RequireSession = b
	}
	if v := os.Getenv("FAMFIN_WS_ORIGINS"); v != "" {
		cfg.WebSocket.OriginPatterns = strings.Split(v, ",")
	}
	if v := os.Getenv("FAMFIN_POSTMARK_TOKEN"); v != "" {
		cfg.Email.PostmarkToken = v
	}
	if v := os.Getenv("FAMFIN_EMAIL_FROM"); v != "" {
		cfg.Email.From = v
	}
	return applyBackupEnv(&cfg.Backup)
}

func applyBackupEnv(b *BackupConfig) error {
	strs := map[string]*string{
		"FAMFIN_BACKUP_ENDPOINT":   &b.Endpoint,
		"FAMFIN_BACKUP_BUCKET":     &b.Bucket,
		"FAMFIN_BACKUP_REGION":     &b.Region,
		"FAMFIN_BACKUP_ACCESS_KEY": &b.AccessKey,
		"FAMFIN_BACKUP_SECRET_KEY": &b.SecretKey,
		"FAMFIN_BACKUP_PREFIX":     &b.Prefix,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	durations := map[string]*time.Duration{
		"FAMFIN_BACKUP_INTERVAL":  &b.Interval,
		"FAMFIN_BACKUP_RETENTION": &b.Retention,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

// Package config loads the reporter's startup configuration.
//
// Precedence, lowest to highest: built-in defaults, optional YAML config
// file, environment variables. A .env file (if present) is folded into the
// environment before overrides are read, so containerized and bare-metal
// deployments behave the same. The configuration is loaded once at startup
// and is immutable for the lifetime of the process; the recipient list is
// the only runtime-mutable state and lives in its own store.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"
)

const (
	ModeInterval = "interval"
	ModeCron     = "cron"

	UnitMinutes = "minutes"
	UnitHours   = "hours"
	UnitDaily   = "daily"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	Log LogConfig `yaml:"log"`

	Store StoreConfig `yaml:"store"`
	Mail  MailConfig  `yaml:"mail"`

	Schedule ScheduleConfig `yaml:"schedule"`

	// EmailsFile is where the recipient list is persisted. Once the file
	// exists it overrides the env-provided defaults below.
	EmailsFile        string   `yaml:"emails_file"`
	DefaultRecipients []string `yaml:"default_recipients"`
	DefaultBCC        []string `yaml:"default_bcc"`

	// RunHistoryDB is the SQLite path for scheduler run outcomes.
	// Empty disables persistence (runs are still kept in memory).
	RunHistoryDB string `yaml:"run_history_db"`

	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	CORSOrigins    []string `yaml:"cors_origins"`

	// Warnings collects non-fatal issues found while loading. They are
	// logged by the caller once the logger is initialised.
	Warnings []string `yaml:"-"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type StoreConfig struct {
	// Separate logical databases, mirroring the production deployment where
	// job records and app configs live in different clusters.
	DriveURI string `yaml:"drive_uri"`
	WacURI   string `yaml:"wac_uri"`
	DriveDB  string `yaml:"drive_db"`
	WacDB    string `yaml:"wac_db"`
}

type MailConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	From string `yaml:"from"`
}

type ScheduleConfig struct {
	Mode string `yaml:"mode"` // "interval" or "cron"

	// Interval mode.
	Unit  string `yaml:"unit"` // minutes | hours | daily
	Value int    `yaml:"value"`

	// Cron mode: ";"-separated 5-field expressions.
	CronExpression string `yaml:"cron_expression"`
}

func defaults() *Config {
	return &Config{
		ListenAddr: ":4000",
		Log:        LogConfig{Level: "info"},
		Store:      StoreConfig{DriveDB: "mdt-prod", WacDB: "wac-config-prod"},
		Mail:       MailConfig{Port: 587},
		Schedule: ScheduleConfig{
			Mode:  ModeInterval,
			Unit:  UnitMinutes,
			Value: 5,
		},
		EmailsFile:     "./emails.json",
		RateLimitRPS:   50,
		RateLimitBurst: 100,
		CORSOrigins:    []string{"*"},
	}
}

// Load builds the configuration. path may be empty or point to a YAML file;
// a missing file at the default path is not an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	// .env first, so the overrides below see it. Missing file is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		cfg.warnf("dotenv: %v", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// optional
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			dec := yaml.NewDecoder(strings.NewReader(string(b)))
			dec.KnownFields(true)
			if err := dec.Decode(cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envStr(&c.ListenAddr, "LISTEN_ADDR")
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		c.ListenAddr = ":" + p
	}

	envStr(&c.Log.Level, "LOG_LEVEL")
	envStr(&c.Log.File, "LOG_FILE")

	envStr(&c.Store.DriveURI, "MONGO_DB_URL_DRIVE")
	envStr(&c.Store.WacURI, "MONGO_DB_URL_WAC")
	envStr(&c.Store.DriveDB, "MONGO_DB_NAME_DRIVE")
	envStr(&c.Store.WacDB, "MONGO_DB_NAME_WAC")

	envStr(&c.Mail.Host, "SMTP_HOST")
	c.envInt(&c.Mail.Port, "SMTP_PORT")
	envStr(&c.Mail.User, "SMTP_USER")
	envStr(&c.Mail.Pass, "SMTP_PASS")
	envStr(&c.Mail.From, "MAIL_FROM")

	envStr(&c.Schedule.Mode, "SCHEDULE_MODE")
	envStr(&c.Schedule.Unit, "SCHEDULE_TYPE")
	c.envInt(&c.Schedule.Value, "SCHEDULE_VALUE")
	envStr(&c.Schedule.CronExpression, "CRON_EXPRESSION")

	envStr(&c.EmailsFile, "EMAILS_FILE")
	envList(&c.DefaultRecipients, "EMAIL_RECIPIENTS")
	envList(&c.DefaultBCC, "EMAIL_BCC")

	envStr(&c.RunHistoryDB, "RUN_HISTORY_DB")
	c.envFloat(&c.RateLimitRPS, "RATE_LIMIT_RPS")
	c.envInt(&c.RateLimitBurst, "RATE_LIMIT_BURST")
	envList(&c.CORSOrigins, "CORS_ORIGINS")
}

func (c *Config) validate() error {
	switch c.Schedule.Mode {
	case ModeInterval:
		switch c.Schedule.Unit {
		case UnitMinutes, UnitHours, UnitDaily:
		default:
			c.warnf("unknown SCHEDULE_TYPE %q, falling back to %q", c.Schedule.Unit, UnitMinutes)
			c.Schedule.Unit = UnitMinutes
		}
		if c.Schedule.Value <= 0 {
			c.warnf("SCHEDULE_VALUE must be positive, falling back to 5")
			c.Schedule.Value = 5
		}
	case ModeCron:
		if strings.TrimSpace(c.Schedule.CronExpression) == "" {
			return fmt.Errorf("schedule mode is %q but CRON_EXPRESSION is empty", ModeCron)
		}
	default:
		return fmt.Errorf("invalid SCHEDULE_MODE %q (want %q or %q)", c.Schedule.Mode, ModeInterval, ModeCron)
	}

	if c.Store.DriveURI == "" {
		c.warnf("MONGO_DB_URL_DRIVE is not set; report builds will fail until the store is reachable")
	}
	if c.Mail.Host == "" {
		c.warnf("SMTP_HOST is not set; scheduled report mails will fail")
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = 50
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = int(c.RateLimitRPS) * 2
	}
	return nil
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func envStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envList(dst *[]string, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func (c *Config) envInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.warnf("%s: invalid integer %q, keeping %d", key, v, *dst)
		return
	}
	*dst = n
}

func (c *Config) envFloat(dst *float64, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.warnf("%s: invalid number %q, keeping %v", key, v, *dst)
		return
	}
	*dst = f
}

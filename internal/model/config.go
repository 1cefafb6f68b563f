package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// WarmupConfig holds the tunables read by the warm-up and reply engines.
// These values can change at runtime when the config file is edited.
type WarmupConfig struct {
	// WorkStart and WorkEnd are the default sending window (HH:MM) for
	// inboxes that do not set their own.
	WorkStart string `mapstructure:"work_start" yaml:"work_start"`
	WorkEnd   string `mapstructure:"work_end" yaml:"work_end"`

	// ReplyRate is the probability (0..1) of replying to an incoming message.
	ReplyRate float64 `mapstructure:"reply_rate" yaml:"reply_rate"`

	// BounceThreshold is the 24h bounce/send ratio above which an inbox
	// is paused.
	BounceThreshold float64 `mapstructure:"bounce_threshold" yaml:"bounce_threshold"`

	// PromoteAfterDays is the number of consecutive full-quota days
	// required before an inbox advances a stage.
	PromoteAfterDays int `mapstructure:"promote_after_days" yaml:"promote_after_days"`

	// MaxSendsPerMinute caps sends across all inboxes.
	MaxSendsPerMinute int `mapstructure:"max_sends_per_minute" yaml:"max_sends_per_minute"`

	// MaxConsecutiveErrors is how many failed sends in a row pause an inbox.
	MaxConsecutiveErrors int `mapstructure:"max_consecutive_errors" yaml:"max_consecutive_errors"`

	// ReplyDelay defers replies by a random 5 to 45 minutes.
	ReplyDelay bool `mapstructure:"reply_delay" yaml:"reply_delay"`

	// SeedRecipients is how many synthetic recipients to create when
	// the pool is empty on first run. Zero disables seeding.
	SeedRecipients int `mapstructure:"seed_recipients" yaml:"seed_recipients"`
}

// ScheduleConfig controls the background job cadence.
type ScheduleConfig struct {
	SendInterval  time.Duration `mapstructure:"send_interval" yaml:"send_interval"`
	ReplyInterval time.Duration `mapstructure:"reply_interval" yaml:"reply_interval"`

	// DailyReset is a six-field cron spec (with seconds).
	DailyReset string `mapstructure:"daily_reset" yaml:"daily_reset"`

	// Timezone is an IANA zone name; empty means local time.
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// LogConfig holds diagnostic logging and activity log settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// File receives diagnostic logs. Defaults to phoenix.log in the data dir.
	File string `mapstructure:"file" yaml:"file"`

	// Backend selects the activity log store: "csv" or "sqlite".
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	// Addr is the listen address (e.g. ":9090"); empty disables it.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// KeyringConfig controls password storage in the OS keyring.
type KeyringConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// DisplayConfig holds UI preferences.
type DisplayConfig struct {
	RefreshSec int `mapstructure:"refresh_sec" yaml:"refresh_sec"`
	FeedSize   int `mapstructure:"feed_size" yaml:"feed_size"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	DataDir  string         `mapstructure:"data_dir" yaml:"data_dir"`
	Warmup   WarmupConfig   `mapstructure:"warmup" yaml:"warmup"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Keyring  KeyringConfig  `mapstructure:"keyring" yaml:"keyring"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
}

// DefaultWarmup returns the built-in warm-up tunables.
func DefaultWarmup() WarmupConfig {
	return WarmupConfig{
		WorkStart:            "08:00",
		WorkEnd:              "20:00",
		ReplyRate:            0.40,
		BounceThreshold:      0.05,
		PromoteAfterDays:     1,
		MaxSendsPerMinute:    10,
		MaxConsecutiveErrors: 3,
		ReplyDelay:           true,
		SeedRecipients:       150,
	}
}

// envKeys maps config keys to the environment variables that override them.
var envKeys = map[string]string{
	"data_dir":                      "DATA_DIR",
	"warmup.work_start":             "WORK_START",
	"warmup.work_end":               "WORK_END",
	"warmup.reply_rate":             "REPLY_RATE",
	"warmup.bounce_threshold":       "BOUNCE_THRESHOLD",
	"warmup.promote_after_days":     "PROMOTE_AFTER_DAYS",
	"warmup.max_sends_per_minute":   "MAX_SENDS_PER_MINUTE",
	"warmup.max_consecutive_errors": "MAX_CONSECUTIVE_ERRORS",
	"warmup.reply_delay":            "REPLY_DELAY",
	"warmup.seed_recipients":        "SEED_RECIPIENTS",
	"schedule.send_interval":        "SEND_INTERVAL",
	"schedule.reply_interval":       "REPLY_INTERVAL",
	"schedule.daily_reset":          "DAILY_RESET_SPEC",
	"schedule.timezone":             "TIMEZONE",
	"log.level":                     "LOG_LEVEL",
	"log.file":                      "LOG_FILE",
	"log.backend":                   "LOG_BACKEND",
	"metrics.addr":                  "METRICS_ADDR",
	"keyring.enabled":               "KEYRING_ENABLED",
	"keyring.dir":                   "KEYRING_DIR",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	w := DefaultWarmup()
	v.SetDefault("warmup.work_start", w.WorkStart)
	v.SetDefault("warmup.work_end", w.WorkEnd)
	v.SetDefault("warmup.reply_rate", w.ReplyRate)
	v.SetDefault("warmup.bounce_threshold", w.BounceThreshold)
	v.SetDefault("warmup.promote_after_days", w.PromoteAfterDays)
	v.SetDefault("warmup.max_sends_per_minute", w.MaxSendsPerMinute)
	v.SetDefault("warmup.max_consecutive_errors", w.MaxConsecutiveErrors)
	v.SetDefault("warmup.reply_delay", w.ReplyDelay)
	v.SetDefault("warmup.seed_recipients", w.SeedRecipients)
	v.SetDefault("schedule.send_interval", "60s")
	v.SetDefault("schedule.reply_interval", "5m")
	v.SetDefault("schedule.daily_reset", "30 0 0 * * *")
	v.SetDefault("schedule.timezone", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.backend", "csv")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("keyring.enabled", false)
	v.SetDefault("keyring.dir", "")
	v.SetDefault("display.refresh_sec", 5)
	v.SetDefault("display.feed_size", 50)
}

// DefaultConfigPath returns the default configuration file location,
// config.yaml inside the data directory (DATA_DIR or ./data).
func DefaultConfigPath() string {
	dir := os.Getenv("DATA_DIR")
	if dir == "" {
		dir = "data"
	}
	return filepath.Join(dir, "config.yaml")
}

// LoadConfig builds the configuration from defaults, the YAML file at path
// (optional), .env files next to the config and in the working directory,
// and process environment variables, in increasing priority.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) && !isPathError(err) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	dotenv, err := readDotEnv(dotEnvPaths(path)...)
	if err != nil {
		return nil, err
	}
	for key, env := range envKeys {
		if _, set := os.LookupEnv(env); set {
			continue
		}
		if val, ok := dotenv[env]; ok {
			v.Set(key, val)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.DataDir, "phoenix.log")
	}
	if cfg.Keyring.Dir == "" {
		cfg.Keyring.Dir = filepath.Join(cfg.DataDir, "credentials")
	}
	cfg.Log.Backend = strings.ToLower(strings.TrimSpace(cfg.Log.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isPathError(err error) bool {
	var pe *os.PathError
	return errors.As(err, &pe)
}

// dotEnvPaths lists candidate .env files: beside the config file, then
// the working directory. Earlier files win.
func dotEnvPaths(configPath string) []string {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	seen := map[string]bool{}
	var out []string
	for _, p := range candidates {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}

// readDotEnv merges the given .env files without touching the process
// environment. Missing files are skipped.
func readDotEnv(paths ...string) (map[string]string, error) {
	merged := map[string]string{}
	for i := len(paths) - 1; i >= 0; i-- {
		vals, err := godotenv.Read(paths[i])
		if err != nil {
			if os.IsNotExist(err) || isPathError(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", paths[i], err)
		}
		for k, val := range vals {
			merged[k] = val
		}
	}
	return merged, nil
}

// Validate checks ranges and formats of the loaded values.
func (c *AppConfig) Validate() error {
	w := c.Warmup
	if w.ReplyRate < 0 || w.ReplyRate > 1 {
		return fmt.Errorf("reply rate %.2f out of range [0,1]", w.ReplyRate)
	}
	if w.BounceThreshold < 0 || w.BounceThreshold > 1 {
		return fmt.Errorf("bounce threshold %.2f out of range [0,1]", w.BounceThreshold)
	}
	for _, hm := range []string{w.WorkStart, w.WorkEnd} {
		if _, err := time.Parse("15:04", hm); err != nil {
			return fmt.Errorf("invalid working hours %q: want HH:MM", hm)
		}
	}
	if w.PromoteAfterDays < 1 {
		return fmt.Errorf("promote_after_days must be at least 1")
	}
	if w.MaxSendsPerMinute < 1 {
		return fmt.Errorf("max_sends_per_minute must be at least 1")
	}
	if w.MaxConsecutiveErrors < 1 {
		return fmt.Errorf("max_consecutive_errors must be at least 1")
	}
	if c.Schedule.SendInterval <= 0 || c.Schedule.ReplyInterval <= 0 {
		return fmt.Errorf("schedule intervals must be positive")
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Schedule.Timezone, err)
		}
	}
	switch c.Log.Backend {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("unknown log backend %q", c.Log.Backend)
	}
	return nil
}

// Location returns the scheduler time zone.
func (c *AppConfig) Location() *time.Location {
	if c.Schedule.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	values := map[string]any{
		"data_dir":                      cfg.DataDir,
		"warmup.work_start":             cfg.Warmup.WorkStart,
		"warmup.work_end":               cfg.Warmup.WorkEnd,
		"warmup.reply_rate":             cfg.Warmup.ReplyRate,
		"warmup.bounce_threshold":       cfg.Warmup.BounceThreshold,
		"warmup.promote_after_days":     cfg.Warmup.PromoteAfterDays,
		"warmup.max_sends_per_minute":   cfg.Warmup.MaxSendsPerMinute,
		"warmup.max_consecutive_errors": cfg.Warmup.MaxConsecutiveErrors,
		"warmup.reply_delay":            cfg.Warmup.ReplyDelay,
		"warmup.seed_recipients":        cfg.Warmup.SeedRecipients,
		"schedule.send_interval":        cfg.Schedule.SendInterval.String(),
		"schedule.reply_interval":       cfg.Schedule.ReplyInterval.String(),
		"schedule.daily_reset":          cfg.Schedule.DailyReset,
		"schedule.timezone":             cfg.Schedule.Timezone,
		"log.level":                     cfg.Log.Level,
		"log.file":                      cfg.Log.File,
		"log.backend":                   cfg.Log.Backend,
		"metrics.addr":                  cfg.Metrics.Addr,
		"keyring.enabled":               cfg.Keyring.Enabled,
		"keyring.dir":                   cfg.Keyring.Dir,
		"display.refresh_sec":           cfg.Display.RefreshSec,
		"display.feed_size":             cfg.Display.FeedSize,
	}
	for key, val := range values {
		v.Set(key, val)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// warmupEnv formats w the way the .env overrides spell it.
func warmupEnv(w WarmupConfig) map[string]string {
	float := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	return map[string]string{
		"WORK_START":             w.WorkStart,
		"WORK_END":               w.WorkEnd,
		"REPLY_RATE":             float(w.ReplyRate),
		"BOUNCE_THRESHOLD":       float(w.BounceThreshold),
		"PROMOTE_AFTER_DAYS":     strconv.Itoa(w.PromoteAfterDays),
		"MAX_SENDS_PER_MINUTE":   strconv.Itoa(w.MaxSendsPerMinute),
		"MAX_CONSECUTIVE_ERRORS": strconv.Itoa(w.MaxConsecutiveErrors),
		"REPLY_DELAY":            strconv.FormatBool(w.ReplyDelay),
		"SEED_RECIPIENTS":        strconv.Itoa(w.SeedRecipients),
	}
}

// PinnedWarmupEnv returns the process environment variables that would
// override a warm-up field changed between old and next, sorted.
func PinnedWarmupEnv(old, next WarmupConfig) []string {
	before, after := warmupEnv(old), warmupEnv(next)
	var pinned []string
	for env, val := range after {
		if before[env] == val {
			continue
		}
		if _, set := os.LookupEnv(env); set {
			pinned = append(pinned, env)
		}
	}
	slices.Sort(pinned)
	return pinned
}

// SyncDotEnv rewrites the warm-up overrides already present in the .env
// files read for configPath, so the next LoadConfig returns w. Files
// without warm-up keys are left untouched.
func SyncDotEnv(configPath string, w WarmupConfig) error {
	want := warmupEnv(w)
	for _, p := range dotEnvPaths(configPath) {
		vals, err := godotenv.Read(p)
		if err != nil {
			if os.IsNotExist(err) || isPathError(err) {
				continue
			}
			return fmt.Errorf("reading %s: %w", p, err)
		}
		changed := false
		for env, cur := range vals {
			if val, ok := want[env]; ok && val != cur {
				vals[env] = val
				changed = true
			}
		}
		if !changed {
			continue
		}
		if err := godotenv.Write(vals, p); err != nil {
			return fmt.Errorf("writing %s: %w", p, err)
		}
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents application configuration
type Config struct {
	Attendance AttendanceConfig `mapstructure:"attendance"`
	Calendar   CalendarConfig   `mapstructure:"calendar"`
	Portal     PortalConfig     `mapstructure:"portal"`
	Record     RecordConfig     `mapstructure:"record"`
	Daemon     DaemonConfig     `mapstructure:"daemon"`
}

// AttendanceConfig represents the scheduling and quota rules
type AttendanceConfig struct {
	CheckInHour          int    `mapstructure:"check_in_hour"`
	DailyWorkHours       int    `mapstructure:"daily_work_hours"`
	MonthlyRequiredHours int    `mapstructure:"monthly_required_hours"`
	MonthlyStartDay      int    `mapstructure:"monthly_start_day"`
	Timezone             string `mapstructure:"timezone"` // IANA name, empty = system local
}

// CalendarConfig represents the holiday feed configuration
type CalendarConfig struct {
	FeedURL           string `mapstructure:"feed_url"`
	FallbackFile      string `mapstructure:"fallback_file"` // Local .ics used when the feed is unreachable
	CacheTTL          string `mapstructure:"cache_ttl"`     // Empty or 0 disables caching
	HTTPTimeout       string `mapstructure:"http_timeout"`
	LeaveMarker       string `mapstructure:"leave_marker"`
	ConsecutiveMarker string `mapstructure:"consecutive_marker"`
}

// PortalConfig represents the attendance portal configuration
type PortalConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	LoginURL string `mapstructure:"login_url"`
	LinksURL string `mapstructure:"links_url"`
	Headless bool   `mapstructure:"headless"`
	Timeout  string `mapstructure:"timeout"`
	DryRun   bool   `mapstructure:"dry_run"`
}

// RecordConfig represents attendance record storage
type RecordConfig struct {
	Dir string `mapstructure:"dir"`
}

// DaemonConfig represents daemon mode configuration
type DaemonConfig struct {
	LogFile    string `mapstructure:"log_file"`
	LogLevel   string `mapstructure:"log_level"`
	SystemTray bool   `mapstructure:"system_tray"` // Show system tray icon (Windows only)
}

// Environment variables understood by earlier deployments of the bot
var legacyEnv = map[string]string{
	"attendance.monthly_required_hours": "MONTHLY_REQUIRED_HOURS",
	"attendance.monthly_start_day":      "MONTHLY_START_DAY",
	"record.dir":                        "RECORD_DIR",
	"daemon.log_level":                  "LOG_LEVEL",
	"portal.username":                   "NYCU_USERNAME",
	"portal.password":                   "NYCU_PASSWORD",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("attendance.check_in_hour", 9)
	v.SetDefault("attendance.daily_work_hours", 8)
	v.SetDefault("attendance.monthly_required_hours", 20)
	v.SetDefault("attendance.monthly_start_day", 1)
	v.SetDefault("attendance.timezone", "")

	v.SetDefault("calendar.feed_url", "https://calendar.google.com/calendar/ical/aanycu%40gmail.com/public/basic.ics")
	v.SetDefault("calendar.fallback_file", "")
	v.SetDefault("calendar.cache_ttl", "")
	v.SetDefault("calendar.http_timeout", "10s")
	v.SetDefault("calendar.leave_marker", "(放假)")
	v.SetDefault("calendar.consecutive_marker", "連假")

	v.SetDefault("portal.username", "")
	v.SetDefault("portal.password", "")
	v.SetDefault("portal.login_url", "")
	v.SetDefault("portal.links_url", "")
	v.SetDefault("portal.headless", true)
	v.SetDefault("portal.timeout", "2m")
	v.SetDefault("portal.dry_run", false)

	v.SetDefault("record.dir", "./record")

	v.SetDefault("daemon.log_file", "")
	v.SetDefault("daemon.log_level", "info")
	v.SetDefault("daemon.system_tray", false)
}

// Load loads configuration from file. With an empty configPath the usual
// locations are searched and a missing file is not an error, so the bot
// can run from defaults and environment variables alone.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.attendance-bot")
		v.AddConfigPath("/etc/attendance-bot")
	}

	// Read environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.ExpandEnvVars()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	a := c.Attendance
	if a.CheckInHour < 0 || a.CheckInHour > 23 {
		return fmt.Errorf("attendance.check_in_hour must be between 0 and 23")
	}
	if a.DailyWorkHours <= 0 || a.DailyWorkHours > 24 {
		return fmt.Errorf("attendance.daily_work_hours must be between 1 and 24")
	}
	if a.MonthlyRequiredHours < 0 {
		return fmt.Errorf("attendance.monthly_required_hours must not be negative")
	}
	if a.MonthlyStartDay < 1 || a.MonthlyStartDay > 31 {
		return fmt.Errorf("attendance.monthly_start_day must be between 1 and 31")
	}
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		return fmt.Errorf("attendance.timezone: %w", err)
	}

	if c.Calendar.FeedURL == "" && c.Calendar.FallbackFile == "" {
		return fmt.Errorf("calendar.feed_url or calendar.fallback_file is required")
	}
	for key, value := range map[string]string{
		"calendar.cache_ttl":    c.Calendar.CacheTTL,
		"calendar.http_timeout": c.Calendar.HTTPTimeout,
		"portal.timeout":        c.Portal.Timeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if c.Record.Dir == "" {
		return fmt.Errorf("record.dir is required")
	}

	switch strings.ToLower(c.Daemon.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("daemon.log_level must be one of debug, info, warn, error, got '%s'", c.Daemon.LogLevel)
	}

	return nil
}

// Validate checks that portal credentials are present. Only commands that
// drive the portal need them.
func (p *PortalConfig) Validate() error {
	if p.Username == "" {
		return fmt.Errorf("portal.username (or NYCU_USERNAME) is required")
	}
	if p.Password == "" {
		return fmt.Errorf("portal.password (or NYCU_PASSWORD) is required")
	}
	return nil
}

// Location returns the configured time zone
func (a *AttendanceConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// GetCacheTTL returns cache TTL duration. Zero disables the cache.
func (c *CalendarConfig) GetCacheTTL() time.Duration {
	if c.CacheTTL == "" {
		return 0
	}
	duration, err := time.ParseDuration(c.CacheTTL)
	if err != nil || duration < 0 {
		return 0
	}
	return duration
}

// GetHTTPTimeout returns the feed request timeout
func (c *CalendarConfig) GetHTTPTimeout() time.Duration {
	if c.HTTPTimeout == "" {
		return 10 * time.Second
	}
	duration, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil || duration <= 0 {
		return 10 * time.Second
	}
	return duration
}

// GetTimeout returns the time limit of one portal action
func (p *PortalConfig) GetTimeout() time.Duration {
	if p.Timeout == "" {
		return 2 * time.Minute
	}
	duration, err := time.ParseDuration(p.Timeout)
	if err != nil || duration <= 0 {
		return 2 * time.Minute
	}
	return duration
}

// ExpandEnvVars expands environment variables in config strings
func (c *Config) ExpandEnvVars() {
	c.Portal.Username = os.ExpandEnv(c.Portal.Username)
	c.Record.Dir = os.ExpandEnv(c.Record.Dir)
	c.Calendar.FallbackFile = os.ExpandEnv(c.Calendar.FallbackFile)
	c.Daemon.LogFile = os.ExpandEnv(c.Daemon.LogFile)
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PLATEDASH_API_BASE_URL.
const EnvPrefix = "PLATEDASH"

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	API       APIConfig       `mapstructure:"api"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr              string        `mapstructure:"addr"`
	CORSAllowOrigins  []string      `mapstructure:"cors_allow_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DashboardConfig struct {
	RefreshInterval    time.Duration `mapstructure:"refresh_interval"`
	ClockInterval      time.Duration `mapstructure:"clock_interval"`
	PerPage            int           `mapstructure:"per_page"`
	DailyDays          int           `mapstructure:"daily_days"`
	DailyPeriodOptions []int         `mapstructure:"daily_period_options"`
	TopPlatesLimit     int           `mapstructure:"top_plates_limit"`
	TopPlatesDays      int           `mapstructure:"top_plates_days"`
	DefaultTimeWindow  int           `mapstructure:"default_time_window"`
	TimeWindowOptions  []int         `mapstructure:"time_window_options"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
	MaxSessions        int           `mapstructure:"max_sessions"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_allow_origins", []string{"*"})
	v.SetDefault("http.read_header_timeout", 10*time.Second)

	v.SetDefault("api.base_url", "http://127.0.0.1:5000")
	v.SetDefault("api.timeout", 15*time.Second)

	v.SetDefault("dashboard.refresh_interval", 30*time.Second)
	v.SetDefault("dashboard.clock_interval", time.Second)
	v.SetDefault("dashboard.per_page", 50)
	v.SetDefault("dashboard.daily_days", 30)
	v.SetDefault("dashboard.daily_period_options", []int{7, 30, 90})
	v.SetDefault("dashboard.top_plates_limit", 10)
	v.SetDefault("dashboard.top_plates_days", 7)
	v.SetDefault("dashboard.default_time_window", 60)
	v.SetDefault("dashboard.time_window_options", []int{30, 60, 300, 600})
	v.SetDefault("dashboard.session_idle_timeout", 2*time.Minute)
	v.SetDefault("dashboard.max_sessions", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads defaults, the optional config file at path and PLATEDASH_*
// environment overrides, in increasing precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("plate-dashboard")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/plate-dashboard")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration constraints.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr must not be empty")
	}
	if len(c.HTTP.CORSAllowOrigins) == 0 {
		return fmt.Errorf("http.cors_allow_origins must not be empty")
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute url, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}

	d := c.Dashboard
	if d.RefreshInterval <= 0 {
		return fmt.Errorf("dashboard.refresh_interval must be > 0")
	}
	if d.ClockInterval <= 0 {
		return fmt.Errorf("dashboard.clock_interval must be > 0")
	}
	if d.PerPage < 1 {
		return fmt.Errorf("dashboard.per_page must be >= 1")
	}
	if d.DailyDays < 1 {
		return fmt.Errorf("dashboard.daily_days must be >= 1")
	}
	if d.TopPlatesLimit < 1 {
		return fmt.Errorf("dashboard.top_plates_limit must be >= 1")
	}
	if d.TopPlatesDays < 1 {
		return fmt.Errorf("dashboard.top_plates_days must be >= 1")
	}
	if len(d.TimeWindowOptions) == 0 {
		return fmt.Errorf("dashboard.time_window_options must not be empty")
	}
	if !contains(d.TimeWindowOptions, d.DefaultTimeWindow) {
		return fmt.Errorf("dashboard.default_time_window %d is not one of dashboard.time_window_options", d.DefaultTimeWindow)
	}
	if len(d.DailyPeriodOptions) == 0 {
		return fmt.Errorf("dashboard.daily_period_options must not be empty")
	}
	if !contains(d.DailyPeriodOptions, d.DailyDays) {
		return fmt.Errorf("dashboard.daily_days %d is not one of dashboard.daily_period_options", d.DailyDays)
	}

	if d.SessionIdleTimeout <= 0 {
		return fmt.Errorf("dashboard.session_idle_timeout must be > 0")
	}
	if d.MaxSessions < 1 {
		return fmt.Errorf("dashboard.max_sessions must be >= 1")
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q (must be trace|debug|info|warn|error)", c.Log.Level)
	}
	return nil
}

func contains(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

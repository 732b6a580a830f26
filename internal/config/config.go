package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/svcmon/internal/dialog"
	"github.com/loykin/svcmon/internal/env"
	"github.com/loykin/svcmon/internal/logger"
	"github.com/spf13/viper"
)

// Defaults applied when a key is absent from every source.
const (
	DefaultCheckIntervalSeconds = 30
	DefaultProbeInterval        = 500 * time.Millisecond
	DefaultProbeTimeout         = 15 * time.Second
	DefaultCrashLookback        = 96 * time.Minute
	EnvPrefix                   = "SVCMON"
)

// ErrMissingExecutablePath is the fatal startup fault: nothing to supervise.
var ErrMissingExecutablePath = errors.New("monitor.executable_path is not set")

// Config is the whole configuration file.
type Config struct {
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Dialog      DialogConfig      `mapstructure:"dialog"`
	Log         logger.Config     `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Server      ServerConfig      `mapstructure:"server"`
	CrashReport CrashReportConfig `mapstructure:"crash_report"`
}

// MonitorConfig names the supervised executable.
type MonitorConfig struct {
	ExecutableName       string `mapstructure:"executable_name"`
	ExecutablePath       string `mapstructure:"executable_path"`
	CheckIntervalSeconds int    `mapstructure:"check_interval_seconds"`
}

func (m MonitorConfig) CheckInterval() time.Duration {
	return time.Duration(m.CheckIntervalSeconds) * time.Second
}

// DialogConfig controls the security dialog race during a relaunch.
type DialogConfig struct {
	Titles        []string      `mapstructure:"titles"`
	Labels        []string      `mapstructure:"labels"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ServerConfig enables the read-only status endpoint when Listen is set.
type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
}

// CrashReportConfig controls the startup crash report scan.
type CrashReportConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Lookback time.Duration `mapstructure:"lookback"`
}

// legacyKeys maps the MonitorSettings section of appsettings.json files onto
// the monitor section.
var legacyKeys = map[string]string{
	"monitorsettings.executablename":       "monitor.executable_name",
	"monitorsettings.executablepath":       "monitor.executable_path",
	"monitorsettings.checkintervalseconds": "monitor.check_interval_seconds",
}

// envKeys are bound explicitly so that env-only settings reach Unmarshal.
var envKeys = []string{
	"monitor.executable_name",
	"monitor.executable_path",
	"monitor.check_interval_seconds",
	"dialog.probe_interval",
	"dialog.probe_timeout",
	"log.level",
	"log.format",
	"log.file.path",
	"metrics.enabled",
	"server.listen",
	"server.base_path",
	"crash_report.enabled",
	"crash_report.lookback",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("monitor.check_interval_seconds", DefaultCheckIntervalSeconds)
	v.SetDefault("dialog.probe_interval", DefaultProbeInterval)
	v.SetDefault("dialog.probe_timeout", DefaultProbeTimeout)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "color")
	v.SetDefault("crash_report.lookback", DefaultCrashLookback)
}

// Load reads the configuration from path (JSON, TOML or YAML by extension).
// With an empty path it looks for svcmon.* in the working directory and
// falls back to environment variables only. SVCMON_* variables override files.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("svcmon")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	for legacy, key := range legacyKeys {
		if v.InConfig(legacy) {
			v.SetDefault(key, v.Get(legacy))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.applyDerived()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDerived() {
	vars := env.New()
	c.Monitor.ExecutablePath = vars.Expand(strings.TrimSpace(c.Monitor.ExecutablePath))
	c.Log.File.Path = vars.Expand(c.Log.File.Path)
	if strings.TrimSpace(c.Monitor.ExecutableName) == "" {
		c.Monitor.ExecutableName = executableName(c.Monitor.ExecutablePath)
	}
	if len(c.Dialog.Titles) == 0 {
		c.Dialog.Titles = append([]string(nil), dialog.DefaultTitles...)
	}
	if len(c.Dialog.Labels) == 0 {
		c.Dialog.Labels = append([]string(nil), dialog.DefaultLabels...)
	}
}

// Validate reports configuration faults.
func (c *Config) Validate() error {
	if c.Monitor.ExecutablePath == "" {
		return ErrMissingExecutablePath
	}
	if c.Monitor.CheckIntervalSeconds < 1 {
		return fmt.Errorf("monitor.check_interval_seconds must be >= 1, got %d", c.Monitor.CheckIntervalSeconds)
	}
	if c.Dialog.ProbeInterval <= 0 {
		return fmt.Errorf("dialog.probe_interval must be positive, got %s", c.Dialog.ProbeInterval)
	}
	if c.Dialog.ProbeTimeout <= 0 {
		return fmt.Errorf("dialog.probe_timeout must be positive, got %s", c.Dialog.ProbeTimeout)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.CrashReport.Lookback <= 0 {
		return fmt.Errorf("crash_report.lookback must be positive, got %s", c.CrashReport.Lookback)
	}
	return nil
}

// executableName derives the process name from a path written for either
// path convention: "C:\App\app.exe" and "/opt/app/app" both work on any host.
func executableName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.LastIndexByte(path, '.'); i > 0 {
		path = path[:i]
	}
	return path
}

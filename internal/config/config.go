package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/keeprun/keeprun/internal/logger"
)

// Defaults applied when the config file leaves a field out.
const (
	DefaultRestartInterval = 10 * time.Second
	DefaultMonitorLog      = "monitor.log"
	DefaultOutputLog       = "output.log"
)

// Config is the top-level TOML structure.
//
//	[child]
//	name = "Bot"
//	command = ".venv/bin/python bot.py"
//	workdir = ""
//	env = ["PYTHONUNBUFFERED=1"]
//	env_files = [".env"]
//	use_os_env = true
//
//	[loop]
//	restart_interval = "10s"
//
//	[log]
//	monitor = "monitor.log"
//	output = "output.log"
//	level = "info"
//	file = ""            # optional rotated diagnostic log
//
//	[history]
//	dsn = "sqlite://keeprun_history.db"
//
//	[telemetry]
//	listen = ":9090"
//	base_path = ""
type Config struct {
	Child     ChildConfig     `mapstructure:"child"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Log       LogConfig       `mapstructure:"log"`
	History   HistoryConfig   `mapstructure:"history"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// BaseDir anchors every relative path above. It is the directory of the
	// config file, or of the keeprun executable when no config is given.
	BaseDir string `mapstructure:"-"`
}

type ChildConfig struct {
	Name     string   `mapstructure:"name"`
	Command  string   `mapstructure:"command"`
	WorkDir  string   `mapstructure:"workdir"`
	Env      []string `mapstructure:"env"`
	EnvFiles []string `mapstructure:"env_files"`
	UseOSEnv bool     `mapstructure:"use_os_env"`
}

type LoopConfig struct {
	RestartInterval time.Duration `mapstructure:"restart_interval"`
}

type LogConfig struct {
	Monitor string `mapstructure:"monitor"` // monitor log path, plain append
	Output  string `mapstructure:"output"`  // child output log path, plain append

	// Supervisor diagnostics (slog), separate from the files above.
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type TelemetryConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
}

// Load parses the TOML config at path, applies defaults, validates, and
// resolves relative paths against the config file's directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("child.use_os_env", true)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	c.BaseDir = filepath.Dir(abs)
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

// finish applies defaults, validates, and anchors relative paths at BaseDir.
func (c *Config) finish() error {
	if strings.TrimSpace(c.Child.Command) == "" {
		return fmt.Errorf("child.command is required")
	}
	if c.Child.Name == "" {
		c.Child.Name = deriveName(c.Child.Command)
	}
	if c.Loop.RestartInterval <= 0 {
		c.Loop.RestartInterval = DefaultRestartInterval
	}
	if c.Log.Monitor == "" {
		c.Log.Monitor = DefaultMonitorLog
	}
	if c.Log.Output == "" {
		c.Log.Output = DefaultOutputLog
	}

	c.Log.Monitor = c.abs(c.Log.Monitor)
	c.Log.Output = c.abs(c.Log.Output)
	if c.Log.File != "" {
		c.Log.File = c.abs(c.Log.File)
	}
	if c.Child.WorkDir == "" {
		c.Child.WorkDir = c.BaseDir
	} else {
		c.Child.WorkDir = c.abs(c.Child.WorkDir)
	}
	for i, f := range c.Child.EnvFiles {
		c.Child.EnvFiles[i] = c.abs(f)
	}
	return nil
}

func (c *Config) abs(p string) string {
	if p == "" || filepath.IsAbs(p) || c.BaseDir == "" {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// LoggerConfig maps the diagnostic-log fields onto logger.Config.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// deriveName labels the child by the basename of its first command token.
func deriveName(command string) string {
	fields := strings.Fields(strings.TrimSpace(command))
	if len(fields) == 0 {
		return "child"
	}
	return filepath.Base(fields[0])
}

// Package config loads devplan settings from defaults, a YAML file, the
// environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rcliao/devplan/internal/renderer"
)

// EnvPrefix prefixes environment overrides, e.g. DEVPLAN_RENDERER_TIMEOUT.
const EnvPrefix = "DEVPLAN"

// Config represents the complete devplan configuration
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Library  LibraryConfig  `mapstructure:"library"`
	Renderer RendererConfig `mapstructure:"renderer"`
	Render   RenderConfig   `mapstructure:"render"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StoreConfig locates the artifact database
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LibraryConfig locates the plan library
type LibraryConfig struct {
	Dir string `mapstructure:"dir"`
}

// RendererConfig controls how the diagram engine is invoked
type RendererConfig struct {
	// Command is the engine executable
	Command string `mapstructure:"command"`
	// Args are passed to Command; "{format}" is replaced by the output format
	Args []string `mapstructure:"args"`
	// Timeout bounds a single engine run
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxConcurrent is the number of engine processes allowed at once
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// QueueTimeout is how long a render waits for a slot (0 = fail fast)
	QueueTimeout time.Duration `mapstructure:"queue_timeout"`
	// StderrLimit caps the stderr excerpt kept on failure, in bytes
	StderrLimit int `mapstructure:"stderr_limit"`
	// WaitDelay bounds pipe draining after the engine is killed
	WaitDelay time.Duration `mapstructure:"wait_delay"`
}

// RenderConfig holds render option defaults
type RenderConfig struct {
	Format  string `mapstructure:"format"`
	Diagram string `mapstructure:"diagram"`
}

// ServerConfig controls the HTTP server
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level"`
	// Dir holds devplan.log; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// Settings converts the renderer section into gateway settings.
func (c RendererConfig) Settings() renderer.Settings {
	return renderer.Settings{
		Command:       c.Command,
		Args:          c.Args,
		MaxConcurrent: c.MaxConcurrent,
		QueueTimeout:  c.QueueTimeout,
		StderrLimit:   c.StderrLimit,
		WaitDelay:     c.WaitDelay,
	}
}

// Addr returns host:port for the listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DataDir is where the database and plan library live by default.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".devplan"
	}
	return filepath.Join(home, ".devplan")
}

// Default returns a Config with sensible default values
func Default() *Config {
	data := DataDir()
	return &Config{
		Store:   StoreConfig{Path: filepath.Join(data, "artifacts.db")},
		Library: LibraryConfig{Dir: filepath.Join(data, "plans")},
		Renderer: RendererConfig{
			Command:       renderer.DefaultCommand,
			Args:          append([]string(nil), renderer.DefaultArgs...),
			Timeout:       30 * time.Second,
			MaxConcurrent: 2,
			QueueTimeout:  0,
			StderrLimit:   renderer.DefaultStderrLimit,
			WaitDelay:     renderer.DefaultWaitDelay,
		},
		Render: RenderConfig{
			Format:  "png",
			Diagram: "gantt",
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 90 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("store.path", defaults.Store.Path)
	v.SetDefault("library.dir", defaults.Library.Dir)

	v.SetDefault("renderer.command", defaults.Renderer.Command)
	v.SetDefault("renderer.args", defaults.Renderer.Args)
	v.SetDefault("renderer.timeout", defaults.Renderer.Timeout)
	v.SetDefault("renderer.max_concurrent", defaults.Renderer.MaxConcurrent)
	v.SetDefault("renderer.queue_timeout", defaults.Renderer.QueueTimeout)
	v.SetDefault("renderer.stderr_limit", defaults.Renderer.StderrLimit)
	v.SetDefault("renderer.wait_delay", defaults.Renderer.WaitDelay)

	v.SetDefault("render.format", defaults.Render.Format)
	v.SetDefault("render.diagram", defaults.Render.Diagram)

	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)
	v.SetDefault("server.max_body_bytes", defaults.Server.MaxBodyBytes)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.dir", defaults.Logging.Dir)
}

// New returns a viper instance with defaults, the config file and
// DEVPLAN_* environment overrides wired up. An empty cfgFile searches the
// config directory and the working directory; a missing file there is not
// an error.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	// e.g., DEVPLAN_RENDERER_MAX_CONCURRENT for renderer.max_concurrent
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "devplan")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".devplan"
	}
	return filepath.Join(home, ".config", "devplan")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

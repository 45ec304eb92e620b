package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Renderer.Command != "java" {
		t.Errorf("renderer.command = %q, want java", cfg.Renderer.Command)
	}
	if cfg.Renderer.MaxConcurrent != 2 {
		t.Errorf("renderer.max_concurrent = %d, want 2", cfg.Renderer.MaxConcurrent)
	}
	if cfg.Render.Format != "png" || cfg.Render.Diagram != "gantt" {
		t.Errorf("render defaults = %s/%s", cfg.Render.Format, cfg.Render.Diagram)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config should be valid, got %v", errs)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := `
store:
  path: /tmp/devplan-test.db
renderer:
  timeout: 5s
  max_concurrent: 4
render:
  format: svg
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DEVPLAN_RENDERER_MAX_CONCURRENT", "6")
	t.Setenv("DEVPLAN_LOGGING_LEVEL", "debug")

	v, err := New(cfgPath)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Store.Path != "/tmp/devplan-test.db" {
		t.Errorf("store.path = %q", cfg.Store.Path)
	}
	if cfg.Renderer.Timeout != 5*time.Second {
		t.Errorf("renderer.timeout = %s, want 5s", cfg.Renderer.Timeout)
	}
	if cfg.Renderer.MaxConcurrent != 6 {
		t.Errorf("env should override file: max_concurrent = %d", cfg.Renderer.MaxConcurrent)
	}
	if cfg.Render.Format != "svg" {
		t.Errorf("render.format = %q", cfg.Render.Format)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
	if cfg.Render.Diagram != "gantt" {
		t.Errorf("unset keys should keep defaults, diagram = %q", cfg.Render.Diagram)
	}
}

func TestNew_MissingExplicitFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestNew_NoFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	v, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoad_Invalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("renderer.timeout", "0s")
	v.Set("render.format", "gif")

	_, err := Load(v)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(verrs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(verrs), verrs)
	}
	if !strings.Contains(err.Error(), "2 validation errors") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty store path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"empty library", func(c *Config) { c.Library.Dir = " " }, "library.dir"},
		{"empty command", func(c *Config) { c.Renderer.Command = "" }, "renderer.command"},
		{"zero concurrency", func(c *Config) { c.Renderer.MaxConcurrent = 0 }, "renderer.max_concurrent"},
		{"negative queue timeout", func(c *Config) { c.Renderer.QueueTimeout = -time.Second }, "renderer.queue_timeout"},
		{"zero stderr limit", func(c *Config) { c.Renderer.StderrLimit = 0 }, "renderer.stderr_limit"},
		{"bad diagram", func(c *Config) { c.Render.Diagram = "pie" }, "render.diagram"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "server.max_body_bytes"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %v", errs)
			}
			if errs[0].Field != tt.field {
				t.Errorf("field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}
}

func TestRendererSettings(t *testing.T) {
	cfg := Default()
	s := cfg.Renderer.Settings()
	if s.Command != cfg.Renderer.Command || s.MaxConcurrent != cfg.Renderer.MaxConcurrent {
		t.Errorf("settings = %+v", s)
	}
	if len(s.Args) == 0 || !strings.Contains(strings.Join(s.Args, " "), "{format}") {
		t.Errorf("args should carry the format placeholder: %v", s.Args)
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := ConfigDir(); got != "/custom/config/devplan" {
		t.Errorf("ConfigDir() = %q", got)
	}
	if got := ConfigFile(); got != "/custom/config/devplan/config.yaml" {
		t.Errorf("ConfigFile() = %q", got)
	}
}

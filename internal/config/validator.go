package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rcliao/devplan/internal/model"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "renderer.timeout")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validatePaths()...)
	errs = append(errs, c.validateRenderer()...)
	errs = append(errs, c.validateRender()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateLogging()...)
	return errs
}

func (c *Config) validatePaths() []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, ValidationError{Field: "store.path", Value: c.Store.Path, Message: "must not be empty"})
	}
	if strings.TrimSpace(c.Library.Dir) == "" {
		errs = append(errs, ValidationError{Field: "library.dir", Value: c.Library.Dir, Message: "must not be empty"})
	}
	return errs
}

func (c *Config) validateRenderer() []ValidationError {
	var errs []ValidationError
	r := c.Renderer
	if strings.TrimSpace(r.Command) == "" {
		errs = append(errs, ValidationError{Field: "renderer.command", Value: r.Command, Message: "must not be empty"})
	}
	if r.Timeout <= 0 {
		errs = append(errs, ValidationError{Field: "renderer.timeout", Value: r.Timeout, Message: "must be positive"})
	}
	if r.MaxConcurrent < 1 {
		errs = append(errs, ValidationError{Field: "renderer.max_concurrent", Value: r.MaxConcurrent, Message: "must be at least 1"})
	}
	if r.QueueTimeout < 0 {
		errs = append(errs, ValidationError{Field: "renderer.queue_timeout", Value: r.QueueTimeout, Message: "must not be negative"})
	}
	if r.StderrLimit < 1 {
		errs = append(errs, ValidationError{Field: "renderer.stderr_limit", Value: r.StderrLimit, Message: "must be at least 1"})
	}
	if r.WaitDelay < 0 {
		errs = append(errs, ValidationError{Field: "renderer.wait_delay", Value: r.WaitDelay, Message: "must not be negative"})
	}
	return errs
}

func (c *Config) validateRender() []ValidationError {
	var errs []ValidationError
	if _, ok := model.ValidFormats[model.Format(c.Render.Format)]; !ok {
		errs = append(errs, ValidationError{Field: "render.format", Value: c.Render.Format, Message: "must be one of png, svg, txt"})
	}
	if !model.ValidDiagrams[model.Diagram(c.Render.Diagram)] {
		errs = append(errs, ValidationError{Field: "render.diagram", Value: c.Render.Diagram, Message: "must be gantt or graph"})
	}
	return errs
}

func (c *Config) validateServer() []ValidationError {
	var errs []ValidationError
	s := c.Server
	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, ValidationError{Field: "server.port", Value: s.Port, Message: "must be between 0 and 65535"})
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, ValidationError{Field: "server.read_timeout", Value: s.ReadTimeout, Message: "must not be negative"})
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, ValidationError{Field: "server.write_timeout", Value: s.WriteTimeout, Message: "must not be negative"})
	}
	if s.MaxBodyBytes < 1 {
		errs = append(errs, ValidationError{Field: "server.max_body_bytes", Value: s.MaxBodyBytes, Message: "must be positive"})
	}
	return errs
}

func (c *Config) validateLogging() []ValidationError {
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		return []ValidationError{{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		}}
	}
	return nil
}

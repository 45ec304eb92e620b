package builder

import "fmt"

// ConfigError is an unknown render option or a known option with an invalid
// value. Value and Reason are empty for unknown keys.
type ConfigError struct {
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("config error: unknown option %q", e.Key)
	}
	return fmt.Sprintf("config error: option %q=%q: %s", e.Key, e.Value, e.Reason)
}

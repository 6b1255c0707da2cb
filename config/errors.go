package config

import "fmt"

// ConfigError is returned for invalid static configuration. It is only ever
// produced at startup, never during a collection cycle.
type ConfigError struct {
	Section string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("invalid configuration in section [%s]: %s", e.Section, e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

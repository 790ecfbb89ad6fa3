package handler

import (
	"errors"
	"fmt"
)

var (
	ErrMissingKeyword    = errors.New("keyword is required")
	ErrMissingPattern    = errors.New("pattern is required")
	ErrMissingHandle     = errors.New("handle callback is required")
	ErrMissingHelp       = errors.New("help callback is required")
	ErrInvalidExpression = errors.New("invalid regular expression")
)

// ConfigError reports a handler that could not be built from its configuration.
type ConfigError struct {
	Handler string
	Err     error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	if e.Handler == "" {
		return fmt.Sprintf("configure handler: %v", e.Err)
	}

	return fmt.Sprintf("configure handler %s: %v", e.Handler, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configError(name string, err error) error {
	return &ConfigError{Handler: name, Err: err}
}

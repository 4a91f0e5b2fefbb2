package cli

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/callisto/pkg/usage"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitUsage     = 2
	ExitNotFound  = 3
	ExitCancelled = 130
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Message
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps err to a process exit status. Invalid input and
// configuration errors exit with ExitUsage, missing records with
// ExitNotFound.
func ExitCode(err error) int {
	var cfgErr *ConfigError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.As(err, &cfgErr), errors.Is(err, usage.ErrInvalid):
		return ExitUsage
	case errors.Is(err, usage.ErrNotFound):
		return ExitNotFound
	}
	return ExitFailure
}

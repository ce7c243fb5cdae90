package common

import "fmt"

// ConfigError is an invalid environment/configuration combination: both
// CROSS and an installed GASNet, an unknown cross-config tag, a missing
// makefile variable, an unrecognized source extension, a non-existent
// path. Never retried (spec §7).
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// DependencyConflictError reports two library records for the same name
// disagreeing on fields, multiple non-matching `ld` vectors, or an
// install-time name collision. Fatal; no partial state persisted.
type DependencyConflictError struct {
	Message string
}

func (e *DependencyConflictError) Error() string { return e.Message }

func NewDependencyConflictError(format string, args ...interface{}) *DependencyConflictError {
	return &DependencyConflictError{Message: fmt.Sprintf(format, args...)}
}

// SubprocessError wraps a nonzero exit of a compiler, linker, archiver,
// configure, or make invocation, with stderr surfaced verbatim.
type SubprocessError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, e.Stderr)
}

// ClobberRefusedError is raised when install would overwrite an existing
// file; the caller is responsible for rolling back its undo log first.
type ClobberRefusedError struct {
	Path string
}

func (e *ClobberRefusedError) Error() string {
	return fmt.Sprintf("installation aborted: %q already exists and would be clobbered", e.Path)
}

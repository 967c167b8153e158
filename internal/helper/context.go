package helper

import (
	"fmt"
	"log/slog"
)

// Context is passed to every helper handler.
// It carries the application handle and a structured logger; handlers
// report assertion-style failures by returning an error (see Failf).
type Context struct {
	// App is the application under test.
	App Application

	// Log is the session's structured logger.
	Log *slog.Logger
}

// Failure is an assertion-style failure raised inside a helper handler.
// It marks the entry Failed without aborting queue draining.
type Failure struct {
	// Helper is the name of the helper that failed.
	Helper string

	// Message describes what was expected versus observed.
	Message string
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Helper != "" {
		return fmt.Sprintf("helper %s failed: %s", f.Helper, f.Message)
	}
	return f.Message
}

// Failf builds a Failure for the named helper.
// Handlers return the result, e.g.:
//
//	return nil, hc.Failf("fillIn", "no input matches %q", selector)
func (c *Context) Failf(helperName, format string, args ...any) error {
	return &Failure{Helper: helperName, Message: fmt.Sprintf(format, args...)}
}

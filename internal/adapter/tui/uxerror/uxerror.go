// Package uxerror translates raw errors into user-friendly messages with
// recovery hints for the TUI and the command line.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"telehaunt/internal/adapter/tui/theme"
	"telehaunt/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Page Not Found"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text (for debug)
}

// Render formats the FriendlyError as a multi-line block.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.Symbols.Bullet, h))
		}
	}
	return sb.String()
}

// Short is the title plus the first hint, for single-line status bars.
func (fe FriendlyError) Short() string {
	if len(fe.Hints) == 0 {
		return fe.Title
	}
	return fe.Title + ": " + strings.ToLower(fe.Hints[0])
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// Domain sentinel errors (checked first so errors.Is works through wrapping).
	{
		match:   func(err error) bool { return domain.ErrorCodeOf(err) == domain.CodePageNotFound },
		produce: constantError("Page Not Found", "Nothing is broadcast on that page.", []string{"Try another page number", "Use ←/→ to browse the index"}),
	},
	{
		match:   is(domain.ErrNotFound),
		produce: constantError("Not Found", "The requested item does not exist.", []string{"Check the name in config"}),
	},
	{
		match:   is(domain.ErrTimeout),
		produce: constantError("Page Timed Out", "The page took too long to arrive.", []string{"Press r to reload", "Increase pages.fetch_timeout in config"}),
	},
	{
		match:   is(domain.ErrCircuitOpen),
		produce: constantError("Service Unavailable", "Too many pages failed in a row; loading is paused.", []string{"Wait a few seconds and press r", "Check pages.breaker in config"}),
	},
	{
		match:   is(domain.ErrRateLimit),
		produce: constantError("Too Many Requests", "Pages are being requested faster than allowed.", []string{"Slow down", "Raise pages.rate_per_second in config"}),
	},
	{
		match:   is(domain.ErrCancelled),
		produce: constantError("Cancelled", "The request was replaced by a newer one.", nil),
	},
	{
		match:   is(domain.ErrInvalidInput),
		produce: constantError("Invalid Input", "The request was rejected.", []string{"Page numbers run from 100 to 899"}),
	},
	{
		match:   is(domain.ErrConfigLoad),
		produce: configError,
	},
	{
		match:   is(domain.ErrClosed),
		produce: constantError("Shutting Down", "The viewer is closing.", nil),
	},

	// String patterns for errors from the filesystem and parsers.
	{
		match:   containsAny("insecure permissions"),
		produce: constantError("Insecure Config File", "The config file is writable by other users.", []string{"Run: chmod 600 <config file>"}),
	},
	{
		match:   containsAny("parse pages"),
		produce: constantError("Bad Pages File", "The pages file could not be read.", []string{"Check the YAML syntax", "Page numbers must be unique and between 100 and 899"}),
	},
	{
		match:   containsAny("no such file", "cannot find the file"),
		produce: constantError("File Not Found", "A configured file does not exist.", []string{"Check pages.file and includes in config"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}

	// Fallback for unrecognized errors.
	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Set TELEHAUNT_LOGGER_LEVEL=debug for more details"},
		Raw:     err.Error(),
	}
}

// configError keeps the validation details; they are the useful part.
func configError(err error) FriendlyError {
	fe := FriendlyError{
		Title:   "Invalid Configuration",
		Message: "The configuration could not be loaded.",
		Hints:   []string{"Run 'telehaunt check' after editing the config"},
		Raw:     err.Error(),
	}
	if _, details, ok := strings.Cut(err.Error(), "\n"); ok {
		fe.Message = strings.TrimSpace(details)
	}
	return fe
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}

package bridge

import (
	"errors"
	"fmt"

	"github.com/starford/jsonvault/internal/apperr"
)

// Result is the response handed back to the host for every command. Error
// carries a short user-facing message, Reason the detail behind it.
type Result struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Contents any    `json:"contents,omitempty"`

	err error
}

// Err returns the underlying error of a failed result, or nil.
func (r Result) Err() error {
	return r.err
}

func ok(contents any) Result {
	return Result{Success: true, Contents: contents}
}

func fail(msg string, err error) Result {
	return Result{Success: false, Error: msg, Reason: err.Error(), err: err}
}

// failure picks the host-facing message for err. fallback is used for the
// operation's own error category.
func failure(fallback string, err error) Result {
	switch {
	case errors.Is(err, apperr.ErrInvalidName):
		return fail("Invalid file name.", err)
	case errors.Is(err, apperr.ErrTierUnavailable):
		return fail("Storage unavailable.", err)
	case errors.Is(err, apperr.ErrInvalidArgument):
		return fail("Invalid arguments.", err)
	case errors.Is(err, apperr.ErrUnknownCommand):
		return fail("Unknown command.", err)
	default:
		return fail(fallback, err)
	}
}

func invalidArgs(command, format string, args ...any) Result {
	err := fmt.Errorf("%s: %s: %w", command, fmt.Sprintf(format, args...), apperr.ErrInvalidArgument)
	return failure("", err)
}

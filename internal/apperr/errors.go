// Package apperr defines the error categories shared across jsonvault.
//
// Storage errors wrap one of these sentinels together with the underlying
// OS error, so callers can match either with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrRead            = errors.New("read failed")
	ErrWrite           = errors.New("write failed")
	ErrDelete          = errors.New("delete failed")
	ErrList            = errors.New("list failed")
	ErrInvalidName     = errors.New("invalid document name")
	ErrTierUnavailable = errors.New("storage tier unavailable")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidArgument = errors.New("invalid argument")
)

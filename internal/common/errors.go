// Package common defines shared sentinel errors and small helpers used across
// debtorkeeper packages. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Configuration errors raised at startup.
	ErrorMissingKey = errors.New("encryption key is not configured")
)

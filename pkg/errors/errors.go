// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidLoginCode   = errors.New("invalid or expired login code")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrDuplicateRequest   = errors.New("duplicate request in progress")

	// Affiliate errors
	ErrNotBgAffiliate           = errors.New("wallet is not a bg affiliate")
	ErrNodeNotFound             = errors.New("affiliate node not found")
	ErrNotDirectDownline        = errors.New("target wallet is not a direct downline")
	ErrInvalidCommissionPercent = errors.New("commission percent must be between 0 and 100")
	ErrCommissionIncrease       = errors.New("commission percent cannot exceed the current value")

	// Record source errors
	ErrSourceUnavailable = errors.New("affiliate data source unavailable")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

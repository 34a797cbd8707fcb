// Package common defines shared constants and sentinel errors used across
// the API layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Auth errors (invalid, forged or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingToken = errors.New("missing token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// ErrSecurity marks a failure inside a security primitive. Its text is
	// never shown to API callers.
	ErrSecurity = errors.New("security primitive failure")

	// ErrProcedure marks a failed stored procedure invocation.
	ErrProcedure = errors.New("procedure error")
)

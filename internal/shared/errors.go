package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a unique constraint was violated.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates a malformed, tampered or expired token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnauthenticated indicates no verified claims reached this point.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSubjectNotFound indicates claims referencing a deleted account.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrForbidden indicates the subject lacks a required role or permission.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited indicates the caller exhausted its request quota.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable indicates a backing store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

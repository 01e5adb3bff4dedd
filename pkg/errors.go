// Package pkg holds utilities shared across the service.
// This file defines the domain-level errors.
//
// Errors are compared by identity, never by string:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
//
// Services wrap them with context ("%w: thread not found") and the handler
// layer maps them to HTTP status codes.
package pkg

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrRateLimited   = errors.New("rate limited")
	ErrInternal      = errors.New("internal error")
)

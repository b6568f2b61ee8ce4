// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver-specific errors.
package repository

import "errors"

// ErrNotFound is returned when a referenced entity is absent.  Handlers
// also report ownership failures as ErrNotFound so that probing requests
// cannot confirm the existence of another user's resource.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert collides with the unique
// email constraint.  Handlers should translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

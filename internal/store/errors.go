package store

import (
	"github.com/tometrove/tometrove/internal/errors"
)

// Sentinel errors shared by every backend. They match the coded errors of
// internal/errors, so callers may test either form with errors.Is.
var (
	ErrNotFound      = errors.NotFound("record not found")
	ErrAlreadyExists = errors.AlreadyExists("record already exists")
)

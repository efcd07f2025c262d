package store

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoSealRecord is returned by ReadSealRecord when no seal exists yet.
var ErrNoSealRecord = errors.New("no seal record")

// ErrDuplicateSeal is returned when a second seal record is attempted.
var ErrDuplicateSeal = errors.New("seal record already exists")

package storage

import "errors"

// ErrNotFound is returned when a proxy or log entry does not exist.
var ErrNotFound = errors.New("not found")

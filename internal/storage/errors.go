package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrDuplicateCode is returned when creating an entity whose business code
// is already held by an ACTIVE row.
var ErrDuplicateCode = errors.New("storage: duplicate active code")

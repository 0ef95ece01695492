package db

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned by id-scoped operations when no document
	// matches.
	ErrNotFound = errors.New("document not found")

	// ErrVersionConflict is returned when an optimistic-concurrency write
	// lost the race to a concurrent writer.
	ErrVersionConflict = errors.New("document was modified by a concurrent write")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(errors.Cause(err).Error(), "duplicate key")
}

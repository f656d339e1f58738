// Package storage abstracts where rendered document PDFs live. Handlers and
// the workflow only ever see public URLs; the backing store decides how those
// map to bytes.
package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when a stored object does not exist
var ErrObjectNotFound = errors.New("object not found")

// Object is a stored document artifact
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// ObjectStore persists rendered documents and serves them back by key
type ObjectStore interface {
	// Store saves the object and returns its public URL.
	Store(ctx context.Context, obj Object) (string, error)
	// Fetch returns the object for the given key, or ErrObjectNotFound.
	Fetch(ctx context.Context, key string) (*Object, error)
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

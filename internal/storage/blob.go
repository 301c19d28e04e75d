package storage

import (
	"errors"
	"io"
)

// ErrInvalidKey is returned for empty keys or keys escaping the store root.
var ErrInvalidKey = errors.New("invalid blob key")

// BlobStore persists rendered report artifacts.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Open(key string) (io.ReadCloser, error)      // fs.ErrNotExist when absent
}

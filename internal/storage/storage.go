// Package storage defines the Storage interface for uploaded media and the
// backend registry.
//
// New backends are added by implementing the Storage interface and registering
// with the factory via an init() function in the backend's own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The main package imports each backend with a blank import to trigger init(),
// so adding a backend requires no factory or main-package changes beyond the
// import line.
package storage

import (
	"context"
	"io"
)

// Storage stores uploaded files and serves them from stable public URLs.
// Uploaded media is immutable: keys are random and never rewritten, so
// backends may apply aggressive cache headers.
type Storage interface {
	// Put stores the file under key and returns the public URL it will be
	// served from
	Put(ctx context.Context, key, contentType string, reader io.Reader, size int64) (string, error)

	// Delete removes a file. Deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Exists reports whether a file is stored under key
	Exists(ctx context.Context, key string) (bool, error)
}

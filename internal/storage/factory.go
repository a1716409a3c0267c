// factory.go implements the storage backend registry, mapping backend names
// (local, s3) to constructor functions.
package storage

import (
	"fmt"

	"github.com/inevitable-science/article-registry/internal/config"
)

// FactoryFunc constructs a storage backend from application configuration
type FactoryFunc func(*config.Config) (Storage, error)

var factories = make(map[string]FactoryFunc)

// Register registers a storage backend factory
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// New creates the storage backend named by configuration
func New(cfg *config.Config) (Storage, error) {
	factory, ok := factories[cfg.Storage.DefaultBackend]
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %s (must be 'local' or 's3')", cfg.Storage.DefaultBackend)
	}
	return factory(cfg)
}

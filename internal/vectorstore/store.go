// Package vectorstore is the narrow interface to the external vector database:
// collection management and point upserts, with Qdrant, sqlite and pgvector backends.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/DreamCats/vecload/internal/config"
)

// Distance is the similarity metric of a collection.
type Distance string

const (
	Cosine    Distance = "Cosine"
	Dot       Distance = "Dot"
	Euclid    Distance = "Euclid"
	Manhattan Distance = "Manhattan"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("vector store is closed")
	// ErrCollectionNotFound is returned by local backends for unknown collections.
	ErrCollectionNotFound = errors.New("collection not found")
)

// Collection is a named, fixed-dimension container of points.
type Collection struct {
	Name      string
	Dimension int
	Distance  Distance
}

// Point is one stored record. ID must be a UUID or an unsigned integer for Qdrant.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Store is the vector database handle. One Store is opened per process and shared
// by reference; calls are issued sequentially by the ingestion driver.
type Store interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	// CreateCollection does not re-validate an existing collection; creating a
	// name twice fails with whatever error the backend reports.
	CreateCollection(ctx context.Context, col Collection) error
	// Upsert writes or overwrites points by id. With wait set the call returns
	// only after the backend has acknowledged the write.
	Upsert(ctx context.Context, collection string, points []Point, wait bool) error
	Count(ctx context.Context, collection string) (int, error)
	// Close releases the connection. Closing twice is a no-op.
	Close() error
}

// EnsureCollection creates col unless a collection with that name already exists.
// It reports whether a create call was made.
func EnsureCollection(ctx context.Context, store Store, col Collection) (bool, error) {
	exists, err := store.CollectionExists(ctx, col.Name)
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", col.Name, err)
	}
	if exists {
		return false, nil
	}
	if col.Distance == "" {
		col.Distance = Cosine
	}
	if err := store.CreateCollection(ctx, col); err != nil {
		return false, fmt.Errorf("create collection %s: %w", col.Name, err)
	}
	return true, nil
}

// Open connects to the backend selected in cfg.
func Open(ctx context.Context, cfg config.StoreConfig, log logrus.FieldLogger) (Store, error) {
	switch cfg.Backend {
	case "", "qdrant":
		return NewQdrantStore(cfg, log)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported vector store backend: %s", cfg.Backend)
	}
}

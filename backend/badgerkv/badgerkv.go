// Package badgerkv implements store.Backend on an embedded BadgerDB, for
// single node deployments. Badger transactions make every call atomic per
// key; Update and Push retry on write conflicts.
package badgerkv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/jacentio/grove/store"
)

// maxConflictRetries bounds retries of read-modify-write transactions.
const maxConflictRetries = 16

// Config configures the Badger backend.
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Logger is an optional structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Backend is a store.Backend and store.Inserter on BadgerDB.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Backend, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerkv: path is required unless in memory")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Backend{db: db, logger: cfg.Logger}, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Get implements store.Backend.
func (b *Backend) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		value, err = get(txn, path)
		return err
	})
	return value, err
}

// Set implements store.Backend.
func (b *Backend) Set(ctx context.Context, path string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), value)
	})
}

// Update implements store.Backend.
func (b *Backend) Update(ctx context.Context, path string, fields map[string]json.RawMessage) error {
	return b.retry(ctx, path, func(txn *badger.Txn) error {
		return merge(txn, path, fields)
	})
}

// Push implements store.Backend. Keys are UUIDv7 strings.
func (b *Backend) Push(ctx context.Context, prefix string, value []byte) (string, error) {
	key, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	err = b.retry(ctx, prefix, func(txn *badger.Txn) error {
		return merge(txn, prefix, map[string]json.RawMessage{key.String(): value})
	})
	if err != nil {
		return "", err
	}
	return key.String(), nil
}

// Insert implements store.Inserter.
func (b *Backend) Insert(ctx context.Context, path string, value []byte) error {
	return b.retry(ctx, path, func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(path))
		if err == nil {
			return store.ErrExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set([]byte(path), value)
	})
}

// retry runs fn in an update transaction until it commits without conflict.
func (b *Backend) retry(ctx context.Context, path string, fn func(txn *badger.Txn) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if attempt == maxConflictRetries {
			return fmt.Errorf("badgerkv: %s: %w", path, err)
		}
		b.logger.Debug("transaction conflict, retrying", "path", path, "attempt", attempt)
	}
}

func get(txn *badger.Txn, path string) ([]byte, error) {
	item, err := txn.Get([]byte(path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// merge shallow-merges fields into the object at path. A non-object value
// is replaced.
func merge(txn *badger.Txn, path string, fields map[string]json.RawMessage) error {
	doc := map[string]json.RawMessage{}

	current, err := get(txn, path)
	switch {
	case err == nil:
		if err := json.Unmarshal(current, &doc); err != nil {
			doc = map[string]json.RawMessage{}
		}
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	for k, v := range fields {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return txn.Set([]byte(path), merged)
}

var (
	_ store.Backend  = (*Backend)(nil)
	_ store.Inserter = (*Backend)(nil)
)

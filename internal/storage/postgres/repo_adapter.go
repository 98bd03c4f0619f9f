package postgres

import (
	"context"

	"searchetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// Ensure Repository satisfies storage.Repository at compile time.
var _ storage.Repository = (*Repository)(nil)

// init registers the "postgres" backend with the storage factory so callers
// can obtain it via storage.New without importing this package directly.
func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, err := newRepository(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}

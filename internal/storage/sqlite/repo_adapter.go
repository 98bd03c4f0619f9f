package sqlite

import (
	"context"

	"searchetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// Ensure Repository satisfies storage.Repository at compile time.
var _ storage.Repository = (*Repository)(nil)

// init registers the "sqlite" backend with the storage factory.
func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, err := newRepository(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}

// Package file implements the local filesystem landing store: one NDJSON
// file per calendar day, named events_YYYYMMDD.ndjson under a fixed root.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrMissingPartition reports that the landing partition for the requested
// date does not exist. This is a fatal pipeline condition: downstream stages
// cannot run without source data.
var ErrMissingPartition = errors.New("missing source partition")

// PartitionSource is a day-partitioned landing store on the local filesystem.
type PartitionSource struct {
	root string
}

// NewPartitionSource returns a source rooted at the given directory.
func NewPartitionSource(root string) *PartitionSource {
	return &PartitionSource{root: root}
}

// Path returns the partition file path for date.
func (s *PartitionSource) Path(date time.Time) string {
	return filepath.Join(s.root, fmt.Sprintf("events_%s.ndjson", date.Format("20060102")))
}

// Open opens the partition for date for reading.
//
// Behavior:
//   - If the context is already done, Open returns the context error without
//     touching the filesystem.
//   - A missing partition file maps onto ErrMissingPartition; callers can use
//     errors.Is to distinguish it from transient I/O failures.
//   - Other filesystem errors are wrapped with the path for context.
func (s *PartitionSource) Open(ctx context.Context, date time.Time) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p := s.Path(date)
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", p, ErrMissingPartition)
		}
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return f, nil
}

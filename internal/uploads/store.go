package uploads

import (
	"context"
	"io"
	"time"
)

// RecordStore persists upload records.
//
// Save must write Status, Result and UpdatedAt in one atomic operation so a
// reader never sees a terminal status without its result. Get, Begin and Save
// return an error wrapping ErrNotFound for unknown ids.
type RecordStore interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Save(ctx context.Context, rec *Record) error

	// Begin moves the record to processing and clears its result only if it
	// is still pending, as one compare-and-set. It reports whether it did.
	Begin(ctx context.Context, id string, now time.Time) (bool, error)
}

// SourceStore holds the raw uploaded files.
type SourceStore interface {
	// Put stores content for uploadID and returns a URI that Open accepts.
	Put(ctx context.Context, uploadID, filename string, content io.Reader) (string, error)

	// Open returns a reader over the content behind uri.
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

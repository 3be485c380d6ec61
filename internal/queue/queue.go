// Package queue implements the shared append-only contact queue: a local CSV
// file that is the durable copy, plus best-effort synchronization of the
// whole file to a remote store guarded by an optimistic-concurrency token.
//
// Only one intake process is expected to write. Two concurrent writers can
// overwrite each other's remote pushes; that is a known limitation.
package queue

import (
	"context"
	"errors"

	"github.com/sudn2014/telegram-bot-teams/internal/contacts"
)

// ErrConflict is returned by a Remote when the supplied token is stale.
var ErrConflict = errors.New("queue: remote content changed since token was issued")

// ErrNotFound is returned by a Remote when the file does not exist yet.
var ErrNotFound = errors.New("queue: remote file not found")

// Log appends contact records to the shared queue.
type Log interface {
	Append(ctx context.Context, rec contacts.Record) error
}

// Snapshot is the remote file content with its concurrency token.
type Snapshot struct {
	Content []byte
	Token   string
}

// Remote reads and conditionally replaces the remote copy of the queue file.
// An empty token on Store means "create"; the Remote must reject the write if
// the file already exists.
type Remote interface {
	Fetch(ctx context.Context) (Snapshot, error)
	Store(ctx context.Context, content []byte, token, message string) error
}

package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/sudn2014/telegram-bot-teams/internal/contacts"
	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

// SyncStatus labels the outcome of one remote push.
type SyncStatus string

const (
	SyncDisabled        SyncStatus = "disabled"
	SyncOK              SyncStatus = "ok"
	SyncRetriedConflict SyncStatus = "conflict_retried"
	SyncFailed          SyncStatus = "failed"
)

type appendObserver interface {
	ObserveQueueAppend(status string)
	ObserveQueueSync(status string)
}

// SyncedLog appends to a LocalFile and then pushes the whole file to a Remote.
// Every push merges the remote rows the local file lacks, so a fresh local
// file never erases history. A failed push never fails the append: the local
// row is already durable.
type SyncedLog struct {
	local   *LocalFile
	remote  Remote
	logger  *logging.Logger
	metrics appendObserver
}

// NewSyncedLog wires a local file with an optional remote (nil disables sync).
func NewSyncedLog(local *LocalFile, remote Remote, logger *logging.Logger) *SyncedLog {
	if logger == nil {
		logger = logging.Default()
	}
	return &SyncedLog{local: local, remote: remote, logger: logger}
}

// WithMetrics records append and sync outcomes.
func (l *SyncedLog) WithMetrics(m appendObserver) *SyncedLog {
	l.metrics = m
	return l
}

// Append writes rec locally, then synchronizes best-effort.
func (l *SyncedLog) Append(ctx context.Context, rec contacts.Record) error {
	if err := l.local.Append(ctx, rec); err != nil {
		l.observeAppend("failed")
		return err
	}
	l.observeAppend("ok")
	l.logger.Info("queue record appended", "path", l.local.Path(), "email", rec.Email)

	status, err := l.Sync(ctx, "Add user: "+rec.Name)
	l.observeSync(string(status))
	if err != nil {
		l.logger.Error("queue remote sync failed; local record kept", "error", err, "email", rec.Email)
	}
	return nil
}

// Sync merges the current local content with the remote copy and stores the
// result. On a token conflict it refetches, merges again and retries once.
func (l *SyncedLog) Sync(ctx context.Context, message string) (SyncStatus, error) {
	if l.remote == nil {
		return SyncDisabled, nil
	}
	content, err := l.local.ReadAll()
	if err != nil {
		return SyncFailed, err
	}

	err = l.push(ctx, content, message)
	if err == nil {
		return SyncOK, nil
	}
	if !errors.Is(err, ErrConflict) {
		return SyncFailed, err
	}

	l.logger.Warn("queue remote conflict, merging and retrying once")
	if err := l.push(ctx, content, message); err != nil {
		return SyncFailed, fmt.Errorf("queue: retry after conflict: %w", err)
	}
	return SyncRetriedConflict, nil
}

func (l *SyncedLog) push(ctx context.Context, content []byte, message string) error {
	var remote Snapshot
	snap, err := l.remote.Fetch(ctx)
	switch {
	case err == nil:
		remote = snap
	case errors.Is(err, ErrNotFound):
	default:
		return fmt.Errorf("queue: fetch remote: %w", err)
	}

	merged, err := mergeRows(remote.Content, content)
	if err != nil {
		return err
	}
	if remote.Token != "" && bytes.Equal(merged, remote.Content) {
		l.logger.Debug("queue remote already holds every local row")
	} else if err := l.remote.Store(ctx, merged, remote.Token, message); err != nil {
		return err
	}
	if !bytes.Equal(merged, content) {
		if err := l.local.Replace(merged); err != nil {
			l.logger.Warn("queue local refresh from remote failed", "error", err)
		} else {
			l.logger.Info("queue local file refreshed from remote", "bytes", len(merged))
		}
	}
	return nil
}

func (l *SyncedLog) observeAppend(status string) {
	if l.metrics != nil {
		l.metrics.ObserveQueueAppend(status)
	}
}

func (l *SyncedLog) observeSync(status string) {
	if l.metrics != nil {
		l.metrics.ObserveQueueSync(status)
	}
}

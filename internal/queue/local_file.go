package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sudn2014/telegram-bot-teams/internal/contacts"
)

// LocalFile is the on-disk CSV queue. It is the authoritative copy for the
// intake process.
type LocalFile struct {
	path string
}

// NewLocalFile returns a LocalFile at path.
func NewLocalFile(path string) *LocalFile {
	return &LocalFile{path: path}
}

// Path returns the file location.
func (f *LocalFile) Path() string {
	return f.path
}

// Append writes one row, preceded by the header when the file is new or empty.
func (f *LocalFile) Append(_ context.Context, rec contacts.Record) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("queue: create dir: %w", err)
		}
	}

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("queue: open %s: %w", f.path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("queue: stat %s: %w", f.path, err)
	}

	var buf bytes.Buffer
	if err := contacts.WriteRows(&buf, info.Size() == 0, rec); err != nil {
		file.Close()
		return err
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		return fmt.Errorf("queue: write %s: %w", f.path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("queue: sync %s: %w", f.path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("queue: close %s: %w", f.path, err)
	}
	return nil
}

// ReadAll returns the full file content; a missing file yields nil content.
func (f *LocalFile) ReadAll() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: read %s: %w", f.path, err)
	}
	return data, nil
}

// Replace atomically swaps the file content for data.
func (f *LocalFile) Replace(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("queue: create temp: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("queue: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("queue: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("queue: close temp: %w", err)
	}
	if err := os.Rename(name, f.path); err != nil {
		os.Remove(name)
		return fmt.Errorf("queue: replace %s: %w", f.path, err)
	}
	return nil
}

package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Store persists record lines, one append-only resource per month
type Store interface {
	Append(ctx context.Context, year int, month time.Month, line string) error
	// Lines returns the month's lines in insertion order. A month with no
	// records yields no lines and no error.
	Lines(ctx context.Context, year int, month time.Month) ([]string, error)
}

// FileStore keeps each month in <dir>/<year>_<month>.txt
type FileStore struct {
	dir string
}

// NewFileStore creates a new FileStore rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the record file of a month
func (s *FileStore) Path(year int, month time.Month) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d_%d.txt", year, int(month)))
}

// Append writes one line, creating the directory and file when absent
func (s *FileStore) Append(ctx context.Context, year int, month time.Month, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	f, err := os.OpenFile(s.Path(year, month), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open record file: %w", err)
	}

	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	return f.Close()
}

// Lines reads the month's record file
func (s *FileStore) Lines(ctx context.Context, year int, month time.Month) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path(year, month))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open record file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}
	return lines, nil
}

// Package file writes fetched payloads verbatim to JSON files in a data directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

// SinkName identifies the file store in errors and reports.
const SinkName = "file"

// DefaultFilename is used when a caller does not name the output file.
const DefaultFilename = "weather.json"

// ErrInvalidFilename is returned for names that are empty or would escape the
// data directory.
var ErrInvalidFilename = errors.New("filename must be a plain file name")

// Store writes payloads into dir.
type Store struct {
	dir string
}

// NewStore creates a file store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Write replaces filename inside the data directory with payload and returns
// the path written. The file is written to a temporary sibling and renamed
// so readers never see a partial document.
func (s *Store) Write(_ context.Context, filename string, payload json.RawMessage) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", &domain.PersistenceError{Sink: SinkName, Err: err}
	}

	path := filepath.Join(s.dir, filename)
	tmp, err := os.CreateTemp(s.dir, "."+filename+".*.tmp")
	if err != nil {
		return "", &domain.PersistenceError{Sink: SinkName, Err: err}
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close() //nolint:errcheck
		return "", &domain.PersistenceError{Sink: SinkName, Err: fmt.Errorf("write %s: %w", path, err)}
	}
	if err := tmp.Close(); err != nil {
		return "", &domain.PersistenceError{Sink: SinkName, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", &domain.PersistenceError{Sink: SinkName, Err: err}
	}
	return path, nil
}

// ValidateFilename rejects names with path separators or dot segments.
func ValidateFilename(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}

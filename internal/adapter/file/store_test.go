package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s := NewStore(dir)

	payload := json.RawMessage(`{"location":{"name":"Malmö"},  "forecast":{}}`)
	path, err := s.Write(context.Background(), DefaultFilename, payload)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultFilename), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(payload), string(got), "payload is written byte for byte")
}

func TestStore_Write_Overwrites(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Write(context.Background(), "w.json", json.RawMessage(`{"v":1,"padding":"xxxxxxxx"}`))
	require.NoError(t, err)
	path, err := s.Write(context.Background(), "w.json", json.RawMessage(`{"v":2}`))
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestStore_Write_RejectsTraversal(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, name := range []string{"", ".", "..", "../escape.json", "sub/dir.json", `..\win.json`, "/etc/passwd"} {
		_, err := s.Write(context.Background(), name, json.RawMessage(`{}`))
		assert.ErrorIs(t, err, ErrInvalidFilename, name)
	}
}

package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const fixtureURL = "https://www.dataportal.se/rowstore/dataset/tomelilla-schools"

// fixtureSource serves a dataset document loaded from testdata.
type fixtureSource struct {
	payload json.RawMessage
	err     error
	calls   int
}

func (s *fixtureSource) Dataset(context.Context) (json.RawMessage, error) {
	s.calls++
	return s.payload, s.err
}

func (s *fixtureSource) URL() string { return fixtureURL }

func loadFixture(t *testing.T, name string) json.RawMessage {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return json.RawMessage(b)
}

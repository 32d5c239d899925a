//go:build integration

package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

func TestWordStore_Redis(t *testing.T) {
	ctx := context.Background()

	ctr, err := testcontainers.Run(ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(wait.ForLog("Ready to accept connections")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	addr, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)

	s := NewWordStore(Options{Addr: addr, Key: "words-test"})
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Ping(ctx))

	for i, w := range []string{"hej", "världen"} {
		n, err := s.Add(ctx, domain.NewWordEntry(w))
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}

	words, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "världen", words[1].Word)
	assert.Equal(t, 7, words[1].Length)

	removed, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	words, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, words)
}

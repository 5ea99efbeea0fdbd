package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cm8me/shortener/internal/storage"
)

func TestStorage_PersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "storage.json")

	s, err := NewStorage(path)
	require.NoError(t, err)

	require.NoError(t, s.PutIfAbsent(ctx, "abc1234", "https://example.com"))
	require.NoError(t, s.PutIfAbsent(ctx, "def5678", "https://go.dev"))
	require.NoError(t, s.Put(ctx, "def5678", "http://go.dev"))

	reopened, err := NewStorage(path)
	require.NoError(t, err)

	got, err := reopened.Get(ctx, "abc1234")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got)

	got, err = reopened.Get(ctx, "def5678")
	require.NoError(t, err)
	assert.Equal(t, "http://go.dev", got)

	page, err := reopened.List(ctx, storage.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, page.Keys, 2)
	assert.True(t, page.ListComplete)
}

func TestStorage_PutIfAbsentDoesNotAppendOnCollision(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.json")

	s, err := NewStorage(path)
	require.NoError(t, err)

	require.NoError(t, s.PutIfAbsent(ctx, "abc1234", "https://example.com"))
	err = s.PutIfAbsent(ctx, "abc1234", "https://evil.example")
	assert.ErrorIs(t, err, storage.ErrKeyExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 1)
}

func TestNewStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0644))

	_, err := NewStorage(path)
	assert.Error(t, err)
}

func TestStorage_FailedAppendLeavesIndexUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.json")

	s, err := NewStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.PutIfAbsent(ctx, "abc1234", "https://example.com"))

	// A directory in place of the log makes every append fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0755))

	err = s.PutIfAbsent(ctx, "def5678", "http://example.com")
	require.Error(t, err)

	_, err = s.Get(ctx, "def5678")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = s.Put(ctx, "abc1234", "http://example.com")
	require.Error(t, err)

	got, err := s.Get(ctx, "abc1234")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got)
}

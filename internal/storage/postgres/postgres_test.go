package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cm8me/shortener/internal/storage"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "unique violation",
			err:  &pgconn.PgError{Code: pgerrcode.UniqueViolation},
			want: true,
		},
		{
			name: "wrapped unique violation",
			err:  fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation}),
			want: true,
		},
		{
			name: "other pg error",
			err:  &pgconn.PgError{Code: pgerrcode.NotNullViolation},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("connection refused"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

func TestNewStorage_EmptyDSN(t *testing.T) {
	_, err := NewStorage(context.Background(), "", "test")
	assert.Error(t, err)
}

func TestStorage_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		t.Skip("DATABASE_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	namespace := fmt.Sprintf("test-%d", time.Now().UnixNano())
	s, err := NewStorage(ctx, dsn, namespace)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutIfAbsent(ctx, "aaaaaaa", "https://example.com"))
	assert.ErrorIs(t, s.PutIfAbsent(ctx, "aaaaaaa", "https://other.example"), storage.ErrKeyExists)
	require.NoError(t, s.PutIfAbsent(ctx, "bbbbbbb", "https://go.dev"))
	require.NoError(t, s.Put(ctx, "bbbbbbb", "http://go.dev"))

	got, err := s.Get(ctx, "bbbbbbb")
	require.NoError(t, err)
	assert.Equal(t, "http://go.dev", got)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	page, err := s.List(ctx, storage.ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Keys, 1)
	assert.Equal(t, "aaaaaaa", page.Keys[0].Name)
	assert.False(t, page.ListComplete)

	page, err = s.List(ctx, storage.ListOptions{Cursor: page.Cursor, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Keys, 1)
	assert.Equal(t, "bbbbbbb", page.Keys[0].Name)
	assert.True(t, page.ListComplete)
}

package storage

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/cm8me/shortener/internal/model"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrKeyExists is returned by PutIfAbsent when the key is already taken.
	ErrKeyExists = errors.New("key already exists")
	// ErrInvalidCursor is returned by List for a cursor the backend did not issue.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// DefaultListLimit bounds a listing page when ListOptions.Limit is not set.
const DefaultListLimit = 1000

// MetadataCreatedAt is the metadata key holding the unix creation time.
const MetadataCreatedAt = "created_at"

// ListOptions controls a single page of List.
type ListOptions struct {
	Cursor string
	Limit  int
}

// KVStore is the key-value backend holding slug to URL mappings.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)

	// PutIfAbsent writes the value only when key is not present.
	PutIfAbsent(ctx context.Context, key, value string) error

	Put(ctx context.Context, key, value string) error

	List(ctx context.Context, opts ListOptions) (model.ListPage, error)
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EncodeCursor turns the last key of a page into an opaque cursor.
func EncodeCursor(lastKey string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(lastKey))
}

// DecodeCursor returns the key a cursor was built from. An empty cursor
// decodes to an empty key, meaning the start of the keyspace.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}

	key, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", ErrInvalidCursor
	}

	return string(key), nil
}

// EffectiveLimit returns the effective page size for opts.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

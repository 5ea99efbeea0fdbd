package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/cm8me/shortener/internal/model"
	"github.com/cm8me/shortener/internal/storage"
)

// Storage is a KVStore on plain redis strings. Keys are stored as
// "<namespace>:<key>" so several namespaces can share one database.
type Storage struct {
	client *redis.Client
	prefix string
}

// NewStorage connects to the redis server at connURL (redis://...).
func NewStorage(ctx context.Context, connURL, namespace string) (*Storage, error) {
	opts, err := redis.ParseURL(connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis is not ready: %w", err)
	}

	return NewWithClient(client, namespace), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, namespace string) *Storage {
	prefix := ""
	if namespace != "" {
		prefix = namespace + ":"
	}

	return &Storage{
		client: client,
		prefix: prefix,
	}
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}

	return value, nil
}

func (s *Storage) PutIfAbsent(ctx context.Context, key, value string) error {
	ok, err := s.client.SetNX(ctx, s.prefix+key, value, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return storage.ErrKeyExists
	}

	return nil
}

func (s *Storage) Put(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// List exposes the SCAN cursor directly. As with SCAN itself, a page may be
// shorter than the limit and a key may show up on more than one page.
func (s *Storage) List(ctx context.Context, opts storage.ListOptions) (model.ListPage, error) {
	var cursor uint64
	if opts.Cursor != "" {
		c, err := strconv.ParseUint(opts.Cursor, 10, 64)
		if err != nil {
			return model.ListPage{}, storage.ErrInvalidCursor
		}
		cursor = c
	}

	keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", int64(opts.EffectiveLimit())).Result()
	if err != nil {
		return model.ListPage{}, fmt.Errorf("redis scan: %w", err)
	}

	page := model.ListPage{Keys: make([]model.KeyInfo, 0, len(keys))}
	for _, k := range keys {
		page.Keys = append(page.Keys, model.KeyInfo{Name: strings.TrimPrefix(k, s.prefix)})
	}

	if next == 0 {
		page.ListComplete = true
	} else {
		page.Cursor = strconv.FormatUint(next, 10)
	}

	return page, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) Close() error {
	return s.client.Close()
}

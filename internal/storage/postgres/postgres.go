package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/cm8me/shortener/internal/model"
	"github.com/cm8me/shortener/internal/storage"
)

// Storage is a KVStore on a single postgres table shared by namespaces.
type Storage struct {
	pool      *pgxpool.Pool
	namespace string
}

func NewStorage(ctx context.Context, dsn, namespace string) (*Storage, error) {
	if dsn == "" {
		return nil, errors.New("database connection string is empty")
	}

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &Storage{
		pool:      pool,
		namespace: namespace,
	}

	if err := s.createTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) createTable(ctx context.Context) error {
	createTableQuery := `
		CREATE TABLE IF NOT EXISTS kv (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		);
	`

	_, err := s.pool.Exec(ctx, createTableQuery)
	return err
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, "SELECT value FROM kv WHERE namespace = $1 AND key = $2", s.namespace, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("error querying key: %w", err)
	}

	return value, nil
}

// PutIfAbsent relies on the primary key; a unique violation means the key is taken.
func (s *Storage) PutIfAbsent(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, "INSERT INTO kv (namespace, key, value) VALUES ($1, $2, $3)", s.namespace, key, value)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrKeyExists
		}
		return fmt.Errorf("error inserting key: %w", err)
	}

	return nil
}

func (s *Storage) Put(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv (namespace, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value
	`, s.namespace, key, value)
	if err != nil {
		return fmt.Errorf("error upserting key: %w", err)
	}

	return nil
}

// List pages by key order; the cursor carries the last key of the previous page.
func (s *Storage) List(ctx context.Context, opts storage.ListOptions) (model.ListPage, error) {
	after, err := storage.DecodeCursor(opts.Cursor)
	if err != nil {
		return model.ListPage{}, err
	}

	limit := opts.EffectiveLimit()
	rows, err := s.pool.Query(ctx, `
		SELECT key, created_at FROM kv
		WHERE namespace = $1 AND key > $2
		ORDER BY key
		LIMIT $3
	`, s.namespace, after, limit+1)
	if err != nil {
		return model.ListPage{}, fmt.Errorf("error listing keys: %w", err)
	}
	defer rows.Close()

	page := model.ListPage{Keys: make([]model.KeyInfo, 0)}
	more := false
	for rows.Next() {
		if len(page.Keys) == limit {
			more = true
			break
		}

		var key string
		var createdAt time.Time
		if err := rows.Scan(&key, &createdAt); err != nil {
			return model.ListPage{}, fmt.Errorf("error scanning key: %w", err)
		}
		page.Keys = append(page.Keys, model.KeyInfo{
			Name:     key,
			Metadata: map[string]string{storage.MetadataCreatedAt: strconv.FormatInt(createdAt.Unix(), 10)},
		})
	}
	if err := rows.Err(); err != nil {
		return model.ListPage{}, fmt.Errorf("error iterating keys: %w", err)
	}

	if more {
		page.Cursor = storage.EncodeCursor(page.Keys[len(page.Keys)-1].Name)
	} else {
		page.ListComplete = true
	}

	return page, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

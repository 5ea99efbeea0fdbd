package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cm8me/shortener/internal/model"
	"github.com/cm8me/shortener/internal/storage"
	"github.com/cm8me/shortener/internal/storage/memory"
)

// Storage implements KVStore backed by an append-only JSONL file.
// The file is replayed into an in-memory index on start; later lines win.
type Storage struct {
	filePath string
	index    *memory.Storage
	mu       sync.Mutex
}

// NewStorage creates a file-backed storage at the provided path.
func NewStorage(filePath string) (*Storage, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	s := &Storage{
		filePath: filePath,
		index:    memory.NewStorage(),
	}

	if err := s.loadFromFile(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	return s.index.Get(ctx, key)
}

// PutIfAbsent appends the record first; the index only sees keys that reached the file.
func (s *Storage) PutIfAbsent(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.index.Get(ctx, key); err == nil {
		return storage.ErrKeyExists
	}

	if err := s.appendRecord(model.Record{Key: key, Value: value, CreatedAt: time.Now().Unix()}); err != nil {
		return err
	}

	return s.index.PutIfAbsent(ctx, key, value)
}

func (s *Storage) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendRecord(model.Record{Key: key, Value: value, CreatedAt: time.Now().Unix()}); err != nil {
		return err
	}

	return s.index.Put(ctx, key, value)
}

func (s *Storage) List(ctx context.Context, opts storage.ListOptions) (model.ListPage, error) {
	return s.index.List(ctx, opts)
}

func (s *Storage) loadFromFile() error {
	file, err := os.OpenFile(s.filePath, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	created := make(map[string]int64)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record model.Record
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}

		// overwrites keep the original creation time
		if first, ok := created[record.Key]; ok {
			record.CreatedAt = first
		} else {
			created[record.Key] = record.CreatedAt
		}
		s.index.Restore(record.Key, record.Value, record.CreatedAt)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	return nil
}

func (s *Storage) appendRecord(record model.Record) error {
	file, err := os.OpenFile(s.filePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file for writing: %w", err)
	}
	defer file.Close()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}

	return nil
}

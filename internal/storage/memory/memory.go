package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cm8me/shortener/internal/model"
	"github.com/cm8me/shortener/internal/storage"
)

type entry struct {
	value     string
	createdAt int64
}

// Storage implements an in-memory KVStore for testing and development.
type Storage struct {
	entries map[string]entry
	mutex   sync.RWMutex
	now     func() time.Time
}

// NewStorage creates a new in-memory storage instance.
func NewStorage() *Storage {
	return &Storage{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get retrieves the value stored under key.
func (s *Storage) Get(_ context.Context, key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	e, found := s.entries[key]
	if !found {
		return "", storage.ErrNotFound
	}

	return e.value, nil
}

// PutIfAbsent stores value under key unless the key is already taken.
func (s *Storage) PutIfAbsent(_ context.Context, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.entries[key]; exists {
		return storage.ErrKeyExists
	}

	s.entries[key] = entry{value: value, createdAt: s.now().Unix()}
	return nil
}

// Put stores value under key, replacing any previous value.
func (s *Storage) Put(_ context.Context, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.set(key, value, s.now().Unix())
	return nil
}

// Restore puts an entry with a known creation time; used when replaying a log.
func (s *Storage) Restore(key, value string, createdAt int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries[key] = entry{value: value, createdAt: createdAt}
}

func (s *Storage) set(key, value string, createdAt int64) {
	if existing, ok := s.entries[key]; ok {
		createdAt = existing.createdAt
	}
	s.entries[key] = entry{value: value, createdAt: createdAt}
}

// List returns keys in lexical order, starting after the key encoded in the cursor.
func (s *Storage) List(_ context.Context, opts storage.ListOptions) (model.ListPage, error) {
	after, err := storage.DecodeCursor(opts.Cursor)
	if err != nil {
		return model.ListPage{}, err
	}

	s.mutex.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		if k > after {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	limit := opts.EffectiveLimit()
	page := model.ListPage{Keys: make([]model.KeyInfo, 0, min(limit, len(keys)))}
	for i, k := range keys {
		if i == limit {
			break
		}
		page.Keys = append(page.Keys, model.KeyInfo{
			Name: k,
			Metadata: map[string]string{
				storage.MetadataCreatedAt: strconv.FormatInt(s.entries[k].createdAt, 10),
			},
		})
	}
	s.mutex.RUnlock()

	if len(keys) > limit {
		page.Cursor = storage.EncodeCursor(page.Keys[len(page.Keys)-1].Name)
	} else {
		page.ListComplete = true
	}

	return page, nil
}

// Len returns the number of stored keys.
func (s *Storage) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.entries)
}

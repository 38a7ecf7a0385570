package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ShayCichocki/quarry/pkg/models"
)

// Cache keeps search results in badger with a TTL so repeated questions in
// and across runs do not spend API calls.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenCache opens a cache in dir. An empty dir keeps the cache in memory.
func OpenCache(dir string, ttl time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open search cache: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{db: db, ttl: ttl}, nil
}

func cacheKey(key string) []byte {
	return []byte("search:" + key)
}

// Get returns the cached snippets for key, if present and unexpired.
func (c *Cache) Get(key string) ([]models.Snippet, bool) {
	var snippets []models.Snippet
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snippets)
		})
	})
	if err != nil {
		return nil, false
	}
	return snippets, true
}

// Put stores snippets under key.
func (c *Cache) Put(key string, snippets []models.Snippet) error {
	data, err := json.Marshal(snippets)
	if err != nil {
		return fmt.Errorf("marshal snippets: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(cacheKey(key), data).WithTTL(c.ttl))
	})
}

// Delete removes key from the cache.
func (c *Cache) Delete(key string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(cacheKey(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

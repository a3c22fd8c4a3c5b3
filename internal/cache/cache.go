// Package cache implements the optional request-scoped plan/candidate
// cache (ENABLE_CACHE/CACHE_TTL_SECONDS, SPEC_FULL.md domain stack),
// grounded on the teacher's BadgerRouterCacheStore: an embedded,
// no-network-dependency store with native TTL expiry, keyed by a
// corpus-hash so a schema or query change automatically invalidates stale
// entries rather than needing an explicit bust.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const defaultTTL = 1 * time.Hour
const keyPrefix = "toolscout/plan/v1/"

var errCacheMiss = errors.New("cache: miss")

// Store is a TTL-bounded cache from a query+schema-version key to an
// arbitrary gob-encodable payload (typically a serialized QueryPlan or
// candidate list), used to skip repeat planning/execution work for
// identical queries within the TTL window.
//
// Thread Safety: Badger transactions are safe for concurrent use.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

func NewStore(db *badger.DB, ttl time.Duration, logger *slog.Logger) *Store {
	if db == nil {
		panic("cache: db must not be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, ttl: ttl, logger: logger}
}

// Key derives a cache key from a normalized query string and the schema
// version driving this request, so a schema change invalidates old entries
// automatically rather than requiring an explicit cache bust.
func Key(schemaVersion, query string) string {
	h := sha256.Sum256([]byte(schemaVersion + "\t" + query))
	return keyPrefix + hex.EncodeToString(h[:])
}

// Get decodes a previously stored value into dest (a pointer). ok is false
// on a cache miss; err is non-nil only on a genuine storage/decode fault.
func (s *Store) Get(_ context.Context, key string, dest any) (ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(dest)
		})
	})
	if errors.Is(err, errCacheMiss) {
		return false, nil
	}
	if err != nil {
		s.logger.Warn("cache: get failed", slog.String("key", key), slog.String("error", err.Error()))
		return false, fmt.Errorf("cache get: %w", err)
	}
	return true, nil
}

// Set stores value under key with the store's configured TTL.
func (s *Store) Set(_ context.Context, key string, value any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return fmt.Errorf("cache: encoding value: %w", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), buf.Bytes()).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("cache: set failed: %w", err)
	}
	return nil
}

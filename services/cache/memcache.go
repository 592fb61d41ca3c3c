package cache

import (
	"crypto/sha1"
	"encoding/hex"
	stderrors "errors"
	"time"

	"sjsage522/parkscraper/pkg/errors"

	"github.com/bradfitz/gomemcache/memcache"
)

// maxValueSize is memcached's default item size limit
const maxValueSize = 1024 * 1024

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client    *memcache.Client
	namespace string
}

// NewMemcacheService creates a new memcache service; keys are prefixed with namespace
func NewMemcacheService(serverAddr, namespace string) *MemcacheService {
	return &MemcacheService{
		client:    memcache.New(serverAddr),
		namespace: namespace,
	}
}

// Ping checks that memcached is reachable
func (m *MemcacheService) Ping() error {
	if err := m.client.Ping(); err != nil {
		return errors.NewCache("memcache", "server unreachable", err)
	}
	return nil
}

// key hashes arbitrary keys (URLs) into memcached's 250-byte, space-free key space
func (m *MemcacheService) key(key string) string {
	sum := sha1.Sum([]byte(key))
	return m.namespace + ":" + hex.EncodeToString(sum[:])
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(m.key(key))
	if stderrors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, errors.NewCache(key, "memcache get failed", err)
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	if len(value) > maxValueSize {
		return errors.NewCache(key, "value exceeds memcache item size", nil)
	}

	err := m.client.Set(&memcache.Item{
		Key:        m.key(key),
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
	if err != nil {
		return errors.NewCache(key, "memcache set failed", err)
	}
	return nil
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(m.key(key))
	if err != nil && !stderrors.Is(err, memcache.ErrCacheMiss) {
		return errors.NewCache(key, "memcache delete failed", err)
	}
	return nil
}

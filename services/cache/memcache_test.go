package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211", "parkscraper-test")

	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	key := "https://www.cpwshop.com/camping/r/campsiteDetails.page?parkID=50025&siteID=1073&arvdate=06/16/2020"

	// Set a value
	err := mc.Set(key, []byte("<html></html>"), 5*time.Second)
	assert.NoError(t, err)

	// Get the value
	value, err := mc.Get(key)
	assert.NoError(t, err)
	assert.Equal(t, "<html></html>", string(value))

	// Delete the value
	assert.NoError(t, mc.Delete(key))

	// Try to get the deleted value
	_, err = mc.Get(key)
	assert.ErrorIs(t, err, ErrMiss)

	// Deleting a missing key is not an error
	assert.NoError(t, mc.Delete(key))
}

func TestMemcacheService_Key(t *testing.T) {
	mc := NewMemcacheService("localhost:11211", "ns")

	long := "https://example.com/" + strings.Repeat("a", 400) + " with spaces"
	key := mc.key(long)
	assert.True(t, strings.HasPrefix(key, "ns:"))
	assert.Len(t, key, len("ns:")+40)
	assert.NotContains(t, key, " ")
	assert.Equal(t, key, mc.key(long))
}

func TestMemcacheService_SetTooLarge(t *testing.T) {
	mc := NewMemcacheService("localhost:11211", "ns")
	err := mc.Set("big", make([]byte, maxValueSize+1), time.Second)
	assert.Error(t, err)
}

func TestMemoryCache(t *testing.T) {
	now := time.Date(2020, time.June, 15, 12, 0, 0, 0, time.UTC)
	mc := NewMemoryCache()
	mc.now = func() time.Time { return now }

	_, err := mc.Get("missing")
	assert.ErrorIs(t, err, ErrMiss)

	assert.NoError(t, mc.Set("page", []byte("html"), time.Minute))
	value, err := mc.Get("page")
	assert.NoError(t, err)
	assert.Equal(t, "html", string(value))

	now = now.Add(2 * time.Minute)
	_, err = mc.Get("page")
	assert.ErrorIs(t, err, ErrMiss)

	assert.NoError(t, mc.Set("forever", []byte("x"), 0))
	now = now.Add(24 * time.Hour)
	_, err = mc.Get("forever")
	assert.NoError(t, err)

	assert.NoError(t, mc.Delete("forever"))
	_, err = mc.Get("forever")
	assert.ErrorIs(t, err, ErrMiss)
}

package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetdispatch/internal/adapters/cache"
)

type countingRecorder struct {
	hits, misses int
}

func (r *countingRecorder) RecordCache(hit bool) {
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func TestTTLCache_SetGet(t *testing.T) {
	c := cache.New(time.Minute)

	c.Set("vehicles:list:", []string{"veh-1"}, 0)

	value, ok := c.Get("vehicles:list:")
	require.True(t, ok)
	assert.Equal(t, []string{"veh-1"}, value)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestTTLCache_EntryExpires(t *testing.T) {
	c := cache.New(time.Minute)

	c.Set("short", "lived", 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
}

func TestTTLCache_DeleteByPrefix(t *testing.T) {
	// Arrange
	c := cache.New(time.Minute)
	c.Set("faults:list:", 1, 0)
	c.Set("faults:list:?status=WAITING", 2, 0)
	c.Set("vehicles:list:", 3, 0)

	// Act
	c.DeleteByPrefix("faults:")

	// Assert
	_, ok := c.Get("faults:list:")
	assert.False(t, ok)
	_, ok = c.Get("faults:list:?status=WAITING")
	assert.False(t, ok)
	_, ok = c.Get("vehicles:list:")
	assert.True(t, ok)
}

func TestTTLCache_StatsAndRecorder(t *testing.T) {
	// Arrange
	c := cache.New(time.Minute)
	rec := &countingRecorder{}
	c.SetRecorder(rec)
	c.Set("key", "value", 0)

	// Act
	c.Get("key")
	c.Get("key")
	c.Get("missing")

	// Assert
	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 2, rec.hits)
	assert.Equal(t, 1, rec.misses)
}

func TestTTLCache_Len(t *testing.T) {
	c := cache.New(time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	assert.Equal(t, 2, c.Len())

	c.Delete("a")
	assert.Equal(t, 1, c.Len())
}

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_GetSetDelete(t *testing.T) {
	c := New[string, int](time.Minute, time.Minute)
	defer c.Close()

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := New[string, int](time.Second, time.Hour)
	defer c.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	now = now.Add(2 * time.Second)

	_, ok := c.Get("a")
	assert.False(t, ok, "expired entries are never returned")

	c.evictExpired()
	assert.Empty(t, c.entries)
}

func TestTTLCache_CloseTwice(t *testing.T) {
	c := New[string, int](time.Second, time.Second)
	c.Close()
	assert.NotPanics(t, c.Close)
}

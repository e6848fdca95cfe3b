package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/facet/pkg/types"
)

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	clock := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	reqs := []types.Requisite{{ID: 101, TypeID: types.TypeShort, Order: 1}}
	c.Put("acme", 100, reqs)

	got, ok := c.Get("acme", 100)
	assert.True(t, ok)
	assert.Equal(t, reqs, got)

	// Just before the TTL the entry still serves.
	clock = clock.Add(time.Minute)
	_, ok = c.Get("acme", 100)
	assert.True(t, ok)

	// Past the TTL it misses.
	clock = clock.Add(time.Second)
	_, ok = c.Get("acme", 100)
	assert.False(t, ok)
}

func TestCacheInvalidateIsScoped(t *testing.T) {
	c := NewCache(time.Minute)
	c.Put("acme", 100, []types.Requisite{{ID: 101}})
	c.Put("acme", 200, []types.Requisite{{ID: 201}})
	c.Put("other", 100, []types.Requisite{{ID: 301}})

	c.Invalidate("acme", 100)

	_, ok := c.Get("acme", 100)
	assert.False(t, ok)
	_, ok = c.Get("acme", 200)
	assert.True(t, ok)
	_, ok = c.Get("other", 100)
	assert.True(t, ok, "same type id under another tenant is untouched")

	c.Reset()
	_, ok = c.Get("acme", 200)
	assert.False(t, ok)
}

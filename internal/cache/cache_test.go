package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsBeforeTTLAndMissesAfter(t *testing.T) {
	c := New(10)
	c.Set("k", "v", 50*time.Millisecond)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Get("k")
	assert.False(t, ok)
	// expired entry is purged, not just hidden
	assert.Equal(t, 0, c.Len())
}

func TestGetFreshBoundsEntryAge(t *testing.T) {
	c := New(10)
	c.Set("k", "v", time.Minute)

	time.Sleep(60 * time.Millisecond)

	// within TTL but older than the per-read bound
	_, ok := c.GetFresh("k", 20*time.Millisecond)
	assert.False(t, ok)

	// the entry survives for readers with a laxer bound
	v, ok := c.GetFresh("k", time.Second)
	require.True(t, ok)
	assert.Equal(t, "v", v)

	// zero bound accepts any unexpired entry
	_, ok = c.GetFresh("k", 0)
	assert.True(t, ok)
}

func TestEvictsOldestInsertedOnOverflow(t *testing.T) {
	c := New(2)
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	// reading "a" must not save it: insertion order, not LRU
	_, _ = c.Get("a")

	c.Set("c", 3, time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestOverwriteKeepsInsertionPosition(t *testing.T) {
	c := New(2)
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("a", 10, time.Minute) // overwrite, "a" is still oldest-inserted

	c.Set("c", 3, time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestKeyNamespacing(t *testing.T) {
	assert.Equal(t, "store1:shopify:product:42", Key("store1", "shopify", "product", "42"))
}

func TestDeletePrefix(t *testing.T) {
	c := New(10)
	c.Set(Key("s1", "shopify", "product", "1"), 1, time.Minute)
	c.Set(Key("s1", "shopify", "customer", "2"), 2, time.Minute)
	c.Set(Key("s2", "shopify", "product", "1"), 3, time.Minute)

	removed := c.DeletePrefix(Key("s1", "shopify"))
	assert.Equal(t, 2, removed)

	_, ok := c.Get(Key("s2", "shopify", "product", "1"))
	assert.True(t, ok)
}

func TestFlush(t *testing.T) {
	c := New(10)
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Flush()
	assert.Equal(t, 0, c.Len())

	// eviction bookkeeping survives a flush
	c.Set("c", 3, time.Minute)
	_, ok := c.Get("c")
	assert.True(t, ok)
}

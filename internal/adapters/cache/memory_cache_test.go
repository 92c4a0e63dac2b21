package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache[int]()

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	c.Put(ctx, "a", 1)
	c.Put(ctx, "b", 2)
	c.Put(ctx, "a", 3)

	v, ok := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, c.Len())

	c.Clear(ctx)
	assert.Zero(t, c.Len())
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
}

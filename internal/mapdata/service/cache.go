package service

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const cacheTTL = 30 * time.Second

// cache is a thin TTL wrapper over ristretto keyed by table name.
type cache[V any] struct {
	c *ristretto.Cache[string, V]
}

func newCache[V any]() (*cache[V], error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: 1000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &cache[V]{c: c}, nil
}

func (c *cache[V]) get(key string) (V, bool) {
	return c.c.Get(key)
}

func (c *cache[V]) set(key string, v V, cost int64) {
	if cost < 1 {
		cost = 1
	}
	c.c.SetWithTTL(key, v, cost, cacheTTL)
	c.c.Wait()
}

func (c *cache[V]) del(key string) {
	c.c.Del(key)
}

func (c *cache[V]) clear() {
	c.c.Clear()
}

func (c *cache[V]) close() {
	c.c.Close()
}

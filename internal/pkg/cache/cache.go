package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// item 包装缓存数据和过期时间
type item[V any] struct {
	data      V
	expiresAt time.Time
}

// TTLCache 带过期时间的本地 LRU 缓存。
// 每次 Purge 递增代数，SetIfGeneration 丢弃 Purge 之前读出的数据。
type TTLCache[K comparable, V any] struct {
	lru *lru.Cache[K, item[V]]
	ttl time.Duration
	now func() time.Time

	mu         sync.Mutex
	generation uint64
}

func New[K comparable, V any](size int, ttl time.Duration) (*TTLCache[K, V], error) {
	l, err := lru.New[K, item[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache[K, V]{lru: l, ttl: ttl, now: time.Now}, nil
}

// Set 写入缓存
func (c *TTLCache[K, V]) Set(key K, data V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(key, data)
}

// Generation 当前代数，读取数据源之前获取
func (c *TTLCache[K, V]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// SetIfGeneration 代数未变时写入，期间发生过 Purge 则返回 false
func (c *TTLCache[K, V]) SetIfGeneration(generation uint64, key K, data V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	c.add(key, data)
	return true
}

func (c *TTLCache[K, V]) add(key K, data V) {
	c.lru.Add(key, item[V]{
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Get 不存在或已过期时返回 false
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	val, ok := c.lru.Get(key)
	if !ok {
		var zero V
		return zero, false
	}

	if c.now().After(val.expiresAt) {
		c.lru.Remove(key)
		var zero V
		return zero, false
	}

	return val.data, true
}

// Delete 删除指定缓存
func (c *TTLCache[K, V]) Delete(key K) {
	c.lru.Remove(key)
}

// Purge 清空全部缓存并递增代数
func (c *TTLCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.lru.Purge()
}

// Len 当前条目数（含未清理的过期条目）
func (c *TTLCache[K, V]) Len() int {
	return c.lru.Len()
}

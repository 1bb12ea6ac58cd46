/*
 * Copyright 2023 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cache provides the in-memory cache used for compiled flow graphs.
package cache

import (
	"reflect"
	"strings"
	"sync"
	"time"
)

// MemoryCache is an in-memory cache implementation.
// It stores key-value pairs with optional expiration.
type MemoryCache struct {
	items      map[string]item
	mu         sync.RWMutex
	stopGc     chan struct{}
	ticker     *time.Ticker
	gcInterval time.Duration
	// OnEvict 过期或者删除时回调，用于释放资源
	OnEvict func(key string, value interface{})
}

// item 缓存项，expiration 为 Unix nano 时间戳，0 表示不过期
type item struct {
	value      interface{}
	expiration int64
	ttl        time.Duration
}

// NewMemoryCache creates a new MemoryCache instance.
// Garbage collection starts lazily when the first expirable item is stored.
func NewMemoryCache(gcInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		items:      make(map[string]item),
		gcInterval: time.Minute * 5,
	}
	if gcInterval > 0 {
		c.gcInterval = gcInterval
	}
	return c
}

// Set stores a value. ttl<=0 means the item never expires.
// A replaced value is passed to OnEvict unless it is the same value.
func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}
	c.mu.Lock()
	old, replaced := c.items[key]
	c.items[key] = item{value: value, expiration: expiration, ttl: ttl}
	shouldStartGC := expiration > 0 && c.ticker == nil
	c.mu.Unlock()

	if replaced && !sameValue(old.value, value) {
		c.evict(key, old.value)
	}
	if shouldStartGC {
		c.StartGC()
	}
}

// Get retrieves a value, the second return is false when the key is missing or expired.
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, found := c.items[key]
	if !found || it.expired(time.Now().UnixNano()) {
		return nil, false
	}
	return it.value, true
}

// GetAndTouch retrieves a value and restarts its expiration with ttl.
// ttl<=0 reuses the ttl the item was stored with.
func (c *MemoryCache) GetAndTouch(key string, ttl time.Duration) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	it, found := c.items[key]
	if !found || it.expired(now.UnixNano()) {
		return nil, false
	}
	if ttl <= 0 {
		ttl = it.ttl
	}
	if it.expiration > 0 && ttl > 0 {
		it.expiration = now.Add(ttl).UnixNano()
		it.ttl = ttl
		c.items[key] = it
	}
	return it.value, true
}

// Has checks if the key exists and has not expired
func (c *MemoryCache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	it, ok := c.items[key]
	delete(c.items, key)
	c.mu.Unlock()
	if ok {
		c.evict(key, it.value)
	}
}

// DeleteByPrefix removes all cache items with the given prefix.
func (c *MemoryCache) DeleteByPrefix(prefix string) {
	removed := make(map[string]interface{})
	c.mu.Lock()
	for k, v := range c.items {
		if strings.HasPrefix(k, prefix) {
			removed[k] = v.value
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
	for k, v := range removed {
		c.evict(k, v)
	}
}

// Len 未过期的缓存项数量
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := time.Now().UnixNano()
	n := 0
	for _, v := range c.items {
		if !v.expired(now) {
			n++
		}
	}
	return n
}

// StartGC starts the garbage collection goroutine if it is not running.
func (c *MemoryCache) StartGC() {
	c.mu.Lock()
	if c.ticker != nil {
		c.mu.Unlock()
		return
	}
	ticker := time.NewTicker(c.gcInterval)
	stop := make(chan struct{})
	c.ticker = ticker
	c.stopGc = stop
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				c.deleteExpired()
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()
}

// StopGC stops the garbage collection goroutine. Safe to call multiple times.
func (c *MemoryCache) StopGC() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticker != nil {
		close(c.stopGc)
		c.ticker = nil
		c.stopGc = nil
	}
}

// deleteExpired 先在读锁下收集过期的key，再在写锁下删除
func (c *MemoryCache) deleteExpired() {
	now := time.Now().UnixNano()
	c.mu.RLock()
	var expiredKeys []string
	for k, v := range c.items {
		if v.expired(now) {
			expiredKeys = append(expiredKeys, k)
		}
	}
	c.mu.RUnlock()

	removed := make(map[string]interface{})
	c.mu.Lock()
	for _, k := range expiredKeys {
		//删除前重新检查，期间可能已经被更新
		if it, found := c.items[k]; found && it.expired(now) {
			removed[k] = it.value
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
	for k, v := range removed {
		c.evict(k, v)
	}
}

func (c *MemoryCache) evict(key string, value interface{}) {
	if c.OnEvict != nil {
		c.OnEvict(key, value)
	}
}

// sameValue 不可比较的类型视为不同
func sameValue(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	return a == b
}

func (it item) expired(now int64) bool {
	return it.expiration > 0 && now > it.expiration
}

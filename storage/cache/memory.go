// Package cache holds core.Cache implementations.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/trezcool/absento/core"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Memory is a process local core.Cache. Expired entries are dropped lazily, on read and on write.
type Memory struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

var _ core.Cache = (*Memory)(nil) // interface compliance check

func NewMemory() *Memory {
	return &Memory{data: make(map[string]entry), now: time.Now}
}

func (c *Memory) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl is a no-op.
func (c *Memory) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.data {
		if !now.Before(e.expiresAt) {
			delete(c.data, k)
		}
	}
	c.data[key] = entry{value: value, expiresAt: now.Add(ttl)}
}

func (c *Memory) DeletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
}

func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	data      []byte
	timestamp time.Time
	ttl       time.Duration
}

func (e memEntry) expired(now time.Time) bool {
	return now.Sub(e.timestamp) >= e.ttl
}

// Memory 进程内 TTL 缓存,读到过期项时直接删除
type Memory struct {
	mu    sync.RWMutex
	items map[string]memEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		items: make(map[string]memEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get 返回未过期的数据
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if e.expired(m.now()) {
		m.mu.Lock()
		// 加写锁期间可能已被重新写入
		if cur, ok := m.items[key]; ok && cur.expired(m.now()) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.data, true
}

// Set 无条件覆盖
func (m *Memory) Set(key string, data []byte) {
	m.SetTTL(key, data, m.ttl)
}

func (m *Memory) SetTTL(key string, data []byte, ttl time.Duration) {
	m.mu.Lock()
	m.items[key] = memEntry{data: data, timestamp: m.now(), ttl: ttl}
	m.mu.Unlock()
}

func (m *Memory) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	delete(m.items, key)
	return ok
}

// DeleteMatching 删除 key 中包含 pattern 的项,pattern 为空时清空
func (m *Memory) DeleteMatching(pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.items {
		if pattern == "" || strings.Contains(k, pattern) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

// Keys 返回按字典序排列的 key
func (m *Memory) Keys() []string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Cleanup 清除所有过期项
func (m *Memory) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, e := range m.items {
		if e.expired(now) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

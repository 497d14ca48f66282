package cache

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"ai-news/internal/logger"
	"ai-news/internal/model"
)

// Persistent 持久化缓存层需要实现的操作
type Persistent interface {
	FindValid(ctx context.Context, key string) (*model.CacheEntry, error)
	Save(ctx context.Context, key string, data []byte, sources model.SourceCounts, isMock bool, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteMatching(ctx context.Context, pattern string) (int64, error)
	Stats(ctx context.Context) (StoreStats, error)
}

// Tier 命中的缓存层
type Tier string

const (
	TierMemory     Tier = "memory"
	TierPersistent Tier = "persistent"
)

// Hit 一次缓存命中
type Hit struct {
	Data []byte
	Tier Tier
}

// Layered 先查内存再查数据库;数据库命中会回填内存
type Layered struct {
	mem           *Memory
	store         Persistent
	persistentTTL time.Duration
	now           func() time.Time
	log           *slog.Logger
}

func NewLayered(mem *Memory, store Persistent, persistentTTL time.Duration) *Layered {
	return &Layered{
		mem:           mem,
		store:         store,
		persistentTTL: persistentTTL,
		now:           time.Now,
		log:           logger.With("cache"),
	}
}

// Get 后端出错或超时时按未命中处理
func (l *Layered) Get(ctx context.Context, key string) (Hit, bool) {
	if data, ok := l.mem.Get(key); ok {
		return Hit{Data: data, Tier: TierMemory}, true
	}
	if l.store == nil {
		return Hit{}, false
	}

	entry, err := l.store.FindValid(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			l.log.Warn("persistent cache read failed", "key", key, "err", err)
		}
		return Hit{}, false
	}

	// 回填内存时不超过持久层的过期时间
	ttl := l.mem.ttl
	if remaining := entry.ExpiresAt.Sub(l.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl > 0 {
		l.mem.SetTTL(key, []byte(entry.Data), ttl)
	}
	return Hit{Data: []byte(entry.Data), Tier: TierPersistent}, true
}

// Set 写入两层,持久层失败只记录日志
func (l *Layered) Set(ctx context.Context, key string, data []byte, sources model.SourceCounts, isMock bool) {
	l.mem.Set(key, data)
	if l.store == nil {
		return
	}
	if err := l.store.Save(ctx, key, data, sources, isMock, l.persistentTTL); err != nil {
		l.log.Warn("persistent cache write failed", "key", key, "err", err)
	}
}

// Invalidate 从两层删除指定 key
func (l *Layered) Invalidate(ctx context.Context, key string) {
	l.mem.Delete(key)
	if l.store == nil {
		return
	}
	if err := l.store.Delete(ctx, key); err != nil {
		l.log.Warn("persistent cache delete failed", "key", key, "err", err)
	}
}

// InvalidateMatching 删除 key 包含 pattern 的项,pattern 为空时清空两层
func (l *Layered) InvalidateMatching(ctx context.Context, pattern string) (memory int, persistent int64, err error) {
	memory = l.mem.DeleteMatching(pattern)
	if l.store != nil {
		persistent, err = l.store.DeleteMatching(ctx, pattern)
	}
	return memory, persistent, err
}

// Stats 两层缓存的统计信息
type Stats struct {
	Memory struct {
		Size       int      `json:"size"`
		SampleKeys []string `json:"sampleKeys"`
	} `json:"memory"`
	Persistent *StoreStats `json:"persistent,omitempty"`
	Error      string      `json:"error,omitempty"`
}

func (l *Layered) Stats(ctx context.Context) Stats {
	var st Stats
	keys := l.mem.Keys()
	st.Memory.Size = len(keys)
	if len(keys) > sampleKeyLimit {
		keys = keys[:sampleKeyLimit]
	}
	st.Memory.SampleKeys = keys

	if l.store != nil {
		ps, err := l.store.Stats(ctx)
		if err != nil {
			st.Error = err.Error()
		} else {
			st.Persistent = &ps
		}
	}
	return st
}

// Key 由排序后的请求参数和缓存格式版本生成,空值参数忽略
func Key(params map[string]string, version string) string {
	names := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("news:")
	b.WriteString(version)
	for _, k := range names {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// IsStaleEmpty 缓存记录某个来源池为 0 而该池当前非空时,认为缓存是冷启动留下的空结果
func IsStaleEmpty(cached model.SourceCounts, live map[model.Origin]int) bool {
	for origin, n := range live {
		if n > 0 && cached[string(origin)] == 0 {
			return true
		}
	}
	return false
}

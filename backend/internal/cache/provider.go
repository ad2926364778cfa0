package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Provider 字节级缓存后端 + 计数器
// pkg/redis.Client 直接满足该接口，用于多实例共享；MemoryProvider 用于单实例
//
// 计数器与缓存条目必须位于同一后端，否则其他实例的失效对本实例不可见
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	// Incr 原子递增每个计数器，并把过期时间重置为 ttl
	Incr(ctx context.Context, ttl time.Duration, keys ...string) error
	// Counters 批量读取计数器，缺失的键读为 0
	Counters(ctx context.Context, keys ...string) ([]int64, error)
	// Expire 延长已存在键的过期时间，缺失的键忽略
	Expire(ctx context.Context, ttl time.Duration, keys ...string) error
}

// MemoryProvider 基于过期 LRU 的进程内缓存
//
// TTL 在创建时固定，方法的 ttl 参数被忽略：条目按 ttl 过期，计数器按 2*ttl 过期。
// 计数器不受容量淘汰，只随过期回收。
type MemoryProvider struct {
	lru *expirable.LRU[string, []byte]

	mu       sync.Mutex
	counters *expirable.LRU[string, int64]
}

// NewMemoryProvider 创建进程内缓存，size<=0 时使用 1024
func NewMemoryProvider(size int, ttl time.Duration) *MemoryProvider {
	if size <= 0 {
		size = 1024
	}
	return &MemoryProvider{
		lru:      expirable.NewLRU[string, []byte](size, nil, ttl),
		counters: expirable.NewLRU[string, int64](0, nil, 2*ttl),
	}
}

func (p *MemoryProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.lru.Get(key)
	return v, ok, nil
}

func (p *MemoryProvider) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	p.lru.Add(key, val)
	return nil
}

func (p *MemoryProvider) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		p.lru.Remove(k)
	}
	return nil
}

func (p *MemoryProvider) Incr(_ context.Context, _ time.Duration, keys ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, k := range keys {
		n, _ := p.counters.Peek(k)
		p.counters.Add(k, n+1)
	}
	return nil
}

func (p *MemoryProvider) Counters(_ context.Context, keys ...string) ([]int64, error) {
	out := make([]int64, len(keys))
	for i, k := range keys {
		out[i], _ = p.counters.Peek(k)
	}
	return out, nil
}

func (p *MemoryProvider) Expire(_ context.Context, _ time.Duration, keys ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, k := range keys {
		if n, ok := p.counters.Peek(k); ok {
			p.counters.Add(k, n)
		}
	}
	return nil
}

// Len 当前缓存条目数（不含计数器）
func (p *MemoryProvider) Len() int {
	return p.lru.Len()
}

// CounterLen 当前计数器个数
func (p *MemoryProvider) CounterLen() int {
	return p.counters.Len()
}

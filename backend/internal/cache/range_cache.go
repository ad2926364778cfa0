package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"bandroom/backend/internal/model"
)

const (
	keyPrefix = "calendar:slice:"
	genPrefix = "calendar:gen:"
)

// Stamp 版本戳：计算切片前对区间内每个日期代数的快照
// 代数保存在 Provider 中，共享同一后端的实例看到同一组代数
type Stamp struct {
	Gens map[string]int64 `json:"gens"`
}

// Key 版本戳的稳定文本表示，用于合并同一版本的并发计算
func (s Stamp) Key() string {
	dates := make([]string, 0, len(s.Gens))
	for d := range s.Gens {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var b strings.Builder
	for i, d := range dates {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(d)
		b.WriteByte('=')
		b.WriteString(strconv.FormatInt(s.Gens[d], 10))
	}
	return b.String()
}

type entry struct {
	Stamp   Stamp           `json:"stamp"`
	Payload json.RawMessage `json:"payload"`
}

// RangeCache 日历区间缓存 + 失效协调
//
// 读路径：Snapshot → 查库计算 → Put（仅当快照仍为最新时写入）
// 写路径：提交后 Invalidate(date)，递增该日期代数并驱逐反向索引中的全部区间键
//
// 命中时按条目自带的版本戳逐日与 Provider 中的代数比对，不一致视为未命中。
// 因此驱逐失败、其他实例写入或与读者竞争写入的旧条目都不会被读到，最多造成一次重新计算。
//
// 代数按 2*ttl 过期，Put 时续期，保证代数存活不短于引用它的条目。
// 反向索引只记录本实例写入的键，过期项定期清理。
type RangeCache struct {
	provider Provider
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	index     map[model.Date]map[model.DateRange]time.Time // 值为条目过期时间
	lastSweep time.Time
}

// NewRangeCache 创建区间缓存
func NewRangeCache(provider Provider, ttl time.Duration, logger *zap.Logger) *RangeCache {
	return &RangeCache{
		provider: provider,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		index:    make(map[model.Date]map[model.DateRange]time.Time),
	}
}

func cacheKey(r model.DateRange) string {
	return keyPrefix + r.Key()
}

func genKey(d model.Date) string {
	return genPrefix + d.String()
}

func genKeys(days []model.Date) []string {
	keys := make([]string, len(days))
	for i, d := range days {
		keys[i] = genKey(d)
	}
	return keys
}

func (c *RangeCache) genTTL() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	return 2 * c.ttl
}

// Snapshot 读取区间内每个日期的当前代数；必须在读取数据库之前调用
// 后端不可用时返回错误，调用方应跳过缓存直接计算
func (c *RangeCache) Snapshot(ctx context.Context, r model.DateRange) (Stamp, error) {
	days := r.Days()
	gens, err := c.provider.Counters(ctx, genKeys(days)...)
	if err != nil {
		c.logger.Warn("读取日历代数失败", zap.String("range", r.String()), zap.Error(err))
		return Stamp{}, err
	}

	stamp := Stamp{Gens: make(map[string]int64, len(days))}
	for i, d := range days {
		stamp.Gens[d.String()] = gens[i]
	}
	return stamp, nil
}

// Get 读取区间切片；未命中、后端错误或版本戳过期都返回 false
func (c *RangeCache) Get(ctx context.Context, r model.DateRange) ([]byte, bool) {
	key := cacheKey(r)
	raw, ok, err := c.provider.Get(ctx, key)
	if err != nil {
		c.logger.Warn("读取日历缓存失败", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("日历缓存条目损坏", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	if !c.isCurrent(ctx, r, e.Stamp) {
		return nil, false
	}
	return e.Payload, true
}

// Put 写入区间切片并登记反向索引；stamp 已过期时放弃写入并返回 false
func (c *RangeCache) Put(ctx context.Context, r model.DateRange, stamp Stamp, payload []byte) bool {
	if len(stamp.Gens) == 0 || !c.isCurrent(ctx, r, stamp) {
		c.logger.Debug("计算期间区间已变更，放弃写入缓存", zap.String("range", r.String()))
		return false
	}

	days := r.Days()
	if err := c.provider.Expire(ctx, c.genTTL(), genKeys(days)...); err != nil {
		c.logger.Warn("续期日历代数失败", zap.String("range", r.String()), zap.Error(err))
		return false
	}

	data, err := json.Marshal(entry{Stamp: stamp, Payload: payload})
	if err != nil {
		c.logger.Warn("序列化日历缓存失败", zap.Error(err))
		return false
	}

	key := cacheKey(r)
	if err := c.provider.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("写入日历缓存失败", zap.String("key", key), zap.Error(err))
		return false
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(now)
	for _, d := range days {
		keys, ok := c.index[d]
		if !ok {
			keys = make(map[model.DateRange]time.Time)
			c.index[d] = keys
		}
		keys[r] = now.Add(c.ttl)
	}
	return true
}

// Invalidate 在变更提交后调用：递增每个日期的代数，驱逐本实例登记的覆盖这些日期的区间键
// 失败仅记录日志，不影响调用方
func (c *RangeCache) Invalidate(ctx context.Context, dates ...model.Date) {
	if len(dates) == 0 {
		return
	}
	// 请求上下文可能已结束，失效不随之取消
	ctx = context.WithoutCancel(ctx)

	if err := c.provider.Incr(ctx, c.genTTL(), genKeys(dates)...); err != nil {
		c.logger.Error("递增日历代数失败", zap.Int("dates", len(dates)), zap.Error(err))
	}

	c.mu.Lock()
	evict := make(map[model.DateRange]struct{})
	for _, d := range dates {
		for r := range c.index[d] {
			evict[r] = struct{}{}
		}
	}
	for r := range evict {
		c.unindexLocked(r)
	}
	c.mu.Unlock()

	if len(evict) == 0 {
		return
	}

	keys := make([]string, 0, len(evict))
	for r := range evict {
		keys = append(keys, cacheKey(r))
	}

	if err := c.provider.Del(ctx, keys...); err != nil {
		c.logger.Warn("驱逐日历缓存失败",
			zap.Strings("keys", keys),
			zap.Error(err),
		)
	}
}

// IndexedRanges 返回登记在 d 下的区间键
func (c *RangeCache) IndexedRanges(d model.Date) []model.DateRange {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.DateRange, 0, len(c.index[d]))
	for r := range c.index[d] {
		out = append(out, r)
	}
	return out
}

// IndexedDates 反向索引中的日期数
func (c *RangeCache) IndexedDates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *RangeCache) isCurrent(ctx context.Context, r model.DateRange, stamp Stamp) bool {
	days := r.Days()
	gens, err := c.provider.Counters(ctx, genKeys(days)...)
	if err != nil {
		c.logger.Warn("读取日历代数失败", zap.String("range", r.String()), zap.Error(err))
		return false
	}
	for i, d := range days {
		gen, ok := stamp.Gens[d.String()]
		if !ok || gen != gens[i] {
			return false
		}
	}
	return true
}

func (c *RangeCache) unindexLocked(r model.DateRange) {
	for _, d := range r.Days() {
		if keys, ok := c.index[d]; ok {
			delete(keys, r)
			if len(keys) == 0 {
				delete(c.index, d)
			}
		}
	}
}

// sweepLocked 每隔一个 ttl 清理一次已过期的索引项
func (c *RangeCache) sweepLocked(now time.Time) {
	if c.ttl <= 0 || now.Sub(c.lastSweep) < c.ttl {
		return
	}
	c.lastSweep = now

	var expired []model.DateRange
	for _, keys := range c.index {
		for r, exp := range keys {
			if now.After(exp) {
				expired = append(expired, r)
			}
		}
	}
	for _, r := range expired {
		c.unindexLocked(r)
	}
}

package buffer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// 降级写缓冲 — 主库不可用时把待落库的动作暂存到Redis
// 恢复后由Flush按写入顺序回放；容量受限时按最久未更新先逐出，
// 附件引用类记录先于完整记录被逐出
// =============================================================================

const (
	// KindRecord 完整的业务记录（审批动作、状态迁移）
	KindRecord = "record"
	// KindAttachmentRef 附件引用（对象存储key），丢失可由对象存储兜底
	KindAttachmentRef = "attachment_ref"

	indexKey  = "docflow:buffer:index"
	recPrefix = "docflow:buffer:rec:"
)

// Entry 缓冲中的一条记录
type Entry struct {
	Key       string
	Kind      string
	Payload   []byte
	UpdatedAt time.Time
}

// WriteBuffer Redis降级写缓冲
type WriteBuffer struct {
	rdb      *redis.Client
	capacity int
}

// NewWriteBuffer 创建写缓冲，capacity<=0时不限制容量
func NewWriteBuffer(rdb *redis.Client, capacity int) *WriteBuffer {
	return &WriteBuffer{rdb: rdb, capacity: capacity}
}

// Put 写入或刷新一条记录，超出容量时触发逐出
func (b *WriteBuffer) Put(ctx context.Context, key, kind string, payload []byte) error {
	now := time.Now()
	pipe := b.rdb.TxPipeline()
	pipe.HSet(ctx, recPrefix+key, "kind", kind, "payload", payload, "updated_at", now.UnixMilli())
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(now.UnixMilli()), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入缓冲失败: %w", err)
	}
	if b.capacity > 0 {
		return b.trim(ctx)
	}
	return nil
}

// trim 逐出超额记录
func (b *WriteBuffer) trim(ctx context.Context) error {
	entries, err := b.snapshot(ctx)
	if err != nil {
		return err
	}
	for _, key := range EvictionOrder(entries, b.capacity) {
		pipe := b.rdb.TxPipeline()
		pipe.Del(ctx, recPrefix+key)
		pipe.ZRem(ctx, indexKey, key)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("逐出缓冲记录失败: %w", err)
		}
	}
	return nil
}

// snapshot 按更新时间升序读出全部记录
func (b *WriteBuffer) snapshot(ctx context.Context) ([]Entry, error) {
	keys, err := b.rdb.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{Min: "-inf", Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("读取缓冲索引失败: %w", err)
	}
	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		fields, err := b.rdb.HGetAll(ctx, recPrefix+key).Result()
		if err != nil {
			return nil, fmt.Errorf("读取缓冲记录失败: %w", err)
		}
		if len(fields) == 0 {
			// 索引与记录不一致，清理悬空索引
			b.rdb.ZRem(ctx, indexKey, key)
			continue
		}
		var updatedAt time.Time
		if ms, ok := fields["updated_at"]; ok {
			var v int64
			fmt.Sscanf(ms, "%d", &v)
			updatedAt = time.UnixMilli(v)
		}
		entries = append(entries, Entry{
			Key:       key,
			Kind:      fields["kind"],
			Payload:   []byte(fields["payload"]),
			UpdatedAt: updatedAt,
		})
	}
	return entries, nil
}

// Len 当前缓冲记录数
func (b *WriteBuffer) Len(ctx context.Context) (int, error) {
	n, err := b.rdb.ZCard(ctx, indexKey).Result()
	return int(n), err
}

// Flush 按写入顺序回放缓冲记录，apply成功的记录被移除
// 回放失败即停止，剩余记录留待下次Flush
func (b *WriteBuffer) Flush(ctx context.Context, apply func(ctx context.Context, e Entry) error) (int, error) {
	entries, err := b.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	flushed := 0
	for _, e := range entries {
		if err := apply(ctx, e); err != nil {
			return flushed, fmt.Errorf("回放缓冲记录 %s 失败: %w", e.Key, err)
		}
		pipe := b.rdb.TxPipeline()
		pipe.Del(ctx, recPrefix+e.Key)
		pipe.ZRem(ctx, indexKey, e.Key)
		if _, err := pipe.Exec(ctx); err != nil {
			return flushed, fmt.Errorf("移除已回放记录失败: %w", err)
		}
		flushed++
	}
	return flushed, nil
}

// EvictionOrder 计算超出容量时应逐出的key，附件引用先于完整记录，
// 同类之间最久未更新的先逐出。纯函数，便于单测
func EvictionOrder(entries []Entry, capacity int) []string {
	if capacity <= 0 || len(entries) <= capacity {
		return nil
	}
	excess := len(entries) - capacity

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind == KindAttachmentRef
		}
		return sorted[i].UpdatedAt.Before(sorted[j].UpdatedAt)
	})

	keys := make([]string, 0, excess)
	for i := 0; i < excess && i < len(sorted); i++ {
		keys = append(keys, sorted[i].Key)
	}
	return keys
}

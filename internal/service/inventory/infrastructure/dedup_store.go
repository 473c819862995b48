// internal/service/inventory/infrastructure/dedup_store.go
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/mysql"
	"bazaar/internal/pkg/redis"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormDedupStore 以 processed_events 表实现幂等消费的持久去重。
// 标记必须与业务变更写在同一事务里，事务回滚时标记一并消失，
// 消息重投时才能重新处理。
type GormDedupStore struct {
	db *gorm.DB
}

func NewGormDedupStore(db *gorm.DB) *GormDedupStore {
	return &GormDedupStore{db: db}
}

// MarkProcessed 在当前事务内插入去重标记。
// eventID 已存在时返回 (true, nil)，表示该事件已被处理过。
func (s *GormDedupStore) MarkProcessed(ctx context.Context, eventID, eventType string) (duplicate bool, err error) {
	model := &ProcessedEventModel{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}
	err = mysql.Conn(ctx, s.db).Create(model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return true, nil
		}
		return false, pkgerrors.Wrap(err, "mark event processed")
	}
	return false, nil
}

// IsProcessed 查询事件是否已有去重标记（只读，不要求事务）。
func (s *GormDedupStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := mysql.Conn(ctx, s.db).
		Model(&ProcessedEventModel{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(err, "check event processed")
	}
	return count > 0, nil
}

// RedisDedupCache 是去重表前面的快路径缓存。
// 缓存未命中不代表未处理，数据库唯一索引才是权威；
// 缓存写入失败只记日志，正确性不依赖它。
type RedisDedupCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDedupCache(client *redis.Client, ttl time.Duration) *RedisDedupCache {
	return &RedisDedupCache{client: client, ttl: ttl}
}

func (c *RedisDedupCache) key(eventID string) string {
	return fmt.Sprintf("dedup:event:%s", eventID)
}

// Seen 报告事件最近是否被处理过。Redis 故障时按未见过处理。
func (c *RedisDedupCache) Seen(ctx context.Context, eventID string) bool {
	exists, err := c.client.Exists(ctx, c.key(eventID))
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("event_id", eventID).Msg("dedup cache lookup failed, falling through to db")
		return false
	}
	return exists
}

// Remember 在事务提交后记录事件已处理。
func (c *RedisDedupCache) Remember(ctx context.Context, eventID string) {
	if _, err := c.client.SetNX(ctx, c.key(eventID), "1", c.ttl); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("event_id", eventID).Msg("dedup cache write failed")
	}
}

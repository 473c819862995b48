// internal/outbox/store.go
package outbox

import (
	"context"
	"time"

	"bazaar/internal/pkg/mysql"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Store 是中继端对 outbox 表的访问接口。
type Store interface {
	// FindUnprocessed 按 createdAt 升序返回未投递的事件，保证同一聚合的因果顺序。
	FindUnprocessed(ctx context.Context, limit int) ([]*Event, error)
	// MarkProcessed 标记投递成功并清除错误信息。
	MarkProcessed(ctx context.Context, id string) error
	// RecordFailure 累加重试计数并记录错误；耗尽预算时置 processed 以停止轮询，
	// 返回 true 表示该事件已被放弃。
	RecordFailure(ctx context.Context, id string, cause string) (gaveUp bool, err error)
}

// GormStore 是 Store 的 MySQL 实现。
// 每个方法独立提交，单条事件的失败不影响其它行。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindUnprocessed(ctx context.Context, limit int) ([]*Event, error) {
	var rows []*Event
	err := mysql.Conn(ctx, s.db).
		Where("processed = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "outbox: failed to load unprocessed events")
	}
	return rows, nil
}

func (s *GormStore) MarkProcessed(ctx context.Context, id string) error {
	now := time.Now()
	err := mysql.Conn(ctx, s.db).Model(&Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":    true,
			"processed_at": &now,
			"last_error":   "",
		}).Error
	return errors.Wrap(err, "outbox: failed to mark event processed")
}

func (s *GormStore) RecordFailure(ctx context.Context, id string, cause string) (bool, error) {
	var row Event
	conn := mysql.Conn(ctx, s.db)
	if err := conn.First(&row, "id = ?", id).Error; err != nil {
		return false, errors.Wrap(err, "outbox: failed to load event for failure record")
	}

	row.RetryCount++
	row.LastError = cause
	gaveUp := row.Exhausted()
	updates := map[string]interface{}{
		"retry_count": row.RetryCount,
		"last_error":  row.LastError,
	}
	if gaveUp {
		// 死亡标记：processed=true 但 last_error 非空，留给运维排查
		now := time.Now()
		updates["processed"] = true
		updates["processed_at"] = &now
	}
	if err := conn.Model(&Event{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return false, errors.Wrap(err, "outbox: failed to record delivery failure")
	}
	return gaveUp, nil
}

// internal/outbox/outbox.go
package outbox

import (
	"time"
)

// Event 是 outbox 表中的一行：一条尚未（或已经）投递到 broker 的领域事件。
// 行与产生它的业务变更在同一个事务中写入；投递成功后行保留，
// 供审计与重放（保留期治理不在本模块范围内）。
type Event struct {
	ID           string    `gorm:"primaryKey;size:36"`
	AggregateID  string    `gorm:"column:aggregate_id;size:64;not null"`
	EventType    string    `gorm:"column:event_type;size:64;not null"`
	Payload      string    `gorm:"type:text;not null"`
	ExchangeName string    `gorm:"column:exchange_name;size:128"`
	RoutingKey   string    `gorm:"column:routing_key;size:128"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index:idx_outbox_pending,priority:2"`
	Processed    bool      `gorm:"index:idx_outbox_pending,priority:1"`
	ProcessedAt  *time.Time
	RetryCount   int `gorm:"column:retry_count"`
	MaxRetries   int `gorm:"column:max_retries"`
	LastError    string `gorm:"column:last_error;size:1024"`
}

// TableName 指定 GORM 使用的表名。
func (Event) TableName() string {
	return "outbox_events"
}

// Exhausted 报告该事件是否已耗尽重试预算。
func (e *Event) Exhausted() bool {
	return e.RetryCount >= e.MaxRetries
}

// internal/service/inventory/infrastructure/gorm_model.go
package infrastructure

import "time"

// InventoryModel 是 inventory 表的 GORM 模型。
type InventoryModel struct {
	ProductID int64     `gorm:"primaryKey;column:product_id"`
	Available int       `gorm:"column:available;not null"`
	Reserved  int       `gorm:"column:reserved;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (InventoryModel) TableName() string {
	return "inventory"
}

// HistoryModel 是 inventory_history 表的 GORM 模型，只插入不更新。
type HistoryModel struct {
	ID              int64     `gorm:"primaryKey;autoIncrement;column:id"`
	ProductID       int64     `gorm:"column:product_id;not null;index:idx_history_product"`
	ChangeType      string    `gorm:"column:change_type;type:varchar(32);not null"`
	Quantity        int       `gorm:"column:quantity;not null"`
	AvailableBefore int       `gorm:"column:available_before;not null"`
	AvailableAfter  int       `gorm:"column:available_after;not null"`
	ReservedBefore  int       `gorm:"column:reserved_before;not null"`
	ReservedAfter   int       `gorm:"column:reserved_after;not null"`
	OrderID         *int64    `gorm:"column:order_id;index:idx_history_order"`
	CreatedBy       string    `gorm:"column:created_by;type:varchar(64)"`
	CreatedAt       time.Time `gorm:"column:created_at;index:idx_history_product"`
}

func (HistoryModel) TableName() string {
	return "inventory_history"
}

// ProcessedEventModel 是 processed_events 去重表的 GORM 模型。
// event_id 上的唯一索引是幂等消费的最后防线。
type ProcessedEventModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id"`
	EventID     string    `gorm:"column:event_id;type:varchar(64);not null;uniqueIndex:uk_processed_event_id"`
	EventType   string    `gorm:"column:event_type;type:varchar(64);not null"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null"`
}

func (ProcessedEventModel) TableName() string {
	return "processed_events"
}

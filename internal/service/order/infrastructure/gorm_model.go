// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import "time"

// OrderModel 是 orders 表的 GORM 模型。订单从不物理删除。
type OrderModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id"`
	UserID      int64     `gorm:"column:user_id;not null;index:idx_orders_user"`
	UserEmail   string    `gorm:"column:user_email;type:varchar(255)"`
	Status      string    `gorm:"column:status;type:varchar(16);not null;index:idx_orders_status"`
	TotalAmount float64   `gorm:"column:total_amount;not null"`
	Comment     string    `gorm:"column:comment;type:varchar(512)"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`

	Items []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 是 order_items 表的 GORM 模型，行内价格下单时冻结。
type OrderItemModel struct {
	ID          int64   `gorm:"primaryKey;autoIncrement;column:id"`
	OrderID     int64   `gorm:"column:order_id;not null;index:idx_order_items_order"`
	ProductID   int64   `gorm:"column:product_id;not null"`
	ProductName string  `gorm:"column:product_name;type:varchar(255)"`
	Quantity    int     `gorm:"column:quantity;not null"`
	PriceAtTime float64 `gorm:"column:price_at_time;not null"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

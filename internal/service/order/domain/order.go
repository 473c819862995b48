// internal/service/order/domain/order.go
package domain

import (
	"time"
)

// OrderItem 是下单时刻的商品快照。
// 名称和价格在创建后冻结，不随商品目录后续变化。
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	PriceAtTime float64
}

// Subtotal 返回该行的小计金额。
func (i OrderItem) Subtotal() float64 {
	return i.PriceAtTime * float64(i.Quantity)
}

// Order 是订单聚合的根实体。状态流转只通过 TransitionTo 进行。
type Order struct {
	ID          int64
	UserID      int64
	UserEmail   string
	Status      Status
	TotalAmount float64
	Items       []OrderItem
	Comment     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewOrder 基于冻结后的商品行创建一个待确认订单。
func NewOrder(userID int64, userEmail string, items []OrderItem) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	var total float64
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidOrderItem
		}
		total += item.Subtotal()
	}

	now := time.Now()
	return &Order{
		UserID:      userID,
		UserEmail:   userEmail,
		Status:      StatusPending,
		TotalAmount: total,
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// TransitionTo 执行一次状态流转；被状态机拒绝时订单保持不变。
func (o *Order) TransitionTo(target Status) error {
	if !o.Status.CanTransitionTo(target) {
		return &InvalidTransitionError{From: o.Status, To: target}
	}
	o.Status = target
	o.UpdatedAt = time.Now()
	return nil
}

// Cancellable 报告订单当前是否可被用户取消。
func (o *Order) Cancellable() bool {
	return o.Status.CanTransitionTo(StatusCancelled)
}

// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound 表示订单不存在。
	ErrOrderNotFound = errors.New("order: not found")

	// ErrEmptyOrder 表示购物车为空，无法创建订单。
	ErrEmptyOrder = errors.New("order: cannot create order from empty cart")

	// ErrInvalidOrderItem 表示商品行数量非法。
	ErrInvalidOrderItem = errors.New("order: item quantity must be positive")

	// ErrUnknownStatus 表示调用方传入了状态机之外的状态值。
	ErrUnknownStatus = errors.New("order: unknown status")

	// ErrNotOrderOwner 表示用户操作了不属于自己的订单。
	ErrNotOrderOwner = errors.New("order: order does not belong to user")
)

// ProductUnavailableError 表示下单时某商品可用库存不足。
type ProductUnavailableError struct {
	ProductID int64
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("order: product %d is not available in requested quantity", e.ProductID)
}

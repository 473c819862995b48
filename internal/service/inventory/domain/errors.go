// internal/service/inventory/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInventoryNotFound 表示商品没有台账行。
	// 这是配置/铺货问题而不是"库存为 0"，调用方不得混淆两者。
	ErrInventoryNotFound = errors.New("inventory: no ledger row for product")

	// ErrNoReservation 表示该订单没有未结清的预留可供确认或取消。
	ErrNoReservation = errors.New("inventory: order has no outstanding reservation")

	// ErrInvalidQuantity 表示数量非正或绝对值非法。
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

	// ErrLedgerCorrupted 表示台账出现了合法输入不可能造成的状态
	// （预留量对不上）。按内部缺陷处理，不做截断修复。
	ErrLedgerCorrupted = errors.New("inventory: ledger invariant violated")
)

// InsufficientStockError 携带拒绝预留时的上下文。
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// IsBusinessError 报告 err 是否属于业务性拒绝（可直接回给调用方、
// 不应自动重试的一类）。消费端据此区分死信与重试。
func IsBusinessError(err error) bool {
	var insufficient *InsufficientStockError
	return errors.As(err, &insufficient) ||
		errors.Is(err, ErrNoReservation) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInventoryNotFound)
}

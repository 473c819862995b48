// internal/service/inventory/domain/history.go
package domain

import "time"

// ChangeType 区分台账变更的来源。
type ChangeType string

const (
	ChangeTypeAddStock       ChangeType = "ADD_STOCK"
	ChangeTypeRemoveStock    ChangeType = "REMOVE_STOCK"
	ChangeTypeReserve        ChangeType = "RESERVE"
	ChangeTypeReleaseReserve ChangeType = "RELEASE_RESERVE"
	ChangeTypeConfirmReserve ChangeType = "CONFIRM_RESERVE"
)

// History 是台账的只追加审计记录，写入后不再修改。
// RESERVE/RELEASE/CONFIRM 三类记录携带 OrderID；
// 某订单的未结清预留由这三类记录对账得出（见 application 层）。
type History struct {
	ID              int64
	ProductID       int64
	ChangeType      ChangeType
	Quantity        int // 变更幅度，恒为正
	AvailableBefore int
	AvailableAfter  int
	ReservedBefore  int
	ReservedAfter   int
	OrderID         *int64 // 手工 ADD/REMOVE 为空
	CreatedBy       string
	CreatedAt       time.Time
}

// NewHistory 基于一次台账操作的前后快照生成审计记录。
func NewHistory(productID int64, changeType ChangeType, qty int, before, after *Inventory, orderID *int64, actor string) *History {
	return &History{
		ProductID:       productID,
		ChangeType:      changeType,
		Quantity:        qty,
		AvailableBefore: before.Available,
		AvailableAfter:  after.Available,
		ReservedBefore:  before.Reserved,
		ReservedAfter:   after.Reserved,
		OrderID:         orderID,
		CreatedBy:       actor,
		CreatedAt:       time.Now(),
	}
}

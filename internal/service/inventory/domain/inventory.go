// internal/service/inventory/domain/inventory.go
package domain

import (
	"time"
)

// Inventory 是库存台账的聚合根，每个商品一行。
// 不变量：available >= 0 且 reserved >= 0；
// reserve/release 在两者之间搬运数量，confirm 只消耗 reserved。
type Inventory struct {
	ProductID int64
	Available int
	Reserved  int
	UpdatedAt time.Time
}

// NewInventory 创建一个新的台账行。
func NewInventory(productID int64, available int) *Inventory {
	return &Inventory{
		ProductID: productID,
		Available: available,
		UpdatedAt: time.Now(),
	}
}

// Total 返回台账总量（available + reserved）。
// reserve/release 操作前后该值守恒。
func (i *Inventory) Total() int {
	return i.Available + i.Reserved
}

// Reserve 把 qty 从可用库存搬到预留。
// 数量不足时返回 InsufficientStockError，台账不变。
func (i *Inventory) Reserve(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if i.Available < qty {
		return &InsufficientStockError{
			ProductID: i.ProductID,
			Available: i.Available,
			Requested: qty,
		}
	}
	i.Available -= qty
	i.Reserved += qty
	i.UpdatedAt = time.Now()
	return nil
}

// Release 把 qty 从预留退回可用库存（取消订单）。
func (i *Inventory) Release(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if i.Reserved < qty {
		// 预留量与履约请求对不上说明台账被破坏，绝不静默截断
		return ErrLedgerCorrupted
	}
	i.Reserved -= qty
	i.Available += qty
	i.UpdatedAt = time.Now()
	return nil
}

// Confirm 永久消耗 qty 的预留（商品已发货）。可用库存不变。
func (i *Inventory) Confirm(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if i.Reserved < qty {
		return ErrLedgerCorrupted
	}
	i.Reserved -= qty
	i.UpdatedAt = time.Now()
	return nil
}

// SetAvailable 管理端的绝对值设置。返回变化的幅度和对应的审计类型。
func (i *Inventory) SetAvailable(newAvailable int) (delta int, changeType ChangeType, err error) {
	if newAvailable < 0 {
		return 0, "", ErrInvalidQuantity
	}
	delta = newAvailable - i.Available
	if delta >= 0 {
		changeType = ChangeTypeAddStock
	} else {
		changeType = ChangeTypeRemoveStock
		delta = -delta
	}
	i.Available = newAvailable
	i.UpdatedAt = time.Now()
	return delta, changeType, nil
}

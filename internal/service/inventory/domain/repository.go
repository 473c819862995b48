// internal/service/inventory/domain/repository.go
package domain

import (
	"context"

	"bazaar/internal/pkg/paging"
)

// InventoryRepository 定义台账行的持久化接口，由基础设施层实现。
type InventoryRepository interface {
	// Find 读取台账行；不存在返回 ErrInventoryNotFound。
	Find(ctx context.Context, productID int64) (*Inventory, error)

	// FindForUpdate 在当前事务内以行锁读取台账行。
	// 调用方必须处于事务中；并发预留依赖该锁串行化。
	FindForUpdate(ctx context.Context, productID int64) (*Inventory, error)

	// FindBatch 批量读取，缺失的商品不在返回的 map 中。
	FindBatch(ctx context.Context, productIDs []int64) (map[int64]*Inventory, error)

	// List 分页返回所有台账行及总数。
	List(ctx context.Context, page paging.Request) ([]*Inventory, int64, error)

	// Save 写回台账行（插入或更新）。
	Save(ctx context.Context, inv *Inventory) error
}

// HistoryRepository 定义审计记录的持久化接口。记录只追加。
type HistoryRepository interface {
	Append(ctx context.Context, h *History) error

	// FindByOrderID 返回某订单的全部预留相关记录，按写入顺序。
	FindByOrderID(ctx context.Context, orderID int64) ([]*History, error)

	// FindByProductID 分页返回某商品的记录，新的在前。
	FindByProductID(ctx context.Context, productID int64, page paging.Request) ([]*History, int64, error)
}

// TxRunner 在一个数据库事务中执行 fn；事务句柄随 ctx 向下传递。
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

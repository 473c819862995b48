// internal/service/order/domain/repository.go
package domain

import (
	"context"

	"bazaar/internal/pkg/paging"
)

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Save 保存订单及其商品行（创建或更新）。
	Save(ctx context.Context, order *Order) error

	// FindByID 读取订单聚合（含商品行）；不存在返回 ErrOrderNotFound。
	FindByID(ctx context.Context, id int64) (*Order, error)

	// FindForUpdate 在当前事务内以行锁读取订单。
	// 状态流转必须走这条路径，并发流转靠该锁串行化。
	FindForUpdate(ctx context.Context, id int64) (*Order, error)

	// FindByUserID 分页返回某用户的订单，新的在前。
	FindByUserID(ctx context.Context, userID int64, page paging.Request) ([]*Order, int64, error)

	// List 分页返回全部订单；status 为空表示不过滤。
	List(ctx context.Context, status Status, page paging.Request) ([]*Order, int64, error)
}

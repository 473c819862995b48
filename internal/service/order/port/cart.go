// internal/service/order/port/cart.go
package port

import "context"

// CartLine 是购物车里的一行，价格来自当前商品目录。
type CartLine struct {
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   float64
}

// CartSnapshotter 是购物车子系统的端口。
// 下单时读取一次快照，订单落库后清空；购物车自身不属于本服务。
type CartSnapshotter interface {
	// Snapshot 返回用户当前购物车的全部行；空购物车返回空切片。
	Snapshot(ctx context.Context, userID int64) ([]CartLine, error)

	// Clear 清空用户购物车。订单已提交后调用，失败只影响体验不影响一致性。
	Clear(ctx context.Context, userID int64) error
}

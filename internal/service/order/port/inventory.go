// internal/service/order/port/inventory.go
package port

import "context"

// AvailabilityLine 是一次可用性检查的输入行。
type AvailabilityLine struct {
	ProductID int64
	Quantity  int
}

// AvailabilityChecker 是库存服务的查询端口。
// 下单前的预检是快速失败手段，真正的预留由事件流驱动的库存引擎完成。
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, lines []AvailabilityLine) (bool, error)
}

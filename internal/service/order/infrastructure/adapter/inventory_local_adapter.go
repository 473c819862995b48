// internal/service/order/infrastructure/adapter/inventory_local_adapter.go
package adapter

import (
	"context"

	invapp "bazaar/internal/service/inventory/application"
	"bazaar/internal/service/order/port"
)

// InventoryLocalAdapter 实现了 port.AvailabilityChecker。
// 库存服务与订单服务同进程部署，直接走进程内调用。
type InventoryLocalAdapter struct {
	inventory *invapp.InventoryApplicationService
}

func NewInventoryLocalAdapter(inventory *invapp.InventoryApplicationService) *InventoryLocalAdapter {
	return &InventoryLocalAdapter{inventory: inventory}
}

func (a *InventoryLocalAdapter) CheckAvailability(ctx context.Context, lines []port.AvailabilityLine) (bool, error) {
	checks := make([]invapp.AvailabilityCheck, 0, len(lines))
	for _, line := range lines {
		checks = append(checks, invapp.AvailabilityCheck{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return a.inventory.CheckAvailability(ctx, checks)
}

// internal/service/inventory/infrastructure/mapper.go
package infrastructure

import "bazaar/internal/service/inventory/domain"

// toInventoryDomain 将持久化模型转换为领域对象。
func toInventoryDomain(m *InventoryModel) *domain.Inventory {
	return &domain.Inventory{
		ProductID: m.ProductID,
		Available: m.Available,
		Reserved:  m.Reserved,
		UpdatedAt: m.UpdatedAt,
	}
}

// toInventoryModel 将领域对象转换为持久化模型。
func toInventoryModel(inv *domain.Inventory) *InventoryModel {
	return &InventoryModel{
		ProductID: inv.ProductID,
		Available: inv.Available,
		Reserved:  inv.Reserved,
		UpdatedAt: inv.UpdatedAt,
	}
}

func toHistoryDomain(m *HistoryModel) *domain.History {
	return &domain.History{
		ID:              m.ID,
		ProductID:       m.ProductID,
		ChangeType:      domain.ChangeType(m.ChangeType),
		Quantity:        m.Quantity,
		AvailableBefore: m.AvailableBefore,
		AvailableAfter:  m.AvailableAfter,
		ReservedBefore:  m.ReservedBefore,
		ReservedAfter:   m.ReservedAfter,
		OrderID:         m.OrderID,
		CreatedBy:       m.CreatedBy,
		CreatedAt:       m.CreatedAt,
	}
}

func toHistoryModel(h *domain.History) *HistoryModel {
	return &HistoryModel{
		ID:              h.ID,
		ProductID:       h.ProductID,
		ChangeType:      string(h.ChangeType),
		Quantity:        h.Quantity,
		AvailableBefore: h.AvailableBefore,
		AvailableAfter:  h.AvailableAfter,
		ReservedBefore:  h.ReservedBefore,
		ReservedAfter:   h.ReservedAfter,
		OrderID:         h.OrderID,
		CreatedBy:       h.CreatedBy,
		CreatedAt:       h.CreatedAt,
	}
}

// internal/service/order/infrastructure/mapper.go
package infrastructure

import (
	"bazaar/internal/service/order/domain"
)

func toOrderDomain(m *OrderModel) *domain.Order {
	items := make([]domain.OrderItem, 0, len(m.Items))
	for _, im := range m.Items {
		items = append(items, domain.OrderItem{
			ID:          im.ID,
			OrderID:     im.OrderID,
			ProductID:   im.ProductID,
			ProductName: im.ProductName,
			Quantity:    im.Quantity,
			PriceAtTime: im.PriceAtTime,
		})
	}
	return &domain.Order{
		ID:          m.ID,
		UserID:      m.UserID,
		UserEmail:   m.UserEmail,
		Status:      domain.Status(m.Status),
		TotalAmount: m.TotalAmount,
		Items:       items,
		Comment:     m.Comment,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toOrderModel(o *domain.Order) *OrderModel {
	items := make([]OrderItemModel, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemModel{
			ID:          item.ID,
			OrderID:     item.OrderID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime,
		})
	}
	return &OrderModel{
		ID:          o.ID,
		UserID:      o.UserID,
		UserEmail:   o.UserEmail,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		Comment:     o.Comment,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		Items:       items,
	}
}

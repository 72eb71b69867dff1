package infrastructure

import (
	"nexus-commerce/internal/service/order/domain"
)

func toOrderModel(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:              o.ID,
		UserID:          o.UserID,
		CustomerEmail:   o.Customer.Email,
		CustomerName:    o.Customer.Username,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	m.Items = make([]OrderItemModel, 0, len(o.Items))
	for i, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			OrderID:     o.ID,
			Position:    i,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal(),
		})
	}
	return m
}

func toDomainOrder(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:              m.ID,
		UserID:          m.UserID,
		Customer:        domain.Customer{Email: m.CustomerEmail, Username: m.CustomerName},
		TotalAmount:     m.TotalAmount,
		Status:          domain.Status(m.Status),
		ShippingAddress: m.ShippingAddress,
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.Items != nil {
		o.Items = make([]domain.Item, 0, len(m.Items))
		for _, it := range m.Items {
			o.Items = append(o.Items, domain.Item{
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				UnitPrice:   it.UnitPrice,
				Quantity:    it.Quantity,
			})
		}
	}
	return o
}

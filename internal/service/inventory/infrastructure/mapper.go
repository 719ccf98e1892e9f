// internal/service/inventory/infrastructure/mapper.go
package infrastructure

import (
	"database/sql"
	"time"

	"stockpile/internal/service/inventory/domain"
)

func toItemDomain(m *InventoryItemModel) *domain.InventoryItem {
	item := &domain.InventoryItem{
		ProductID:         m.ProductID,
		WarehouseLocation: m.WarehouseLocation,
		QuantityOnHand:    m.QuantityOnHand,
		QuantityReserved:  m.QuantityReserved,
		QuantityAvailable: m.QuantityAvailable,
		MinStockLevel:     m.MinStockLevel,
		MaxStockLevel:     m.MaxStockLevel,
		ReorderPoint:      m.ReorderPoint,
		ReorderQuantity:   m.ReorderQuantity,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.LastRestockDate.Valid {
		item.LastRestockDate = m.LastRestockDate.Time
	}
	return item
}

func toItemModel(item *domain.InventoryItem) *InventoryItemModel {
	m := &InventoryItemModel{
		ProductID:         item.ProductID,
		WarehouseLocation: item.WarehouseLocation,
		QuantityOnHand:    item.QuantityOnHand,
		QuantityReserved:  item.QuantityReserved,
		QuantityAvailable: item.QuantityAvailable,
		MinStockLevel:     item.MinStockLevel,
		MaxStockLevel:     item.MaxStockLevel,
		ReorderPoint:      item.ReorderPoint,
		ReorderQuantity:   item.ReorderQuantity,
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
	if !item.LastRestockDate.IsZero() {
		m.LastRestockDate = sql.NullTime{Time: item.LastRestockDate, Valid: true}
	}
	return m
}

func toReservationDomain(m *OrderReservationModel) *domain.OrderReservation {
	res := &domain.OrderReservation{
		ID:        m.ID,
		OrderID:   m.OrderID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
	if m.ReleasedAt.Valid {
		res.ReleasedAt = m.ReleasedAt.Time
	}
	if m.ConfirmedAt.Valid {
		res.ConfirmedAt = m.ConfirmedAt.Time
	}
	return res
}

func toReservationModel(res *domain.OrderReservation) *OrderReservationModel {
	m := &OrderReservationModel{
		ID:        res.ID,
		OrderID:   res.OrderID,
		ProductID: res.ProductID,
		Quantity:  res.Quantity,
		Status:    res.Status,
		CreatedAt: res.CreatedAt,
	}
	if !res.ReleasedAt.IsZero() {
		m.ReleasedAt = sql.NullTime{Time: res.ReleasedAt, Valid: true}
	}
	if !res.ConfirmedAt.IsZero() {
		m.ConfirmedAt = sql.NullTime{Time: res.ConfirmedAt, Valid: true}
	}
	return m
}

func nowUTC() time.Time { return time.Now().UTC() }

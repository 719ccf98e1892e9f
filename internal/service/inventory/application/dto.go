// internal/service/inventory/application/dto.go
package application

import (
	"time"

	"stockpile/internal/service/inventory/domain"
	"stockpile/internal/service/inventory/infrastructure/rule"
)

// ReservationLine 是批量操作中的一行: 一个商品和数量。
type ReservationLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// BatchRequest 是 reserve/confirm/release 批量接口的请求体。
type BatchRequest struct {
	OrderID string            `json:"orderId"`
	Items   []ReservationLine `json:"items"`
}

// StockStatus 是单个商品的库存全景，供管理端与看板查询。
type StockStatus struct {
	ProductID         string    `json:"productId"`
	WarehouseLocation string    `json:"warehouseLocation"`
	QuantityOnHand    int       `json:"quantityOnHand"`
	QuantityReserved  int       `json:"quantityReserved"`
	QuantityAvailable int       `json:"quantityAvailable"`
	MinStockLevel     int       `json:"minStockLevel"`
	MaxStockLevel     int       `json:"maxStockLevel"`
	ReorderPoint      int       `json:"reorderPoint"`
	ReorderQuantity   int       `json:"reorderQuantity"`
	LastRestockDate   time.Time `json:"lastRestockDate,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`

	// 档案阈值推导出的固定口径标志；Advice 是告警规则的评估结果，
	// 规则可以被运维改写，这三个标志不会。
	IsLowStock   bool `json:"isLowStock"`
	IsOutOfStock bool `json:"isOutOfStock"`
	NeedsReorder bool `json:"needsReorder"`

	Advice *rule.Advice `json:"advice,omitempty"`
}

// ItemPage 是分页查询的响应体。
type ItemPage struct {
	Items []*StockStatus `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

// RollbackResult 汇报一次整单回滚实际释放了哪些预占。
type RollbackResult struct {
	OrderID  string            `json:"orderId"`
	Released []ReservationLine `json:"released"`
}

func toStatus(item *domain.InventoryItem) *StockStatus {
	return &StockStatus{
		ProductID:         item.ProductID,
		WarehouseLocation: item.WarehouseLocation,
		QuantityOnHand:    item.QuantityOnHand,
		QuantityReserved:  item.QuantityReserved,
		QuantityAvailable: item.QuantityAvailable,
		MinStockLevel:     item.MinStockLevel,
		MaxStockLevel:     item.MaxStockLevel,
		ReorderPoint:      item.ReorderPoint,
		ReorderQuantity:   item.ReorderQuantity,
		LastRestockDate:   item.LastRestockDate,
		UpdatedAt:         item.UpdatedAt,
		IsLowStock:        item.IsLowStock(),
		IsOutOfStock:      item.IsOutOfStock(),
		NeedsReorder:      item.NeedsReorder(),
	}
}

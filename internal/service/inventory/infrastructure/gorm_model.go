// internal/service/inventory/infrastructure/gorm_model.go
package infrastructure

import (
	"database/sql"
	"time"

	"stockpile/internal/service/inventory/domain"
)

// InventoryItemModel 对应数据库中的 inventory_items 表
type InventoryItemModel struct {
	ID        uint64 `gorm:"primaryKey"`
	ProductID string `gorm:"column:product_id;size:36;uniqueIndex;not null"`

	WarehouseLocation string `gorm:"column:warehouse_location"`

	QuantityOnHand    int `gorm:"column:quantity_on_hand;not null;default:0"`
	QuantityReserved  int `gorm:"column:quantity_reserved;not null;default:0"`
	QuantityAvailable int `gorm:"column:quantity_available;not null;default:0"`

	MinStockLevel   int `gorm:"column:min_stock_level;default:10"`
	MaxStockLevel   int `gorm:"column:max_stock_level;default:1000"`
	ReorderPoint    int `gorm:"column:reorder_point;default:20"`
	ReorderQuantity int `gorm:"column:reorder_quantity;default:50"`

	LastRestockDate sql.NullTime `gorm:"column:last_restock_date"`
	CreatedAt       time.Time    `gorm:"column:created_at"`
	UpdatedAt       time.Time    `gorm:"column:updated_at"`
}

// TableName 指定 GORM 应该使用的表名
func (InventoryItemModel) TableName() string {
	return "inventory_items"
}

// OrderReservationModel 对应数据库中的 order_reservations 表。
// (order_id, product_id) 各自有索引，清扫器按 order_id + status 扫描。
type OrderReservationModel struct {
	ID        uint64 `gorm:"primaryKey"`
	OrderID   string `gorm:"column:order_id;size:36;index;not null"`
	ProductID string `gorm:"column:product_id;size:36;index;not null"`
	Quantity  int    `gorm:"column:quantity;not null"`

	Status domain.ReservationStatus `gorm:"column:status;size:16;not null;default:RESERVED"`

	CreatedAt   time.Time    `gorm:"column:created_at"`
	ReleasedAt  sql.NullTime `gorm:"column:released_at"`
	ConfirmedAt sql.NullTime `gorm:"column:confirmed_at"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderReservationModel) TableName() string {
	return "order_reservations"
}

// internal/service/inventory/domain/item.go
package domain

import "time"

// 新建库存档案时的默认阈值，与历史数据保持一致。
const (
	DefaultMinStockLevel   = 10
	DefaultMaxStockLevel   = 1000
	DefaultReorderPoint    = 20
	DefaultReorderQuantity = 50
)

// InventoryItem 是库存聚合的根实体，每个商品一行。
// 核心不变式: QuantityOnHand == QuantityAvailable + QuantityReserved，
// 只在 Confirm 内部短暂打破（预占转实扣时 available 不再变化）。
type InventoryItem struct {
	ProductID         string
	WarehouseLocation string

	QuantityOnHand    int // 实物库存
	QuantityReserved  int // 被未支付订单占用的库存
	QuantityAvailable int // 可售库存

	MinStockLevel   int
	MaxStockLevel   int
	ReorderPoint    int
	ReorderQuantity int

	LastRestockDate time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewInventoryItem 创建一个新的库存档案，初始库存全部可售。
func NewInventoryItem(productID, warehouseLocation string, initialQuantity int) (*InventoryItem, error) {
	if productID == "" {
		return nil, ErrUnknownProduct
	}
	if initialQuantity < 0 {
		return nil, ErrInvalidQuantity
	}
	now := time.Now()
	return &InventoryItem{
		ProductID:         productID,
		WarehouseLocation: warehouseLocation,
		QuantityOnHand:    initialQuantity,
		QuantityAvailable: initialQuantity,
		QuantityReserved:  0,
		MinStockLevel:     DefaultMinStockLevel,
		MaxStockLevel:     DefaultMaxStockLevel,
		ReorderPoint:      DefaultReorderPoint,
		ReorderQuantity:   DefaultReorderQuantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Reserve 预占库存: reserved += qty, available -= qty, onHand 不变。
// 可售量不足时返回 InsufficientStockError，计数器不动。
func (i *InventoryItem) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > i.QuantityAvailable {
		return &InsufficientStockError{
			ProductID: i.ProductID,
			Requested: quantity,
			Available: i.QuantityAvailable,
		}
	}
	i.QuantityReserved += quantity
	i.QuantityAvailable -= quantity
	i.UpdatedAt = time.Now()
	return nil
}

// Release 释放预占: reserved -= qty, available += qty。
// 超出当前预占量时按无操作处理（不报错），调用方的重试才能保持幂等。
// 返回值指示本次调用是否真的改动了计数器。
func (i *InventoryItem) Release(quantity int) (bool, error) {
	if quantity <= 0 {
		return false, ErrInvalidQuantity
	}
	if quantity > i.QuantityReserved {
		return false, nil
	}
	i.QuantityReserved -= quantity
	i.QuantityAvailable += quantity
	i.UpdatedAt = time.Now()
	return true, nil
}

// Confirm 将预占转为实扣: reserved -= qty, onHand -= qty。
// available 不变——它在预占时已经扣过了。这是三角关系唯一
// 短暂不对称的时刻，调用返回后不变式立即恢复。
func (i *InventoryItem) Confirm(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > i.QuantityReserved {
		return ErrExceedsReserved
	}
	i.QuantityReserved -= quantity
	i.QuantityOnHand -= quantity
	i.UpdatedAt = time.Now()
	return nil
}

// Restock 入库: onHand 与 available 同步增加。
func (i *InventoryItem) Restock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	i.QuantityOnHand += quantity
	i.QuantityAvailable += quantity
	i.LastRestockDate = time.Now()
	i.UpdatedAt = i.LastRestockDate
	return nil
}

// SyncOnHand 按外部系统的绝对值重算库存。预占量保持不变，
// 新实物量小于预占量时拒绝（否则 available 会变成负数）。
func (i *InventoryItem) SyncOnHand(newOnHand int) error {
	if newOnHand < 0 {
		return ErrInvalidQuantity
	}
	if newOnHand < i.QuantityReserved {
		return ErrExceedsReserved
	}
	i.QuantityOnHand = newOnHand
	i.QuantityAvailable = newOnHand - i.QuantityReserved
	i.UpdatedAt = time.Now()
	return nil
}

func (i *InventoryItem) IsLowStock() bool {
	return i.QuantityAvailable <= i.MinStockLevel
}

func (i *InventoryItem) IsOutOfStock() bool {
	return i.QuantityAvailable <= 0
}

func (i *InventoryItem) NeedsReorder() bool {
	return i.QuantityAvailable <= i.ReorderPoint
}

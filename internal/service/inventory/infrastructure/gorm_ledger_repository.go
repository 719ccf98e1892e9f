// internal/service/inventory/infrastructure/gorm_ledger_repository.go
package infrastructure

import (
	"context"
	"errors"

	gosqlmysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"stockpile/internal/service/inventory/domain"
)

// mysqlDuplicateEntry 是 MySQL 唯一键冲突的错误码
const mysqlDuplicateEntry = 1062

func isDuplicateEntry(err error) bool {
	var mysqlErr *gosqlmysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

// GormLedgerRepository 是 LedgerRepository 的 GORM 实现。
// 计数器变更全部走带条件的 UPDATE（行级 CAS），不依赖事务内的读-改-写。
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository 创建一个新的 GORM 台账仓储实例
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

func (r *GormLedgerRepository) Get(ctx context.Context, productID string) (*domain.InventoryItem, error) {
	var model InventoryItemModel
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUnknownProduct
		}
		return nil, err
	}
	return toItemDomain(&model), nil
}

func (r *GormLedgerRepository) Upsert(ctx context.Context, item *domain.InventoryItem) error {
	model := toItemModel(item)
	err := r.db.WithContext(ctx).Create(model).Error
	if err == nil {
		return nil
	}
	if !isDuplicateEntry(err) {
		return err
	}
	// 并发建档撞了唯一键，退化为整行覆盖
	return r.db.WithContext(ctx).Model(&InventoryItemModel{}).
		Where("product_id = ?", item.ProductID).
		Updates(map[string]interface{}{
			"warehouse_location": model.WarehouseLocation,
			"quantity_on_hand":   model.QuantityOnHand,
			"quantity_reserved":  model.QuantityReserved,
			"quantity_available": model.QuantityAvailable,
			"min_stock_level":    model.MinStockLevel,
			"max_stock_level":    model.MaxStockLevel,
			"reorder_point":      model.ReorderPoint,
			"reorder_quantity":   model.ReorderQuantity,
			"last_restock_date":  model.LastRestockDate,
		}).Error
}

// Reserve 预占: UPDATE ... SET reserved = reserved + q, available = available - q
// WHERE product_id = ? AND quantity_available >= q。影响行数为 0 时再查一次，
// 区分档案不存在与可售量不足。
func (r *GormLedgerRepository) Reserve(ctx context.Context, productID string, quantity int) (*domain.InventoryItem, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	res := r.db.WithContext(ctx).Model(&InventoryItemModel{}).
		Where("product_id = ? AND quantity_available >= ?", productID, quantity).
		Updates(map[string]interface{}{
			"quantity_reserved":  gorm.Expr("quantity_reserved + ?", quantity),
			"quantity_available": gorm.Expr("quantity_available - ?", quantity),
			"updated_at":         nowUTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		item, err := r.Get(ctx, productID)
		if err != nil {
			return nil, err
		}
		return nil, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: item.QuantityAvailable,
		}
	}
	return r.Get(ctx, productID)
}

// Release 释放预占。超出当前预占量的请求是无操作（applied=false），
// 不把计数器打成负数。
func (r *GormLedgerRepository) Release(ctx context.Context, productID string, quantity int) (*domain.InventoryItem, bool, error) {
	if quantity <= 0 {
		return nil, false, domain.ErrInvalidQuantity
	}
	res := r.db.WithContext(ctx).Model(&InventoryItemModel{}).
		Where("product_id = ? AND quantity_reserved >= ?", productID, quantity).
		Updates(map[string]interface{}{
			"quantity_reserved":  gorm.Expr("quantity_reserved - ?", quantity),
			"quantity_available": gorm.Expr("quantity_available + ?", quantity),
			"updated_at":         nowUTC(),
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	applied := res.RowsAffected > 0
	item, err := r.Get(ctx, productID)
	if err != nil {
		return nil, false, err
	}
	return item, applied, nil
}

// Confirm 预占转实扣: reserved 与 onHand 同减，available 不动。
func (r *GormLedgerRepository) Confirm(ctx context.Context, productID string, quantity int) (*domain.InventoryItem, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	res := r.db.WithContext(ctx).Model(&InventoryItemModel{}).
		Where("product_id = ? AND quantity_reserved >= ?", productID, quantity).
		Updates(map[string]interface{}{
			"quantity_reserved": gorm.Expr("quantity_reserved - ?", quantity),
			"quantity_on_hand":  gorm.Expr("quantity_on_hand - ?", quantity),
			"updated_at":        nowUTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, productID); err != nil {
			return nil, err
		}
		return nil, domain.ErrExceedsReserved
	}
	return r.Get(ctx, productID)
}

// Restock 入库，档案不存在时按默认阈值自动建档。
func (r *GormLedgerRepository) Restock(ctx context.Context, productID, warehouseLocation string, quantity int) (*domain.InventoryItem, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	now := nowUTC()
	res := r.db.WithContext(ctx).Model(&InventoryItemModel{}).
		Where("product_id = ?", productID).
		Updates(map[string]interface{}{
			"quantity_on_hand":   gorm.Expr("quantity_on_hand + ?", quantity),
			"quantity_available": gorm.Expr("quantity_available + ?", quantity),
			"last_restock_date":  now,
			"updated_at":         now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		item, err := domain.NewInventoryItem(productID, warehouseLocation, quantity)
		if err != nil {
			return nil, err
		}
		item.LastRestockDate = now
		if err := r.db.WithContext(ctx).Create(toItemModel(item)).Error; err != nil {
			if isDuplicateEntry(err) {
				// 与另一个建档请求撞车，改走增量路径
				return r.Restock(ctx, productID, warehouseLocation, quantity)
			}
			return nil, err
		}
	}
	return r.Get(ctx, productID)
}

// SyncOnHand 对齐外部系统给出的绝对在库量。新值小于当前预占量时拒绝，
// 否则会出现负的可售量。
func (r *GormLedgerRepository) SyncOnHand(ctx context.Context, productID string, newOnHand int) (*domain.InventoryItem, error) {
	if newOnHand < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	res := r.db.WithContext(ctx).Model(&InventoryItemModel{}).
		Where("product_id = ? AND quantity_reserved <= ?", productID, newOnHand).
		Updates(map[string]interface{}{
			"quantity_on_hand":   newOnHand,
			"quantity_available": gorm.Expr("? - quantity_reserved", newOnHand),
			"updated_at":         nowUTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, productID); err != nil {
			return nil, err
		}
		return nil, domain.ErrExceedsReserved
	}
	return r.Get(ctx, productID)
}

func (r *GormLedgerRepository) FindLowStock(ctx context.Context) ([]*domain.InventoryItem, error) {
	return r.findAll(ctx, r.db.WithContext(ctx).
		Where("quantity_available <= min_stock_level"))
}

func (r *GormLedgerRepository) FindOutOfStock(ctx context.Context) ([]*domain.InventoryItem, error) {
	return r.findAll(ctx, r.db.WithContext(ctx).Where("quantity_available <= 0"))
}

func (r *GormLedgerRepository) List(ctx context.Context, page, size int) ([]*domain.InventoryItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&InventoryItemModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	items, err := r.findAll(ctx, r.db.WithContext(ctx).
		Order("product_id").Offset((page-1)*size).Limit(size))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *GormLedgerRepository) findAll(ctx context.Context, tx *gorm.DB) ([]*domain.InventoryItem, error) {
	var models []InventoryItemModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]*domain.InventoryItem, 0, len(models))
	for i := range models {
		items = append(items, toItemDomain(&models[i]))
	}
	return items, nil
}

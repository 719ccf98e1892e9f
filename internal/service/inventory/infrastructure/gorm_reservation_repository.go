// internal/service/inventory/infrastructure/gorm_reservation_repository.go
package infrastructure

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"stockpile/internal/service/inventory/domain"
)

// GormReservationRepository 是 ReservationRepository 的 GORM 实现。
// 状态转移只允许 RESERVED -> RELEASED/CONFIRMED，用带 status 条件的
// UPDATE 表达，已终态的记录影响行数为 0，自然成为无操作。
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository 创建一个新的 GORM 预占仓储实例
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// Record 插入 RESERVED 记录。同一 (orderId, productId) 已有 RESERVED 记录
// 时幂等返回。调用方在整个预占流程中持有商品锁，检查-插入不会交错。
func (r *GormReservationRepository) Record(ctx context.Context, reservation *domain.OrderReservation) (bool, error) {
	existing, err := r.FindOpen(ctx, reservation.OrderID, reservation.ProductID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		*reservation = *existing
		return false, nil
	}
	model := toReservationModel(reservation)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return false, err
	}
	reservation.ID = model.ID
	return true, nil
}

func (r *GormReservationRepository) FindOpen(ctx context.Context, orderID, productID string) (*domain.OrderReservation, error) {
	var model OrderReservationModel
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND product_id = ? AND status = ?", orderID, productID, domain.StatusReserved).
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return toReservationDomain(&model), nil
}

func (r *GormReservationRepository) FindOpenForOrder(ctx context.Context, orderID string) ([]*domain.OrderReservation, error) {
	var models []OrderReservationModel
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, domain.StatusReserved).
		Order("product_id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toReservationList(models), nil
}

func (r *GormReservationRepository) MarkReleased(ctx context.Context, orderID, productID string) (*domain.OrderReservation, error) {
	return r.transition(ctx, orderID, productID, domain.StatusReleased)
}

func (r *GormReservationRepository) MarkConfirmed(ctx context.Context, orderID, productID string) (*domain.OrderReservation, error) {
	return r.transition(ctx, orderID, productID, domain.StatusConfirmed)
}

func (r *GormReservationRepository) MarkOrderReleased(ctx context.Context, orderID string) ([]*domain.OrderReservation, error) {
	open, err := r.FindOpenForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	moved := make([]*domain.OrderReservation, 0, len(open))
	for _, res := range open {
		got, err := r.transition(ctx, orderID, res.ProductID, domain.StatusReleased)
		if err != nil {
			return moved, err
		}
		if got != nil {
			moved = append(moved, got)
		}
	}
	return moved, nil
}

func (r *GormReservationRepository) MarkOrderConfirmed(ctx context.Context, orderID string) ([]*domain.OrderReservation, error) {
	open, err := r.FindOpenForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	moved := make([]*domain.OrderReservation, 0, len(open))
	for _, res := range open {
		got, err := r.transition(ctx, orderID, res.ProductID, domain.StatusConfirmed)
		if err != nil {
			return moved, err
		}
		if got != nil {
			moved = append(moved, got)
		}
	}
	return moved, nil
}

// Reopen 把终态记录退回 RESERVED，认领后台账写入失败的回退路径。
// 目标行仍是 RESERVED 时影响行数为 0，同样视为成功。
func (r *GormReservationRepository) Reopen(ctx context.Context, reservationID uint64) error {
	return r.db.WithContext(ctx).Model(&OrderReservationModel{}).
		Where("id = ? AND status <> ?", reservationID, domain.StatusReserved).
		Updates(map[string]interface{}{
			"status":       domain.StatusReserved,
			"released_at":  sql.NullTime{},
			"confirmed_at": sql.NullTime{},
		}).Error
}

// transition 原子地把 RESERVED 记录转为目标终态。
// 影响行数为 0 说明记录不存在或已终态，返回 nil, nil。
func (r *GormReservationRepository) transition(ctx context.Context, orderID, productID string, target domain.ReservationStatus) (*domain.OrderReservation, error) {
	now := nowUTC()
	updates := map[string]interface{}{"status": target}
	switch target {
	case domain.StatusReleased:
		updates["released_at"] = sql.NullTime{Time: now, Valid: true}
	case domain.StatusConfirmed:
		updates["confirmed_at"] = sql.NullTime{Time: now, Valid: true}
	}

	res := r.db.WithContext(ctx).Model(&OrderReservationModel{}).
		Where("order_id = ? AND product_id = ? AND status = ?", orderID, productID, domain.StatusReserved).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var model OrderReservationModel
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND product_id = ? AND status = ?", orderID, productID, target).
		Order("id DESC").
		First(&model).Error
	if err != nil {
		return nil, err
	}
	return toReservationDomain(&model), nil
}

func toReservationList(models []OrderReservationModel) []*domain.OrderReservation {
	out := make([]*domain.OrderReservation, 0, len(models))
	for i := range models {
		out = append(out, toReservationDomain(&models[i]))
	}
	return out
}

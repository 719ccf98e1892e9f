// internal/service/inventory/domain/reservation.go
package domain

import "time"

// ReservationStatus 定义了预占记录的生命周期状态
type ReservationStatus string

const (
	StatusReserved  ReservationStatus = "RESERVED"  // 库存已预占，订单尚未确认
	StatusConfirmed ReservationStatus = "CONFIRMED" // 订单已确认，库存已实扣
	StatusReleased  ReservationStatus = "RELEASED"  // 预占已释放（取消或超时回滚）
)

// OrderReservation 是 (orderId, productId) 粒度的预占记录。
// 订单本身没有聚合存在于本服务中——共享同一 orderId 的一组记录就是订单，
// 这让整单回滚不依赖调用方重传明细。
//
// 状态机: RESERVED -> CONFIRMED 或 RESERVED -> RELEASED，
// 两个终态都不可再转移；对终态记录的转移请求静默忽略，保证重试幂等。
type OrderReservation struct {
	ID        uint64
	OrderID   string
	ProductID string
	Quantity  int
	Status    ReservationStatus

	CreatedAt   time.Time
	ReleasedAt  time.Time
	ConfirmedAt time.Time
}

// NewOrderReservation 创建一条处于 RESERVED 状态的预占记录。
func NewOrderReservation(orderID, productID string, quantity int) (*OrderReservation, error) {
	if orderID == "" || productID == "" {
		return nil, ErrUnknownProduct
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return &OrderReservation{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Status:    StatusReserved,
		CreatedAt: time.Now(),
	}, nil
}

// IsOpen 表示记录仍处于唯一的非终态 RESERVED。
func (r *OrderReservation) IsOpen() bool {
	return r.Status == StatusReserved
}

// MarkReleased 将记录转为 RELEASED。
// 返回 false 表示记录已处于终态，本次调用是无操作。
func (r *OrderReservation) MarkReleased() bool {
	if !r.IsOpen() {
		return false
	}
	r.Status = StatusReleased
	r.ReleasedAt = time.Now()
	return true
}

// MarkConfirmed 将记录转为 CONFIRMED。
// 返回 false 表示记录已处于终态，本次调用是无操作。
func (r *OrderReservation) MarkConfirmed() bool {
	if !r.IsOpen() {
		return false
	}
	r.Status = StatusConfirmed
	r.ConfirmedAt = time.Now()
	return true
}

// Reopen 把终态记录退回 RESERVED 并清除终态时间戳。
// 不属于正常状态机: 只在认领之后台账写入失败时由应用层回退使用，
// 保证这笔预占对重试和超时清扫仍然可见。
func (r *OrderReservation) Reopen() bool {
	if r.IsOpen() {
		return false
	}
	r.Status = StatusReserved
	r.ReleasedAt = time.Time{}
	r.ConfirmedAt = time.Time{}
	return true
}
